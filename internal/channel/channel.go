// Package channel maintains the persistent connection to the signaling
// relay, with a pre-registration send queue and an explicit state
// machine.
//
// All public methods must be called from the session's execution
// context. Events are dispatched back onto that same context through
// the post function supplied at construction.
package channel

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"roomrtc/client/internal/domain"
	"roomrtc/client/internal/transport"

	"github.com/gorilla/websocket"
)

const closeTimeout = time.Second

type registerFrame struct {
	Cmd      string `json:"cmd"`
	RoomID   string `json:"roomid"`
	ClientID string `json:"clientid"`
}

type sendFrame struct {
	Cmd string `json:"cmd"`
	Msg string `json:"msg"`
}

// Channel implements domain.Channel over a websocket connection.
type Channel struct {
	post   func(func())
	events domain.ChannelEvents

	ws      *websocket.Conn
	writeMu sync.Mutex

	wsServerURL   string
	postServerURL string
	roomID        string
	clientID      string

	state     domain.ChannelState
	sendQueue []string
	readDone  chan struct{}
}

// New creates a channel in the NEW state. post must execute functions
// serially on the session's context, in submission order.
func New(post func(func()), events domain.ChannelEvents) *Channel {
	return &Channel{
		post:   post,
		events: events,
		state:  domain.ChannelStateNew,
	}
}

// State reports the current connection state.
func (c *Channel) State() domain.ChannelState {
	return c.state
}

// Connect dials the relay asynchronously. The transition to CONNECTED
// happens on the session context once the socket is open; a register
// requested in the meantime is performed at that point.
func (c *Channel) Connect(wsURL, postURL string) {
	if c.state != domain.ChannelStateNew {
		log.Printf("[channel] already connected")
		return
	}
	c.wsServerURL = wsURL
	c.postServerURL = postURL
	c.readDone = make(chan struct{})

	log.Printf("[channel] connecting to: %s, post URL: %s", wsURL, postURL)

	go func() {
		ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			c.reportError(fmt.Sprintf("websocket connection error: %v", err))
			return
		}
		c.post(func() { c.onOpen(ws) })
		c.readLoop(ws)
	}()
}

func (c *Channel) onOpen(ws *websocket.Conn) {
	log.Printf("[channel] connection opened to: %s", c.wsServerURL)
	c.ws = ws
	c.state = domain.ChannelStateConnected
	// Perform a registration requested before the socket finished opening.
	if c.roomID != "" && c.clientID != "" {
		c.Register(c.roomID, c.clientID)
	}
}

// Register binds the room and client identity, then flushes any
// messages buffered before registration, in original order.
func (c *Channel) Register(roomID, clientID string) {
	c.roomID = roomID
	c.clientID = clientID
	if c.state != domain.ChannelStateConnected {
		log.Printf("[channel] register() in state %s", c.state)
		return
	}
	log.Printf("[channel] registering for room %s, client %s", roomID, clientID)

	frame, err := json.Marshal(registerFrame{Cmd: "register", RoomID: roomID, ClientID: clientID})
	if err != nil {
		c.reportError(fmt.Sprintf("register JSON error: %v", err))
		return
	}
	c.writeText(string(frame))
	c.state = domain.ChannelStateRegistered

	for _, message := range c.sendQueue {
		c.Send(message)
	}
	c.sendQueue = nil
}

// Send transmits an application message. Before registration the
// message is buffered; on a dead channel it is dropped with a warning.
func (c *Channel) Send(message string) {
	switch c.state {
	case domain.ChannelStateNew, domain.ChannelStateConnected:
		log.Printf("[channel] buffering: %s", message)
		c.sendQueue = append(c.sendQueue, message)
	case domain.ChannelStateClosed, domain.ChannelStateError:
		log.Printf("[channel] send() in %s state: %s", c.state, message)
	case domain.ChannelStateRegistered:
		frame, err := json.Marshal(sendFrame{Cmd: "send", Msg: message})
		if err != nil {
			c.reportError(fmt.Sprintf("send JSON error: %v", err))
			return
		}
		c.writeText(string(frame))
	}
}

// Disconnect leaves the relay: a registered channel first sends a bye
// frame and a DELETE to the post endpoint, then the socket is closed.
// Safe to call in any state, repeatedly.
func (c *Channel) Disconnect(waitForComplete bool) {
	log.Printf("[channel] disconnect, state: %s", c.state)
	if c.state == domain.ChannelStateRegistered {
		c.Send(`{"type": "bye"}`)
		c.state = domain.ChannelStateConnected
		c.sendServerMessage("DELETE", "")
	}
	if c.state == domain.ChannelStateConnected || c.state == domain.ChannelStateError {
		if c.ws != nil {
			c.ws.Close()
		}
		c.state = domain.ChannelStateClosed

		// Wait for the read loop to finish so no callback lands on a
		// torn-down session.
		if waitForComplete && c.ws != nil {
			select {
			case <-c.readDone:
			case <-time.After(closeTimeout):
				log.Printf("[channel] timed out waiting for socket close")
			}
		}
	}
	log.Printf("[channel] disconnect done")
}

func (c *Channel) writeText(frame string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	log.Printf("[channel] >>> %s", frame)
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		log.Printf("[channel] write error: %v", err)
	}
}

func (c *Channel) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		payload := string(data)
		log.Printf("[channel] <<< %s", payload)
		c.post(func() {
			if c.state == domain.ChannelStateConnected || c.state == domain.ChannelStateRegistered {
				c.events.OnChannelMessage(payload)
			}
		})
	}
	close(c.readDone)
	c.post(func() {
		if c.state != domain.ChannelStateClosed {
			c.state = domain.ChannelStateClosed
			c.events.OnChannelClose()
		}
	})
}

func (c *Channel) reportError(description string) {
	log.Printf("[channel] %s", description)
	c.post(func() {
		if c.state != domain.ChannelStateError {
			c.state = domain.ChannelStateError
			c.events.OnChannelError(description)
		}
	})
}

// sendServerMessage POSTs or DELETEs to the relay's HTTP endpoint for
// this room and client.
func (c *Channel) sendServerMessage(method, message string) {
	url := fmt.Sprintf("%s/%s/%s", c.postServerURL, c.roomID, c.clientID)
	log.Printf("[channel] %s %s: %s", method, url, message)
	transport.Request{
		Method:  method,
		URL:     url,
		Message: message,
		OnError: func(errorMessage string) {
			c.reportError(fmt.Sprintf("%s error: %s", method, errorMessage))
		},
	}.Send()
}
