// Package session negotiates signaling for a two-participant room: it
// fetches room parameters, registers the realtime channel and converts
// between domain events and the wire JSON envelope.
//
// All session and channel state lives on a single run-loop goroutine.
// Commands from the call controller are posted onto that loop; events
// cross back to the controller on the Events channel.
package session

import (
	"encoding/json"
	"fmt"
	"log"

	"roomrtc/client/internal/domain"
	"roomrtc/client/internal/transport"
)

type connectionState int

const (
	stateNew connectionState = iota
	stateConnected
	stateClosed
	stateError
)

type postKind int

const (
	postMessage postKind = iota
	postLeave
)

// outerEnvelope is the server->client delivery frame on the realtime
// channel.
type outerEnvelope struct {
	Msg   string `json:"msg"`
	Error string `json:"error"`
}

// wireMessage covers every inner signaling message shape.
type wireMessage struct {
	Type       string          `json:"type"`
	SDP        string          `json:"sdp,omitempty"`
	Label      *int            `json:"label,omitempty"`
	ID         string          `json:"id,omitempty"`
	Candidate  string          `json:"candidate,omitempty"`
	Candidates []wireCandidate `json:"candidates,omitempty"`
}

type wireCandidate struct {
	Label     int    `json:"label"`
	ID        string `json:"id"`
	Candidate string `json:"candidate"`
}

type postResponse struct {
	Result string `json:"result"`
}

// ChannelFactory builds the realtime channel for a connect attempt.
// post is the session's run-loop dispatcher.
type ChannelFactory func(post func(func()), events domain.ChannelEvents) domain.Channel

// Client is the signaling session orchestrator. Construct one per call
// attempt; it is not reusable after Disconnect.
type Client struct {
	fetcher    domain.ParameterFetcher
	newChannel ChannelFactory

	ops    chan func()
	done   chan struct{}
	events chan domain.Event
	quit   bool

	connection     domain.RoomConnectionParameters
	initiator      bool
	wsClient       domain.Channel
	roomState      connectionState
	messageURL     string
	leaveURL       string
	closedReported bool
}

// New creates a session using the given room parameter fetcher and
// channel factory, and starts its run loop.
func New(fetcher domain.ParameterFetcher, newChannel ChannelFactory) *Client {
	c := &Client{
		fetcher:    fetcher,
		newChannel: newChannel,
		ops:        make(chan func(), 64),
		done:       make(chan struct{}),
		events:     make(chan domain.Event, 64),
		roomState:  stateNew,
	}
	go c.run()
	return c
}

// Events returns the channel the session delivers events on. It is
// closed once Disconnect completes.
func (c *Client) Events() <-chan domain.Event {
	return c.events
}

func (c *Client) run() {
	defer close(c.events)
	for !c.quit {
		(<-c.ops)()
	}
}

// post schedules f on the run loop; after Disconnect it is a no-op.
func (c *Client) post(f func()) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.ops <- f:
	case <-c.done:
	}
}

func (c *Client) emit(event domain.Event) {
	select {
	case c.events <- event:
	case <-c.done:
	}
}

// Connect asynchronously joins the room. Once the room's signaling
// parameters are extracted a ConnectedToRoom event is emitted.
func (c *Client) Connect(params domain.RoomConnectionParameters) {
	c.post(func() { c.connectInternal(params) })
}

func (c *Client) connectInternal(params domain.RoomConnectionParameters) {
	c.connection = params
	c.roomState = stateNew
	c.wsClient = c.newChannel(c.post, c)

	joinURL := fmt.Sprintf("%s/join/%s", params.RoomURL, params.RoomID)
	log.Printf("[session] connect to room: %s", joinURL)

	go func() {
		signalingParams, err := c.fetcher.Fetch(joinURL, "")
		c.post(func() {
			if err != nil {
				c.reportError(err.Error())
				return
			}
			c.signalingParametersReady(signalingParams)
		})
	}()
}

func (c *Client) signalingParametersReady(params *domain.SignalingParameters) {
	log.Printf("[session] room connection completed")
	if c.connection.Loopback && (!params.Initiator || params.OfferSDP != nil) {
		c.reportError("Loopback room is busy.")
		return
	}
	if !c.connection.Loopback && !params.Initiator && params.OfferSDP == nil {
		log.Printf("[session] no offer SDP in room response")
	}
	c.initiator = params.Initiator
	c.messageURL = fmt.Sprintf("%s/message/%s/%s", c.connection.RoomURL, c.connection.RoomID, params.ClientID)
	c.leaveURL = fmt.Sprintf("%s/leave/%s/%s", c.connection.RoomURL, c.connection.RoomID, params.ClientID)
	log.Printf("[session] message URL: %s", c.messageURL)
	log.Printf("[session] leave URL: %s", c.leaveURL)
	c.roomState = stateConnected

	c.emit(domain.ConnectedToRoom{Params: params})

	c.wsClient.Connect(params.WSSURL, params.WSSPostURL)
	c.wsClient.Register(c.connection.RoomID, params.ClientID)
}

// SendOfferSDP sends the local offer to the room server. In loopback
// mode the offer is also routed back as a synthesized remote answer.
func (c *Client) SendOfferSDP(sdp domain.SessionDescription) {
	c.post(func() {
		if c.roomState != stateConnected {
			c.reportError("Sending offer SDP in non connected state.")
			return
		}
		body, _ := json.Marshal(wireMessage{Type: "offer", SDP: sdp.SDP})
		c.sendPostMessage(postMessage, c.messageURL, string(body))
		if c.connection.Loopback {
			c.emit(domain.RemoteDescription{
				SDP: domain.SessionDescription{Type: "answer", SDP: sdp.SDP},
			})
		}
	})
}

// SendAnswerSDP sends the local answer over the realtime channel.
func (c *Client) SendAnswerSDP(sdp domain.SessionDescription) {
	c.post(func() {
		if c.connection.Loopback {
			log.Printf("[session] sending answer in loopback mode")
			return
		}
		body, _ := json.Marshal(wireMessage{Type: "answer", SDP: sdp.SDP})
		c.wsClient.Send(string(body))
	})
}

// SendLocalCandidate sends a locally discovered ICE candidate: the
// initiator POSTs to the room server, the answerer uses the channel.
func (c *Client) SendLocalCandidate(candidate domain.IceCandidate) {
	c.post(func() {
		label := candidate.Label
		body, _ := json.Marshal(wireMessage{
			Type:      "candidate",
			Label:     &label,
			ID:        candidate.ID,
			Candidate: candidate.Candidate,
		})
		if c.initiator {
			if c.roomState != stateConnected {
				c.reportError("Sending ICE candidate in non connected state.")
				return
			}
			c.sendPostMessage(postMessage, c.messageURL, string(body))
			if c.connection.Loopback {
				c.emit(domain.RemoteCandidate{Candidate: candidate})
			}
		} else {
			c.wsClient.Send(string(body))
		}
	})
}

// SendLocalCandidateRemovals notifies the peer of retracted candidates.
func (c *Client) SendLocalCandidateRemovals(candidates []domain.IceCandidate) {
	c.post(func() {
		removals := make([]wireCandidate, 0, len(candidates))
		for _, candidate := range candidates {
			removals = append(removals, wireCandidate{
				Label:     candidate.Label,
				ID:        candidate.ID,
				Candidate: candidate.Candidate,
			})
		}
		body, _ := json.Marshal(wireMessage{Type: "remove-candidates", Candidates: removals})
		if c.initiator {
			if c.roomState != stateConnected {
				c.reportError("Sending ICE candidate removals in non connected state.")
				return
			}
			c.sendPostMessage(postMessage, c.messageURL, string(body))
			if c.connection.Loopback {
				c.emit(domain.RemoteCandidatesRemoved{Candidates: candidates})
			}
		} else {
			c.wsClient.Send(string(body))
		}
	})
}

// Disconnect leaves the room, closes the channel and stops the run
// loop. Safe to call repeatedly, in any state.
func (c *Client) Disconnect() {
	c.post(func() {
		c.disconnectInternal()
		c.quit = true
		close(c.done)
	})
}

func (c *Client) disconnectInternal() {
	log.Printf("[session] disconnect, room state: %d", c.roomState)
	if c.roomState == stateConnected {
		log.Printf("[session] closing room")
		c.sendPostMessage(postLeave, c.leaveURL, "")
	}
	c.roomState = stateClosed
	c.reportClosed()
	if c.wsClient != nil {
		c.wsClient.Disconnect(true)
	}
}

// OnChannelMessage implements domain.ChannelEvents; it runs on the
// session loop.
func (c *Client) OnChannelMessage(message string) {
	if c.wsClient.State() != domain.ChannelStateRegistered {
		log.Printf("[session] got channel message in non registered state")
		return
	}
	var outer outerEnvelope
	if err := json.Unmarshal([]byte(message), &outer); err != nil {
		c.reportError(fmt.Sprintf("channel message JSON parsing error: %v", err))
		return
	}
	if outer.Msg == "" {
		if outer.Error != "" {
			c.reportError("channel error message: " + outer.Error)
		} else {
			c.reportError("unexpected channel message: " + message)
		}
		return
	}

	var inner wireMessage
	if err := json.Unmarshal([]byte(outer.Msg), &inner); err != nil {
		c.reportError(fmt.Sprintf("channel message JSON parsing error: %v", err))
		return
	}
	switch inner.Type {
	case "candidate":
		label := 0
		if inner.Label != nil {
			label = *inner.Label
		}
		c.emit(domain.RemoteCandidate{Candidate: domain.IceCandidate{
			ID:        inner.ID,
			Label:     label,
			Candidate: inner.Candidate,
		}})
	case "remove-candidates":
		candidates := make([]domain.IceCandidate, 0, len(inner.Candidates))
		for _, candidate := range inner.Candidates {
			candidates = append(candidates, domain.IceCandidate{
				ID:        candidate.ID,
				Label:     candidate.Label,
				Candidate: candidate.Candidate,
			})
		}
		c.emit(domain.RemoteCandidatesRemoved{Candidates: candidates})
	case "answer":
		if c.initiator {
			c.emit(domain.RemoteDescription{SDP: domain.SessionDescription{Type: "answer", SDP: inner.SDP}})
		} else {
			c.reportError("received answer for call initiator: " + message)
		}
	case "offer":
		if !c.initiator {
			c.emit(domain.RemoteDescription{SDP: domain.SessionDescription{Type: "offer", SDP: inner.SDP}})
		} else {
			c.reportError("received offer for call receiver: " + message)
		}
	case "bye":
		c.reportClosed()
	default:
		c.reportError("unexpected channel message: " + message)
	}
}

// OnChannelClose implements domain.ChannelEvents.
func (c *Client) OnChannelClose() {
	c.reportClosed()
}

// OnChannelError implements domain.ChannelEvents.
func (c *Client) OnChannelError(description string) {
	c.reportError("channel error: " + description)
}

// reportError emits the first fatal error of the session; later errors
// are logged only.
func (c *Client) reportError(description string) {
	log.Printf("[session] %s", description)
	if c.roomState != stateError {
		c.roomState = stateError
		c.emit(domain.ChannelError{Description: description})
	}
}

// reportClosed emits ChannelClosed at most once per session.
func (c *Client) reportClosed() {
	if c.closedReported {
		return
	}
	c.closedReported = true
	c.emit(domain.ChannelClosed{})
}

// sendPostMessage fires an SDP, candidate or leave POST at the room
// server. Message POST responses carry a {result} envelope that must
// read SUCCESS.
func (c *Client) sendPostMessage(kind postKind, url, message string) {
	logInfo := url
	if message != "" {
		logInfo += ". Message: " + message
	}
	log.Printf("[session] C->server: %s", logInfo)
	transport.Request{
		Method:  "POST",
		URL:     url,
		Message: message,
		OnError: func(errorMessage string) {
			c.post(func() { c.reportError("room POST error: " + errorMessage) })
		},
		OnComplete: func(response string) {
			if kind != postMessage {
				return
			}
			var parsed postResponse
			if err := json.Unmarshal([]byte(response), &parsed); err != nil {
				c.post(func() { c.reportError(fmt.Sprintf("room POST JSON error: %v", err)) })
				return
			}
			if parsed.Result != "SUCCESS" {
				c.post(func() { c.reportError("room POST error: " + parsed.Result) })
			}
		},
	}.Send()
}
