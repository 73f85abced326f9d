package main

import (
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"

	"roomrtc/client/internal/channel"
	"roomrtc/client/internal/config"
	"roomrtc/client/internal/domain"
	"roomrtc/client/internal/negotiation"
	"roomrtc/client/internal/peer"
	"roomrtc/client/internal/room"
	"roomrtc/client/internal/session"
)

const helpText = `roomrtc - Join a two-participant signaling room and negotiate a call

The first client to join a room becomes the initiator and creates the
offer; the second joins as the answerer. With LOOPBACK=true the client
calls itself, echoing its own offer back as the answer.

Environment Variables:
  ROOM_URL             Room server base URL (required)
  ROOM_ID              Room identifier (default: random)
  LOOPBACK             "true" for self-call mode
  AUDIO_CODEC          Preferred audio codec, e.g. ISAC
  VIDEO_CODEC          Preferred video codec, e.g. VP9
  AUDIO_START_BITRATE  Audio start bitrate in kbps
  VIDEO_START_BITRATE  Video start bitrate in kbps

Options:
  -h, --help  Show this help message
`

// controller owns the peer connection and negotiation sequencer and
// consumes session events on the main goroutine.
type controller struct {
	sc     *session.Client
	cfg    *config.Config
	cancel context.CancelFunc

	peerConn  *peer.Peer
	sequencer *negotiation.Sequencer
	initiator bool
}

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Print(helpText)
		os.Exit(0)
	}

	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %s, shutting down", sig)
		cancel()
	}()

	// Step 1: Create the signaling session
	sc := session.New(room.NewFetcher(), func(post func(func()), events domain.ChannelEvents) domain.Channel {
		return channel.New(post, events)
	})

	ctrl := &controller{sc: sc, cfg: cfg, cancel: cancel}

	// Step 2: Join the room
	log.Printf("[main] joining room %s at %s (loopback=%v)", cfg.RoomID, cfg.RoomURL, cfg.Loopback)
	sc.Connect(domain.RoomConnectionParameters{
		RoomURL:  cfg.RoomURL,
		RoomID:   cfg.RoomID,
		Loopback: cfg.Loopback,
	})

	// Step 3: Drive the call from session events
	ctrl.loop(ctx)

	sc.Disconnect()
	if ctrl.peerConn != nil {
		ctrl.peerConn.Close()
	}
	log.Printf("[main] done")
}

func (c *controller) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-c.sc.Events():
			if !ok {
				return
			}
			if done := c.handle(event); done {
				return
			}
		}
	}
}

// handle processes one session event; it returns true once the call is
// over.
func (c *controller) handle(event domain.Event) bool {
	switch e := event.(type) {
	case domain.ConnectedToRoom:
		if err := c.connected(e.Params); err != nil {
			log.Printf("[main] %v", err)
			return true
		}
	case domain.RemoteDescription:
		c.sequencer.SetRemoteDescription(e.SDP)
		if !c.initiator {
			c.sequencer.CreateAnswer()
		}
	case domain.RemoteCandidate:
		c.sequencer.AddRemoteCandidate(e.Candidate)
	case domain.RemoteCandidatesRemoved:
		c.sequencer.RemoveRemoteCandidates(e.Candidates)
	case domain.ChannelClosed:
		log.Printf("[main] remote end hung up")
		return true
	case domain.ChannelError:
		log.Printf("[main] signaling error: %s", e.Description)
		return true
	}
	return false
}

// connected sets up the peer connection and kicks off negotiation for
// our role.
func (c *controller) connected(params *domain.SignalingParameters) error {
	c.initiator = params.Initiator

	peerConn, err := peer.New(params.IceServers)
	if err != nil {
		return fmt.Errorf("create peer: %w", err)
	}
	c.peerConn = peerConn
	peerConn.SetOnIceCandidate(func(candidate domain.IceCandidate) {
		c.sc.SendLocalCandidate(candidate)
	})

	c.sequencer = negotiation.NewSequencer(peerConn, params.Initiator, negotiation.MediaConfig{
		PreferredAudioCodec: c.cfg.AudioCodec,
		PreferredVideoCodec: c.cfg.VideoCodec,
		AudioStartBitrate:   c.cfg.AudioStartBitrate,
		VideoStartBitrate:   c.cfg.VideoStartBitrate,
		VideoEnabled:        true,
	}, c)

	if params.Initiator {
		log.Printf("[main] creating offer")
		c.sequencer.CreateOffer()
	} else {
		if params.OfferSDP != nil {
			log.Printf("[main] answering pending offer")
			c.sequencer.SetRemoteDescription(*params.OfferSDP)
			c.sequencer.CreateAnswer()
		}
		for _, candidate := range params.IceCandidates {
			c.sequencer.AddRemoteCandidate(candidate)
		}
	}
	return nil
}

// OnLocalDescription implements negotiation.Events.
func (c *controller) OnLocalDescription(sdp domain.SessionDescription) {
	if c.initiator {
		c.sc.SendOfferSDP(sdp)
	} else {
		c.sc.SendAnswerSDP(sdp)
	}
}

// OnNegotiationError implements negotiation.Events.
func (c *controller) OnNegotiationError(description string) {
	log.Printf("[main] negotiation error: %s", description)
	c.cancel()
}
