// Package negotiation sequences session descriptions and remote ICE
// candidates against the peer connection, deferring candidates that
// arrive before both descriptions are committed, and performs the SDP
// string rewriting negotiated sessions rely on.
package negotiation

import (
	"fmt"
	"log"

	"roomrtc/client/internal/domain"
)

const audioCodecOpus = "opus"

// Events receives sequencer callbacks. OnLocalDescription fires when
// the local SDP is ready to be sent to the peer; OnNegotiationError
// fires at most once with the first create/set failure.
type Events interface {
	OnLocalDescription(sdp domain.SessionDescription)
	OnNegotiationError(description string)
}

// MediaConfig selects the codec and bitrate rewriting applied during
// negotiation. Zero values disable each rewrite.
type MediaConfig struct {
	PreferredAudioCodec string
	PreferredVideoCodec string
	AudioStartBitrate   int
	VideoStartBitrate   int
	VideoEnabled        bool
}

// candidateQueue holds remote candidates until both descriptions are
// committed. Once drained it stays drained; further adds are refused
// and a repeated drain returns nothing.
type candidateQueue struct {
	drained bool
	pending []domain.IceCandidate
}

func (q *candidateQueue) add(candidate domain.IceCandidate) bool {
	if q.drained {
		return false
	}
	q.pending = append(q.pending, candidate)
	return true
}

func (q *candidateQueue) drain() ([]domain.IceCandidate, bool) {
	if q.drained {
		return nil, false
	}
	q.drained = true
	pending := q.pending
	q.pending = nil
	return pending, true
}

// Sequencer drives offer/answer ordering for one call attempt. All
// methods must be called from the signaling execution context.
type Sequencer struct {
	pc        domain.PeerConnection
	events    Events
	config    MediaConfig
	initiator bool

	localSDP *domain.SessionDescription
	queued   candidateQueue
	isError  bool
}

// NewSequencer creates a sequencer for the given role.
func NewSequencer(pc domain.PeerConnection, initiator bool, config MediaConfig, events Events) *Sequencer {
	return &Sequencer{
		pc:        pc,
		events:    events,
		config:    config,
		initiator: initiator,
	}
}

// CreateOffer creates and commits the local offer. The applied SDP is
// emitted through OnLocalDescription once the local description is set.
func (s *Sequencer) CreateOffer() {
	s.createLocal(func() (domain.SessionDescription, error) { return s.pc.CreateOffer() })
}

// CreateAnswer creates and commits the local answer. It must follow
// SetRemoteDescription of the peer's offer.
func (s *Sequencer) CreateAnswer() {
	s.createLocal(func() (domain.SessionDescription, error) { return s.pc.CreateAnswer() })
}

func (s *Sequencer) createLocal(create func() (domain.SessionDescription, error)) {
	if s.isError {
		return
	}
	if s.localSDP != nil {
		s.reportError("Multiple SDP create.")
		return
	}
	sdp, err := create()
	if err != nil {
		s.reportError(fmt.Sprintf("createSDP error: %v", err))
		return
	}
	sdp.SDP = s.preferCodecs(sdp.SDP)
	s.localSDP = &sdp

	log.Printf("[negotiation] set local SDP from %s", sdp.Type)
	if err := s.pc.SetLocalDescription(sdp); err != nil {
		s.reportError(fmt.Sprintf("setSDP error: %v", err))
		return
	}
	s.afterDescriptionSet()
}

// SetRemoteDescription rewrites and commits the remote SDP.
func (s *Sequencer) SetRemoteDescription(sdp domain.SessionDescription) {
	if s.isError {
		return
	}
	sdp.SDP = s.preferCodecs(sdp.SDP)
	if s.config.VideoEnabled && s.config.VideoStartBitrate > 0 {
		sdp.SDP = SetStartBitrate(s.config.PreferredVideoCodec, true, sdp.SDP, s.config.VideoStartBitrate)
	}
	if s.config.AudioStartBitrate > 0 {
		sdp.SDP = SetStartBitrate(audioCodecOpus, false, sdp.SDP, s.config.AudioStartBitrate)
	}

	log.Printf("[negotiation] set remote SDP from %s", sdp.Type)
	if err := s.pc.SetRemoteDescription(sdp); err != nil {
		s.reportError(fmt.Sprintf("setSDP error: %v", err))
		return
	}
	s.afterDescriptionSet()
}

// AddRemoteCandidate applies a remote candidate, or queues it while
// either description is still missing.
func (s *Sequencer) AddRemoteCandidate(candidate domain.IceCandidate) {
	if s.isError {
		return
	}
	if s.queued.add(candidate) {
		return
	}
	if err := s.pc.AddIceCandidate(candidate); err != nil {
		s.reportError(fmt.Sprintf("addIceCandidate error: %v", err))
	}
}

// RemoveRemoteCandidates applies a batch candidate retraction. Any
// still-queued candidates are drained first so removals always target
// an applied set.
func (s *Sequencer) RemoveRemoteCandidates(candidates []domain.IceCandidate) {
	if s.isError {
		return
	}
	s.drainCandidates()
	if err := s.pc.RemoveIceCandidates(candidates); err != nil {
		s.reportError(fmt.Sprintf("removeIceCandidates error: %v", err))
	}
}

// afterDescriptionSet runs the role-keyed continuation after a
// successful description commit: the offering side sends its local SDP
// after the local set and drains after the remote set; the answering
// side sends and drains only once the local answer is set.
func (s *Sequencer) afterDescriptionSet() {
	if s.initiator {
		if !s.pc.HasRemoteDescription() {
			log.Printf("[negotiation] local SDP set successfully")
			s.events.OnLocalDescription(*s.localSDP)
		} else {
			log.Printf("[negotiation] remote SDP set successfully")
			s.drainCandidates()
		}
	} else {
		if s.pc.HasLocalDescription() {
			log.Printf("[negotiation] local SDP set successfully")
			s.events.OnLocalDescription(*s.localSDP)
			s.drainCandidates()
		} else {
			log.Printf("[negotiation] remote SDP set successfully")
		}
	}
}

func (s *Sequencer) drainCandidates() {
	pending, ok := s.queued.drain()
	if !ok {
		return
	}
	log.Printf("[negotiation] add %d remote candidates", len(pending))
	for _, candidate := range pending {
		if err := s.pc.AddIceCandidate(candidate); err != nil {
			s.reportError(fmt.Sprintf("addIceCandidate error: %v", err))
			return
		}
	}
}

func (s *Sequencer) preferCodecs(sdp string) string {
	if s.config.PreferredAudioCodec != "" {
		sdp = PreferCodec(sdp, s.config.PreferredAudioCodec, true)
	}
	if s.config.VideoEnabled && s.config.PreferredVideoCodec != "" {
		sdp = PreferCodec(sdp, s.config.PreferredVideoCodec, false)
	}
	return sdp
}

func (s *Sequencer) reportError(description string) {
	log.Printf("[negotiation] %s", description)
	if !s.isError {
		s.isError = true
		s.events.OnNegotiationError(description)
	}
}
