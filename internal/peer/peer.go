// Package peer adapts a Pion PeerConnection to the narrow contract the
// signaling core consumes from the media engine.
package peer

import (
	"fmt"
	"log"

	"roomrtc/client/internal/domain"

	"github.com/pion/interceptor"
	pion "github.com/pion/webrtc/v4"
)

// Peer wraps a Pion PeerConnection. It implements
// domain.PeerConnection.
type Peer struct {
	pc *pion.PeerConnection
}

// New creates a PeerConnection configured with the room's ICE servers
// and bidirectional audio/video transceivers.
func New(iceServers []domain.IceServer) (*Peer, error) {
	m := &pion.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	i := &interceptor.Registry{}
	if err := pion.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(i),
	)

	var servers []pion.ICEServer
	for _, s := range iceServers {
		servers = append(servers, pion.ICEServer{
			URLs:       []string{s.URI},
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	pc, err := api.NewPeerConnection(pion.Configuration{
		ICEServers:   servers,
		BundlePolicy: pion.BundlePolicyMaxBundle,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	for _, kind := range []pion.RTPCodecType{pion.RTPCodecTypeAudio, pion.RTPCodecTypeVideo} {
		_, err := pc.AddTransceiverFromKind(kind, pion.RTPTransceiverInit{
			Direction: pion.RTPTransceiverDirectionSendrecv,
		})
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("add %s transceiver: %w", kind, err)
		}
	}

	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		log.Printf("[peer] ICE connection state: %s", state)
	})
	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		log.Printf("[peer] peer connection state: %s", state)
	})

	return &Peer{pc: pc}, nil
}

// SetOnIceCandidate registers the callback for locally discovered ICE
// candidates. Called before negotiation starts.
func (p *Peer) SetOnIceCandidate(send func(domain.IceCandidate)) {
	p.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			log.Printf("[peer] ICE gathering complete")
			return
		}
		init := c.ToJSON()
		candidate := domain.IceCandidate{Candidate: init.Candidate}
		if init.SDPMid != nil {
			candidate.ID = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			candidate.Label = int(*init.SDPMLineIndex)
		}
		send(candidate)
	})
}

func (p *Peer) CreateOffer() (domain.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return domain.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	return domain.SessionDescription{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

func (p *Peer) CreateAnswer() (domain.SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	return domain.SessionDescription{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

func (p *Peer) SetLocalDescription(sdp domain.SessionDescription) error {
	desc := pion.SessionDescription{Type: pion.NewSDPType(sdp.Type), SDP: sdp.SDP}
	if err := p.pc.SetLocalDescription(desc); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return nil
}

func (p *Peer) SetRemoteDescription(sdp domain.SessionDescription) error {
	desc := pion.SessionDescription{Type: pion.NewSDPType(sdp.Type), SDP: sdp.SDP}
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

func (p *Peer) AddIceCandidate(candidate domain.IceCandidate) error {
	label := uint16(candidate.Label)
	init := pion.ICECandidateInit{
		Candidate:     candidate.Candidate,
		SDPMid:        &candidate.ID,
		SDPMLineIndex: &label,
	}
	if err := p.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

// RemoveIceCandidates is a no-op: the engine has no API for retracting
// already-applied remote candidates, and stale candidate pairs age out
// through ICE itself.
func (p *Peer) RemoveIceCandidates(candidates []domain.IceCandidate) error {
	log.Printf("[peer] ignoring removal of %d remote candidates", len(candidates))
	return nil
}

func (p *Peer) HasLocalDescription() bool {
	return p.pc.LocalDescription() != nil
}

func (p *Peer) HasRemoteDescription() bool {
	return p.pc.RemoteDescription() != nil
}

// Close shuts down the peer connection.
func (p *Peer) Close() {
	if p.pc != nil {
		p.pc.Close()
	}
}
