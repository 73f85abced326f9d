package negotiation

import (
	"errors"
	"fmt"
	"testing"

	"roomrtc/client/internal/domain"
)

// mockPeerConnection records calls for verification.
type mockPeerConnection struct {
	localSet  bool
	remoteSet bool
	added     []domain.IceCandidate
	removed   []domain.IceCandidate
	createErr error
	setErr    error
	offerSDP  string
	answerSDP string
}

func (m *mockPeerConnection) CreateOffer() (domain.SessionDescription, error) {
	if m.createErr != nil {
		return domain.SessionDescription{}, m.createErr
	}
	return domain.SessionDescription{Type: "offer", SDP: m.offerSDP}, nil
}

func (m *mockPeerConnection) CreateAnswer() (domain.SessionDescription, error) {
	if m.createErr != nil {
		return domain.SessionDescription{}, m.createErr
	}
	return domain.SessionDescription{Type: "answer", SDP: m.answerSDP}, nil
}

func (m *mockPeerConnection) SetLocalDescription(sdp domain.SessionDescription) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.localSet = true
	return nil
}

func (m *mockPeerConnection) SetRemoteDescription(sdp domain.SessionDescription) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.remoteSet = true
	return nil
}

func (m *mockPeerConnection) AddIceCandidate(candidate domain.IceCandidate) error {
	m.added = append(m.added, candidate)
	return nil
}

func (m *mockPeerConnection) RemoveIceCandidates(candidates []domain.IceCandidate) error {
	m.removed = append(m.removed, candidates...)
	return nil
}

func (m *mockPeerConnection) HasLocalDescription() bool  { return m.localSet }
func (m *mockPeerConnection) HasRemoteDescription() bool { return m.remoteSet }

// mockEvents records sequencer callbacks.
type mockEvents struct {
	localDescriptions []domain.SessionDescription
	negotiationErrors []string
}

func (m *mockEvents) OnLocalDescription(sdp domain.SessionDescription) {
	m.localDescriptions = append(m.localDescriptions, sdp)
}

func (m *mockEvents) OnNegotiationError(description string) {
	m.negotiationErrors = append(m.negotiationErrors, description)
}

func candidate(i int) domain.IceCandidate {
	return domain.IceCandidate{ID: "audio", Label: 0, Candidate: fmt.Sprintf("candidate:%d", i)}
}

func TestAnswerer_QueuesCandidatesUntilLocalDescriptionSet(t *testing.T) {
	pc := &mockPeerConnection{answerSDP: "v=0\r\n"}
	events := &mockEvents{}
	seq := NewSequencer(pc, false, MediaConfig{}, events)

	seq.SetRemoteDescription(domain.SessionDescription{Type: "offer", SDP: "v=0\r\n"})
	for i := 0; i < 3; i++ {
		seq.AddRemoteCandidate(candidate(i))
	}

	if len(pc.added) != 0 {
		t.Fatalf("expected 0 candidates applied before answer is set, got %d", len(pc.added))
	}
	if len(events.localDescriptions) != 0 {
		t.Fatal("remote description alone must not emit a local description")
	}

	seq.CreateAnswer()

	if len(events.localDescriptions) != 1 {
		t.Fatalf("expected 1 local description, got %d", len(events.localDescriptions))
	}
	if len(pc.added) != 3 {
		t.Fatalf("expected 3 candidates drained, got %d", len(pc.added))
	}
	for i, c := range pc.added {
		if c.Candidate != fmt.Sprintf("candidate:%d", i) {
			t.Errorf("candidate %d out of order: %s", i, c.Candidate)
		}
	}

	// A redundant drain performs zero additional calls.
	seq.drainCandidates()
	if len(pc.added) != 3 {
		t.Fatalf("expected redrain to be a no-op, got %d adds", len(pc.added))
	}
}

func TestAnswerer_AppliesCandidatesDirectlyAfterDrain(t *testing.T) {
	pc := &mockPeerConnection{answerSDP: "v=0\r\n"}
	seq := NewSequencer(pc, false, MediaConfig{}, &mockEvents{})

	seq.SetRemoteDescription(domain.SessionDescription{Type: "offer", SDP: "v=0\r\n"})
	seq.CreateAnswer()
	seq.AddRemoteCandidate(candidate(7))

	if len(pc.added) != 1 {
		t.Fatalf("expected direct apply after drain, got %d adds", len(pc.added))
	}
}

func TestInitiator_EmitsOfferThenDrainsOnRemoteAnswer(t *testing.T) {
	pc := &mockPeerConnection{offerSDP: "v=0\r\n"}
	events := &mockEvents{}
	seq := NewSequencer(pc, true, MediaConfig{}, events)

	seq.CreateOffer()

	if len(events.localDescriptions) != 1 {
		t.Fatalf("expected offer emitted after local set, got %d", len(events.localDescriptions))
	}
	if events.localDescriptions[0].Type != "offer" {
		t.Errorf("expected offer, got %s", events.localDescriptions[0].Type)
	}

	seq.AddRemoteCandidate(candidate(0))
	seq.AddRemoteCandidate(candidate(1))
	if len(pc.added) != 0 {
		t.Fatalf("expected candidates queued before answer arrives, got %d", len(pc.added))
	}

	seq.SetRemoteDescription(domain.SessionDescription{Type: "answer", SDP: "v=0\r\n"})

	if len(pc.added) != 2 {
		t.Fatalf("expected 2 candidates drained after remote answer, got %d", len(pc.added))
	}
	if len(events.localDescriptions) != 1 {
		t.Fatalf("remote set must not emit another local description, got %d", len(events.localDescriptions))
	}
}

func TestCreateOffer_Twice_ReportsMultipleSDPCreate(t *testing.T) {
	pc := &mockPeerConnection{offerSDP: "v=0\r\n"}
	events := &mockEvents{}
	seq := NewSequencer(pc, true, MediaConfig{}, events)

	seq.CreateOffer()
	seq.CreateOffer()

	if len(events.negotiationErrors) != 1 {
		t.Fatalf("expected 1 negotiation error, got %d", len(events.negotiationErrors))
	}
	if events.negotiationErrors[0] != "Multiple SDP create." {
		t.Errorf("unexpected error: %s", events.negotiationErrors[0])
	}
}

func TestCreateFailure_ReportsErrorOnce(t *testing.T) {
	pc := &mockPeerConnection{createErr: errors.New("boom")}
	events := &mockEvents{}
	seq := NewSequencer(pc, true, MediaConfig{}, events)

	seq.CreateOffer()
	seq.AddRemoteCandidate(candidate(0))
	seq.SetRemoteDescription(domain.SessionDescription{Type: "answer", SDP: "v=0\r\n"})

	if len(events.negotiationErrors) != 1 {
		t.Fatalf("expected 1 negotiation error, got %d", len(events.negotiationErrors))
	}
	if len(pc.added) != 0 || pc.remoteSet {
		t.Error("expected no further peer connection calls after error")
	}
}

func TestRemoveRemoteCandidates_DrainsQueueFirst(t *testing.T) {
	pc := &mockPeerConnection{offerSDP: "v=0\r\n"}
	seq := NewSequencer(pc, true, MediaConfig{}, &mockEvents{})

	seq.CreateOffer()
	seq.AddRemoteCandidate(candidate(0))
	seq.RemoveRemoteCandidates([]domain.IceCandidate{candidate(0)})

	if len(pc.added) != 1 {
		t.Fatalf("expected queued candidate drained before removal, got %d adds", len(pc.added))
	}
	if len(pc.removed) != 1 {
		t.Fatalf("expected 1 removal, got %d", len(pc.removed))
	}
}

func TestSequencer_AppliesCodecPreferenceToLocalSDP(t *testing.T) {
	offer := "m=audio 9 UDP/TLS/RTP/SAVPF 104 103\r\na=rtpmap:104 opus/48000/2\r\na=rtpmap:103 ISAC/16000\r\n"
	pc := &mockPeerConnection{offerSDP: offer}
	events := &mockEvents{}
	seq := NewSequencer(pc, true, MediaConfig{PreferredAudioCodec: "ISAC"}, events)

	seq.CreateOffer()

	if len(events.localDescriptions) != 1 {
		t.Fatalf("expected 1 local description, got %d", len(events.localDescriptions))
	}
	got := events.localDescriptions[0].SDP
	want := "m=audio 9 UDP/TLS/RTP/SAVPF 103 104\r\na=rtpmap:104 opus/48000/2\r\na=rtpmap:103 ISAC/16000\r\n"
	if got != want {
		t.Errorf("expected ISAC preferred in emitted SDP:\n%q\ngot:\n%q", want, got)
	}
}

func TestSequencer_InjectsStartBitrateIntoRemoteSDP(t *testing.T) {
	pc := &mockPeerConnection{answerSDP: "v=0\r\n"}
	seq := NewSequencer(pc, false, MediaConfig{AudioStartBitrate: 32}, &mockEvents{})

	var setSDP string
	// Wrap the mock to capture the rewritten remote SDP.
	capture := &captureRemote{mockPeerConnection: pc, captured: &setSDP}
	seq.pc = capture

	seq.SetRemoteDescription(domain.SessionDescription{
		Type: "offer",
		SDP:  "m=audio 9 UDP/TLS/RTP/SAVPF 111\r\na=rtpmap:111 opus/48000/2\r\n",
	})

	want := "m=audio 9 UDP/TLS/RTP/SAVPF 111\r\na=rtpmap:111 opus/48000/2\r\na=fmtp:111 maxaveragebitrate=32000\r\n"
	if setSDP != want {
		t.Errorf("expected bitrate injected before SetRemoteDescription:\n%q\ngot:\n%q", want, setSDP)
	}
}

type captureRemote struct {
	*mockPeerConnection
	captured *string
}

func (c *captureRemote) SetRemoteDescription(sdp domain.SessionDescription) error {
	*c.captured = sdp.SDP
	return c.mockPeerConnection.SetRemoteDescription(sdp)
}
