package domain

// Event is a signaling session event delivered to the call controller.
// The session emits events on a single channel; the controller consumes
// them on its own goroutine, which keeps session state off the
// controller's execution context.
type Event interface {
	isEvent()
}

// ConnectedToRoom fires once the room's signaling parameters are
// extracted and the realtime channel is being established.
type ConnectedToRoom struct {
	Params *SignalingParameters
}

// RemoteDescription fires when the remote SDP (offer or answer) arrives.
type RemoteDescription struct {
	SDP SessionDescription
}

// RemoteCandidate fires for each remote ICE candidate.
type RemoteCandidate struct {
	Candidate IceCandidate
}

// RemoteCandidatesRemoved fires when the peer retracts candidates.
type RemoteCandidatesRemoved struct {
	Candidates []IceCandidate
}

// ChannelClosed fires once when the signaling channel shuts down,
// either by a bye message or a transport-level close.
type ChannelClosed struct{}

// ChannelError fires at most once per session with the first fatal
// signaling error.
type ChannelError struct {
	Description string
}

func (ConnectedToRoom) isEvent()         {}
func (RemoteDescription) isEvent()       {}
func (RemoteCandidate) isEvent()         {}
func (RemoteCandidatesRemoved) isEvent() {}
func (ChannelClosed) isEvent()           {}
func (ChannelError) isEvent()            {}
