package domain

// ChannelState describes the realtime channel state machine.
type ChannelState int

const (
	ChannelStateNew ChannelState = iota
	ChannelStateConnected
	ChannelStateRegistered
	ChannelStateClosed
	ChannelStateError
)

func (s ChannelState) String() string {
	switch s {
	case ChannelStateNew:
		return "NEW"
	case ChannelStateConnected:
		return "CONNECTED"
	case ChannelStateRegistered:
		return "REGISTERED"
	case ChannelStateClosed:
		return "CLOSED"
	case ChannelStateError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// ParameterFetcher retrieves signaling parameters for a room join URL.
// The call blocks; the session runs it off its own loop.
type ParameterFetcher interface {
	Fetch(joinURL, joinPayload string) (*SignalingParameters, error)
}

// Channel manages the persistent connection to the signaling relay.
// All methods must be called from the session's execution context.
type Channel interface {
	Connect(wsURL, postURL string)
	Register(roomID, clientID string)
	Send(message string)
	Disconnect(waitForComplete bool)
	State() ChannelState
}

// ChannelEvents receives realtime channel callbacks. All calls are
// dispatched on the session's execution context.
type ChannelEvents interface {
	OnChannelMessage(message string)
	OnChannelClose()
	OnChannelError(description string)
}

// PeerConnection is the narrow contract the negotiation sequencer needs
// from the media engine's peer connection.
type PeerConnection interface {
	CreateOffer() (SessionDescription, error)
	CreateAnswer() (SessionDescription, error)
	SetLocalDescription(SessionDescription) error
	SetRemoteDescription(SessionDescription) error
	AddIceCandidate(IceCandidate) error
	RemoveIceCandidates([]IceCandidate) error
	HasLocalDescription() bool
	HasRemoteDescription() bool
}
