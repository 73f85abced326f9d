package domain

// RoomConnectionParameters identifies the room to join. Created once per
// call attempt and never mutated.
type RoomConnectionParameters struct {
	RoomURL  string
	RoomID   string
	Loopback bool
}

// SignalingParameters is the immutable snapshot produced by the room
// parameter fetch. OfferSDP and IceCandidates are populated only when
// this side joins as the answerer.
type SignalingParameters struct {
	IceServers    []IceServer
	Initiator     bool
	ClientID      string
	WSSURL        string
	WSSPostURL    string
	OfferSDP      *SessionDescription
	IceCandidates []IceCandidate
}
