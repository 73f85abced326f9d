package domain

// SessionDescription is an SDP blob together with its negotiation role.
// Type uses the canonical wire form: "offer" or "answer".
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// IceCandidate is the JSON structure for a single ICE candidate.
// ID carries the sdpMid and Label the sdpMLineIndex, matching the
// room server's field names.
type IceCandidate struct {
	ID        string `json:"id"`
	Label     int    `json:"label"`
	Candidate string `json:"candidate"`
}

// IceServer holds STUN/TURN server configuration for the peer connection.
type IceServer struct {
	URI        string
	Username   string
	Credential string
}
