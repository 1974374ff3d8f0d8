package signaling

import "encoding/json"

// Inbound event names, client -> relay
const (
	EventLogin        = "login"
	EventCall         = "call"
	EventAnswerCall   = "answer-call"
	EventRejectCall   = "reject-call"
	EventEndCall      = "end-call"
	EventICECandidate = "ice-candidate"
	EventOffer        = "offer"
	EventAnswer       = "answer"

	// EventDisconnect is implicit; the transport reports it, clients never send it
	EventDisconnect = "disconnect"
)

// Outbound event names, relay -> client
const (
	EventLoginSuccess  = "login-success"
	EventLoginFailed   = "login-failed"
	EventUserStatus    = "user-status"
	EventCallFailed    = "call-failed"
	EventCallInitiated = "call-initiated"
	EventIncomingCall  = "incoming-call"
	EventCallAnswered  = "call-answered"
	EventCallConnected = "call-connected"
	EventCallError     = "call-error"
	EventCallRejected  = "call-rejected"
	EventCallEnded     = "call-ended"
)

// Presence values carried by user-status broadcasts
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// CallRequest asks the relay to ring another identity
type CallRequest struct {
	CalleeID string `json:"calleeId"`
}

// CallRef references an existing call in answer/reject/end requests
// and in call-answered/call-connected/call-rejected notifications
type CallRef struct {
	CallID string `json:"callId"`
}

// RelayPayload is the shape shared by the three handshake-relay events.
// The offer/answer/candidate blobs are opaque to the relay; SenderID is
// attached before forwarding to the counterpart.
type RelayPayload struct {
	CallID    string          `json:"callId"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	SenderID  string          `json:"senderId,omitempty"`
}

// UserStatus is broadcast to every connection on login and disconnect
type UserStatus struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// CallInitiated confirms to the caller that the callee is being rung
type CallInitiated struct {
	CallID   string `json:"callId"`
	CalleeID string `json:"calleeId"`
}

// IncomingCall notifies the callee of a ringing call
type IncomingCall struct {
	CallID   string `json:"callId"`
	CallerID string `json:"callerId"`
}

// CallEnd notifies a party that a call is over; Reason is set only when the
// other side disconnected rather than hung up
type CallEnd struct {
	CallID string `json:"callId"`
	Reason string `json:"reason,omitempty"`
}
