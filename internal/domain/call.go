package domain

// CallStatus is the lifecycle state of a call attempt
type CallStatus string

const (
	CallRinging  CallStatus = "ringing"
	CallActive   CallStatus = "active"
	CallRejected CallStatus = "rejected"
	CallEnded    CallStatus = "ended"
)

// Terminal reports whether the status admits no further transitions
func (s CallStatus) Terminal() bool {
	return s == CallRejected || s == CallEnded
}

// CallRecord represents one call attempt between two identities
type CallRecord struct {
	CallID string     `json:"call_id"`
	Caller string     `json:"caller"`
	Callee string     `json:"callee"`
	Status CallStatus `json:"status"`
}

// IsParty reports whether identity is the caller or callee of the record
func (r *CallRecord) IsParty(identity string) bool {
	return identity == r.Caller || identity == r.Callee
}

// OtherParty returns the counterpart of identity in the record.
// Callers must check IsParty first; for a non-party it returns the callee.
func (r *CallRecord) OtherParty(identity string) string {
	if identity == r.Callee {
		return r.Caller
	}
	return r.Callee
}
