package domain

import "errors"

// Sentinel errors for the signaling core. Handlers map these onto the
// wire-level error events; none of them is fatal to the process.
var (
	// ErrIdentityTaken means the identity is already bound to another live connection
	ErrIdentityTaken = errors.New("identity already taken")

	// ErrSelfCall means caller and callee are the same identity
	ErrSelfCall = errors.New("caller and callee must differ")

	// ErrCallNotFound means no record exists for the call id
	ErrCallNotFound = errors.New("call not found")

	// ErrNotCallParty means the acting identity is neither caller nor callee
	ErrNotCallParty = errors.New("identity is not a party to the call")

	// ErrBadTransition means the requested status change is not legal
	// from the record's current status
	ErrBadTransition = errors.New("illegal call status transition")
)
