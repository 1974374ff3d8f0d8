// Package registry maps transport connection handles to logged-in identities.
package registry

import (
	"sync"

	"signalrelay-backend/internal/domain"
)

// Registry is the bidirectional index between live connection handles and
// identities. At most one handle is bound to a given identity at any time;
// the mapping is exactly the set of currently logged-in users.
type Registry struct {
	mu               sync.RWMutex
	identityByHandle map[string]string
	handleByIdentity map[string]string
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		identityByHandle: make(map[string]string),
		handleByIdentity: make(map[string]string),
	}
}

// Register binds handle to identity. It fails with domain.ErrIdentityTaken
// if identity is already bound to a different live handle. A handle that
// re-registers under a new identity releases its previous one.
func (r *Registry) Register(handle, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.handleByIdentity[identity]; ok && existing != handle {
		return domain.ErrIdentityTaken
	}

	if prev, ok := r.identityByHandle[handle]; ok {
		delete(r.handleByIdentity, prev)
	}

	r.identityByHandle[handle] = identity
	r.handleByIdentity[identity] = handle
	return nil
}

// Unregister removes the mapping for handle and returns the identity that
// was bound, if any.
func (r *Registry) Unregister(handle string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.identityByHandle[handle]
	if !ok {
		return "", false
	}
	delete(r.identityByHandle, handle)
	delete(r.handleByIdentity, identity)
	return identity, true
}

// HandleFor returns the live handle bound to identity
func (r *Registry) HandleFor(identity string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.handleByIdentity[identity]
	return handle, ok
}

// IdentityFor returns the identity bound to handle
func (r *Registry) IdentityFor(handle string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.identityByHandle[handle]
	return identity, ok
}

// Len returns the number of logged-in identities
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handleByIdentity)
}
