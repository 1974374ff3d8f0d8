package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalrelay-backend/internal/domain"
)

func TestRegisterAndLookup(t *testing.T) {
	r := New()

	require.NoError(t, r.Register("conn-1", "alice"))

	identity, ok := r.IdentityFor("conn-1")
	assert.True(t, ok)
	assert.Equal(t, "alice", identity)

	handle, ok := r.HandleFor("alice")
	assert.True(t, ok)
	assert.Equal(t, "conn-1", handle)

	assert.Equal(t, 1, r.Len())
}

func TestRegisterTakenIdentity(t *testing.T) {
	r := New()

	require.NoError(t, r.Register("conn-1", "alice"))

	err := r.Register("conn-2", "alice")
	assert.ErrorIs(t, err, domain.ErrIdentityTaken)

	// The first binding must be left intact
	handle, ok := r.HandleFor("alice")
	assert.True(t, ok)
	assert.Equal(t, "conn-1", handle)

	_, ok = r.IdentityFor("conn-2")
	assert.False(t, ok)
}

func TestRegisterSameHandleSameIdentity(t *testing.T) {
	r := New()

	require.NoError(t, r.Register("conn-1", "alice"))
	assert.NoError(t, r.Register("conn-1", "alice"))
	assert.Equal(t, 1, r.Len())
}

func TestReRegisterReleasesPreviousIdentity(t *testing.T) {
	r := New()

	require.NoError(t, r.Register("conn-1", "alice"))
	require.NoError(t, r.Register("conn-1", "alice2"))

	// Old identity is free again
	_, ok := r.HandleFor("alice")
	assert.False(t, ok)

	handle, ok := r.HandleFor("alice2")
	assert.True(t, ok)
	assert.Equal(t, "conn-1", handle)
	assert.Equal(t, 1, r.Len())

	// And another connection may take it now
	assert.NoError(t, r.Register("conn-2", "alice"))
}

func TestUnregister(t *testing.T) {
	r := New()

	require.NoError(t, r.Register("conn-1", "alice"))

	identity, ok := r.Unregister("conn-1")
	assert.True(t, ok)
	assert.Equal(t, "alice", identity)
	assert.Equal(t, 0, r.Len())

	_, ok = r.HandleFor("alice")
	assert.False(t, ok)
	_, ok = r.IdentityFor("conn-1")
	assert.False(t, ok)
}

func TestUnregisterUnknownHandle(t *testing.T) {
	r := New()

	identity, ok := r.Unregister("conn-404")
	assert.False(t, ok)
	assert.Empty(t, identity)
}
