package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallStatusTerminal(t *testing.T) {
	assert.False(t, CallRinging.Terminal())
	assert.False(t, CallActive.Terminal())
	assert.True(t, CallRejected.Terminal())
	assert.True(t, CallEnded.Terminal())
}

func TestCallRecordParties(t *testing.T) {
	rec := &CallRecord{CallID: "c1", Caller: "alice", Callee: "bob", Status: CallRinging}

	assert.True(t, rec.IsParty("alice"))
	assert.True(t, rec.IsParty("bob"))
	assert.False(t, rec.IsParty("mallory"))

	assert.Equal(t, "bob", rec.OtherParty("alice"))
	assert.Equal(t, "alice", rec.OtherParty("bob"))
}
