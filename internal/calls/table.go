// Package calls tracks call attempts between two identities through a small
// state machine: ringing -> active, ringing -> rejected, {ringing,active} -> ended.
package calls

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"signalrelay-backend/internal/domain"
)

// EndedCall describes one record closed by EndAllFor
type EndedCall struct {
	CallID     string
	OtherParty string
	// WasLive is true when the record was ringing or active at the time,
	// i.e. the other party should be told the call ended
	WasLive bool
}

// Table is the in-memory call table. A record is reachable for mutation only
// by the two identities named in it; terminal records linger until their
// scheduled purge fires so that late-arriving messages can be dropped cleanly.
type Table struct {
	mu      sync.Mutex
	records map[string]*domain.CallRecord
	purges  map[string]*time.Timer
}

// New creates an empty call table
func New() *Table {
	return &Table{
		records: make(map[string]*domain.CallRecord),
		purges:  make(map[string]*time.Timer),
	}
}

// Create inserts a fresh ringing record for caller -> callee and returns it.
// The router checks both parties are online; caller != callee is enforced
// here as well.
func (t *Table) Create(caller, callee string) (domain.CallRecord, error) {
	if caller == callee {
		return domain.CallRecord{}, domain.ErrSelfCall
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Caller, callee and creation time, plus a short random suffix so that
	// rapid redials of the same pair never collide.
	id := fmt.Sprintf("%s-%s-%d-%s", caller, callee, time.Now().UnixMilli(), uuid.NewString()[:8])

	rec := &domain.CallRecord{
		CallID: id,
		Caller: caller,
		Callee: callee,
		Status: domain.CallRinging,
	}
	t.records[id] = rec
	return *rec, nil
}

// Get returns a copy of the record for callID
func (t *Table) Get(callID string) (domain.CallRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[callID]
	if !ok {
		return domain.CallRecord{}, false
	}
	return *rec, true
}

// Transition moves the record for callID to target on behalf of actor.
// It fails with domain.ErrCallNotFound if no record exists,
// domain.ErrNotCallParty if actor is neither caller nor callee, and
// domain.ErrBadTransition if target is not reachable from the current status.
func (t *Table) Transition(callID, actor string, target domain.CallStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[callID]
	if !ok {
		return domain.ErrCallNotFound
	}
	if !rec.IsParty(actor) {
		return domain.ErrNotCallParty
	}
	if !legalTransition(rec.Status, target) {
		return domain.ErrBadTransition
	}
	rec.Status = target
	return nil
}

func legalTransition(from, to domain.CallStatus) bool {
	switch to {
	case domain.CallActive, domain.CallRejected:
		return from == domain.CallRinging
	case domain.CallEnded:
		return from == domain.CallRinging || from == domain.CallActive
	default:
		return false
	}
}

// PurgeAfter schedules removal of the record once delay has elapsed, provided
// it has reached a terminal status by then. A prior timer for the same call
// is canceled first so a stale timer can never delete a superseding record.
func (t *Table) PurgeAfter(callID string, delay time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.records[callID]; !ok {
		return
	}
	if prev, ok := t.purges[callID]; ok {
		prev.Stop()
	}
	t.purges[callID] = time.AfterFunc(delay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.purges, callID)
		if rec, ok := t.records[callID]; ok && rec.Status.Terminal() {
			delete(t.records, callID)
		}
	})
}

// Remove deletes the record for callID immediately, canceling any pending
// purge. It is a no-op if the record is already gone.
func (t *Table) Remove(callID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remove(callID)
}

func (t *Table) remove(callID string) {
	if timer, ok := t.purges[callID]; ok {
		timer.Stop()
		delete(t.purges, callID)
	}
	delete(t.records, callID)
}

// EndAllFor removes every record involving identity, used when its connection
// drops. Records that were still ringing or active are marked ended and
// reported with WasLive set so the router can notify the other party; records
// already in their grace window are removed silently.
func (t *Table) EndAllFor(identity string) []EndedCall {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ended []EndedCall
	for id, rec := range t.records {
		if !rec.IsParty(identity) {
			continue
		}
		wasLive := !rec.Status.Terminal()
		if wasLive {
			rec.Status = domain.CallEnded
		}
		ended = append(ended, EndedCall{
			CallID:     id,
			OtherParty: rec.OtherParty(identity),
			WasLive:    wasLive,
		})
		t.remove(id)
	}
	return ended
}

// Len returns the number of records currently in the table, terminal
// records in their grace window included
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}
