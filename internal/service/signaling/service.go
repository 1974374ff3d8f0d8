// Package signaling is the event-handling core of the relay: it validates
// inbound events, moves call records through their state machine, and routes
// handshake messages strictly between the two parties of a call.
package signaling

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"signalrelay-backend/internal/calls"
	"signalrelay-backend/internal/domain"
	"signalrelay-backend/internal/registry"
	"signalrelay-backend/pkg/logger"
	"signalrelay-backend/pkg/metrics"
)

// User-facing failure messages. Only the call-initiation path surfaces
// errors; everything else is dropped silently as a benign race.
const (
	msgIdentityTaken = "user ID already in use, please choose another"
	msgNotLoggedIn   = "please log in first"
	msgSelfCall      = "cannot call yourself"
	msgCalleeOffline = "callee is offline"
	msgInvalidCall   = "invalid call"

	reasonPeerDisconnected = "peer disconnected"
)

// EventSender delivers named events to connections. Delivery is
// fire-and-forget; the relay never waits on or retries a send.
type EventSender interface {
	// Emit sends an event to a single connection
	Emit(handle, event string, payload interface{})
	// Broadcast sends an event to every open connection
	Broadcast(event string, payload interface{})
}

// Service routes signaling events between connections. All shared-state
// mutation happens under a single dispatch mutex, so handlers never observe
// each other mid-mutation even though the transport runs one reader
// goroutine per connection.
type Service struct {
	mu          sync.Mutex
	registry    *registry.Registry
	calls       *calls.Table
	sender      EventSender
	metrics     *metrics.Metrics
	graceWindow time.Duration
}

// NewService creates the signaling router
func NewService(reg *registry.Registry, table *calls.Table, sender EventSender, m *metrics.Metrics, graceWindow time.Duration) *Service {
	return &Service{
		registry:    reg,
		calls:       table,
		sender:      sender,
		metrics:     m,
		graceWindow: graceWindow,
	}
}

// HandleEvent dispatches one inbound event from the connection identified by
// handle. Unknown event types and malformed payloads are logged and skipped;
// nothing here is fatal to the connection.
func (s *Service) HandleEvent(handle, event string, data json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.RecordSignalEvent(event)

	switch event {
	case EventLogin:
		var identity string
		if err := json.Unmarshal(data, &identity); err != nil || identity == "" {
			logger.Warn("malformed login payload", zap.String("handle", handle), zap.Error(err))
			return
		}
		s.login(handle, identity)

	case EventCall:
		var req CallRequest
		if err := json.Unmarshal(data, &req); err != nil {
			logger.Warn("malformed call payload", zap.String("handle", handle), zap.Error(err))
			return
		}
		s.call(handle, req.CalleeID)

	case EventAnswerCall:
		var ref CallRef
		if err := json.Unmarshal(data, &ref); err != nil {
			logger.Warn("malformed answer-call payload", zap.String("handle", handle), zap.Error(err))
			return
		}
		s.answerCall(handle, ref.CallID)

	case EventRejectCall:
		var ref CallRef
		if err := json.Unmarshal(data, &ref); err != nil {
			return
		}
		s.rejectCall(handle, ref.CallID)

	case EventEndCall:
		var ref CallRef
		if err := json.Unmarshal(data, &ref); err != nil {
			return
		}
		s.endCall(handle, ref.CallID)

	case EventICECandidate, EventOffer, EventAnswer:
		s.relay(handle, event, data)

	default:
		logger.Warn("unknown event type", zap.String("handle", handle), zap.String("event", event))
	}
}

// HandleDisconnect reconciles state after the transport reports that a
// connection dropped.
func (s *Service) HandleDisconnect(handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.RecordSignalEvent(EventDisconnect)

	identity, ok := s.registry.Unregister(handle)
	if !ok {
		// Connection never logged in; nothing to reconcile
		return
	}
	s.metrics.SetLoggedInUsers(s.registry.Len())

	logger.Info("user disconnected", zap.String("identity", identity), zap.String("handle", handle))

	s.sender.Broadcast(EventUserStatus, UserStatus{UserID: identity, Status: StatusOffline})

	for _, ended := range s.calls.EndAllFor(identity) {
		if !ended.WasLive {
			continue
		}
		s.metrics.CallFinished("peer_disconnected")
		if otherHandle, ok := s.registry.HandleFor(ended.OtherParty); ok {
			s.sender.Emit(otherHandle, EventCallEnded, CallEnd{
				CallID: ended.CallID,
				Reason: reasonPeerDisconnected,
			})
		}
	}
}

func (s *Service) login(handle, identity string) {
	if err := s.registry.Register(handle, identity); err != nil {
		s.metrics.RecordLoginFailure()
		logger.Info("login rejected", zap.String("identity", identity), zap.String("handle", handle), zap.Error(err))
		s.sender.Emit(handle, EventLoginFailed, msgIdentityTaken)
		return
	}

	s.metrics.SetLoggedInUsers(s.registry.Len())
	logger.Info("user logged in", zap.String("identity", identity), zap.String("handle", handle))

	s.sender.Emit(handle, EventLoginSuccess, identity)
	s.sender.Broadcast(EventUserStatus, UserStatus{UserID: identity, Status: StatusOnline})
}

func (s *Service) call(handle, calleeID string) {
	callerID, ok := s.registry.IdentityFor(handle)
	if !ok {
		s.metrics.RecordCallFailure("not_logged_in")
		s.sender.Emit(handle, EventCallFailed, msgNotLoggedIn)
		return
	}
	if callerID == calleeID {
		s.metrics.RecordCallFailure("self_call")
		s.sender.Emit(handle, EventCallFailed, msgSelfCall)
		return
	}
	calleeHandle, ok := s.registry.HandleFor(calleeID)
	if !ok {
		s.metrics.RecordCallFailure("callee_offline")
		s.sender.Emit(handle, EventCallFailed, msgCalleeOffline)
		return
	}

	rec, err := s.calls.Create(callerID, calleeID)
	if err != nil {
		// Self-call is caught above; the table checks again as defense in depth
		s.metrics.RecordCallFailure("self_call")
		s.sender.Emit(handle, EventCallFailed, msgSelfCall)
		return
	}
	s.metrics.CallStarted()

	logger.Info("call initiated",
		zap.String("call_id", rec.CallID),
		zap.String("caller", callerID),
		zap.String("callee", calleeID))

	s.sender.Emit(calleeHandle, EventIncomingCall, IncomingCall{CallID: rec.CallID, CallerID: callerID})
	s.sender.Emit(handle, EventCallInitiated, CallInitiated{CallID: rec.CallID, CalleeID: calleeID})
}

func (s *Service) answerCall(handle, callID string) {
	calleeID, loggedIn := s.registry.IdentityFor(handle)
	rec, ok := s.calls.Get(callID)
	if !ok || !loggedIn || rec.Callee != calleeID {
		s.sender.Emit(handle, EventCallError, msgInvalidCall)
		return
	}

	if err := s.calls.Transition(callID, calleeID, domain.CallActive); err != nil {
		s.sender.Emit(handle, EventCallError, msgInvalidCall)
		return
	}
	s.metrics.CallAnswered()

	callerHandle, ok := s.registry.HandleFor(rec.Caller)
	if !ok {
		// Caller dropped between ringing and answer; disconnect cleanup
		// already notified everyone, so stay silent
		return
	}

	logger.Info("call answered", zap.String("call_id", callID), zap.String("callee", calleeID))

	s.sender.Emit(callerHandle, EventCallAnswered, CallRef{CallID: callID})
	s.sender.Emit(handle, EventCallConnected, CallRef{CallID: callID})
}

func (s *Service) rejectCall(handle, callID string) {
	calleeID, loggedIn := s.registry.IdentityFor(handle)
	rec, ok := s.calls.Get(callID)
	if !ok || !loggedIn || rec.Callee != calleeID {
		return
	}

	if err := s.calls.Transition(callID, calleeID, domain.CallRejected); err != nil {
		return
	}
	s.metrics.CallFinished("rejected")
	s.calls.PurgeAfter(callID, s.graceWindow)

	logger.Info("call rejected", zap.String("call_id", callID), zap.String("callee", calleeID))

	if callerHandle, ok := s.registry.HandleFor(rec.Caller); ok {
		s.sender.Emit(callerHandle, EventCallRejected, CallRef{CallID: callID})
	}
}

func (s *Service) endCall(handle, callID string) {
	userID, loggedIn := s.registry.IdentityFor(handle)
	rec, ok := s.calls.Get(callID)
	if !ok || !loggedIn || !rec.IsParty(userID) {
		return
	}

	if err := s.calls.Transition(callID, userID, domain.CallEnded); err != nil {
		return
	}
	s.metrics.CallFinished("ended")
	s.calls.PurgeAfter(callID, s.graceWindow)

	logger.Info("call ended", zap.String("call_id", callID), zap.String("by", userID))

	// Notify both parties except the sender itself
	for _, party := range []string{rec.Caller, rec.Callee} {
		if party == userID {
			continue
		}
		if h, ok := s.registry.HandleFor(party); ok {
			s.sender.Emit(h, EventCallEnded, CallEnd{CallID: callID})
		}
	}
}

// relay forwards offer/answer/ice-candidate payloads verbatim to the
// counterpart of the sending party, with senderId attached. Missing records,
// wrong roles and offline targets are all dropped silently: these are
// expected network races, not user-facing failures.
func (s *Service) relay(handle, event string, data json.RawMessage) {
	senderID, ok := s.registry.IdentityFor(handle)
	if !ok {
		return
	}

	var payload RelayPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.CallID == "" {
		return
	}

	rec, ok := s.calls.Get(payload.CallID)
	if !ok {
		return
	}
	if rec.Status.Terminal() {
		// Late-arriving handshake data for a finished call; the grace
		// window exists so these can be absorbed without an error
		return
	}

	// Offers only flow caller -> callee, answers only callee -> caller.
	// Candidates flow either way once the record exists.
	switch event {
	case EventOffer:
		if senderID != rec.Caller {
			return
		}
	case EventAnswer:
		if senderID != rec.Callee {
			return
		}
	}

	target := rec.OtherParty(senderID)
	targetHandle, ok := s.registry.HandleFor(target)
	if !ok {
		return
	}

	payload.SenderID = senderID
	logger.Debug("relayed handshake event",
		zap.String("event", event),
		zap.String("call_id", payload.CallID),
		zap.String("from", senderID),
		zap.String("to", target))

	s.sender.Emit(targetHandle, event, payload)
}
