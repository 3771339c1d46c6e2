package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vibelinechat/vibeline/internal/core/domain"
	"github.com/vibelinechat/vibeline/internal/core/port"
)

const (
	// DefaultCallTimeout is how long a ringing call waits for the callee
	// before it is cancelled automatically.
	DefaultCallTimeout = 10 * time.Second

	maxIDAttempts = 3
	tombstoneTTL  = time.Minute
)

// CallService drives the call state machine. All transitions for all sessions
// are serialized by one mutex; the session store and busy index only change
// inside that critical section, so a session is never visible in one but not
// the other.
type CallService struct {
	mu       sync.Mutex
	store    port.SessionStore
	presence port.Presence
	callLog  port.CallLog
	creds    port.TransportCredentials
	timeout  time.Duration

	// ended remembers recently terminated session ids so a stale client
	// payload cannot resurrect a finished call (and cannot double-notify).
	ended map[domain.SessionID]time.Time
}

func NewCallService(store port.SessionStore, presence port.Presence, callLog port.CallLog, creds port.TransportCredentials, timeout time.Duration) *CallService {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &CallService{
		store:    store,
		presence: presence,
		callLog:  callLog,
		creds:    creds,
		timeout:  timeout,
		ended:    make(map[domain.SessionID]time.Time),
	}
}

// CallRequestResult is the synchronous answer to a call request. Session is
// only set when Status is REQUESTING.
type CallRequestResult struct {
	Status  domain.CallStatus   `json:"status"`
	Session *domain.CallSession `json:"session,omitempty"`
}

// RequestCall starts a new call. OFFLINE and BUSY are refusals delivered in
// the result, not errors; no session materializes for them.
func (s *CallService) RequestCall(ctx context.Context, callerID, calleeID domain.UserID, conversationID string, isVideoCall bool) (CallRequestResult, error) {
	if callerID == "" || calleeID == "" || conversationID == "" {
		return CallRequestResult{}, fmt.Errorf("%w: caller, callee and conversation are required", domain.ErrValidation)
	}
	if callerID == calleeID {
		return CallRequestResult{}, fmt.Errorf("%w: caller and callee must differ", domain.ErrValidation)
	}
	if !s.presence.IsOnline(calleeID) {
		return CallRequestResult{Status: domain.CallOffline}, nil
	}

	s.mu.Lock()
	if s.store.IsBusy(calleeID) || s.store.IsBusy(callerID) {
		s.mu.Unlock()
		return CallRequestResult{Status: domain.CallBusy}, nil
	}
	id, err := s.newSessionIDLocked()
	if err != nil {
		s.mu.Unlock()
		return CallRequestResult{}, err
	}
	session := domain.NewCallSession(id, callerID, calleeID, conversationID, isVideoCall)
	if err := s.store.Insert(session); err != nil {
		s.mu.Unlock()
		return CallRequestResult{}, err
	}
	snapshot := *session
	s.mu.Unlock()

	if err := s.callLog.RecordCreated(ctx, snapshot); err != nil {
		log.Error().Err(err).Str("session_id", id.String()).Msg("Failed to record call session")
	}
	s.presence.Broadcast(calleeID, domain.Event{Event: domain.EventCallRequest, Data: snapshot})
	time.AfterFunc(s.timeout, func() {
		s.AutoCancel(context.Background(), id)
	})

	log.Info().
		Str("session_id", id.String()).
		Str("caller", callerID.String()).
		Str("callee", calleeID.String()).
		Bool("video", isVideoCall).
		Msg("Call requested")
	return CallRequestResult{Status: domain.CallRequesting, Session: &snapshot}, nil
}

// AcceptCall transitions REQUESTING/RINGING to ACCEPTED and announces the new
// status, with a transport credential, to both participants. Only the callee
// may accept. fallback, when given, reconstructs a session the in-memory
// store no longer holds.
func (s *CallService) AcceptCall(ctx context.Context, actorID domain.UserID, sessionID domain.SessionID, fallback *domain.CallSession) (*domain.CallSession, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrValidation)
	}

	s.mu.Lock()
	session, err := s.lookupLocked(ctx, sessionID, actorID, fallback)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if actorID != session.CalleeUserID {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: only the callee may accept", domain.ErrValidation)
	}
	if !session.Status.Ringable() {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot accept call in status %s", domain.ErrInvalidStatus, session.Status)
	}
	session.Status = domain.CallAccepted
	snapshot := *session
	s.mu.Unlock()

	s.recordStatusChange(ctx, sessionID, domain.CallAccepted, "")
	s.announceAccepted(snapshot)
	log.Info().Str("session_id", sessionID.String()).Msg("Call accepted")
	return &snapshot, nil
}

// RejectCall terminates a ringing call from the callee's side and tells the
// caller.
func (s *CallService) RejectCall(ctx context.Context, actorID domain.UserID, sessionID domain.SessionID, reason domain.HangupReason, fallback *domain.CallSession) error {
	snapshot, err := s.endCall(ctx, sessionID, actorID, domain.CallRejected, reason, fallback)
	if err != nil {
		return err
	}
	s.presence.Broadcast(snapshot.CallerUserID, domain.Event{
		Event: domain.EventCallStatus,
		Data:  domain.CallStatusEvent{Status: domain.CallRejected, Session: snapshot},
	})
	log.Info().Str("session_id", sessionID.String()).Msg("Call rejected")
	return nil
}

// HangupCall terminates the call from either side and tells the peer.
func (s *CallService) HangupCall(ctx context.Context, actorID domain.UserID, sessionID domain.SessionID, reason domain.HangupReason, fallback *domain.CallSession) error {
	snapshot, err := s.endCall(ctx, sessionID, actorID, domain.CallEnded, reason, fallback)
	if err != nil {
		return err
	}
	if peer, ok := snapshot.PeerOf(actorID); ok {
		s.presence.Broadcast(peer, domain.Event{
			Event: domain.EventCallHangup,
			Data:  domain.HangupEvent{Reason: snapshot.EndedReason},
		})
	}
	log.Info().Str("session_id", sessionID.String()).Str("reason", string(snapshot.EndedReason)).Msg("Call hung up")
	return nil
}

// RelayOfferAnswer forwards a session description to the sender's peer
// without touching session state.
func (s *CallService) RelayOfferAnswer(ctx context.Context, sessionID domain.SessionID, fromUserID domain.UserID, sdp string, sdpType domain.SDPType) error {
	if sessionID == "" || sdp == "" {
		return fmt.Errorf("%w: session id and sdp are required", domain.ErrValidation)
	}
	peer, err := s.peerOf(sessionID, fromUserID)
	if err != nil {
		return err
	}
	s.presence.Broadcast(peer, domain.Event{
		Event: domain.EventCallOfferAnswer,
		Data:  domain.OfferAnswerEvent{SDP: sdp, SDPType: sdpType},
	})
	return nil
}

// RelayICE forwards an ICE candidate to the sender's peer without touching
// session state.
func (s *CallService) RelayICE(ctx context.Context, sessionID domain.SessionID, fromUserID domain.UserID, candidate string, sdpMid *string, sdpMLineIndex *int) error {
	if sessionID == "" || candidate == "" {
		return fmt.Errorf("%w: session id and candidate are required", domain.ErrValidation)
	}
	peer, err := s.peerOf(sessionID, fromUserID)
	if err != nil {
		return err
	}
	s.presence.Broadcast(peer, domain.Event{
		Event: domain.EventCallICE,
		Data:  domain.ICECandidateEvent{Candidate: candidate, SDPMid: sdpMid, SDPMLineIndex: sdpMLineIndex},
	})
	return nil
}

// AutoCancel fires after the ring timeout. The session state is re-read
// inside the critical section: a call that was accepted between the timer
// firing and the lock being taken is left alone.
func (s *CallService) AutoCancel(ctx context.Context, sessionID domain.SessionID) {
	s.mu.Lock()
	session, ok := s.store.Get(sessionID)
	if !ok || !session.Status.Ringable() {
		s.mu.Unlock()
		return
	}
	session.Status = domain.CallTimeout
	session.EndedReason = domain.ReasonNormal
	snapshot := *session
	s.store.Remove(sessionID)
	s.tombstoneLocked(sessionID)
	s.mu.Unlock()

	s.recordStatusChange(ctx, sessionID, domain.CallTimeout, snapshot.EndedReason)
	for _, userID := range []domain.UserID{snapshot.CallerUserID, snapshot.CalleeUserID} {
		s.presence.Broadcast(userID, domain.Event{
			Event: domain.EventCallStatus,
			Data:  domain.CallStatusEvent{Status: domain.CallTimeout, Session: snapshot},
		})
	}
	log.Info().Str("session_id", sessionID.String()).Msg("Call timed out")
}

// OnDisconnect tears down whatever call the user was in after their last
// connection closed. There is nobody left to report errors to, so failures
// are only logged.
func (s *CallService) OnDisconnect(ctx context.Context, userID domain.UserID) {
	s.mu.Lock()
	session, ok := s.store.FindByUser(userID)
	if !ok {
		s.mu.Unlock()
		return
	}
	sessionID := session.ID
	session.Status = domain.CallEnded
	session.EndedReason = domain.ReasonPeerLeft
	snapshot := *session
	s.store.Remove(sessionID)
	s.tombstoneLocked(sessionID)
	s.mu.Unlock()

	s.recordStatusChange(ctx, sessionID, domain.CallEnded, domain.ReasonPeerLeft)
	if peer, ok := snapshot.PeerOf(userID); ok {
		s.presence.Broadcast(peer, domain.Event{
			Event: domain.EventCallStatus,
			Data:  domain.CallStatusEvent{Status: domain.CallEnded, Session: snapshot},
		})
	}
	log.Info().Str("session_id", sessionID.String()).Str("user_id", userID.String()).Msg("Call ended by disconnect")
}

// endCall is the shared terminal path for reject, hangup and their fallback
// variants. It validates the actor, applies the terminal status, removes the
// session from the store (clearing the busy index) and records the change.
func (s *CallService) endCall(ctx context.Context, sessionID domain.SessionID, actorID domain.UserID, terminal domain.CallStatus, reason domain.HangupReason, fallback *domain.CallSession) (domain.CallSession, error) {
	if sessionID == "" {
		return domain.CallSession{}, fmt.Errorf("%w: session id is required", domain.ErrValidation)
	}
	if reason == "" {
		reason = domain.ReasonNormal
	}

	s.mu.Lock()
	session, err := s.lookupLocked(ctx, sessionID, actorID, fallback)
	if err != nil {
		s.mu.Unlock()
		return domain.CallSession{}, err
	}
	session.Status = terminal
	session.EndedReason = reason
	snapshot := *session
	s.store.Remove(sessionID)
	s.tombstoneLocked(sessionID)
	s.mu.Unlock()

	s.recordStatusChange(ctx, sessionID, terminal, reason)
	return snapshot, nil
}

// lookupLocked resolves a session by id, falling back to the client-supplied
// payload when the in-memory record is gone (process restart, eviction). The
// payload is only trusted when its id matches, the requesting user is one of
// its participants and the session has not already terminated. Must be called
// with s.mu held.
func (s *CallService) lookupLocked(ctx context.Context, sessionID domain.SessionID, actorID domain.UserID, fallback *domain.CallSession) (*domain.CallSession, error) {
	if session, ok := s.store.Get(sessionID); ok {
		if actorID != "" && !session.Involves(actorID) {
			return nil, fmt.Errorf("%w: user %s is not part of session %s", domain.ErrValidation, actorID, sessionID)
		}
		return session, nil
	}
	if _, gone := s.ended[sessionID]; gone {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	if fallback == nil || fallback.ID != sessionID {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	if fallback.CallerUserID == "" || fallback.CalleeUserID == "" || fallback.CallerUserID == fallback.CalleeUserID {
		return nil, fmt.Errorf("%w: malformed session payload", domain.ErrValidation)
	}
	if actorID != "" && !fallback.Involves(actorID) {
		return nil, fmt.Errorf("%w: user %s is not part of session %s", domain.ErrValidation, actorID, sessionID)
	}
	if fallback.Status.Terminal() {
		return nil, fmt.Errorf("%w: session payload is already terminal", domain.ErrInvalidStatus)
	}

	restored := *fallback
	if restored.Status == "" {
		restored.Status = domain.CallRequesting
	}
	if err := s.store.Insert(&restored); err != nil {
		return nil, err
	}
	if err := s.callLog.RecordCreated(ctx, restored); err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Failed to record restored call session")
	}
	log.Warn().Str("session_id", sessionID.String()).Msg("Call session restored from client payload")
	return &restored, nil
}

func (s *CallService) peerOf(sessionID domain.SessionID, fromUserID domain.UserID) (domain.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.store.Get(sessionID)
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	peer, ok := session.PeerOf(fromUserID)
	if !ok {
		return "", fmt.Errorf("%w: user %s is not part of session %s", domain.ErrValidation, fromUserID, sessionID)
	}
	return peer, nil
}

func (s *CallService) newSessionIDLocked() (domain.SessionID, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := domain.NewSessionID()
		if _, taken := s.store.Get(id); taken {
			continue
		}
		if _, gone := s.ended[id]; gone {
			continue
		}
		return id, nil
	}
	return "", domain.ErrIDExhausted
}

func (s *CallService) tombstoneLocked(sessionID domain.SessionID) {
	now := time.Now()
	s.ended[sessionID] = now
	for id, at := range s.ended {
		if now.Sub(at) > tombstoneTTL {
			delete(s.ended, id)
		}
	}
}

func (s *CallService) recordStatusChange(ctx context.Context, sessionID domain.SessionID, status domain.CallStatus, reason domain.HangupReason) {
	if err := s.callLog.RecordStatusChange(ctx, sessionID, status, reason); err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Str("status", string(status)).Msg("Failed to record call status change")
	}
}

func (s *CallService) announceAccepted(session domain.CallSession) {
	for _, userID := range []domain.UserID{session.CallerUserID, session.CalleeUserID} {
		data := domain.CallStatusEvent{Status: domain.CallAccepted, Session: session}
		if s.creds != nil {
			token, err := s.creds.IssueTransportCredential(session.ID.String(), userID)
			if err != nil {
				log.Error().Err(err).Str("session_id", session.ID.String()).Str("user_id", userID.String()).Msg("Failed to issue transport credential")
			} else {
				data.TransportToken = token
			}
		}
		s.presence.Broadcast(userID, domain.Event{Event: domain.EventCallStatus, Data: data})
	}
}
