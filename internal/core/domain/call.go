package domain

// CallStatus is the state of a call session. BUSY and OFFLINE never live on a
// stored session; they are only returned synchronously to a caller whose
// request was refused.
type CallStatus string

const (
	CallRequesting CallStatus = "REQUESTING"
	CallRinging    CallStatus = "RINGING"
	CallAccepted   CallStatus = "ACCEPTED"
	CallConnected  CallStatus = "CONNECTED"
	CallEnded      CallStatus = "ENDED"
	CallRejected   CallStatus = "REJECTED"
	CallCancelled  CallStatus = "CANCELLED"
	CallTimeout    CallStatus = "TIMEOUT"
	CallBusy       CallStatus = "BUSY"
	CallOffline    CallStatus = "OFFLINE"
)

// Terminal reports whether the status ends a session's lifecycle.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallEnded, CallRejected, CallCancelled, CallTimeout:
		return true
	}
	return false
}

// Ringable reports whether the session still waits for the callee's answer.
func (s CallStatus) Ringable() bool {
	return s == CallRequesting || s == CallRinging
}

type HangupReason string

const (
	ReasonNormal       HangupReason = "NORMAL"
	ReasonNetworkError HangupReason = "NETWORK_ERROR"
	ReasonICEFailed    HangupReason = "ICE_FAILED"
	ReasonPeerLeft     HangupReason = "PEER_LEFT"
	ReasonUnknown      HangupReason = "UNKNOWN"
)

type SDPType string

const (
	SDPOffer    SDPType = "offer"
	SDPAnswer   SDPType = "answer"
	SDPPranswer SDPType = "pranswer"
	SDPRollback SDPType = "rollback"
)

// CallSession is a single call negotiation between exactly two users. The
// coordinator owns all mutation; everything handed to other goroutines is a
// value copy.
type CallSession struct {
	ID             SessionID    `json:"id"`
	CallerUserID   UserID       `json:"callerUserId"`
	CalleeUserID   UserID       `json:"calleeUserId"`
	ConversationID string       `json:"conversationId"`
	IsVideoCall    bool         `json:"isVideoCall"`
	Status         CallStatus   `json:"status"`
	EndedReason    HangupReason `json:"endedReason,omitempty"`
}

func NewCallSession(id SessionID, caller, callee UserID, conversationID string, isVideoCall bool) *CallSession {
	return &CallSession{
		ID:             id,
		CallerUserID:   caller,
		CalleeUserID:   callee,
		ConversationID: conversationID,
		IsVideoCall:    isVideoCall,
		Status:         CallRequesting,
	}
}

func (s *CallSession) Involves(userID UserID) bool {
	return userID == s.CallerUserID || userID == s.CalleeUserID
}

// PeerOf returns the other participant. ok is false when userID is not part
// of the session.
func (s *CallSession) PeerOf(userID UserID) (UserID, bool) {
	switch userID {
	case s.CallerUserID:
		return s.CalleeUserID, true
	case s.CalleeUserID:
		return s.CallerUserID, true
	}
	return "", false
}
