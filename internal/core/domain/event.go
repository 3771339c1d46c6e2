package domain

// Event names pushed to connected clients. Names mirror the socket events the
// mobile and web clients already listen on.
const (
	EventServerHello       = "server_hello"
	EventCallRequest       = "call_request"
	EventCallRequestResult = "call_request_result"
	EventCallStatus        = "call_status"
	EventCallOfferAnswer   = "call_offer_answer"
	EventCallICE           = "call_ice"
	EventCallHangup        = "call_hangup"
	EventCallError         = "call_error"
)

// Inbound-only event names.
const (
	EventCallAccept = "call_accept"
	EventCallReject = "call_reject"
)

// Event is the outbound wire envelope.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type CallStatusEvent struct {
	Status  CallStatus  `json:"status"`
	Session CallSession `json:"session"`
	// TransportToken authorizes the recipient on the media channel. Only set
	// once a session reaches ACCEPTED.
	TransportToken string `json:"transportToken,omitempty"`
}

type OfferAnswerEvent struct {
	SDP     string  `json:"sdp"`
	SDPType SDPType `json:"sdpType"`
}

type ICECandidateEvent struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *int    `json:"sdpMLineIndex,omitempty"`
}

type HangupEvent struct {
	Reason HangupReason `json:"reason,omitempty"`
}
