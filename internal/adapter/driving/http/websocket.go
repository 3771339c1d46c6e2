package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vibelinechat/vibeline/internal/core/domain"
	"github.com/vibelinechat/vibeline/internal/core/port"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: only for dev
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeTimeout = 5 * time.Second

// wsClient implements port.Client over a gorilla connection. Writes are
// serialized and individually deadlined so one stuck reader cannot hold a
// broadcast hostage.
type wsClient struct {
	id     string
	userID domain.UserID
	conn   *websocket.Conn
	mu     sync.Mutex
}

func (c *wsClient) ID() string {
	return c.id
}

func (c *wsClient) UserID() domain.UserID {
	return c.userID
}

func (c *wsClient) Send(event domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(event)
}

func (c *wsClient) Close() error {
	return c.conn.Close()
}

// envelope is the inbound wire format.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type callRequestDTO struct {
	CalleeUserID   string `json:"calleeUserId"`
	ConversationID string `json:"conversationId"`
	IsVideoCall    bool   `json:"isVideoCall"`
}

type callActionDTO struct {
	SessionID string              `json:"sessionId"`
	Session   *domain.CallSession `json:"session,omitempty"`
	Reason    domain.HangupReason `json:"reason,omitempty"`
}

func (d callActionDTO) sessionID() domain.SessionID {
	if d.SessionID != "" {
		return domain.SessionID(d.SessionID)
	}
	if d.Session != nil {
		return d.Session.ID
	}
	return ""
}

type offerAnswerDTO struct {
	SessionID string         `json:"sessionId"`
	SDP       string         `json:"sdp"`
	SDPType   domain.SDPType `json:"sdpType"`
}

type iceCandidateDTO struct {
	SessionID     string  `json:"sessionId"`
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *int    `json:"sdpMLineIndex,omitempty"`
}

type callErrorEvent struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServeWS admits one signaling connection: verify identity, register in the
// hub, then pump inbound events until the transport closes. When the user's
// last connection is gone, any call they were in is torn down.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, err := h.Identity.VerifyConnection(connectionToken(r))
	if err != nil {
		log.Warn().Err(err).Msg("Rejected ws connection")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	client := &wsClient{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
	}

	l := log.With().Str("connection_id", client.id).Str("user_id", userID.String()).Logger()
	l.Info().Msg("New client connected")

	h.Hub.Register(userID, client)
	client.Send(domain.Event{Event: domain.EventServerHello, Data: "You connected successfully!"})

	defer func() {
		h.Hub.Unregister(userID, client.id)
		conn.Close()
		if !h.Hub.IsOnline(userID) {
			h.Calls.OnDisconnect(context.Background(), userID)
		}
		l.Info().Msg("Client disconnected")
	}()

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			break
		}
		h.dispatch(r.Context(), l, client, env)
	}
}

// connectionToken pulls the handshake credential from the Authorization
// header, or the token query parameter for browser clients that cannot set
// headers on a ws dial.
func connectionToken(r *http.Request) string {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (h *Handler) dispatch(ctx context.Context, l zerolog.Logger, client *wsClient, env envelope) {
	var err error
	switch env.Event {
	case domain.EventCallRequest:
		err = h.onCallRequest(ctx, client, env.Data)
	case domain.EventCallAccept:
		err = h.onCallAccept(ctx, client, env.Data)
	case domain.EventCallReject:
		err = h.onCallReject(ctx, client, env.Data)
	case domain.EventCallHangup:
		err = h.onCallHangup(ctx, client, env.Data)
	case domain.EventCallOfferAnswer:
		err = h.onOfferAnswer(ctx, client, env.Data)
	case domain.EventCallICE:
		err = h.onICE(ctx, client, env.Data)
	default:
		err = fmt.Errorf("%w: unknown event %q", domain.ErrValidation, env.Event)
	}
	if err != nil {
		l.Warn().Err(err).Str("event", env.Event).Msg("Signaling request failed")
		h.sendError(client, env.Event, err)
	}
}

func (h *Handler) onCallRequest(ctx context.Context, client *wsClient, data json.RawMessage) error {
	var dto callRequestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	result, err := h.Calls.RequestCall(ctx, client.userID, domain.UserID(dto.CalleeUserID), dto.ConversationID, dto.IsVideoCall)
	if err != nil {
		return err
	}
	// The synchronous answer goes back to the requesting connection only.
	return client.Send(domain.Event{Event: domain.EventCallRequestResult, Data: result})
}

func (h *Handler) onCallAccept(ctx context.Context, client *wsClient, data json.RawMessage) error {
	var dto callActionDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	_, err := h.Calls.AcceptCall(ctx, client.userID, dto.sessionID(), dto.Session)
	return err
}

func (h *Handler) onCallReject(ctx context.Context, client *wsClient, data json.RawMessage) error {
	var dto callActionDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return h.Calls.RejectCall(ctx, client.userID, dto.sessionID(), dto.Reason, dto.Session)
}

func (h *Handler) onCallHangup(ctx context.Context, client *wsClient, data json.RawMessage) error {
	var dto callActionDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return h.Calls.HangupCall(ctx, client.userID, dto.sessionID(), dto.Reason, dto.Session)
}

func (h *Handler) onOfferAnswer(ctx context.Context, client *wsClient, data json.RawMessage) error {
	var dto offerAnswerDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return h.Calls.RelayOfferAnswer(ctx, domain.SessionID(dto.SessionID), client.userID, dto.SDP, dto.SDPType)
}

func (h *Handler) onICE(ctx context.Context, client *wsClient, data json.RawMessage) error {
	var dto iceCandidateDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return h.Calls.RelayICE(ctx, domain.SessionID(dto.SessionID), client.userID, dto.Candidate, dto.SDPMid, dto.SDPMLineIndex)
}

func (h *Handler) sendError(client port.Client, event string, err error) {
	code := "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrValidation):
		code = "VALIDATION"
	case errors.Is(err, domain.ErrSessionNotFound):
		code = "SESSION_NOT_FOUND"
	case errors.Is(err, domain.ErrInvalidStatus):
		code = "INVALID_STATUS"
	case errors.Is(err, domain.ErrUserBusy):
		code = "BUSY"
	case errors.Is(err, domain.ErrSessionExists):
		code = "CONFLICT"
	case errors.Is(err, domain.ErrIDExhausted):
		code = "EXHAUSTED"
	}
	client.Send(domain.Event{
		Event: domain.EventCallError,
		Data:  callErrorEvent{Event: event, Code: code, Message: err.Error()},
	})
}
