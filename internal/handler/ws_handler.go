package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/elivate/elivate-backend/internal/middleware"
	"github.com/elivate/elivate-backend/internal/response"
	"github.com/elivate/elivate-backend/internal/service"
	ws "github.com/elivate/elivate-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// actionTimeout bounds a single client action against the session service.
const actionTimeout = 5 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the live session: the server pushes ticks and status
// changes while the client sends exam actions.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// Stream godoc
// WS /ws/v1/exam-sessions/current/stream?token=...
// Upgrades to WebSocket. The learner must already have a session.
func (h *WSHandler) Stream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	learnerID := claims.LearnerID()

	events, unsubscribe, err := h.sessionService.Subscribe(c.Request.Context(), learnerID)
	if err != nil {
		failWith(c, err)
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	ws.Prepare(conn)

	wsLog := h.log.With().Str("learner_id", learnerID).Logger()
	wsLog.Info().Msg("Learner connected")

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	out := make(chan interface{}, 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, conn, wsLog, events, out)
	}()

	send := func(v interface{}) {
		select {
		case out <- v:
		case <-writerDone:
		}
	}

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}
		h.handleAction(ctx, learnerID, &msg, send)
	}

	cancel()
	<-writerDone
}

// writeLoop owns every write on conn.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, events <-chan service.SessionEvent, out <-chan interface{}) {
	ping := time.NewTicker(ws.PingPeriod)
	defer ping.Stop()
	// Unblock the reader when the writer gives up.
	defer conn.Close()

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				// Session abandoned or replaced.
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(ws.WriteWait))
				return
			}
			err = ws.WriteTyped(conn, eventPayload(evt))
		case v := <-out:
			err = ws.WriteTyped(conn, v)
		case <-ping.C:
			err = ws.WritePing(conn)
		}
		if err != nil {
			log.Debug().Err(err).Msg("Write failed")
			return
		}
	}
}

func (h *WSHandler) handleAction(parent context.Context, learnerID string, msg *ws.RequestPayload, send func(interface{})) {
	ctx, cancel := context.WithTimeout(parent, actionTimeout)
	defer cancel()

	switch msg.Action {
	case ws.ActionPing:
		send(ws.PongResponse{Event: ws.EventPong})

	case ws.ActionAnswer:
		if msg.QuestionID == uuid.Nil || msg.Option == nil {
			send(errorPayload(response.ErrInvalidPayload))
			return
		}
		if err := h.sessionService.SelectAnswer(ctx, learnerID, msg.QuestionID, *msg.Option); err != nil {
			send(actionError(err))
			return
		}
		send(ws.AckResponse{Event: ws.EventAck, Action: msg.Action})

	case ws.ActionReview:
		if msg.QuestionID == uuid.Nil {
			send(errorPayload(response.ErrInvalidPayload))
			return
		}
		marked, err := h.sessionService.ToggleReview(ctx, learnerID, msg.QuestionID)
		if err != nil {
			send(actionError(err))
			return
		}
		send(ws.AckResponse{Event: ws.EventAck, Action: msg.Action, Marked: &marked})

	case ws.ActionNavigate:
		if msg.Index == nil {
			send(errorPayload(response.ErrInvalidPayload))
			return
		}
		if err := h.sessionService.Navigate(ctx, learnerID, *msg.Index); err != nil {
			send(actionError(err))
			return
		}
		send(ws.AckResponse{Event: ws.EventAck, Action: msg.Action})

	case ws.ActionSubmit:
		if !msg.Confirm {
			send(errorPayload(response.ErrConfirmRequired))
			return
		}
		// The graded event reaches every stream through the subscription.
		if _, err := h.sessionService.Submit(ctx, learnerID); err != nil {
			send(actionError(err))
			return
		}
		send(ws.AckResponse{Event: ws.EventAck, Action: msg.Action})

	default:
		h.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		send(ws.ErrorResponse{Event: ws.EventError, Code: string(response.ErrInvalidPayload), Error: "unknown action: " + string(msg.Action)})
	}
}

func eventPayload(evt service.SessionEvent) interface{} {
	switch evt.Kind {
	case service.SessionEventTick:
		return ws.TickResponse{Event: ws.EventTick, RemainingSeconds: evt.Remaining}
	case service.SessionEventGraded:
		return ws.GradedResponse{Event: ws.EventGraded, Status: evt.Status, Results: evt.Results}
	default:
		return ws.StateResponse{Event: ws.EventState, Status: evt.Status, RemainingSeconds: evt.Remaining}
	}
}

// actionError reports a failed action. A TIME_UP error is followed by the
// graded event of the auto-submit.
func actionError(err error) ws.ErrorResponse {
	_, code := classify(err)
	return errorPayload(code)
}

func errorPayload(code response.ErrCode) ws.ErrorResponse {
	return ws.ErrorResponse{Event: ws.EventError, Code: string(code), Error: response.GetMessage(code)}
}
