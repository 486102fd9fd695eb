package websocket

import (
	"github.com/elivate/elivate-backend/internal/examsession"
	"github.com/google/uuid"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionReview   Action = "review"
	ActionNavigate Action = "navigate"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload carries every client action; unused fields stay zero.
type RequestPayload struct {
	Action     Action    `json:"action"`
	QuestionID uuid.UUID `json:"question_id,omitempty"`
	Option     *int      `json:"option,omitempty"`
	Index      *int      `json:"index,omitempty"`
	Confirm    bool      `json:"confirm,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventAck    Event = "ack"
	EventTick   Event = "tick"
	EventState  Event = "state"
	EventGraded Event = "graded"
	EventError  Event = "error"
	EventPong   Event = "pong"
)

// AckResponse confirms a mutating action.
type AckResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action"`
	Marked *bool  `json:"marked,omitempty"`
}

// TickResponse carries the authoritative countdown.
type TickResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// StateResponse reports a status change.
type StateResponse struct {
	Event            Event              `json:"event"`
	Status           examsession.Status `json:"status"`
	RemainingSeconds int                `json:"remaining_seconds"`
}

// GradedResponse is sent once the session has been scored.
type GradedResponse struct {
	Event   Event                `json:"event"`
	Status  examsession.Status   `json:"status"`
	Results *examsession.Results `json:"results"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
