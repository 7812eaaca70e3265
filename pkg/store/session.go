package store

import (
	"time"

	"ems-analytics-be/pkg/refine/resultctx"
	"ems-analytics-be/pkg/refine/scope"
)

// PendingClarification holds a clarification the engine asked and is
// waiting on. A clarifying answer merges as a correction; an unrelated
// new question discards it entirely.
type PendingClarification struct {
	Question      string    `json:"question"`
	Options       []string  `json:"options"`
	OriginalQuery string    `json:"original_query"`
	AskedAt       time.Time `json:"asked_at"`
}

// Session is the per-conversation state the engine owns. It is created
// on the first turn or an explicit reset and never expires implicitly
// mid-conversation; a failed turn must leave it exactly as it was.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// THE ACTIVE SCOPE (metric, time filter, entity bindings, intent)
	Scope *scope.ActiveScope `json:"scope"`

	// THE PREVIOUS LIST (entities the last query returned)
	ResultContext *resultctx.ResultContext `json:"result_context"`

	Pending *PendingClarification `json:"pending_clarification"`

	// Short rolling history for language continuity
	RecentTurns []TurnRecord `json:"recent_turns"`

	LastCanonical string `json:"last_canonical"`
}

// TurnRecord is one entry of the rolling history.
type TurnRecord struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const maxRecentTurns = 4

func NewSession(id string) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		Scope:     scope.NewActiveScope(),
	}
}

// AddTurn appends to the rolling history, keeping it bounded.
func (s *Session) AddTurn(role, content string) {
	s.RecentTurns = append(s.RecentTurns, TurnRecord{Role: role, Content: content})
	if len(s.RecentTurns) > maxRecentTurns {
		s.RecentTurns = s.RecentTurns[1:]
	}
}

// ResetAnalyticalContext is the hard reset for new-question mode. It
// clears all analytical carry-over but keeps the session alive.
func (s *Session) ResetAnalyticalContext() {
	s.Scope = scope.NewActiveScope()
	s.ResultContext = nil
	s.Pending = nil
	s.LastCanonical = ""
}
