// FILE: internal/dto/chat_dto.go
package dto

import "time"

// Chat refinement API DTOs

type SendMessageRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Message   string `json:"message" validate:"required,min=1,max=2000"`

	// When explicitly false, the turn is refined without the previous
	// result list, so follow-up names resolve against the full catalog.
	UseFollowupContext *bool `json:"use_followup_context,omitempty"`
}

type RecordResultRequest struct {
	SessionID  string   `json:"session_id" validate:"required"`
	EntityType string   `json:"entity_type" validate:"required,oneof=VENDOR ACCOUNT WAREHOUSE CITY REGION"`
	Entities   []string `json:"entities" validate:"required"`
	RowCount   int      `json:"row_count" validate:"gte=0"`
}

type ResetSessionRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

type TimeRange struct {
	Start        string `json:"start,omitempty"`
	EndExclusive string `json:"end_exclusive,omitempty"`
	Label        string `json:"label,omitempty"`
	ToNow        bool   `json:"to_now,omitempty"`
}

type ScopeView struct {
	Bindings   map[string]string `json:"bindings,omitempty"`
	Metric     string            `json:"metric,omitempty"`
	Time       *TimeRange        `json:"time,omitempty"`
	Intent     string            `json:"intent,omitempty"`
	Attributes []string          `json:"attributes,omitempty"`
}

type MessageResponse struct {
	SessionID string `json:"session_id"`
	Type      string `json:"type"`

	// Populated when Type is ANALYTICS.
	CanonicalQuestion string `json:"canonical_question,omitempty"`

	// Populated when Type is GREETING or FAQ.
	Reply string `json:"reply,omitempty"`

	// Populated when Type is CLARIFICATION.
	Clarification string   `json:"clarification,omitempty"`
	Options       []string `json:"options,omitempty"`

	// Populated when Type is INVALID.
	RejectedReason string `json:"rejected_reason,omitempty"`
	RejectedDetail string `json:"rejected_detail,omitempty"`

	Scope *ScopeView `json:"scope,omitempty"`
}

type SessionStateResponse struct {
	SessionID     string     `json:"session_id"`
	CreatedAt     time.Time  `json:"created_at"`
	Scope         *ScopeView `json:"scope,omitempty"`
	ResultSummary string     `json:"result_summary,omitempty"`
	Pending       string     `json:"pending_clarification,omitempty"`
	LastCanonical string     `json:"last_canonical,omitempty"`
	RecentTurns   []string   `json:"recent_turns,omitempty"`
}
