// Package command holds the Integration Fabric's wire-shaped entities:
// Command, IntegrationSpec, AuditRecord, and EventRecord (spec.md §3).
package command

import "time"

// Command is the envelope accepted by POST /command (spec.md §6).
type Command struct {
	RequestID     string         `json:"request_id"`
	Actor         string         `json:"actor"`
	Integration   string         `json:"integration"`
	Action        string         `json:"action"`
	Params        map[string]any `json:"params"`
	Confirm       bool           `json:"confirm"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// Category classifies an IntegrationSpec for native handler resolution.
type Category string

// AuthStyle is the authentication scheme an integration requires.
type AuthStyle string

const (
	AuthNone   AuthStyle = "None"
	AuthAPIKey AuthStyle = "ApiKey"
	AuthBasic  AuthStyle = "Basic"
	AuthOAuth2 AuthStyle = "OAuth2"
)

// Risk is the blast-radius classification of an integration action.
type Risk string

const (
	RiskReadOnly Risk = "ReadOnly"
	RiskWrite    Risk = "Write"
	RiskAdmin    Risk = "Admin"
)

// IntegrationSpec is one catalog entry loaded from the registry document
// (spec.md §3, §4.6).
type IntegrationSpec struct {
	Integration     string         `json:"integration"`
	Category        Category       `json:"category"`
	Native          bool           `json:"native"`
	Auth            AuthStyle      `json:"auth"`
	BaseURL         string         `json:"base_url,omitempty"`
	DefaultActions  []string       `json:"default_actions,omitempty"`
	Risk            Risk           `json:"risk"`
	ConfirmRequired bool           `json:"confirm_required"`
	Enabled         bool           `json:"enabled"`
	Extra           map[string]any `json:"-"` // not filled by JSON decoding: unknown fields in a registry entry are discarded on load
}

// AllowsAction reports whether action is permitted given DefaultActions.
// An empty DefaultActions list permits every action (spec.md §4.7 step 3
// only denies when the list is present and the action is absent from it).
func (s IntegrationSpec) AllowsAction(action string) bool {
	if len(s.DefaultActions) == 0 {
		return true
	}
	for _, a := range s.DefaultActions {
		if a == action {
			return true
		}
	}
	return false
}

// RequiresConfirmation reports whether dispatch requires confirm=true.
func (s IntegrationSpec) RequiresConfirmation() bool {
	return s.ConfirmRequired || s.Risk == RiskAdmin
}

// Status is the terminal outcome of a dispatched command.
type Status string

const (
	StatusOK     Status = "ok"
	StatusError  Status = "error"
	StatusDenied Status = "denied"
)

// AuditRecord is the append-only record of one dispatched command
// (spec.md §3, §4.9).
type AuditRecord struct {
	ID            string         `json:"id" db:"id"`
	Timestamp     time.Time      `json:"timestamp" db:"timestamp"`
	RequestID     string         `json:"request_id" db:"request_id"`
	Actor         string         `json:"actor" db:"actor"`
	Integration   string         `json:"integration" db:"integration"`
	Action        string         `json:"action" db:"action"`
	Category      Category       `json:"category" db:"category"`
	ParamsHash    string         `json:"params_hash" db:"params_hash"`
	ResponseHash  string         `json:"response_hash" db:"response_hash"`
	Status        Status         `json:"status" db:"status"`
	DurationMs    int64          `json:"duration_ms" db:"duration_ms"`
	ErrorMessage  string         `json:"error_message,omitempty" db:"error_message"`
	Risk          Risk           `json:"risk" db:"risk"`
	Confirmed     bool           `json:"confirmed" db:"confirmed"`
	CorrelationID string         `json:"correlation_id,omitempty" db:"correlation_id"`
	Metadata      map[string]any `json:"metadata,omitempty" db:"-"`
}

// Severity is the urgency level of an EventRecord.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarn     Severity = "warn"
	SeverityCritical Severity = "critical"
)

// EventRecord is an externally-sourced event accepted by POST /event
// (spec.md §3, §4.10).
type EventRecord struct {
	ID            string         `json:"id" db:"id"`
	Timestamp     time.Time      `json:"timestamp" db:"timestamp"`
	Source        string         `json:"source" db:"source"`
	EventType     string         `json:"event_type" db:"event_type"`
	Severity      Severity       `json:"severity" db:"severity"`
	CorrelationID string         `json:"correlation_id,omitempty" db:"correlation_id"`
	Data          map[string]any `json:"data" db:"-"`
	Handled       bool           `json:"handled" db:"handled"`
}
