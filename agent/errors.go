package agent

// ErrorKind identifies the category of failure passed to handle_error
// (spec.md §4.2). The framework requires only a well-formed ErrorAction in
// return; kinds beyond the four named here are agent-specific (spec.md §9
// Open Questions) and agents are free to recognize additional ones.
type ErrorKind string

const (
	ErrorKindResource    ErrorKind = "resource_error"
	ErrorKindTransaction ErrorKind = "transaction_error"
	ErrorKindAPI         ErrorKind = "api_error"
	ErrorKindToken       ErrorKind = "token_error"
	ErrorKindUnknown     ErrorKind = "unknown"
)

// ErrorAction is what an agent's handle_error decided to do; the framework
// never second-guesses it (spec.md §4.2, §7). Neither Base nor the
// Orchestrator writes the outcome to the audit trail.
type ErrorAction string

const (
	ActionMarkInvalid      ErrorAction = "mark_invalid"
	ActionMarkFailed       ErrorAction = "mark_failed"
	ActionReinitClient     ErrorAction = "reinitialize_client"
	ActionSuspend          ErrorAction = "suspend"
	ActionNone             ErrorAction = "none"
)

// ErrorOutcome is the structured result handle_error returns.
type ErrorOutcome struct {
	Success bool
	Action  ErrorAction
	Subject string
	Detail  string
}

// ErrorHandler is implemented by every Agent to decide remediation for a
// failure observed in a background loop or a public operation.
type ErrorHandler interface {
	HandleError(kind ErrorKind, data map[string]any) ErrorOutcome
}

// UnknownErrorOutcome is the canonical reply to an unrecognized ErrorKind
// (spec.md §4.2 table, "unknown" row).
func UnknownErrorOutcome() ErrorOutcome {
	return ErrorOutcome{Success: false, Detail: "unknown error kind"}
}
