// Package ids generates identifiers for agents, tasks, audit records, and events.
package ids

import "github.com/google/uuid"

// New returns a new random identifier string.
func New() string {
	return uuid.New().String()
}

// NewWithPrefix returns a new identifier prefixed for readability in logs
// and JSONL files, e.g. "audit_3f9c...".
func NewWithPrefix(prefix string) string {
	return prefix + "_" + uuid.New().String()
}
