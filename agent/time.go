package agent

import "time"

// nowNano stamps bus messages; kept as a package-level func (not the clock.Clock
// abstraction) because Message.Timestamp is a wire-level field, not a timeout.
func nowNano() int64 { return time.Now().UnixNano() }
