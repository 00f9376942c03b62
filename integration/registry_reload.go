package integration

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/agentmesh/platform/internal/logging"
)

// HotReloader polls the registry file on a fixed interval and reloads it,
// logging (but not propagating) validation failures so a bad edit to the
// registry file never crashes the process (spec.md §4.6 "the registry can be
// reloaded atomically").
type HotReloader struct {
	cron   *cron.Cron
	logger *logging.Logger
}

// StartHotReload schedules periodic Registry.Load calls every interval.
// interval <= 0 disables polling.
func StartHotReload(reg *Registry, interval time.Duration, logger *logging.Logger) (*HotReloader, error) {
	if interval <= 0 {
		return nil, nil
	}
	spec := fmt.Sprintf("@every %s", interval)

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := reg.Load(); err != nil {
			logger.WithError(err).Warn("registry hot-reload failed, keeping previous snapshot")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("integration: schedule registry reload: %w", err)
	}
	c.Start()
	return &HotReloader{cron: c, logger: logger}, nil
}

// Stop halts the hot-reload scheduler.
func (h *HotReloader) Stop() {
	if h == nil || h.cron == nil {
		return
	}
	ctx := h.cron.Stop()
	<-ctx.Done()
}
