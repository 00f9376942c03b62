package httpapi

import (
	"net/http"

	"github.com/agentmesh/platform/agent"
	"github.com/agentmesh/platform/domain/command"
	"github.com/agentmesh/platform/internal/errs"
	"github.com/agentmesh/platform/internal/httputil"
	"github.com/agentmesh/platform/internal/logging"
	"github.com/agentmesh/platform/integration"
)

type handlers struct {
	router *integration.Router
	events *integration.EventIntake
	orch   ReadinessReporter
	logger *logging.Logger
}

// postCommand is the Integration Router entry point (spec.md §4.11).
func (h *handlers) postCommand(w http.ResponseWriter, r *http.Request) {
	var cmd command.Command
	if !httputil.DecodeJSONRequiring(w, r, &cmd, "request_id", "actor", "integration", "action") {
		return
	}
	resp, status := h.router.Dispatch(r.Context(), cmd)
	httputil.WriteJSON(w, status, resp)
}

// postEvent is the Event Intake entry point (spec.md §4.11). Accepted
// events respond 202, matching the status table's "accepted (events)".
func (h *handlers) postEvent(w http.ResponseWriter, r *http.Request) {
	var rec command.EventRecord
	if !httputil.DecodeJSONRequiring(w, r, &rec, "source", "event_type") {
		return
	}
	accepted, err := h.events.Accept(r.Context(), rec)
	if err != nil {
		e := errs.AsError(err)
		httputil.WriteError(w, errs.HTTPStatus(e.Code), string(e.Code), e.Message)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
		"accepted": true,
		"event_id": accepted.ID,
	})
}

// health is the liveness probe: always 200 while the process is up.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ready is the readiness probe: 200 only when every registered agent is Running.
func (h *handlers) ready(w http.ResponseWriter, r *http.Request) {
	statuses := h.orch.Health()
	for _, s := range statuses {
		if s.Status != agent.StatusRunning {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready", "agents": statuses,
			})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"status": "ready", "agents": statuses})
}

// status reports per-agent health plus process-level stats (spec.md §4.A).
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"agents":  h.orch.Health(),
		"process": processStats(),
	})
}

// graph reports the agent dependency graph for /api/graph.
func (h *handlers) graph(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.orch.Graph())
}
