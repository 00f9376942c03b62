package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/agentmesh/platform/domain/command"
	"github.com/agentmesh/platform/internal/errs"
	"github.com/agentmesh/platform/internal/httputil"
	"github.com/agentmesh/platform/internal/ids"
	"github.com/agentmesh/platform/internal/logging"
	"github.com/agentmesh/platform/internal/store"
)

// NativeHandler owns the actual client for one IntegrationSpec.Category and
// is registered at boot (spec.md §4.7 step 5 "the handler owns the actual
// integration (native client)").
type NativeHandler func(ctx context.Context, cmd command.Command, spec command.IntegrationSpec) (map[string]any, error)

// DispatchResponse is the wire shape returned by POST /command
// (spec.md §4.7 step 7).
type DispatchResponse struct {
	RequestID   string              `json:"request_id"`
	Integration string              `json:"integration"`
	Status      command.Status      `json:"status"`
	Data        any                 `json:"data,omitempty"`
	Error       *httputil.ErrorBody `json:"error,omitempty"`
	AuditLogged bool                `json:"audit_logged"`
}

// Router turns Command envelopes into audited outcomes (spec.md §4.7).
type Router struct {
	registry        *Registry
	connector       *Connector
	audit           *AuditLogger
	logger          *logging.Logger
	dispatchTimeout time.Duration

	mu      sync.RWMutex
	natives map[command.Category]NativeHandler
}

// NewRouter builds a Router. dispatchTimeout <= 0 means no per-dispatch deadline.
func NewRouter(registry *Registry, connector *Connector, audit *AuditLogger, dispatchTimeout time.Duration, logger *logging.Logger) *Router {
	return &Router{
		registry:        registry,
		connector:       connector,
		audit:           audit,
		logger:          logger,
		dispatchTimeout: dispatchTimeout,
		natives:         make(map[command.Category]NativeHandler),
	}
}

// RegisterNative binds a NativeHandler to a category at boot.
func (r *Router) RegisterNative(category command.Category, handler NativeHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.natives[category] = handler
}

// Dispatch runs the full schema/registry/permission/confirmation/dispatch/
// audit pipeline and returns the response body plus the HTTP status it maps
// to (spec.md §4.11 status code table).
func (r *Router) Dispatch(ctx context.Context, cmd command.Command) (*DispatchResponse, int) {
	start := time.Now()

	if cmd.RequestID == "" || cmd.Actor == "" || cmd.Integration == "" || cmd.Action == "" {
		return r.finish(ctx, cmd, command.IntegrationSpec{}, command.StatusError, nil,
			errs.Schema("request_id, actor, integration, and action are required"), start, nil)
	}

	spec, ok := r.registry.Resolve(cmd.Integration)
	if !ok || !spec.Enabled {
		return r.finish(ctx, cmd, command.IntegrationSpec{}, command.StatusError, nil,
			errs.UnknownIntegration(cmd.Integration), start, nil)
	}

	if !spec.AllowsAction(cmd.Action) {
		return r.finish(ctx, cmd, spec, command.StatusError, nil,
			errs.ActionNotPermitted(cmd.Action), start, nil)
	}

	if spec.RequiresConfirmation() && !cmd.Confirm {
		return r.finish(ctx, cmd, spec, command.StatusDenied, nil,
			errs.ConfirmationRequired().WithDetail("requirements", map[string]any{"confirm": true}), start, nil)
	}

	dispatchCtx := ctx
	if r.dispatchTimeout > 0 {
		var cancel context.CancelFunc
		dispatchCtx, cancel = context.WithTimeout(ctx, r.dispatchTimeout)
		defer cancel()
	}

	metadata := map[string]any{}
	data, dispatchErr := r.dispatchToHandler(dispatchCtx, cmd, spec, metadata)

	if dispatchCtx.Err() == context.DeadlineExceeded {
		return r.finishWithDuration(ctx, cmd, spec, command.StatusError, nil,
			errs.Timeout("dispatch deadline exceeded"), r.dispatchTimeout.Milliseconds(), metadata)
	}

	status := command.StatusOK
	if dispatchErr != nil {
		status = command.StatusError
	}
	return r.finish(ctx, cmd, spec, status, data, dispatchErr, start, metadata)
}

// dispatchToHandler resolves native vs. generic per spec.md §4.7 step 5 and
// its native_missing tie-break.
func (r *Router) dispatchToHandler(ctx context.Context, cmd command.Command, spec command.IntegrationSpec, metadata map[string]any) (any, error) {
	if spec.Native {
		r.mu.RLock()
		handler, ok := r.natives[spec.Category]
		r.mu.RUnlock()
		if ok {
			return handler(ctx, cmd, spec)
		}
		metadata["native_missing"] = true
	}
	return r.dispatchGeneric(ctx, cmd, spec)
}

func (r *Router) dispatchGeneric(ctx context.Context, cmd command.Command, spec command.IntegrationSpec) (any, error) {
	resp, err := r.connector.Dispatch(ctx, spec, cmd.Action, cmd.Params)
	if resp == nil {
		return nil, err
	}
	data := map[string]any{"http_status": resp.HTTPStatus}
	if len(resp.Headers) > 0 {
		data["headers"] = resp.Headers
	}
	if len(resp.Body) > 0 {
		var parsed any
		if jsonErr := json.Unmarshal(resp.Body, &parsed); jsonErr == nil {
			data["body"] = parsed
		} else {
			data["body"] = string(resp.Body)
		}
	}
	return data, err
}

func (r *Router) finish(ctx context.Context, cmd command.Command, spec command.IntegrationSpec, status command.Status, data any, dispatchErr error, start time.Time, metadata map[string]any) (*DispatchResponse, int) {
	return r.finishWithDuration(ctx, cmd, spec, status, data, dispatchErr, time.Since(start).Milliseconds(), metadata)
}

func (r *Router) finishWithDuration(ctx context.Context, cmd command.Command, spec command.IntegrationSpec, status command.Status, data any, dispatchErr error, durationMs int64, metadata map[string]any) (*DispatchResponse, int) {
	paramsHash, err := store.CanonicalHash(cmd.Params)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Warn("failed to hash command params")
	}
	var responseHash string
	if data != nil {
		if h, err := store.CanonicalHash(data); err == nil {
			responseHash = h
		}
	}

	rec := command.AuditRecord{
		ID:            ids.NewWithPrefix("audit"),
		Timestamp:     time.Now().UTC(),
		RequestID:     cmd.RequestID,
		Actor:         cmd.Actor,
		Integration:   cmd.Integration,
		Action:        cmd.Action,
		Category:      spec.Category,
		ParamsHash:    paramsHash,
		ResponseHash:  responseHash,
		Status:        status,
		DurationMs:    durationMs,
		Risk:          spec.Risk,
		Confirmed:     cmd.Confirm,
		CorrelationID: cmd.CorrelationID,
		Metadata:      metadata,
	}
	if dispatchErr != nil {
		rec.ErrorMessage = dispatchErr.Error()
	}

	auditErr := r.audit.Record(ctx, rec)
	if auditErr != nil {
		r.logger.WithContext(ctx).WithError(auditErr).WithFields(map[string]interface{}{
			"request_id": cmd.RequestID,
		}).Error("audit record write failed")
	}

	resp := &DispatchResponse{
		RequestID:   cmd.RequestID,
		Integration: cmd.Integration,
		Status:      status,
		Data:        data,
		AuditLogged: auditErr == nil,
	}

	httpStatus := http.StatusOK
	if dispatchErr != nil {
		e := errs.AsError(dispatchErr)
		resp.Error = &httputil.ErrorBody{Code: string(e.Code), Message: e.Message}
		httpStatus = errs.HTTPStatus(e.Code)
	}
	return resp, httpStatus
}
