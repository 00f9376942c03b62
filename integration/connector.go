package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/agentmesh/platform/domain/command"
	"github.com/agentmesh/platform/internal/errs"
	"github.com/agentmesh/platform/internal/httputil"
	"github.com/agentmesh/platform/internal/resilience"
)

// Response is the normalized shape every Generic HTTP Connector call
// produces (spec.md §4.8 "response normalization").
type Response struct {
	HTTPStatus int               `json:"http_status"`
	Body       json.RawMessage   `json:"body,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// methodByAction maps a command action to the HTTP verb the Generic HTTP
// Connector issues (spec.md §4.8).
var methodByAction = map[string]string{
	"read":   http.MethodGet,
	"create": http.MethodPost,
	"update": http.MethodPut,
	"patch":  http.MethodPatch,
	"delete": http.MethodDelete,
	"call":   http.MethodPost,
}

// idempotentMethods retry on transport failure and 5xx responses.
var idempotentMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

const maxResponseBody int64 = 4 << 20 // 4MiB upstream response read limit

// Connector is the Generic HTTP Connector: it executes a Command against an
// integration's base_url when no native handler is registered for its
// category (spec.md §4.7 "dispatch").
type Connector struct {
	httpClient *http.Client
	creds      *CredentialStore

	breakersMu sync.Mutex
	breakers   map[string]*resilience.CircuitBreaker
}

// NewConnector builds a Connector with the given per-call timeout.
func NewConnector(creds *CredentialStore, timeout time.Duration) *Connector {
	return &Connector{
		httpClient: &http.Client{Timeout: timeout},
		creds:      creds,
		breakers:   make(map[string]*resilience.CircuitBreaker),
	}
}

// breakerFor returns the per-integration circuit breaker, creating one with
// DefaultCircuitConfig on first use. Each integration trips independently so
// one failing upstream can't starve calls to another (spec.md §4.8).
func (c *Connector) breakerFor(integration string) *resilience.CircuitBreaker {
	c.breakersMu.Lock()
	defer c.breakersMu.Unlock()
	cb, ok := c.breakers[integration]
	if !ok {
		cb = resilience.NewCircuitBreaker(resilience.DefaultCircuitConfig())
		c.breakers[integration] = cb
	}
	return cb
}

// Dispatch executes action against spec using params, applying auth,
// retries, and response normalization per spec.md §4.8.
func (c *Connector) Dispatch(ctx context.Context, spec command.IntegrationSpec, action string, params map[string]any) (*Response, error) {
	method, ok := methodByAction[action]
	if !ok {
		return nil, errs.UnsupportedAction(action)
	}

	endpoint, _ := params["endpoint"].(string)
	query, _ := params["query"].(map[string]any)
	url, err := httputil.JoinEndpoint(spec.BaseURL, endpoint, query)
	if err != nil {
		return nil, errs.Schema(err.Error())
	}

	bodyBytes, err := requestBody(params)
	if err != nil {
		return nil, errs.Schema(err.Error())
	}

	retryable := idempotentMethods[method]
	if ik, ok := params["idempotency_key"].(string); ok && ik != "" {
		retryable = true
	}

	var resp *Response
	// once fires a single request attempt with the given credential.
	once := func(cred Credential) error {
		r, attemptErr := c.do(ctx, spec, method, url, bodyBytes, cred, params)
		if attemptErr != nil {
			return attemptErr
		}
		resp = r
		if r.HTTPStatus >= 500 {
			return fmt.Errorf("upstream returned %d", r.HTTPStatus)
		}
		return nil
	}
	// attempt fetches the current credential and fires a request. On an
	// OAuth2 401 it re-fetches (the store is responsible for provisioning a
	// replacement before the retry lands) and re-issues the request exactly
	// once before giving up, independent of whether the method is otherwise
	// retried. The stale credential is only dropped once that retry has
	// also failed, so a replacement provisioned between the two requests
	// isn't clobbered before it is ever used (spec.md §4.8).
	attempt := func() error {
		cred, credErr := c.creds.Fetch(ctx, spec)
		if credErr != nil {
			return credErr
		}
		err := once(cred)
		if resp != nil && resp.HTTPStatus == http.StatusUnauthorized && spec.Auth == command.AuthOAuth2 {
			if retryCred, fetchErr := c.creds.Fetch(ctx, spec); fetchErr == nil {
				err = once(retryCred)
			}
			if resp != nil && resp.HTTPStatus == http.StatusUnauthorized {
				_ = c.creds.Delete(ctx, spec.Integration)
			}
		}
		return err
	}

	cfg := resilience.DefaultRetryConfig()
	if !retryable {
		cfg.MaxAttempts = 1
	}

	breaker := c.breakerFor(spec.Integration)
	breakerErr := breaker.Execute(ctx, func() error {
		return resilience.Retry(ctx, cfg, attempt)
	})
	if breakerErr != nil {
		if errors.Is(breakerErr, resilience.ErrCircuitOpen) || errors.Is(breakerErr, resilience.ErrTooManyRequests) {
			return nil, errs.Wrap(errs.CodeUpstream, "integration circuit breaker is open", breakerErr).
				WithDetail("integration", spec.Integration)
		}
		if resp == nil {
			return nil, errs.Wrap(errs.CodeUpstream, "upstream call failed", breakerErr)
		}
	}

	if resp.HTTPStatus < 200 || resp.HTTPStatus >= 300 {
		return resp, errs.Upstream(resp.HTTPStatus, bodyPreview(resp.Body))
	}
	return resp, nil
}

func (c *Connector) do(ctx context.Context, spec command.IntegrationSpec, method, url string, body []byte, cred Credential, params map[string]any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, errs.Internal("build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	authHeader, _ := params["auth_header"].(string)
	if err := applyAuth(req, spec, cred, authHeader); err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Transient("upstream request failed", 0, err)
	}
	defer httpResp.Body.Close()

	raw, _, err := httputil.ReadAllWithLimit(httpResp.Body, maxResponseBody)
	if err != nil {
		return nil, errs.Internal("read upstream response", err)
	}

	var rawBody json.RawMessage
	if len(raw) > 0 {
		rawBody = raw
	}

	headers := make(map[string]string, len(httpResp.Header))
	for k := range httpResp.Header {
		headers[k] = httpResp.Header.Get(k)
	}

	return &Response{HTTPStatus: httpResp.StatusCode, Body: rawBody, Headers: headers}, nil
}

func applyAuth(req *http.Request, spec command.IntegrationSpec, cred Credential, authHeaderOverride string) error {
	switch spec.Auth {
	case command.AuthNone:
	case command.AuthAPIKey:
		if cred.APIKey == "" {
			return errs.New(errs.CodeUpstream, "no api key provisioned for integration").WithDetail("integration", spec.Integration)
		}
		header := "Authorization"
		if authHeaderOverride != "" {
			header = authHeaderOverride
		}
		value := "Bearer " + cred.APIKey
		req.Header.Set(header, value)
	case command.AuthBasic:
		if cred.Username == "" {
			return errs.New(errs.CodeUpstream, "no basic auth credential provisioned for integration").WithDetail("integration", spec.Integration)
		}
		req.SetBasicAuth(cred.Username, cred.Password)
	case command.AuthOAuth2:
		if cred.AccessToken == "" {
			return errs.New(errs.CodeUpstream, "no oauth2 token provisioned for integration").WithDetail("integration", spec.Integration)
		}
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	}
	return nil
}

func requestBody(params map[string]any) ([]byte, error) {
	body, ok := params["body"]
	if !ok || body == nil {
		return nil, nil
	}
	return json.Marshal(body)
}

// bodyPreview truncates a response body for error details without leaking
// an unbounded upstream payload into logs or audit records.
func bodyPreview(body []byte) string {
	return httputil.Truncate(strings.TrimSpace(string(body)), 2048)
}
