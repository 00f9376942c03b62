package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/agentmesh/platform/domain/command"
	"github.com/agentmesh/platform/internal/errs"
)

// Credential carries whatever the Generic HTTP Connector needs to
// authenticate an outbound call for one auth style (spec.md §4.8
// "Authentication"). Only the fields relevant to spec.Auth are populated.
type Credential struct {
	APIKey       string `json:"api_key,omitempty"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether an OAuth2 access token is past its expiry.
func (c Credential) Expired() bool {
	return !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt)
}

// CredentialStore is the dedicated credential store backing the Generic HTTP
// Connector. It is keyed by integration name and is the only place a
// secret is held; per spec.md §5 "Credentials are held in a dedicated
// store ... never caching across agents", the connector fetches fresh on
// every call instead of keeping a copy in agent state.
//
// A Redis-backed store lets the fetch survive process restarts and lets
// multiple orchestratord replicas share one set of refreshed OAuth2 tokens
// without ever handing the secret to an agent.
type CredentialStore struct {
	rdb *redis.Client
}

// NewCredentialStore connects to addr/db and verifies the connection with a
// PING. Expiry is chosen per write through Put's ttl argument.
func NewCredentialStore(ctx context.Context, addr string, db int) (*CredentialStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errs.Internal("connect to credential store", err)
	}
	return &CredentialStore{rdb: rdb}, nil
}

// Close releases the underlying connection pool.
func (s *CredentialStore) Close() error {
	return s.rdb.Close()
}

func credentialKey(integration string) string {
	return fmt.Sprintf("credential:%s", integration)
}

// Put stores the credential for integration, expiring it after ttl. ttl <= 0
// means no expiry.
func (s *CredentialStore) Put(ctx context.Context, integration string, cred Credential, ttl time.Duration) error {
	raw, err := json.Marshal(cred)
	if err != nil {
		return errs.Internal("marshal credential", err)
	}
	if err := s.rdb.Set(ctx, credentialKey(integration), raw, ttl).Err(); err != nil {
		return errs.Internal("write credential", err)
	}
	return nil
}

// Fetch loads the credential required by spec.Auth for integration. The
// result is never retained by the caller beyond the single outbound call it
// authenticates (spec.md §5). A missing credential for an auth style other
// than AuthNone is reported as CodeUpstream, since it means the integration
// was never provisioned, not that the caller made a bad request.
func (s *CredentialStore) Fetch(ctx context.Context, spec command.IntegrationSpec) (Credential, error) {
	if spec.Auth == command.AuthNone {
		return Credential{}, nil
	}
	raw, err := s.rdb.Get(ctx, credentialKey(spec.Integration)).Bytes()
	if err == redis.Nil {
		return Credential{}, errs.New(errs.CodeUpstream, "no credential provisioned for integration").
			WithDetail("integration", spec.Integration)
	}
	if err != nil {
		return Credential{}, errs.Internal("read credential", err)
	}
	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return Credential{}, errs.Internal("decode credential", err)
	}
	return cred, nil
}

// Delete removes any stored credential for integration, used when an
// OAuth2 refresh is rejected and the stale token must not be reused.
func (s *CredentialStore) Delete(ctx context.Context, integration string) error {
	if err := s.rdb.Del(ctx, credentialKey(integration)).Err(); err != nil {
		return errs.Internal("delete credential", err)
	}
	return nil
}
