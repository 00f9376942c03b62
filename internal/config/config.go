package config

import (
	"time"

	"github.com/joho/godotenv"
)

// AgentConfig is one entry in the agent list: the descriptor fields the
// orchestrator needs to register an agent plus opaque builder arguments
// (spec.md §6 "agent list with their builder arguments").
type AgentConfig struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Kind         string         `json:"kind"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Args         map[string]any `json:"args,omitempty"`
}

// CredentialConfig configures the credential store backing the Generic HTTP
// Connector's OAuth2 token cache (spec.md §5 "Credentials are held in a
// dedicated store").
type CredentialConfig struct {
	RedisAddr     string        `json:"redis_addr"`
	RedisDB       int           `json:"redis_db"`
	TokenCacheTTL time.Duration `json:"token_cache_ttl"`
}

// Config is the single document the orchestrator reads at process start; it
// is never reloaded at runtime (spec.md §6 "No runtime reconfiguration of
// agents after registration").
type Config struct {
	// HTTPAddr is the bind address for the HTTP Edge.
	HTTPAddr string

	// DocumentStoreRoot is the parent directory under which each agent gets
	// its own per-entity JSON document directory.
	DocumentStoreRoot string

	// AuditJSONLPath is the append-only audit JSONL file path.
	AuditJSONLPath string

	// PostgresDSN is the relational store connection string.
	PostgresDSN string

	// RegistryPath is the Integration Registry JSON document path.
	RegistryPath string

	// RegistryReloadInterval, if non-zero, enables periodic hot-reload
	// polling of RegistryPath (spec.md §4.6 "the registry can be reloaded
	// atomically").
	RegistryReloadInterval time.Duration

	// Agents is the list of agents to build and register at startup.
	Agents []AgentConfig

	// Credentials configures the connector's credential store.
	Credentials CredentialConfig

	// StopDeadline bounds orchestrator shutdown (spec.md §4.3 stop_all).
	StopDeadline time.Duration

	// JWTSigningKey authenticates actors on /command and /event.
	JWTSigningKey string

	// LogLevel and LogFormat configure every component's Logger.
	LogLevel  string
	LogFormat string
}

// FromEnv builds a Config from environment variables, applying the defaults
// a local/dev deployment would use. It first loads a ".env" file from the
// working directory if one exists; real environment variables always take
// precedence over values it contains.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:               GetEnv("HTTP_ADDR", ":8080"),
		DocumentStoreRoot:      GetEnv("DOCUMENT_STORE_ROOT", "./data/agents"),
		AuditJSONLPath:         GetEnv("AUDIT_JSONL_PATH", "./data/audit/audit.jsonl"),
		PostgresDSN:            GetEnvOrSecretFile("POSTGRES_DSN", "postgres://localhost:5432/agentmesh?sslmode=disable"),
		RegistryPath:           GetEnv("REGISTRY_PATH", "./data/registry.json"),
		RegistryReloadInterval: GetEnvDuration("REGISTRY_RELOAD_INTERVAL", 30*time.Second),
		Credentials: CredentialConfig{
			RedisAddr:     GetEnv("REDIS_ADDR", "localhost:6379"),
			RedisDB:       GetEnvInt("REDIS_DB", 0),
			TokenCacheTTL: GetEnvDuration("TOKEN_CACHE_TTL", 10*time.Minute),
		},
		StopDeadline:  GetEnvDuration("STOP_DEADLINE", 30*time.Second),
		JWTSigningKey: GetEnvOrSecretFile("JWT_SIGNING_KEY", ""),
		LogLevel:      GetEnv("LOG_LEVEL", "info"),
		LogFormat:     GetEnv("LOG_FORMAT", "json"),
	}
}
