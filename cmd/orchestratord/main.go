// Command orchestratord is the process entry point: it loads Config, opens
// every store, builds the bus and Orchestrator, registers the configured
// agents, wires the Integration Fabric and HTTP Edge, and runs until
// SIGINT/SIGTERM, mirroring the teacher's infrastructure/service.Run
// lifecycle (config -> dependencies -> factory -> start -> serve -> drain).
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentmesh/platform/agent"
	"github.com/agentmesh/platform/examples/fieldagent"
	"github.com/agentmesh/platform/examples/marketagent"
	"github.com/agentmesh/platform/httpapi"
	"github.com/agentmesh/platform/integration"
	"github.com/agentmesh/platform/internal/config"
	"github.com/agentmesh/platform/internal/logging"
	"github.com/agentmesh/platform/internal/store"
	"github.com/agentmesh/platform/orchestrator"
)

func main() {
	cfg := config.FromEnv()
	logger := logging.New("orchestratord", cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	if err := store.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatalf("apply schema migrations: %v", err)
	}
	relational, err := store.OpenRelationalStore(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open relational store: %v", err)
	}
	defer relational.Close()

	jsonl, err := store.NewJSONLWriter(cfg.AuditJSONLPath)
	if err != nil {
		log.Fatalf("open audit jsonl: %v", err)
	}
	defer jsonl.Close()

	bus := agent.NewBus()
	orch := orchestrator.New(bus, logger)

	if err := registerAgents(orch, cfg); err != nil {
		log.Fatalf("register agents: %v", err)
	}
	if err := orch.StartAll(ctx); err != nil {
		log.Fatalf("start agents: %v", err)
	}

	reg := integration.NewRegistry(cfg.RegistryPath)
	if err := reg.Load(); err != nil {
		log.Fatalf("load integration registry: %v", err)
	}
	reloader, err := integration.StartHotReload(reg, cfg.RegistryReloadInterval, logger)
	if err != nil {
		log.Fatalf("start registry hot-reload: %v", err)
	}
	if reloader != nil {
		defer reloader.Stop()
	}

	credStore, err := integration.NewCredentialStore(ctx, cfg.Credentials.RedisAddr, cfg.Credentials.RedisDB)
	if err != nil {
		log.Fatalf("open credential store: %v", err)
	}
	defer credStore.Close()

	connector := integration.NewConnector(credStore, 30*time.Second)
	auditLogger := integration.NewAuditLogger(relational, jsonl, bus, logger)
	router := integration.NewRouter(reg, connector, auditLogger, 15*time.Second, logger)
	events := integration.NewEventIntake(relational, bus, logger)

	httpCfg := httpapi.Config{Addr: cfg.HTTPAddr, SigningKey: cfg.JWTSigningKey}
	server := httpapi.New(httpCfg, router, events, orch, logger)

	go func() {
		logger.WithFields(map[string]interface{}{"addr": cfg.HTTPAddr}).Info("HTTP Edge listening")
		if err := server.ListenAndServe(); err != nil {
			log.Fatalf("HTTP Edge error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.StopDeadline)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Warn("HTTP Edge shutdown error")
	}
	if err := orch.StopAll(cfg.StopDeadline); err != nil {
		logger.WithError(err).Warn("agent shutdown did not complete within the deadline")
	}
	logger.Info("shutdown complete")
}

// registerAgents builds the Orchestrator's Factory for each configured
// agent. Only "market" and "field" kinds are known; other kinds fail
// registration loudly rather than silently no-op (spec.md §4.3 "the
// Orchestrator is the only component permitted to construct agents").
func registerAgents(orch *orchestrator.Orchestrator, cfg config.Config) error {
	for _, a := range cfg.Agents {
		desc := agent.Descriptor{ID: a.ID, Name: a.Name, Kind: agent.Kind(a.Kind), Config: a.Args, Dependencies: a.Dependencies}
		switch a.Kind {
		case "market":
			poolsDir := joinDataDir(cfg.DocumentStoreRoot, a.ID, "pools")
			positionsDir := joinDataDir(cfg.DocumentStoreRoot, a.ID, "positions")
			if err := orch.Register(desc, func(d agent.Descriptor, b *agent.Bus) (agent.Agent, error) {
				return marketagent.New(d, b, poolsDir, positionsDir)
			}); err != nil {
				return err
			}
		case "field":
			recordsDir := joinDataDir(cfg.DocumentStoreRoot, a.ID, "records")
			if err := orch.Register(desc, func(d agent.Descriptor, b *agent.Bus) (agent.Agent, error) {
				return fieldagent.New(d, b, recordsDir)
			}); err != nil {
				return err
			}
		default:
			return errUnknownAgentKind(a.Kind)
		}
	}
	return nil
}

func joinDataDir(root, agentID, sub string) string {
	return root + string(os.PathSeparator) + agentID + string(os.PathSeparator) + sub
}

type errUnknownAgentKind string

func (e errUnknownAgentKind) Error() string {
	return "unknown agent kind: " + string(e)
}
