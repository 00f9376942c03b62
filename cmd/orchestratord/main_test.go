package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentmesh/platform/agent"
	"github.com/agentmesh/platform/internal/config"
	"github.com/agentmesh/platform/internal/logging"
	"github.com/agentmesh/platform/orchestrator"
)

func TestRegisterAgentsRejectsUnknownKind(t *testing.T) {
	orch := orchestrator.New(agent.NewBus(), logging.NewFromEnv("test"))
	cfg := config.Config{Agents: []config.AgentConfig{{ID: "x", Kind: "ghost"}}}
	err := registerAgents(orch, cfg)
	require.Error(t, err)
}

func TestRegisterAgentsAcceptsKnownKinds(t *testing.T) {
	orch := orchestrator.New(agent.NewBus(), logging.NewFromEnv("test"))
	root := t.TempDir()
	cfg := config.Config{
		DocumentStoreRoot: root,
		Agents: []config.AgentConfig{
			{ID: "market-1", Name: "market", Kind: "market"},
			{ID: "field-1", Name: "field", Kind: "field"},
		},
	}
	require.NoError(t, registerAgents(orch, cfg))
}

func TestJoinDataDirIncludesAgentAndSubdir(t *testing.T) {
	got := joinDataDir("/data", "market-1", "pools")
	require.Contains(t, got, "market-1")
	require.Contains(t, got, "pools")
}
