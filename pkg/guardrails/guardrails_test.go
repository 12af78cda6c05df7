package guardrails

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAndRegisterTaskLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrentTasks = 2
	g := New(cfg)

	assert.True(t, g.CheckAndRegisterTask("t1").IsAllowed())
	assert.True(t, g.CheckAndRegisterTask("t2").IsAllowed())

	// Third task blocked — limit reached.
	assert.True(t, g.CheckAndRegisterTask("t3").IsBlocked())

	// Duplicate blocked.
	assert.True(t, g.CheckAndRegisterTask("t1").IsBlocked())

	// Freeing a slot allows the third task.
	g.RegisterTaskEnd("t1", true)
	assert.True(t, g.CheckAndRegisterTask("t3").IsAllowed())
}

func TestCheckAndRegisterAgentLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrentAgents = 2
	g := New(cfg)

	assert.True(t, g.CheckAndRegisterAgent("a1").IsAllowed())
	assert.True(t, g.CheckAndRegisterAgent("a2").IsAllowed())

	assert.True(t, g.CheckAndRegisterAgent("a3").IsBlocked())
	assert.True(t, g.CheckAndRegisterAgent("a1").IsBlocked())

	g.RegisterAgentEnd("a1")
	assert.True(t, g.CheckAndRegisterAgent("a3").IsAllowed())
}

func TestCheckTool(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockedTools = []string{"rm", "sudo"}
	g := New(cfg)

	assert.True(t, g.CheckTool("read").IsAllowed())
	assert.True(t, g.CheckTool("rm").IsBlocked())
	assert.True(t, g.CheckTool("SUDO").IsBlocked())
}

func TestCheckFilePath(t *testing.T) {
	g := New(DefaultConfig())

	assert.True(t, g.CheckFilePath("src/main.go").IsAllowed())
	assert.True(t, g.CheckFilePath(".env").IsBlocked())
	assert.True(t, g.CheckFilePath("config/secrets/api.key").IsBlocked())
}

func TestCheckAndRecordTokensAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTokensPerHour = 1000
	g := New(cfg)

	result := g.CheckAndRecordTokens(100)
	assert.Equal(t, Allowed, result.Kind)
	assert.Equal(t, uint64(100), g.Metrics().GetTokensThisHour())
	assert.Equal(t, uint64(100), g.Metrics().GetTotalTokens())
}

func TestCheckAndRecordTokensWarning(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTokensPerHour = 1000
	g := New(cfg)

	// 801 > 800 (80% of 1000).
	result := g.CheckAndRecordTokens(801)
	assert.Equal(t, Warning, result.Kind)
	assert.Equal(t, uint64(801), g.Metrics().GetTokensThisHour())
}

func TestCheckAndRecordTokensBlocked(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTokensPerHour = 1000
	g := New(cfg)

	g.Metrics().RecordTokens(900)

	result := g.CheckAndRecordTokens(200)
	assert.True(t, result.IsBlocked())
	// Counter unchanged, not 1100.
	assert.Equal(t, uint64(900), g.Metrics().GetTokensThisHour())
}

func TestCheckAndRecordTokensExactLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTokensPerHour = 1000
	g := New(cfg)

	result := g.CheckAndRecordTokens(1000)
	assert.Equal(t, Warning, result.Kind)
	assert.Equal(t, uint64(1000), g.Metrics().GetTokensThisHour())

	result = g.CheckAndRecordTokens(1)
	assert.True(t, result.IsBlocked())
	assert.Equal(t, uint64(1000), g.Metrics().GetTokensThisHour())
}

func TestRuntimeMetricsCheckAndRecordTokens(t *testing.T) {
	m := NewRuntimeMetrics()

	newTotal, ok := m.CheckAndRecordTokens(500, 1000)
	require.True(t, ok)
	assert.Equal(t, uint64(500), newTotal)
	assert.Equal(t, uint64(500), m.GetTokensThisHour())
	assert.Equal(t, uint64(500), m.GetTotalTokens())

	newTotal, ok = m.CheckAndRecordTokens(400, 1000)
	require.True(t, ok)
	assert.Equal(t, uint64(900), newTotal)
	assert.Equal(t, uint64(900), m.GetTokensThisHour())

	// Would exceed limit — rejected, current value returned unchanged.
	newTotal, ok = m.CheckAndRecordTokens(200, 1000)
	assert.False(t, ok)
	assert.Equal(t, uint64(900), newTotal)
	assert.Equal(t, uint64(900), m.GetTokensThisHour())
}

func TestCheckBudgetNotEnforcedByDefault(t *testing.T) {
	g := New(DefaultConfig())
	assert.True(t, g.CheckBudget(1_000_000).IsAllowed())
}

func TestCheckBudgetEnforced(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnforceBudget = true
	cfg.BudgetLimitCents = 1000
	g := New(cfg)

	assert.True(t, g.CheckBudget(500).IsAllowed())
	g.RecordCost(900)
	assert.True(t, g.CheckBudget(200).IsBlocked())
}

func TestCheckDecompositionDepth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDecompositionDepth = 3
	g := New(cfg)

	assert.True(t, g.CheckDecompositionDepth(0).IsAllowed())
	assert.True(t, g.CheckDecompositionDepth(2).IsAllowed())
	assert.True(t, g.CheckDecompositionDepth(3).IsBlocked())
}

func TestResetDaemonResetsHourlyNotTotal(t *testing.T) {
	m := NewRuntimeMetrics()
	m.RecordTokens(5000)
	require.Equal(t, uint64(5000), m.GetTokensThisHour())

	daemon := NewResetDaemon(m, ResetDaemonConfig{ResetInterval: 20 * time.Millisecond})
	daemon.Start(context.Background())

	assert.Eventually(t, func() bool {
		return m.GetTokensThisHour() == 0
	}, 500*time.Millisecond, 10*time.Millisecond)

	assert.Equal(t, uint64(5000), m.GetTotalTokens())
	daemon.Stop()
}

func TestResetDaemonConfigDefault(t *testing.T) {
	assert.Equal(t, time.Hour, DefaultResetDaemonConfig().ResetInterval)
}
