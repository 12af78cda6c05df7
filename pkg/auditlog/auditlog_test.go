package auditlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelOrdering(t *testing.T) {
	assert.Less(t, int(LevelDebug), int(LevelInfo))
	assert.Less(t, int(LevelInfo), int(LevelDecision))
	assert.Less(t, int(LevelDecision), int(LevelWarning))
	assert.Less(t, int(LevelWarning), int(LevelError))
	assert.Less(t, int(LevelError), int(LevelCritical))
}

func TestEntryBuilder(t *testing.T) {
	entry := newEntry(LevelInfo, CategoryTask, ActionTaskCreated, SystemActor(), "task created").
		WithEntity("task-1", "task").
		WithMetadata("priority", "high")

	assert.Equal(t, LevelInfo, entry.Level)
	assert.Equal(t, CategoryTask, entry.Category)
	assert.Equal(t, "task-1", entry.EntityID)
	assert.Equal(t, "high", entry.Metadata["priority"])
}

func TestStateChangeEntry(t *testing.T) {
	entry := newEntry(LevelInfo, CategoryTask, ActionTaskStateChanged, SystemActor(), "changed").
		WithStateChange("pending", "running")

	assert.Equal(t, "pending", entry.PrevState)
	assert.Equal(t, "running", entry.NewState)
}

func TestDecisionRationale(t *testing.T) {
	rationale := NewRationale("grant extension", "task complexity warrants additional subtasks").
		WithAlternative("deny extension").
		WithAlternative("restructure task").
		WithFactor("current_depth", "3").
		WithFactor("subtask_count", "8").
		WithConfidence(0.85)

	assert.Len(t, rationale.Alternatives, 2)
	assert.Len(t, rationale.Factors, 2)
	assert.InDelta(t, 0.85, rationale.Confidence, 0.001)
}

func TestRationaleConfidenceClamped(t *testing.T) {
	assert.Equal(t, 1.0, NewRationale("d", "r").WithConfidence(1.5).Confidence)
	assert.Equal(t, 0.0, NewRationale("d", "r").WithConfidence(-1).Confidence)
}

func TestFilterMatches(t *testing.T) {
	entry := newEntry(LevelInfo, CategoryTask, ActionTaskCreated, SystemActor(), "test")

	taskCat := CategoryTask
	assert.True(t, (Filter{Category: &taskCat}).matches(entry))

	goalCat := CategoryGoal
	assert.False(t, (Filter{Category: &goalCat}).matches(entry))

	warnLevel := LevelWarning
	assert.False(t, (Filter{MinLevel: &warnLevel}).matches(entry))
}

func TestServiceLogAndQuery(t *testing.T) {
	svc := NewWithDefaults()
	ctx := context.Background()

	svc.Info(ctx, CategoryTask, ActionTaskCreated, "task 1 created")
	svc.Info(ctx, CategoryTask, ActionTaskCompleted, "task 1 completed")
	svc.Info(ctx, CategoryGoal, ActionGoalEvaluated, "goal evaluated")

	all := svc.Query(Filter{})
	require.Len(t, all, 3)

	taskCat := CategoryTask
	tasks := svc.Query(Filter{Category: &taskCat})
	assert.Len(t, tasks, 2)
}

func TestQueryOrdersNewestFirst(t *testing.T) {
	svc := NewWithDefaults()
	ctx := context.Background()

	svc.Info(ctx, CategoryTask, ActionTaskCreated, "first")
	svc.Info(ctx, CategoryTask, ActionTaskCreated, "second")

	results := svc.Query(Filter{})
	require.Len(t, results, 2)
	assert.Equal(t, "second", results[0].Message)
	assert.Equal(t, "first", results[1].Message)
}

func TestLogDecision(t *testing.T) {
	svc := NewWithDefaults()
	ctx := context.Background()

	rationale := NewRationale("accept", "meets criteria").WithConfidence(0.9)
	svc.LogDecision(ctx, CategoryTrajectory, SystemActor(), "extension granted", rationale)

	decisions := svc.RecentDecisions(10)
	require.Len(t, decisions, 1)
	require.NotNil(t, decisions[0].Rationale)
}

func TestLogDecisionSuppressedWhenRationaleDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogRationale = false
	svc := New(cfg)
	ctx := context.Background()

	svc.LogDecision(ctx, CategoryTrajectory, SystemActor(), "x", NewRationale("d", "r"))
	assert.Empty(t, svc.Query(Filter{}))
}

func TestMaxEntriesEnforcement(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntries = 5
	svc := New(cfg)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		svc.Info(ctx, CategorySystem, ActionConfigChanged, "entry")
	}

	stats := svc.Stats()
	assert.Equal(t, 5, stats.TotalEntries)
}

func TestMinLevelThresholdSuppressesBelowLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinLevel = LevelWarning
	svc := New(cfg)
	ctx := context.Background()

	svc.Info(ctx, CategorySystem, ActionConfigChanged, "should be dropped")
	svc.Warn(ctx, CategorySystem, ActionConfigChanged, "should be kept")

	all := svc.Query(Filter{})
	require.Len(t, all, 1)
	assert.Equal(t, "should be kept", all[0].Message)
}

func TestActorHelpers(t *testing.T) {
	assert.Equal(t, ActorSystem, SystemActor().Kind)

	agent := AgentActor("a1", "test-agent")
	assert.Equal(t, ActorAgent, agent.Kind)
	assert.Equal(t, "test-agent", agent.Identifier)

	user := UserActor("admin")
	assert.Equal(t, ActorUser, user.Kind)

	daemon := DaemonActor("reset-daemon")
	assert.Equal(t, ActorDaemon, daemon.Kind)
}

func TestRedactMasksApiKeysAndPasswords(t *testing.T) {
	out := Redact(`api_key: "sk-abcdefghijklmnopqrstuvwxyz12345"`)
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, "sk-abcdefghijklmnopqrstuvwxyz12345")

	out = Redact(`password=hunter22222`)
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, "hunter22222")
}

func TestRedactLeavesOrdinaryTextAlone(t *testing.T) {
	text := "all acceptance tests passed, build succeeded"
	assert.Equal(t, text, Redact(text))
}

func TestLogRedactsSensitiveMessageWhenEnabled(t *testing.T) {
	svc := NewWithDefaults()
	ctx := context.Background()

	svc.Info(ctx, CategorySecurity, ActionSecurityViolation, `token: "abcdefghijklmnopqrstuvwx"`)
	results := svc.Query(Filter{})
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Message, "[REDACTED]")
}

func TestEntityHistory(t *testing.T) {
	svc := NewWithDefaults()
	ctx := context.Background()

	svc.Log(ctx, newEntry(LevelInfo, CategoryTask, ActionTaskCreated, SystemActor(), "t1").WithEntity("t1", "task"))
	svc.Log(ctx, newEntry(LevelInfo, CategoryTask, ActionTaskCompleted, SystemActor(), "t1 done").WithEntity("t1", "task"))
	svc.Log(ctx, newEntry(LevelInfo, CategoryTask, ActionTaskCreated, SystemActor(), "t2").WithEntity("t2", "task"))

	history := svc.EntityHistory("t1")
	assert.Len(t, history, 2)
}

func TestClear(t *testing.T) {
	svc := NewWithDefaults()
	ctx := context.Background()
	svc.Info(ctx, CategorySystem, ActionConfigChanged, "x")
	require.Len(t, svc.Query(Filter{}), 1)

	svc.Clear()
	assert.Empty(t, svc.Query(Filter{}))
}
