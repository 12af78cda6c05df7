// Package guardrails enforces runtime safety limits above the convergence
// budget model: hourly token ceilings, concurrent task/agent caps,
// decomposition-depth limits, blocked tool/file patterns, and an optional
// cost-in-cents budget. The Task Coordinator consults it before moving a
// task to Running; the Convergence Engine does not consult it
// (SPEC_FULL.md SUPPLEMENTED FEATURES, grounded on
// original_source's guardrails.rs).
package guardrails

import (
	"fmt"
	"strings"
	"sync"
)

// Config holds the configurable safety limits. Zero-value Config is not
// usable directly; use DefaultConfig.
type Config struct {
	MaxTokensPerHour      uint64
	MaxConcurrentTasks    int
	MaxConcurrentAgents   int
	MaxDecompositionDepth int
	MaxTaskRetries        int
	MaxTurnsPerInvocation int
	BlockedTools          []string
	BlockedFiles          []string
	EnforceBudget         bool
	BudgetLimitCents      float64
}

// DefaultConfig mirrors GuardrailsConfig::default().
func DefaultConfig() Config {
	return Config{
		MaxTokensPerHour:      1_000_000,
		MaxConcurrentTasks:    10,
		MaxConcurrentAgents:   4,
		MaxDecompositionDepth: 3,
		MaxTaskRetries:        3,
		MaxTurnsPerInvocation: 50,
		BlockedTools:          nil,
		BlockedFiles:          []string{".env", "*.key", "*.pem", "**/secrets/**"},
		EnforceBudget:         false,
		BudgetLimitCents:      10000.0,
	}
}

// ResultKind classifies a Result.
type ResultKind int

const (
	Allowed ResultKind = iota
	Blocked
	Warning
)

// Result is the outcome of a guardrail check: Allowed, Blocked(reason), or
// Warning(reason).
type Result struct {
	Kind   ResultKind
	Reason string
}

func allowed() Result              { return Result{Kind: Allowed} }
func blocked(reason string) Result { return Result{Kind: Blocked, Reason: reason} }
func warning(reason string) Result { return Result{Kind: Warning, Reason: reason} }
func (r Result) IsAllowed() bool   { return r.Kind == Allowed || r.Kind == Warning }
func (r Result) IsBlocked() bool   { return r.Kind == Blocked }

// Guardrails wraps Config and RuntimeMetrics with the actual checks, plus
// mutex-guarded registries of in-flight tasks/agents for the
// check-and-register atomic operations.
//
// Go's sync/atomic has no compare-and-swap-with-arbitrary-predicate
// primitive, so the token-bucket CAS loop described in the original is
// expressed here as a single mutex-guarded critical section in
// RuntimeMetrics rather than a literal atomic CAS retry loop; the
// concurrency/registration checks use the same mutex-held-for-the-duration
// pattern as the original's check_and_register_* methods to avoid a
// check-then-act race.
type Guardrails struct {
	config  Config
	metrics *RuntimeMetrics

	mu            sync.Mutex
	currentTasks  map[string]bool
	currentAgents map[string]bool
}

func New(config Config) *Guardrails {
	return &Guardrails{
		config:        config,
		metrics:       NewRuntimeMetrics(),
		currentTasks:  make(map[string]bool),
		currentAgents: make(map[string]bool),
	}
}

func NewWithDefaults() *Guardrails {
	return New(DefaultConfig())
}

// Metrics returns the shared RuntimeMetrics, e.g. for the hourly reset daemon.
func (g *Guardrails) Metrics() *RuntimeMetrics {
	return g.metrics
}

// CheckAndRegisterTask atomically checks the concurrent-task limit and, if
// allowed, registers taskID as running — eliminating the check-then-act
// race a separate check+register pair would have.
func (g *Guardrails) CheckAndRegisterTask(taskID string) Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.currentTasks[taskID] {
		return blocked("task already running")
	}
	if len(g.currentTasks) >= g.config.MaxConcurrentTasks {
		return blocked(fmt.Sprintf("maximum concurrent tasks (%d) reached", g.config.MaxConcurrentTasks))
	}

	g.currentTasks[taskID] = true
	g.metrics.RecordTaskStarted()
	return allowed()
}

// RegisterTaskEnd marks taskID finished and records success/failure.
func (g *Guardrails) RegisterTaskEnd(taskID string, success bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.currentTasks, taskID)
	if success {
		g.metrics.RecordTaskCompleted()
	} else {
		g.metrics.RecordTaskFailed()
	}
}

// CheckAndRegisterAgent atomically checks the concurrent-agent limit and
// registers agentID as spawned.
func (g *Guardrails) CheckAndRegisterAgent(agentID string) Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.currentAgents[agentID] {
		return blocked(fmt.Sprintf("agent %q already running", agentID))
	}
	if len(g.currentAgents) >= g.config.MaxConcurrentAgents {
		return blocked(fmt.Sprintf("maximum concurrent agents (%d) reached", g.config.MaxConcurrentAgents))
	}

	g.currentAgents[agentID] = true
	g.metrics.RecordAgentSpawned()
	return allowed()
}

// RegisterAgentEnd marks agentID finished.
func (g *Guardrails) RegisterAgentEnd(agentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.currentAgents, agentID)
}

// CheckTool blocks a case-insensitive match against Config.BlockedTools.
func (g *Guardrails) CheckTool(toolName string) Result {
	for _, blockedName := range g.config.BlockedTools {
		if strings.EqualFold(toolName, blockedName) {
			return blocked(fmt.Sprintf("tool %q is blocked", toolName))
		}
	}
	return allowed()
}

// CheckFilePath blocks a path matching any Config.BlockedFiles glob.
func (g *Guardrails) CheckFilePath(path string) Result {
	for _, pattern := range g.config.BlockedFiles {
		if matchesPattern(path, pattern) {
			return blocked(fmt.Sprintf("access to %q is blocked by pattern %q", path, pattern))
		}
	}
	return allowed()
}

// CheckAndRecordTokens atomically checks the hourly token ceiling and, if
// the request fits, records it. Returns Blocked if the addition would
// exceed the limit (counter left unchanged), Warning if the new total
// exceeds 80% of the limit, Allowed otherwise.
func (g *Guardrails) CheckAndRecordTokens(requested uint64) Result {
	limit := g.config.MaxTokensPerHour
	newTotal, ok := g.metrics.CheckAndRecordTokens(requested, limit)
	if !ok {
		return blocked(fmt.Sprintf("token limit (%d/hour) would be exceeded", limit))
	}

	threshold := (limit * 80) / 100
	if newTotal > threshold {
		return warning(fmt.Sprintf("approaching token limit: %d/%d used", newTotal, limit))
	}
	return allowed()
}

// CheckBudget blocks if EnforceBudget is set and the addition would exceed
// BudgetLimitCents.
func (g *Guardrails) CheckBudget(additionalCents float64) Result {
	if !g.config.EnforceBudget {
		return allowed()
	}

	current := g.metrics.GetCostCents()
	if current+additionalCents > g.config.BudgetLimitCents {
		return blocked(fmt.Sprintf("budget limit ($%.2f) would be exceeded", g.config.BudgetLimitCents/100.0))
	}
	return allowed()
}

// CheckDecompositionDepth blocks once currentDepth reaches
// MaxDecompositionDepth.
func (g *Guardrails) CheckDecompositionDepth(currentDepth int) Result {
	if currentDepth >= g.config.MaxDecompositionDepth {
		return blocked(fmt.Sprintf("maximum decomposition depth (%d) reached", g.config.MaxDecompositionDepth))
	}
	return allowed()
}

// RecordCost accumulates additionalCents onto the running cost total.
func (g *Guardrails) RecordCost(cents float64) {
	g.metrics.RecordCost(cents)
}

// matchesPattern implements the same small glob dialect as the original:
// "**/suffix" matches anywhere in path, "*.ext" matches by extension,
// anything else matches exactly or as a path suffix.
func matchesPattern(path, pattern string) bool {
	if suffix, ok := strings.CutPrefix(pattern, "**/"); ok {
		return strings.Contains(path, strings.TrimLeft(suffix, "*"))
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(path, pattern[1:])
	}
	return path == pattern || strings.HasSuffix(path, pattern)
}
