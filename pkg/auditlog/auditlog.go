// Package auditlog records state changes and autonomous decisions made by
// the Task Coordinator and Convergence Engine, with full rationale, for
// post-hoc analysis and debugging (SPEC_FULL.md SUPPLEMENTED FEATURES,
// grounded on original_source's audit_log.rs). Entries are held in a
// bounded in-memory ring buffer and additionally emitted through log/slog,
// matching the ambient logging idiom the rest of this module uses.
package auditlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is the audit log's severity, ordered Debug < Info < Decision <
// Warning < Error < Critical.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelDecision
	LevelWarning
	LevelError
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelDecision:
		return "decision"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Category groups audit events by subsystem.
type Category string

const (
	CategoryTask       Category = "task"
	CategoryGoal       Category = "goal"
	CategoryTrajectory Category = "trajectory"
	CategoryMemory     Category = "memory"
	CategorySystem     Category = "system"
	CategorySecurity   Category = "security"
	CategoryConfig     Category = "config"
)

// Action identifies the specific event/state-change type, trimmed to the
// Task Coordinator / Convergence Engine domain (the original's DAG/wave/
// swarm/template vocabulary belongs to a different orchestration model and
// has no analogue here).
type Action string

const (
	ActionTaskCreated          Action = "task_created"
	ActionTaskStateChanged     Action = "task_state_changed"
	ActionTaskCompleted        Action = "task_completed"
	ActionTaskFailed           Action = "task_failed"
	ActionTaskRetried          Action = "task_retried"
	ActionGoalEvaluated        Action = "goal_evaluated"
	ActionTrajectoryStarted    Action = "trajectory_started"
	ActionStrategySelected     Action = "strategy_selected"
	ActionObservationRecorded  Action = "observation_recorded"
	ActionAttractorClassified  Action = "attractor_classified"
	ActionSpecificationAmended Action = "specification_amended"
	ActionTrajectoryConverged  Action = "trajectory_converged"
	ActionTrajectoryTrapped    Action = "trajectory_trapped"
	ActionTrajectoryDecomposed Action = "trajectory_decomposed"
	ActionExtensionGranted     Action = "extension_granted"
	ActionExtensionDenied      Action = "extension_denied"
	ActionMemoryStored         Action = "memory_stored"
	ActionMemoryAccessed       Action = "memory_accessed"
	ActionGuardrailBlocked     Action = "guardrail_blocked"
	ActionGuardrailWarning     Action = "guardrail_warning"
	ActionConfigChanged        Action = "config_changed"
	ActionSecurityViolation    Action = "security_violation"
	ActionAccessDenied         Action = "access_denied"
	ActionAutonomousDecision   Action = "autonomous_decision"
)

// ActorKind classifies who/what caused an audit event.
type ActorKind string

const (
	ActorSystem   ActorKind = "system"
	ActorAgent    ActorKind = "agent"
	ActorUser     ActorKind = "user"
	ActorDaemon   ActorKind = "daemon"
	ActorExternal ActorKind = "external"
)

// Actor identifies the originator of an audit event.
type Actor struct {
	Kind       ActorKind
	AgentID    string
	Identifier string // user identifier, daemon name, or external source
}

func SystemActor() Actor                { return Actor{Kind: ActorSystem} }
func AgentActor(id, name string) Actor  { return Actor{Kind: ActorAgent, AgentID: id, Identifier: name} }
func UserActor(identifier string) Actor { return Actor{Kind: ActorUser, Identifier: identifier} }
func DaemonActor(name string) Actor     { return Actor{Kind: ActorDaemon, Identifier: name} }
func ExternalActor(source string) Actor { return Actor{Kind: ActorExternal, Identifier: source} }

// Rationale captures the reasoning behind an autonomous decision: what was
// decided, why, what else was considered, and the confidence in the call.
type Rationale struct {
	Decision     string
	Reasoning    string
	Alternatives []string
	Factors      map[string]string
	Confidence   float64
}

// NewRationale starts a Rationale with full confidence; chain With* to fill
// in the rest.
func NewRationale(decision, reasoning string) Rationale {
	return Rationale{Decision: decision, Reasoning: reasoning, Confidence: 1.0}
}

func (r Rationale) WithAlternative(alt string) Rationale {
	r.Alternatives = append(r.Alternatives, alt)
	return r
}

func (r Rationale) WithFactor(name, value string) Rationale {
	if r.Factors == nil {
		r.Factors = make(map[string]string)
	}
	r.Factors[name] = value
	return r
}

func (r Rationale) WithConfidence(confidence float64) Rationale {
	switch {
	case confidence < 0:
		confidence = 0
	case confidence > 1:
		confidence = 1
	}
	r.Confidence = confidence
	return r
}

// Entry is a single audit record.
type Entry struct {
	ID         string
	Timestamp  time.Time
	Level      Level
	Category   Category
	Action     Action
	Actor      Actor
	EntityID   string
	EntityType string
	Message    string
	PrevState  string
	NewState   string
	Rationale  *Rationale
	Metadata   map[string]string
}

func (e Entry) WithEntity(id, entityType string) Entry {
	e.EntityID = id
	e.EntityType = entityType
	return e
}

func (e Entry) WithStateChange(previous, next string) Entry {
	e.PrevState = previous
	e.NewState = next
	return e
}

func (e Entry) WithRationale(r Rationale) Entry {
	e.Rationale = &r
	return e
}

func (e Entry) WithMetadata(key, value string) Entry {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// Filter narrows a Query. A nil/zero field means "don't filter on this".
type Filter struct {
	MinLevel *Level
	Category *Category
	Action   *Action
	EntityID string
	From     *time.Time
	To       *time.Time
	Limit    int
}

func (f Filter) matches(e Entry) bool {
	if f.MinLevel != nil && e.Level < *f.MinLevel {
		return false
	}
	if f.Category != nil && e.Category != *f.Category {
		return false
	}
	if f.Action != nil && e.Action != *f.Action {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}

// Stats summarizes the current in-memory buffer.
type Stats struct {
	TotalEntries    int
	ByLevel         map[string]int
	ByCategory      map[string]int
	OldestEntry     *time.Time
	NewestEntry     *time.Time
	DecisionsLogged int
}

// Config controls retention and filtering behavior.
type Config struct {
	MaxEntries      int
	MinLevel        Level
	LogRationale    bool
	RedactSensitive bool
}

// DefaultConfig mirrors AuditLogConfig::default(). persist_to_db has no
// field here: the tasks and trajectories an entry describes are stored by
// pkg/taskstore and by pkg/trajectorystore (the convergence
// TrajectoryRepository); this buffer is the fast in-memory trail for recent
// rationale and state changes.
func DefaultConfig() Config {
	return Config{
		MaxEntries:      10000,
		MinLevel:        LevelInfo,
		LogRationale:    true,
		RedactSensitive: true,
	}
}

// Service is a bounded, thread-safe, queryable audit trail.
type Service struct {
	config Config

	mu      sync.RWMutex
	entries []Entry // ring buffer: oldest at index 0, newest at len-1
}

func New(config Config) *Service {
	return &Service{config: config}
}

func NewWithDefaults() *Service {
	return New(DefaultConfig())
}

// Log records entry, enforcing the level threshold, max-entries eviction,
// and optional sensitive-value redaction, and mirrors it through slog.
func (s *Service) Log(_ context.Context, entry Entry) {
	if entry.Level < s.config.MinLevel {
		return
	}

	if s.config.RedactSensitive {
		entry.Message = Redact(entry.Message)
		if entry.Rationale != nil {
			redacted := *entry.Rationale
			redacted.Reasoning = Redact(redacted.Reasoning)
			entry.Rationale = &redacted
		}
	}

	s.mu.Lock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if len(s.entries) >= s.config.MaxEntries && s.config.MaxEntries > 0 {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, entry)
	s.mu.Unlock()

	logAttrs := []any{
		"category", string(entry.Category),
		"action", string(entry.Action),
		"entity_id", entry.EntityID,
	}
	switch entry.Level {
	case LevelDebug:
		slog.Debug(entry.Message, logAttrs...)
	case LevelWarning:
		slog.Warn(entry.Message, logAttrs...)
	case LevelError, LevelCritical:
		slog.Error(entry.Message, logAttrs...)
	default:
		slog.Info(entry.Message, logAttrs...)
	}
}

func newEntry(level Level, category Category, action Action, actor Actor, message string) Entry {
	return Entry{Level: level, Category: category, Action: action, Actor: actor, Message: message}
}

// Info logs a system-originated informational event.
func (s *Service) Info(ctx context.Context, category Category, action Action, message string) {
	s.Log(ctx, newEntry(LevelInfo, category, action, SystemActor(), message))
}

// Warn logs a system-originated warning.
func (s *Service) Warn(ctx context.Context, category Category, action Action, message string) {
	s.Log(ctx, newEntry(LevelWarning, category, action, SystemActor(), message))
}

// Error logs a system-originated error.
func (s *Service) Error(ctx context.Context, category Category, action Action, message string) {
	s.Log(ctx, newEntry(LevelError, category, action, SystemActor(), message))
}

// LogDecision records an autonomous decision with its rationale; suppressed
// entirely when Config.LogRationale is false.
func (s *Service) LogDecision(ctx context.Context, category Category, actor Actor, message string, rationale Rationale) {
	if !s.config.LogRationale {
		return
	}
	entry := newEntry(LevelDecision, category, ActionAutonomousDecision, actor, message).WithRationale(rationale)
	s.Log(ctx, entry)
}

// LogStateChange records an entity transitioning from previous to next.
func (s *Service) LogStateChange(ctx context.Context, category Category, action Action, actor Actor, entityID, entityType, previous, next string) {
	entry := newEntry(LevelInfo, category, action, actor, "state changed from "+previous+" to "+next).
		WithEntity(entityID, entityType).
		WithStateChange(previous, next)
	s.Log(ctx, entry)
}

// Query returns entries matching filter, newest first, truncated to
// Filter.Limit if set.
func (s *Service) Query(filter Filter) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if filter.matches(s.entries[i]) {
			results = append(results, s.entries[i])
		}
	}
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results
}

// EntityHistory returns every entry recorded against entityID, newest first.
func (s *Service) EntityHistory(entityID string) []Entry {
	return s.Query(Filter{EntityID: entityID})
}

// RecentDecisions returns the most recent Decision-or-above entries.
func (s *Service) RecentDecisions(limit int) []Entry {
	minLevel := LevelDecision
	return s.Query(Filter{MinLevel: &minLevel, Limit: limit})
}

// Stats summarizes the current buffer contents.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalEntries: len(s.entries),
		ByLevel:      make(map[string]int),
		ByCategory:   make(map[string]int),
	}
	for _, e := range s.entries {
		stats.ByLevel[e.Level.String()]++
		stats.ByCategory[string(e.Category)]++
		if e.Rationale != nil {
			stats.DecisionsLogged++
		}
	}
	if len(s.entries) > 0 {
		oldest := s.entries[0].Timestamp
		newest := s.entries[len(s.entries)-1].Timestamp
		stats.OldestEntry = &oldest
		stats.NewestEntry = &newest
	}
	return stats
}

// Clear empties the buffer. Intended for tests.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}
