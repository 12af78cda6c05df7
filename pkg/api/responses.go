package api

import "time"

// TaskResponse is the HTTP representation of a task.Task.
type TaskResponse struct {
	ID                 string     `json:"id"`
	Summary            string     `json:"summary"`
	Description        string     `json:"description"`
	AgentType          string     `json:"agent_type"`
	BasePriority       int        `json:"base_priority"`
	CalculatedPriority float64    `json:"calculated_priority"`
	Status             string     `json:"status"`
	Dependencies       []string   `json:"dependencies,omitempty"`
	RetryCount         int        `json:"retry_count"`
	MaxRetries         int        `json:"max_retries"`
	Result             string     `json:"result,omitempty"`
	Error              string     `json:"error,omitempty"`
	SubmittedAt        time.Time  `json:"submitted_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	ParentTaskID       *string    `json:"parent_task_id,omitempty"`
}

// CancelResponse is returned by POST /api/v1/tasks/:id/cancel.
type CancelResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TrajectoryResponse is the HTTP representation of a convergence.Trajectory.
type TrajectoryResponse struct {
	ID             string     `json:"id"`
	TaskID         string     `json:"task_id"`
	Parallel       bool       `json:"parallel"`
	InitialSamples int        `json:"initial_samples"`
	Phase          string     `json:"phase"`
	MaxTokens      int64      `json:"max_tokens"`
	TokensUsed     int64      `json:"tokens_used"`
	MaxIterations  int        `json:"max_iterations"`
	IterationsUsed int        `json:"iterations_used"`
	FreshStarts    int        `json:"fresh_starts"`
	Attractor      string     `json:"attractor,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// ConvergeResponse is returned by POST /api/v1/tasks/:id/converge.
type ConvergeResponse struct {
	Outcome      string             `json:"outcome"`
	Trajectory   TrajectoryResponse `json:"trajectory"`
	ChildTaskIDs []string           `json:"child_task_ids,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string             `json:"status"`
	Version       string             `json:"version"`
	Configuration ConfigurationStats `json:"configuration"`
}

// ConfigurationStats summarizes the running configuration for the health
// endpoint (mirrors config.Stats).
type ConfigurationStats struct {
	MaxParallelTrajectories int    `json:"max_parallel_trajectories"`
	MemoryBackend           string `json:"memory_backend"`
	EventEmissionEnabled    bool   `json:"event_emission_enabled"`
	GuardrailsEnforceBudget bool   `json:"guardrails_enforce_budget"`
}
