package api

// SubmitTaskRequest is the HTTP request body for POST /api/v1/tasks.
type SubmitTaskRequest struct {
	Summary      string   `json:"summary"`
	Description  string   `json:"description"`
	AgentType    string   `json:"agent_type,omitempty"`
	BasePriority *int     `json:"base_priority,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`

	// AcceptanceTests/Examples/Invariants/AntiPatterns/ContextFiles seed the
	// task submission's convergence infrastructure (spec.md §4.2/§4.5.3).
	AcceptanceTests []string `json:"acceptance_tests,omitempty"`
	Examples        []string `json:"examples,omitempty"`
	Invariants      []string `json:"invariants,omitempty"`
	AntiPatterns    []string `json:"anti_patterns,omitempty"`
	ContextFiles    []string `json:"context_files,omitempty"`
}
