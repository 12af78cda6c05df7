package guardrails

import "sync"

// RuntimeMetrics tracks counters for the current process: hourly and total
// token usage, task/agent lifecycle counts, and accumulated cost. All
// methods are safe for concurrent use.
type RuntimeMetrics struct {
	mu              sync.Mutex
	tokensThisHour  uint64
	totalTokensUsed uint64
	tasksStarted    uint64
	tasksCompleted  uint64
	tasksFailed     uint64
	agentsSpawned   uint64
	costCents       uint64 // stored as integer cents*100 to avoid float accumulation drift
}

func NewRuntimeMetrics() *RuntimeMetrics {
	return &RuntimeMetrics{}
}

// RecordTokens unconditionally adds tokens to both the hourly and total
// counters, bypassing the limit check. Prefer CheckAndRecordTokens.
func (m *RuntimeMetrics) RecordTokens(tokens uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokensThisHour += tokens
	m.totalTokensUsed += tokens
}

// CheckAndRecordTokens adds tokens to the hourly counter only if doing so
// would not exceed limit, returning (newTotal, true) on success or
// (currentTotal, false) if the addition was rejected and the counter was
// left unchanged. Holding the mutex for the whole check-then-add keeps this
// equivalent to the original's CAS retry loop without a literal CAS.
func (m *RuntimeMetrics) CheckAndRecordTokens(tokens, limit uint64) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	newTotal := m.tokensThisHour + tokens
	if newTotal > limit {
		return m.tokensThisHour, false
	}
	m.tokensThisHour = newTotal
	m.totalTokensUsed += tokens
	return newTotal, true
}

func (m *RuntimeMetrics) RecordTaskStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasksStarted++
}

func (m *RuntimeMetrics) RecordTaskCompleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasksCompleted++
}

func (m *RuntimeMetrics) RecordTaskFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasksFailed++
}

func (m *RuntimeMetrics) RecordAgentSpawned() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agentsSpawned++
}

func (m *RuntimeMetrics) RecordCost(cents float64) {
	intCents := uint64(cents * 100.0)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.costCents += intCents
}

func (m *RuntimeMetrics) GetTokensThisHour() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokensThisHour
}

func (m *RuntimeMetrics) GetTotalTokens() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalTokensUsed
}

func (m *RuntimeMetrics) GetCostCents() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.costCents) / 100.0
}

func (m *RuntimeMetrics) GetTasksStarted() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasksStarted
}

func (m *RuntimeMetrics) GetTasksCompleted() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasksCompleted
}

func (m *RuntimeMetrics) GetTasksFailed() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasksFailed
}

func (m *RuntimeMetrics) GetAgentsSpawned() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agentsSpawned
}

// ResetHourly zeroes the hourly counter; total counters are untouched.
func (m *RuntimeMetrics) ResetHourly() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokensThisHour = 0
}
