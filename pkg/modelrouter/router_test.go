package modelrouter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odgrim/abathur/pkg/convergence"
)

func architect() *AgentTierHint {
	h := AgentTierArchitect
	return &h
}

func worker() *AgentTierHint {
	h := AgentTierWorker
	return &h
}

func TestSimpleTaskGetsHaiku(t *testing.T) {
	r := NewWithDefaults()
	sel := r.SelectModel(convergence.ComplexitySimple, nil, 0)
	assert.Equal(t, "haiku", sel.Model)
	assert.False(t, sel.Escalated)
}

func TestModerateTaskGetsSonnet(t *testing.T) {
	r := NewWithDefaults()
	assert.Equal(t, "sonnet", r.SelectModel(convergence.ComplexityModerate, nil, 0).Model)
}

func TestComplexTaskGetsOpus(t *testing.T) {
	r := NewWithDefaults()
	assert.Equal(t, "opus", r.SelectModel(convergence.ComplexityComplex, nil, 0).Model)
}

func TestRetryEscalation(t *testing.T) {
	r := NewWithDefaults()

	first := r.SelectModel(convergence.ComplexitySimple, nil, 1)
	assert.Equal(t, "sonnet", first.Model)
	assert.True(t, first.Escalated)

	second := r.SelectModel(convergence.ComplexitySimple, nil, 2)
	assert.Equal(t, "opus", second.Model)
	assert.True(t, second.Escalated)
}

func TestArchitectAlwaysComplex(t *testing.T) {
	r := NewWithDefaults()
	sel := r.SelectModel(convergence.ComplexityTrivial, architect(), 0)
	assert.Equal(t, "opus", sel.Model)
}

func TestWorkerGetsCheapModel(t *testing.T) {
	r := NewWithDefaults()
	sel := r.SelectModel(convergence.ComplexityTrivial, worker(), 0)
	assert.Equal(t, "haiku", sel.Model)
}

func TestRoutingDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	r := New(cfg)
	sel := r.SelectModel(convergence.ComplexityTrivial, nil, 0)
	assert.Equal(t, "opus", sel.Model)
	assert.Contains(t, sel.Reason, "disabled")
}

func TestEscalateComplexityCapsAtComplex(t *testing.T) {
	assert.Equal(t, convergence.ComplexityTrivial, escalateComplexity(convergence.ComplexityTrivial, 0))
	assert.Equal(t, convergence.ComplexitySimple, escalateComplexity(convergence.ComplexityTrivial, 1))
	assert.Equal(t, convergence.ComplexityModerate, escalateComplexity(convergence.ComplexityTrivial, 2))
	assert.Equal(t, convergence.ComplexityComplex, escalateComplexity(convergence.ComplexityTrivial, 3))
	assert.Equal(t, convergence.ComplexityComplex, escalateComplexity(convergence.ComplexityTrivial, 10))
}

func TestCustomConfig(t *testing.T) {
	cfg := Config{
		Enabled:                true,
		TrivialModel:           "my-haiku",
		SimpleModel:            "my-haiku",
		ModerateModel:          "my-sonnet",
		ComplexModel:           "my-opus",
		RetryEscalation:        false,
		ArchitectAlwaysComplex: false,
	}
	r := New(cfg)

	sel := r.SelectModel(convergence.ComplexitySimple, nil, 5)
	assert.Equal(t, "my-haiku", sel.Model)
	assert.False(t, sel.Escalated)

	archSel := r.SelectModel(convergence.ComplexitySimple, architect(), 0)
	assert.Equal(t, "my-haiku", archSel.Model)
}
