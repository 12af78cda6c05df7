// Package executor provides the Strategy Executor client boundary
// (spec.md §6): the out-of-process step that turns a chosen convergence
// strategy into an actual artifact. FakeExecutor is the local in-process
// stand-in ports.go anticipates for tests and demo wiring; a real
// implementation calls out over gRPC to a separate service and is out of
// scope for this iteration (see DESIGN.md).
package executor

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/odgrim/abathur/pkg/convergence"
)

// FakeExecutor deterministically "succeeds" every strategy it is handed,
// spending a fixed token budget and returning a synthetic artifact
// reference, so the engine's control flow can be exercised end to end
// without a real code-generation backend.
type FakeExecutor struct {
	TokensPerCall int64
}

// NewFakeExecutor constructs a FakeExecutor spending 500 tokens per call.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{TokensPerCall: 500}
}

func (f *FakeExecutor) Execute(_ context.Context, sc convergence.StrategyContext) (convergence.StrategyResult, error) {
	return convergence.StrategyResult{
		ArtifactRef: fmt.Sprintf("artifact:%s:%d:%s", sc.TrajectoryID, sc.Iteration, uuid.NewString()),
		TokensSpent: f.TokensPerCall,
		Succeeded:   true,
	}, nil
}

var _ convergence.StrategyExecutor = (*FakeExecutor)(nil)
