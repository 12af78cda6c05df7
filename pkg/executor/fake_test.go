package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odgrim/abathur/pkg/convergence"
)

func TestFakeExecutorSucceeds(t *testing.T) {
	f := NewFakeExecutor()
	result, err := f.Execute(context.Background(), convergence.StrategyContext{
		TrajectoryID: "traj-1",
		Iteration:    1,
	})
	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.Equal(t, int64(500), result.TokensSpent)
	assert.NotEmpty(t, result.ArtifactRef)
}

func TestFakeExecutorArtifactRefsAreUnique(t *testing.T) {
	f := NewFakeExecutor()
	a, err := f.Execute(context.Background(), convergence.StrategyContext{TrajectoryID: "t", Iteration: 1})
	require.NoError(t, err)
	b, err := f.Execute(context.Background(), convergence.StrategyContext{TrajectoryID: "t", Iteration: 1})
	require.NoError(t, err)
	assert.NotEqual(t, a.ArtifactRef, b.ArtifactRef)
}
