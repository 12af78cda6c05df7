package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/odgrim/abathur/pkg/convergence"
)

// convergeTaskHandler handles POST /api/v1/tasks/:id/converge: builds a
// submission from the request body and drives the task's trajectory
// through the Convergence Engine synchronously.
func (s *Server) convergeTaskHandler(c *echo.Context) error {
	taskID := c.Param("id")

	var req SubmitTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	sub := convergence.NewTaskSubmission(req.Description)
	sub.AcceptanceTests = req.AcceptanceTests
	sub.Examples = req.Examples
	sub.Invariants = req.Invariants
	sub.AntiPatterns = req.AntiPatterns
	sub.ContextFiles = req.ContextFiles

	result, err := s.taskService.Converge(c.Request().Context(), taskID, sub, convergence.DiscoveredInfrastructure{})
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &ConvergeResponse{
		Outcome:      string(result.Outcome),
		Trajectory:   toTrajectoryResponse(result.Trajectory),
		ChildTaskIDs: result.ChildIDs,
	})
}

// getTrajectoryHandler handles GET /api/v1/trajectories/:id.
func (s *Server) getTrajectoryHandler(c *echo.Context) error {
	t, err := s.taskService.GetTrajectory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, toTrajectoryResponse(t))
}

// listTrajectoriesHandler handles GET /api/v1/tasks/:id/trajectories.
func (s *Server) listTrajectoriesHandler(c *echo.Context) error {
	trajectories, err := s.taskService.ListTrajectoriesByTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}

	resp := make([]TrajectoryResponse, 0, len(trajectories))
	for _, t := range trajectories {
		resp = append(resp, toTrajectoryResponse(t))
	}
	return c.JSON(http.StatusOK, resp)
}

func toTrajectoryResponse(t *convergence.Trajectory) TrajectoryResponse {
	return TrajectoryResponse{
		ID:             t.ID,
		TaskID:         t.TaskID,
		Parallel:       t.Mode.Parallel,
		InitialSamples: t.Mode.InitialSamples,
		Phase:          string(t.Phase),
		MaxTokens:      t.Budget.MaxTokens,
		TokensUsed:     t.Budget.TokensUsed,
		MaxIterations:  t.Budget.MaxIterations,
		IterationsUsed: t.Budget.IterationsUsed,
		FreshStarts:    t.FreshStarts,
		Attractor:      string(t.CurrentAttractor()),
		StartedAt:      t.StartedAt,
		FinishedAt:     t.FinishedAt,
	}
}
