package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/odgrim/abathur/pkg/task"
)

// submitTaskHandler handles POST /api/v1/tasks.
func (s *Server) submitTaskHandler(c *echo.Context) error {
	var req SubmitTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Summary == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "summary is required")
	}

	t := task.New(req.Summary, req.Description)
	if req.AgentType != "" {
		t.AgentType = req.AgentType
	}
	if req.BasePriority != nil {
		t.BasePriority = *req.BasePriority
	}
	t.Dependencies = req.Dependencies

	id, err := s.taskService.Submit(c.Request().Context(), t)
	if err != nil {
		return mapServiceError(err)
	}

	created, err := s.taskService.Get(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, toTaskResponse(created))
}

// getTaskHandler handles GET /api/v1/tasks/:id.
func (s *Server) getTaskHandler(c *echo.Context) error {
	t, err := s.taskService.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, toTaskResponse(t))
}

// listTasksHandler handles GET /api/v1/tasks?status=ready.
func (s *Server) listTasksHandler(c *echo.Context) error {
	statusParam := c.QueryParam("status")
	if statusParam == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status query parameter is required")
	}

	tasks, err := s.taskService.ListByStatus(c.Request().Context(), task.Status(statusParam))
	if err != nil {
		return mapServiceError(err)
	}

	resp := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, toTaskResponse(t))
	}
	return c.JSON(http.StatusOK, resp)
}

// cancelTaskHandler handles POST /api/v1/tasks/:id/cancel.
func (s *Server) cancelTaskHandler(c *echo.Context) error {
	t, err := s.taskService.Cancel(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &CancelResponse{
		TaskID:  t.ID,
		Status:  t.Status.String(),
		Message: "task cancelled",
	})
}

func toTaskResponse(t *task.Task) TaskResponse {
	return TaskResponse{
		ID:                 t.ID,
		Summary:            t.Summary,
		Description:        t.Description,
		AgentType:          t.AgentType,
		BasePriority:       t.BasePriority,
		CalculatedPriority: t.CalculatedPriority,
		Status:             t.Status.String(),
		Dependencies:       t.Dependencies,
		RetryCount:         t.RetryCount,
		MaxRetries:         t.MaxRetries,
		Result:             t.Result,
		Error:              t.Error,
		SubmittedAt:        t.SubmittedAt,
		StartedAt:          t.StartedAt,
		CompletedAt:        t.CompletedAt,
		ParentTaskID:       t.ParentTaskID,
	}
}
