package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ds-ai96/SRP/common/errors"
	"github.com/ds-ai96/SRP/schema"
)

// createTask
//
//	@Description  Submit a pruning/training task
//	@ID			createTask
//	@Tags		task
//	@Router		/task [post]
//	@Param		body	body	schema.Task	true	"task"
//	@Success	201	{object}	schema.Task
func (h *Handler) CreateTask(ctx *gin.Context) {
	var task schema.Task
	if err := task.Bind(ctx); err != nil {
		handleBrokerError(ctx, err, "bind task")
		return
	}

	if err := h.ctrl.CreateTask(&task); err != nil {
		handleBrokerError(ctx, err, "create task")
		return
	}

	ctx.JSON(http.StatusCreated, task)
}

// listTasks
//
//	@Description  List tasks, optionally filtered by state and user tag
//	@ID			listTasks
//	@Tags		task
//	@Router		/task [get]
//	@Param		state	query	string	false	"progress state"
//	@Param		userTag	query	string	false	"user tag"
//	@Success	200	{object}	[]schema.Task
func (h *Handler) ListTasks(ctx *gin.Context) {
	tasks, err := h.ctrl.ListTasks(ctx.Query("state"), ctx.Query("userTag"))
	if err != nil {
		handleBrokerError(ctx, err, "list tasks")
		return
	}

	ctx.JSON(http.StatusOK, tasks)
}

// getTask
//
//	@Description  Get one task by ID
//	@ID			getTask
//	@Tags		task
//	@Router		/task/{id} [get]
//	@Param		id	path	string	true	"task ID"
//	@Success	200	{object}	schema.Task
func (h *Handler) GetTask(ctx *gin.Context) {
	id, err := parseTaskID(ctx)
	if err != nil {
		handleBrokerError(ctx, err, "parse task id")
		return
	}

	task, err := h.ctrl.GetTask(id)
	if err != nil {
		handleBrokerError(ctx, err, "get task")
		return
	}

	ctx.JSON(http.StatusOK, task)
}

// cancelTask
//
//	@Description  Cancel a task that has not finished
//	@ID			cancelTask
//	@Tags		task
//	@Router		/task/{id} [delete]
//	@Param		id	path	string	true	"task ID"
//	@Success	204
func (h *Handler) CancelTask(ctx *gin.Context) {
	id, err := parseTaskID(ctx)
	if err != nil {
		handleBrokerError(ctx, err, "parse task id")
		return
	}

	if err := h.ctrl.CancelTask(id); err != nil {
		handleBrokerError(ctx, err, "cancel task")
		return
	}

	ctx.Status(http.StatusNoContent)
}

// getLog
//
//	@Description  Get the progress log of a task
//	@ID			getLog
//	@Tags		task
//	@Router		/task/{id}/log [get]
//	@Param		id	path	string	true	"task ID"
//	@Success	200	{string}	string
func (h *Handler) GetLog(ctx *gin.Context) {
	id, err := parseTaskID(ctx)
	if err != nil {
		handleBrokerError(ctx, err, "parse task id")
		return
	}

	content, err := h.ctrl.GetLog(id)
	if err != nil {
		handleBrokerError(ctx, err, "get task log")
		return
	}

	ctx.String(http.StatusOK, content)
}

// getEpochStats
//
//	@Description  Get the per-epoch training statistics of a task
//	@ID			getEpochStats
//	@Tags		task
//	@Router		/task/{id}/epochs [get]
//	@Param		id	path	string	true	"task ID"
//	@Success	200	{object}	[]schema.EpochStat
func (h *Handler) GetEpochStats(ctx *gin.Context) {
	id, err := parseTaskID(ctx)
	if err != nil {
		handleBrokerError(ctx, err, "parse task id")
		return
	}

	stats, err := h.ctrl.GetEpochStats(id)
	if err != nil {
		handleBrokerError(ctx, err, "get epoch stats")
		return
	}

	ctx.JSON(http.StatusOK, stats)
}

// getReport
//
//	@Description  Get the evaluation report of a delivered task
//	@ID			getReport
//	@Tags		task
//	@Router		/task/{id}/report [get]
//	@Param		id	path	string	true	"task ID"
//	@Success	200	{object}	services.Report
func (h *Handler) GetReport(ctx *gin.Context) {
	id, err := parseTaskID(ctx)
	if err != nil {
		handleBrokerError(ctx, err, "parse task id")
		return
	}

	report, err := h.ctrl.GetReport(id)
	if err != nil {
		handleBrokerError(ctx, err, "get report")
		return
	}

	ctx.Data(http.StatusOK, "application/json", report)
}

func parseTaskID(ctx *gin.Context) (*uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return nil, errors.WithCode(err, http.StatusBadRequest)
	}
	return &id, nil
}
