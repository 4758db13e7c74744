package ctrl

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/ds-ai96/SRP/common/errors"
	"github.com/ds-ai96/SRP/internal/arch"
	"github.com/ds-ai96/SRP/internal/utils"
	"github.com/ds-ai96/SRP/schema"
)

func (c *Ctrl) CreateTask(task *schema.Task) error {
	if _, err := arch.Get(task.Architecture); err != nil {
		return errors.WithCode(err, http.StatusBadRequest)
	}
	if task.TrainingParams != "" && !json.Valid([]byte(task.TrainingParams)) {
		return errors.WithCode(errors.New("training params is not valid JSON"), http.StatusBadRequest)
	}

	count, err := c.db.InProgressTaskCount()
	if err != nil {
		return errors.Wrap(err, "count in-progress tasks")
	}
	if count >= int64(c.config.Scheduler.MaxTaskQueueSize) {
		return errors.WithCode(errors.New("task queue is full"), http.StatusTooManyRequests)
	}

	id := uuid.New()
	task.ID = &id
	task.Progress = schema.ProgressStateInit.String()

	if err := utils.InitTaskDirectory(c.config.Paths.WorkRoot, task.ID); err != nil {
		return errors.Wrap(err, "initialize task directory")
	}

	if err := c.db.AddTask(task); err != nil {
		return errors.Wrap(err, "create task in db")
	}

	c.logger.Infof("task %s created (arch=%s, user=%s)", task.ID, task.Architecture, task.UserTag)
	return nil
}

func (c *Ctrl) GetTask(id *uuid.UUID) (schema.Task, error) {
	task, err := c.db.GetTask(id)
	if err != nil {
		return task, errors.WithCode(errors.Wrap(err, "get task from db"), http.StatusNotFound)
	}
	return task, nil
}

func (c *Ctrl) ListTasks(state, userTag string) ([]schema.Task, error) {
	tasks, err := c.db.ListTasks(state, userTag)
	return tasks, errors.Wrap(err, "list tasks from db")
}

// CancelTask fails a task that has not reached a terminal state. A
// running trainer notices the progress flip at its next validation
// record and kills the process.
func (c *Ctrl) CancelTask(id *uuid.UUID) error {
	task, err := c.db.GetTask(id)
	if err != nil {
		return errors.WithCode(errors.Wrap(err, "get task from db"), http.StatusNotFound)
	}

	switch task.Progress {
	case schema.ProgressStateDelivered.String(),
		schema.ProgressStateFinished.String(),
		schema.ProgressStateFailed.String():
		return errors.WithCode(errors.Errorf("task is already %s", task.Progress), http.StatusConflict)
	}

	if err := c.db.MarkTaskFailed(&task, "canceled by user"); err != nil {
		return errors.Wrap(err, "cancel task in db")
	}
	c.logger.Infof("task %s canceled", id)
	return nil
}

func (c *Ctrl) GetLog(id *uuid.UUID) (string, error) {
	if _, err := c.db.GetTask(id); err != nil {
		return "", errors.WithCode(errors.Wrap(err, "get task from db"), http.StatusNotFound)
	}

	content, err := utils.ReadLogFile(c.config.Paths.WorkRoot, id)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.WithCode(errors.New("no log for task"), http.StatusNotFound)
		}
		return "", errors.Wrap(err, "read task log")
	}
	return content, nil
}

func (c *Ctrl) GetEpochStats(id *uuid.UUID) ([]schema.EpochStat, error) {
	if _, err := c.db.GetTask(id); err != nil {
		return nil, errors.WithCode(errors.Wrap(err, "get task from db"), http.StatusNotFound)
	}

	stats, err := c.db.GetEpochStats(id)
	return stats, errors.Wrap(err, "get epoch stats from db")
}

// GetReport returns the evaluation report written at delivery time.
func (c *Ctrl) GetReport(id *uuid.UUID) (json.RawMessage, error) {
	if _, err := c.db.GetTask(id); err != nil {
		return nil, errors.WithCode(errors.Wrap(err, "get task from db"), http.StatusNotFound)
	}

	paths := utils.NewTaskPaths(utils.GetTaskDir(c.config.Paths.WorkRoot, id))
	data, err := os.ReadFile(paths.Report)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithCode(errors.New("report not available yet"), http.StatusNotFound)
		}
		return nil, errors.Wrap(err, "read report")
	}
	return json.RawMessage(data), nil
}
