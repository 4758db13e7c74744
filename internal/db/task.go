package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/ds-ai96/SRP/schema"
)

func (d *DB) AddTask(task *schema.Task) error {
	ret := d.db.Create(task)
	return ret.Error
}

func (d *DB) AddTasks(tasks []schema.Task) error {
	ret := d.db.Create(&tasks)
	return ret.Error
}

func (d *DB) GetTask(id *uuid.UUID) (schema.Task, error) {
	task := schema.Task{}
	ret := d.db.Where(&schema.Task{ID: id}).First(&task)
	return task, ret.Error
}

// GetNextTask picks the oldest highest-priority task in the given state
// that is not waiting on recipe parents. A zero-ID result means none.
func (d *DB) GetNextTask(state schema.ProgressState) (schema.Task, error) {
	task := schema.Task{}
	ret := d.db.
		Where(&schema.Task{Progress: state.String()}).
		Where("waiting_for = ''").
		Order("priority DESC, created_at").
		Limit(1).
		Find(&task)
	return task, ret.Error
}

func (d *DB) ListTasks(state, userTag string) ([]schema.Task, error) {
	var tasks []schema.Task
	query := d.db.Order("created_at DESC")
	if state != "" {
		query = query.Where("progress = ?", state)
	}
	if userTag != "" {
		query = query.Where("user_tag = ?", userTag)
	}
	ret := query.Find(&tasks)
	return tasks, ret.Error
}

func (d *DB) GetTasksByCreatedAtRange(start, end time.Time) ([]schema.Task, error) {
	var tasks []schema.Task
	ret := d.db.Where("created_at BETWEEN ? AND ?", start, end).Find(&tasks)
	return tasks, ret.Error
}

func (d *DB) GetTasksInState(state schema.ProgressState) ([]schema.Task, error) {
	var tasks []schema.Task
	ret := d.db.Where(&schema.Task{Progress: state.String()}).Order("created_at").Find(&tasks)
	return tasks, ret.Error
}

// GetWaitingTasks lists recipe stages still blocked on their parents.
func (d *DB) GetWaitingTasks() ([]schema.Task, error) {
	var tasks []schema.Task
	ret := d.db.
		Where("waiting_for <> ''").
		Where("progress = ?", schema.ProgressStateInit.String()).
		Find(&tasks)
	return tasks, ret.Error
}

func (d *DB) GetRecipeTasks(recipeID string) ([]schema.Task, error) {
	var tasks []schema.Task
	ret := d.db.Where(&schema.Task{RecipeID: recipeID}).Find(&tasks)
	return tasks, ret.Error
}

func (d *DB) InProgressTaskCount() (int64, error) {
	var count int64
	ret := d.db.Model(&schema.Task{}).
		Where("progress <> ? AND progress <> ?", schema.ProgressStateFailed.String(), schema.ProgressStateFinished.String()).
		Count(&count)
	if ret.Error != nil {
		return 0, ret.Error
	}
	return count, nil
}

func (d *DB) UpdateTask(id *uuid.UUID, new schema.Task) error {
	ret := d.db.Where(&schema.Task{ID: id}).Where("progress <> ?", schema.ProgressStateFailed.String()).Updates(new)
	return ret.Error
}

func (d *DB) GetTaskProgress(id *uuid.UUID) (string, error) {
	task, err := d.GetTask(id)
	if err != nil {
		return "", err
	}
	return task.Progress, nil
}

func (d *DB) UpdateTaskProgress(id *uuid.UUID, oldProgress, newProgress schema.ProgressState) error {
	ret := d.db.Model(&schema.Task{}).
		Where(&schema.Task{ID: id, Progress: oldProgress.String()}).
		Update("progress", newProgress.String())
	return ret.Error
}

func (d *DB) MarkTaskFailed(task *schema.Task, reason string) error {
	ret := d.db.Model(&schema.Task{}).Where(&schema.Task{ID: task.ID}).Updates(map[string]interface{}{
		"progress": schema.ProgressStateFailed.String(),
		"error":    reason,
	})
	return ret.Error
}

func (d *DB) MarkInProgressTasksAsFailed() error {
	ret := d.db.Model(&schema.Task{}).
		Where("progress NOT IN (?, ?, ?)",
			schema.ProgressStateFailed.String(),
			schema.ProgressStateFinished.String(),
			schema.ProgressStateInit.String()).
		Update("progress", schema.ProgressStateFailed.String())
	return ret.Error
}

func (d *DB) IncrementRetryCount(task *schema.Task) error {
	return d.UpdateTask(task.ID, schema.Task{
		NumRetries: task.NumRetries + 1,
	})
}

// HandleTaskFailure retries a task by moving it back from the
// intermediate state to its initial state until maxRetries is spent,
// then marks it failed. It reports whether a retry was scheduled.
func (d *DB) HandleTaskFailure(task *schema.Task, failure error, maxRetries uint, intermediate, initial schema.ProgressState) (bool, error) {
	if task.NumRetries+1 < maxRetries {
		if err := d.IncrementRetryCount(task); err != nil {
			return false, err
		}
		return true, d.UpdateTaskProgress(task.ID, intermediate, initial)
	}
	return false, d.MarkTaskFailed(task, failure.Error())
}

// ClearWaiting unblocks a recipe stage, recording the pretrained
// checkpoint inherited from its parents.
func (d *DB) ClearWaiting(id *uuid.UUID, pretrainedModel string) error {
	ret := d.db.Model(&schema.Task{}).Where(&schema.Task{ID: id}).Updates(map[string]interface{}{
		"waiting_for":      "",
		"pretrained_model": pretrainedModel,
	})
	return ret.Error
}

// GetStaleTasks lists tasks sitting in one of the given states since
// before the deadline.
func (d *DB) GetStaleTasks(states []string, before time.Time) ([]schema.Task, error) {
	var tasks []schema.Task
	ret := d.db.
		Where("progress IN (?)", states).
		Where("updated_at < ?", before).
		Find(&tasks)
	return tasks, ret.Error
}

func (d *DB) AddEpochStat(stat *schema.EpochStat) error {
	ret := d.db.Create(stat)
	return ret.Error
}

func (d *DB) GetEpochStats(taskID *uuid.UUID) ([]schema.EpochStat, error) {
	var stats []schema.EpochStat
	ret := d.db.Where(&schema.EpochStat{TaskID: taskID}).Order("epoch").Find(&stats)
	return stats, ret.Error
}
