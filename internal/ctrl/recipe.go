package ctrl

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ds-ai96/SRP/common/errors"
	"github.com/ds-ai96/SRP/internal/arch"
	"github.com/ds-ai96/SRP/internal/launch"
	"github.com/ds-ai96/SRP/internal/recipe"
	"github.com/ds-ai96/SRP/internal/utils"
	"github.com/ds-ai96/SRP/schema"
)

// CreateRecipe expands a multi-stage recipe into one task per stage.
// Stages with dependencies are created waiting; the sweeper unblocks
// them with the parent's best checkpoint once the parent finishes.
func (c *Ctrl) CreateRecipe(r *recipe.Recipe) ([]schema.Task, error) {
	if _, err := arch.Get(r.Arch); err != nil {
		return nil, errors.WithCode(err, http.StatusBadRequest)
	}

	stages, err := r.Order()
	if err != nil {
		return nil, errors.WithCode(err, http.StatusBadRequest)
	}

	count, err := c.db.InProgressTaskCount()
	if err != nil {
		return nil, errors.Wrap(err, "count in-progress tasks")
	}
	if count+int64(len(stages)) > int64(c.config.Scheduler.MaxTaskQueueSize) {
		return nil, errors.WithCode(errors.New("task queue is full"), http.StatusTooManyRequests)
	}

	recipeID := uuid.New().String()
	tasks := make([]schema.Task, 0, len(stages))
	for _, stage := range stages {
		params, err := stageParams(stage)
		if err != nil {
			return nil, errors.WithCode(errors.Wrapf(err, "stage %q", stage.Name), http.StatusBadRequest)
		}

		id := uuid.New()
		tasks = append(tasks, schema.Task{
			ID:             &id,
			UserTag:        r.UserTag,
			DataDir:        r.DataDir,
			Architecture:   r.Arch,
			TrainingParams: params,
			GPUs:           stage.GPUs,
			RecipeID:       recipeID,
			StageName:      stage.Name,
			WaitingFor:     strings.Join(stage.DependsOn, ","),
			Progress:       schema.ProgressStateInit.String(),
		})
	}

	for i := range tasks {
		if err := utils.InitTaskDirectory(c.config.Paths.WorkRoot, tasks[i].ID); err != nil {
			return nil, errors.Wrap(err, "initialize task directory")
		}
	}

	if err := c.db.AddTasks(tasks); err != nil {
		return nil, errors.Wrap(err, "create recipe tasks in db")
	}

	c.logger.Infof("recipe %s (%s) created with %d stages", r.Name, recipeID, len(tasks))
	return tasks, nil
}

func (c *Ctrl) GetRecipeTasks(recipeID string) ([]schema.Task, error) {
	tasks, err := c.db.GetRecipeTasks(recipeID)
	if err != nil {
		return nil, errors.Wrap(err, "get recipe tasks from db")
	}
	if len(tasks) == 0 {
		return nil, errors.WithCode(errors.New("recipe not found"), http.StatusNotFound)
	}
	return tasks, nil
}

// stageParams folds the stage's pruning schedule into its submitted
// training params, producing the task's TrainingParams document.
func stageParams(stage recipe.Stage) (string, error) {
	spec := launch.TrainSpec{}
	if stage.Params != "" {
		if err := json.Unmarshal([]byte(stage.Params), &spec); err != nil {
			return "", errors.Wrap(err, "decode stage params")
		}
	}
	spec.Schedule = stage.Schedule

	data, err := json.Marshal(&spec)
	if err != nil {
		return "", errors.Wrap(err, "encode stage params")
	}
	return string(data), nil
}
