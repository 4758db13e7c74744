package services

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ds-ai96/SRP/common/log"
	"github.com/ds-ai96/SRP/config"
	"github.com/ds-ai96/SRP/internal/db"
	"github.com/ds-ai96/SRP/internal/utils"
	"github.com/ds-ai96/SRP/schema"
)

// Sweeper is the broker's periodic housekeeping: it unblocks recipe
// stages whose parents finished, acknowledges delivered tasks, fails
// runs stuck in an intermediate state and enforces data retention.
type Sweeper struct {
	db     *db.DB
	config *config.Config
	logger log.Logger
}

func NewSweeper(database *db.DB, cfg *config.Config, logger log.Logger) (*Sweeper, error) {
	return &Sweeper{
		db:     database,
		config: cfg,
		logger: logger.WithFields(logrus.Fields{"name": "sweeper"}),
	}, nil
}

func (s *Sweeper) Start(ctx context.Context) error {
	go func() {
		s.logger.Info("sweeper started")
		defer s.logger.Info("sweeper stopped")

		ticker := time.NewTicker(time.Duration(s.config.Scheduler.SweepIntervalSecs) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.resolveWaitingStages()
				s.ackDeliveredTasks()
				s.failStuckTasks()
			}
		}
	}()

	go s.startDiskCleanupRoutine(ctx)

	return nil
}

// resolveWaitingStages makes a recipe stage eligible once every parent
// is Finished, chaining the parent's best checkpoint in as the stage's
// pretrained model.
func (s *Sweeper) resolveWaitingStages() {
	waiting, err := s.db.GetWaitingTasks()
	if err != nil {
		s.logger.Errorf("error getting waiting tasks: %v", err)
		return
	}

	for _, task := range waiting {
		siblings, err := s.db.GetRecipeTasks(task.RecipeID)
		if err != nil {
			s.logger.Errorf("error getting recipe tasks for %v: %v", task.RecipeID, err)
			continue
		}

		byStage := make(map[string]schema.Task, len(siblings))
		for _, sibling := range siblings {
			byStage[sibling.StageName] = sibling
		}

		ready, pretrained, failedParent := stageReadiness(task, byStage)
		if failedParent != "" {
			// A failed parent can never produce the checkpoint this
			// stage is waiting for; fail the stage so it stops holding
			// a queue slot. Its own children fail on later sweeps.
			s.logger.Warnf("recipe stage %s (%s) blocked by failed parent %s", task.StageName, task.ID, failedParent)
			if err := s.db.MarkTaskFailed(&task, "parent stage "+failedParent+" failed"); err != nil {
				s.logger.Errorf("error failing blocked stage %v: %v", task.ID, err)
			}
			continue
		}
		if !ready {
			continue
		}

		if err := s.db.ClearWaiting(task.ID, pretrained); err != nil {
			s.logger.Errorf("error unblocking stage %v: %v", task.ID, err)
			continue
		}
		s.logger.Infof("recipe stage %s (%s) unblocked, pretrained=%s", task.StageName, task.ID, pretrained)
	}
}

// stageReadiness inspects a waiting stage's parents: ready means every
// parent finished, pretrained is the last finished parent's best
// checkpoint, and failedParent names a parent that failed permanently.
func stageReadiness(task schema.Task, byStage map[string]schema.Task) (ready bool, pretrained string, failedParent string) {
	for _, parentName := range strings.Split(task.WaitingFor, ",") {
		parent, ok := byStage[parentName]
		if !ok {
			return false, "", ""
		}
		switch parent.Progress {
		case schema.ProgressStateFailed.String():
			return false, "", parentName
		case schema.ProgressStateFinished.String():
			pretrained = parent.BestCheckpoint
		default:
			return false, "", ""
		}
	}
	return true, pretrained, ""
}

// ackDeliveredTasks finishes delivered tasks whose archive is in place.
func (s *Sweeper) ackDeliveredTasks() {
	tasks, err := s.db.GetTasksInState(schema.ProgressStateDelivered)
	if err != nil {
		s.logger.Errorf("error getting delivered tasks: %v", err)
		return
	}

	for _, task := range tasks {
		if task.ArchivePath == "" {
			continue
		}
		if _, err := os.Stat(task.ArchivePath); err != nil {
			s.logger.Warnf("task %v archive missing: %v", task.ID, err)
			continue
		}

		if err := s.db.UpdateTaskProgress(task.ID, schema.ProgressStateDelivered, schema.ProgressStateFinished); err != nil {
			s.logger.Errorf("error finishing task %v: %v", task.ID, err)
		}
	}
}

// failStuckTasks fails runs whose intermediate state outlived twice its
// service timeout, so a crashed worker cannot wedge the queue.
func (s *Sweeper) failStuckTasks() {
	deadlines := map[string]time.Duration{
		schema.ProgressStateSettingUp.String():  time.Duration(s.config.Scheduler.SetupTimeoutMins) * time.Minute,
		schema.ProgressStateTraining.String():   time.Duration(s.config.Scheduler.TrainingTimeoutMins) * time.Minute,
		schema.ProgressStateEvaluating.String(): time.Duration(s.config.Scheduler.EvalTimeoutMins) * time.Minute,
	}

	for state, timeout := range deadlines {
		stale, err := s.db.GetStaleTasks([]string{state}, time.Now().Add(-2*timeout))
		if err != nil {
			s.logger.Errorf("error getting stale %s tasks: %v", state, err)
			continue
		}
		for _, task := range stale {
			s.logger.Warnf("task %v stuck in %s, marking failed", task.ID, state)
			if err := s.db.MarkTaskFailed(&task, "stuck in "+state); err != nil {
				s.logger.Errorf("error failing stuck task %v: %v", task.ID, err)
			}
		}
	}
}

func (s *Sweeper) startDiskCleanupRoutine(ctx context.Context) {
	s.runDiskCleanup()

	ticker := time.NewTicker(12 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDiskCleanup()
		}
	}
}

// runDiskCleanup removes the working directories of tasks past the
// retention window, keeping the params file and progress log.
func (s *Sweeper) runDiskCleanup() {
	today := time.Now().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -int(s.config.Scheduler.DataRetentionDays*2))
	end := today.AddDate(0, 0, -int(s.config.Scheduler.DataRetentionDays))

	s.logger.Infof("cleaning up tasks created between %v and %v", start, end)
	tasks, err := s.db.GetTasksByCreatedAtRange(start, end)
	if err != nil {
		s.logger.Errorf("error getting tasks by created at range: %v", err)
		return
	}

	for _, task := range tasks {
		paths := utils.NewTaskPaths(utils.GetTaskDir(s.config.Paths.WorkRoot, task.ID))
		s.cleanUp(paths)
	}
}

func (s *Sweeper) cleanUp(paths *utils.TaskPaths) {
	s.logger.Infof("cleaning up: %v", paths.BasePath)

	if err := os.RemoveAll(paths.SaveDir); err != nil {
		s.logger.Errorf("error removing checkpoint folder: %v", err)
	}
	if err := os.Remove(paths.Archive); err != nil && !os.IsNotExist(err) {
		s.logger.Errorf("error removing archive: %v", err)
	}
}
