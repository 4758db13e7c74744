package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/sirupsen/logrus"

	"github.com/ds-ai96/SRP/common/errors"
	"github.com/ds-ai96/SRP/common/log"
	"github.com/ds-ai96/SRP/common/util"
	"github.com/ds-ai96/SRP/config"
	"github.com/ds-ai96/SRP/internal/checkpoint"
	"github.com/ds-ai96/SRP/internal/db"
	"github.com/ds-ai96/SRP/internal/utils"
	"github.com/ds-ai96/SRP/schema"
)

// Setup prepares a task for training: it validates the binarized
// dataset, lays out the working directory and freezes the trainer
// invocation into the params file.
type Setup struct {
	*Service
}

func NewSetup(
	database *db.DB,
	cfg *config.Config,
	logger log.Logger,
) (*Setup, error) {
	srv := &Setup{
		Service: NewService(
			"setup",
			TaskStates{
				Initial:      schema.ProgressStateInit,
				Intermediate: schema.ProgressStateSettingUp,
				Final:        schema.ProgressStateSetUp,
			},
			time.Duration(cfg.Scheduler.PollIntervalSecs)*time.Second,
			cfg,
			database,
			logger.WithFields(logrus.Fields{"name": "setup"}),
			workerpool.New(cfg.Scheduler.SetupWorkerCount),
		),
	}
	srv.taskProcessor = srv
	return srv, nil
}

func (s *Setup) GetTaskTimeout(ctx context.Context) (time.Duration, error) {
	return time.Duration(s.config.Scheduler.SetupTimeoutMins) * time.Minute, nil
}

func (s *Setup) HandleNoTask(ctx context.Context) error {
	return nil
}

func (s *Setup) HandleExecuteFailure(err error, dbTask *schema.Task) (bool, error) {
	return s.db.HandleTaskFailure(dbTask, err, s.config.Scheduler.MaxSetupRetriesPerTask, s.states.Intermediate, s.states.Initial)
}

func (s *Setup) Execute(ctx context.Context, task *schema.Task, paths *utils.TaskPaths) error {
	spec, err := buildSpec(task, paths, s.config)
	if err != nil {
		return err
	}

	if err := s.validateDataset(task.DataDir, spec.SourceLang, spec.TargetLang); err != nil {
		return err
	}

	if spec.PretrainedModel != "" {
		if _, err := os.Stat(spec.PretrainedModel); err != nil {
			return errors.Wrapf(err, "pretrained checkpoint %s", spec.PretrainedModel)
		}
	}

	if err := checkpoint.VerifySaveDir(paths.SaveDir); err != nil {
		return err
	}

	if err := writeSpecFile(spec, paths.Params); err != nil {
		return errors.Wrap(err, "write params file")
	}

	size, err := util.DirSize(task.DataDir)
	if err != nil {
		s.logger.Warnf("failed to size dataset dir: %v", err)
	} else {
		if logErr := utils.WriteToLogFile(s.config.Paths.WorkRoot, task.ID, fmt.Sprintf("dataset size: %.1f MB\n", float64(size)/(1<<20))); logErr != nil {
			s.logger.Errorf("Write into task log failed: %v", logErr)
		}
	}

	return nil
}

// validateDataset checks the data-bin directory for the dictionaries
// and split files the trainer needs before anything is scheduled on a
// GPU.
func (s *Setup) validateDataset(dataDir, src, tgt string) error {
	info, err := os.Stat(dataDir)
	if err != nil {
		return errors.Wrapf(err, "dataset dir %s", dataDir)
	}
	if !info.IsDir() {
		return errors.Errorf("dataset path %s is not a directory", dataDir)
	}

	for _, lang := range []string{src, tgt} {
		dict := filepath.Join(dataDir, fmt.Sprintf("dict.%s.txt", lang))
		if _, err := os.Stat(dict); err != nil {
			return errors.Wrapf(err, "missing dictionary %s", dict)
		}
	}

	for _, split := range []string{"train", "valid"} {
		pattern := filepath.Join(dataDir, fmt.Sprintf("%s.%s-%s.*", split, src, tgt))
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return errors.Errorf("no %s split files in %s", split, dataDir)
		}
	}

	return nil
}
