package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/sirupsen/logrus"

	"github.com/ds-ai96/SRP/common/errors"
	"github.com/ds-ai96/SRP/common/log"
	"github.com/ds-ai96/SRP/config"
	"github.com/ds-ai96/SRP/internal/arch"
	"github.com/ds-ai96/SRP/internal/checkpoint"
	"github.com/ds-ai96/SRP/internal/db"
	"github.com/ds-ai96/SRP/internal/launch"
	"github.com/ds-ai96/SRP/internal/monitor"
	"github.com/ds-ai96/SRP/internal/prune"
	"github.com/ds-ai96/SRP/internal/runner"
	"github.com/ds-ai96/SRP/internal/score"
	"github.com/ds-ai96/SRP/internal/utils"
	"github.com/ds-ai96/SRP/schema"
)

// Trainer launches the external trainer for a set-up task, follows its
// output and book-keeps the pruning schedule until the run stops.
type Trainer struct {
	*Service

	runner runner.Runner
}

func NewTrainer(
	database *db.DB,
	cfg *config.Config,
	run runner.Runner,
	logger log.Logger,
) (*Trainer, error) {
	srv := &Trainer{
		Service: NewService(
			"trainer",
			TaskStates{
				Initial:      schema.ProgressStateSetUp,
				Intermediate: schema.ProgressStateTraining,
				Final:        schema.ProgressStateTrained,
			},
			time.Duration(cfg.Scheduler.PollIntervalSecs)*time.Second,
			cfg,
			database,
			logger.WithFields(logrus.Fields{"name": "trainer"}),
			workerpool.New(cfg.Scheduler.TrainingWorkerCount),
		),
		runner: run,
	}
	srv.taskProcessor = srv
	return srv, nil
}

func (t *Trainer) GetTaskTimeout(ctx context.Context) (time.Duration, error) {
	return time.Duration(t.config.Scheduler.TrainingTimeoutMins) * time.Minute, nil
}

func (t *Trainer) HandleNoTask(ctx context.Context) error {
	return nil
}

func (t *Trainer) HandleExecuteFailure(err error, dbTask *schema.Task) (bool, error) {
	if errors.Is(err, errCanceled) {
		// The cancel request already marked the task failed.
		return false, nil
	}
	monitor.TasksFailedCount.Inc()
	return t.db.HandleTaskFailure(dbTask, err, t.config.Scheduler.MaxTrainerRetriesPerTask, t.states.Intermediate, t.states.Initial)
}

func (t *Trainer) Execute(ctx context.Context, task *schema.Task, paths *utils.TaskPaths) error {
	spec, err := readSpecFile(paths.Params)
	if err != nil {
		return errors.Wrap(err, "read params file")
	}

	if restore, ok := checkpoint.ResolveRestore(paths.SaveDir, spec.Checkpoints.RestoreFile); ok {
		spec.Checkpoints.RestoreFile = restore
	}

	run, err := newTrainRun(task, spec, paths, t)
	if err != nil {
		return err
	}

	monitor.TasksStartedCount.Inc()
	monitor.TasksRunningGauge.Inc()
	defer monitor.TasksRunningGauge.Dec()

	err = t.runner.Run(ctx, spec, paths.BasePath, runner.SinkFunc(run.consume))
	switch {
	case errors.Is(err, errEarlyStop):
		t.logger.Infof("task %s stopped early: %s", task.ID, run.stopReason)
	case errors.Is(err, errCanceled):
		t.logger.Infof("task %s canceled, trainer torn down", task.ID)
		return err
	case err != nil:
		return err
	}

	if err := run.finalize(); err != nil {
		return err
	}

	if spec.Checkpoints.KeepLastEpochs > 0 {
		if err := checkpoint.PruneOld(paths.SaveDir, spec.Checkpoints.KeepLastEpochs); err != nil {
			t.logger.Warnf("failed to prune old checkpoints: %v", err)
		}
	}

	monitor.TasksCompletedCount.Inc()
	return nil
}

// trainRun is the per-run state the output sink mutates: the schedule,
// the group ledger, the metric tracker and the epoch bookkeeping.
type trainRun struct {
	mu sync.Mutex

	trainer *Trainer
	task    *schema.Task
	paths   *utils.TaskPaths
	spec    *launch.TrainSpec

	schedule *prune.Schedule
	ledger   *prune.Ledger
	plans    []prune.EventCounts
	tracker  *score.Tracker
	parser   *score.Parser
	results  *score.ResultWriter

	paramsBefore int64
	flopsBefore  float64

	// canceled reports whether the task row was failed mid-run, which
	// is how a user cancel reaches the worker.
	canceled func() bool

	eventsSeen int
	lastPhase  prune.Phase
	started    time.Time
	lastEpoch  time.Time
	stopReason string
}

func newTrainRun(task *schema.Task, spec *launch.TrainSpec, paths *utils.TaskPaths, t *Trainer) (*trainRun, error) {
	a, err := arch.Get(spec.Arch)
	if err != nil {
		return nil, err
	}

	schedule, err := prune.NewSchedule(spec.Schedule)
	if err != nil {
		return nil, err
	}

	plans, err := prune.PlanEvents(a, spec.Schedule.Stage, spec.Schedule.CompressionRate, spec.Schedule.Iter)
	if err != nil {
		return nil, err
	}

	ledger := prune.NewLedger(a)
	tracker := score.NewTracker(spec.BestCheckpointMetric, spec.MaximizeBestMetric, spec.Patience)
	tracker.MaxUpdate = int64(spec.MaxUpdate)
	tracker.StopMinLR = spec.StopMinLR
	tracker.StopTimeHours = spec.StopTimeHours

	return &trainRun{
		trainer:      t,
		task:         task,
		paths:        paths,
		spec:         spec,
		schedule:     schedule,
		ledger:       ledger,
		plans:        plans,
		tracker:      tracker,
		parser:       &score.Parser{},
		results:      score.NewResultWriter(paths.Results),
		paramsBefore: ledger.ParamCount(),
		flopsBefore:  ledger.Counter().ModelFlops(),
		canceled: func() bool {
			progress, err := t.db.GetTaskProgress(task.ID)
			return err == nil && progress == schema.ProgressStateFailed.String()
		},
		started:   time.Now(),
		lastEpoch: time.Now(),
	}, nil
}

// consume handles one trainer output line. Returning errEarlyStop
// makes the runner kill the process; that exit is treated as success.
func (r *trainRun) consume(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if logErr := utils.WriteToLogFile(r.trainer.config.Paths.WorkRoot, r.task.ID, line+"\n"); logErr != nil {
		r.trainer.logger.Errorf("Write into task log failed: %v", logErr)
	}

	if r.parser.IsPruneMark(line) {
		return r.applyPruningEvent()
	}

	if mark, ok := r.parser.ParsePhase(line); ok {
		r.lastPhase = prune.Phase(mark.Phase)
		return nil
	}

	if v, ok := r.parser.ParseValidation(line); ok {
		return r.recordValidation(v)
	}

	return nil
}

func (r *trainRun) applyPruningEvent() error {
	if r.eventsSeen >= len(r.plans) {
		r.trainer.logger.Warnf("task %s: more pruning events than planned, ignoring", r.task.ID)
		return nil
	}

	// Scores live inside the trainer; without them the plan removes the
	// leading indices, which keeps the ledger arithmetic exact.
	if err := r.ledger.Apply(r.plans[r.eventsSeen], nil); err != nil {
		return errors.Wrap(err, "apply pruning event")
	}
	r.eventsSeen++
	monitor.PruningEventsCount.Inc()
	return nil
}

func (r *trainRun) recordValidation(v score.Validation) error {
	if r.canceled() {
		return errCanceled
	}

	phase, fired := r.schedule.PhaseAt(v.Epoch)
	// The trainer's own phase announcement wins over the derived one.
	if r.lastPhase != "" {
		phase = r.lastPhase
	}

	widths, err := json.Marshal(r.ledger.GroupWidths())
	if err != nil {
		return err
	}

	stat := &schema.EpochStat{
		TaskID:      r.task.ID,
		Epoch:       v.Epoch,
		Phase:       string(phase),
		ValidLoss:   v.Loss,
		ValidBLEU:   v.BLEU,
		LR:          v.LR,
		NumUpdates:  v.NumUpdates,
		Params:      r.ledger.ParamCount(),
		GroupWidths: string(widths),
		Pruned:      fired,
	}
	if err := r.trainer.db.AddEpochStat(stat); err != nil {
		return errors.Wrap(err, "record epoch stat")
	}

	metric := v.BLEU
	if r.tracker.Metric == score.MetricLoss {
		metric = v.Loss
	}
	if err := r.results.Append(phase, v.Epoch, r.ledger.GroupWidths(), stat.Params, metric); err != nil {
		r.trainer.logger.Errorf("failed to append result row: %v", err)
	}

	monitor.EpochDuration.Observe(time.Since(r.lastEpoch).Seconds())
	r.lastEpoch = time.Now()

	if stop := r.tracker.Observe(v); stop {
		r.stopReason = fmt.Sprintf("no %s improvement for %d validations", r.tracker.Metric, r.tracker.Patience)
		return errEarlyStop
	}
	if stop, reason := r.tracker.CheckStop(v.NumUpdates, v.LR, time.Since(r.started).Hours()); stop {
		r.stopReason = reason
		return errEarlyStop
	}
	return nil
}

// finalize writes the run's outcome onto the task row.
func (r *trainRun) finalize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	update := schema.Task{
		ParamsBefore: r.paramsBefore,
		ParamsAfter:  r.ledger.ParamCount(),
		FlopsBefore:  r.flopsBefore,
		FlopsAfter:   r.ledger.Counter().ModelFlops(),
	}

	if best, epoch, ok := r.tracker.Best(); ok {
		update.BestMetric = best
		if path, found := checkpoint.Best(r.paths.SaveDir); found {
			update.BestCheckpoint = path
		} else {
			update.BestCheckpoint = fmt.Sprintf("%s/%s", r.paths.SaveDir, checkpoint.EpochName(epoch))
		}
	}

	return r.trainer.db.UpdateTask(r.task.ID, update)
}
