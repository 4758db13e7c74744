package services

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ds-ai96/SRP/common/errors"
	"github.com/ds-ai96/SRP/common/log"
	"github.com/ds-ai96/SRP/common/util"
	"github.com/ds-ai96/SRP/config"
	"github.com/ds-ai96/SRP/internal/db"
	"github.com/ds-ai96/SRP/internal/runner"
	"github.com/ds-ai96/SRP/internal/utils"
	"github.com/ds-ai96/SRP/schema"
)

var bleuPattern = regexp.MustCompile(`BLEU4? = ([0-9]+(?:\.[0-9]+)?)`)

// Report is the final compression summary stored for a delivered task.
type Report struct {
	BestMetric     float64            `json:"bestMetric"`
	BestCheckpoint string             `json:"bestCheckpoint"`
	TestBLEU       float64            `json:"testBleu"`
	ParamsBefore   int64              `json:"paramsBefore"`
	ParamsAfter    int64              `json:"paramsAfter"`
	FlopsBefore    float64            `json:"flopsBefore"`
	FlopsAfter     float64            `json:"flopsAfter"`
	Compression    float64            `json:"compression"`
	GroupWidths    json.RawMessage    `json:"groupWidths,omitempty"`
}

// Evaluator scores the best checkpoint of a trained task on the test
// split, assembles the compression report and archives the run.
type Evaluator struct {
	*Service

	runner runner.Runner
}

func NewEvaluator(
	database *db.DB,
	cfg *config.Config,
	run runner.Runner,
	logger log.Logger,
) (*Evaluator, error) {
	srv := &Evaluator{
		runner: run,
		Service: NewService(
			"evaluator",
			TaskStates{
				Initial:      schema.ProgressStateTrained,
				Intermediate: schema.ProgressStateEvaluating,
				Final:        schema.ProgressStateDelivered,
			},
			time.Duration(cfg.Scheduler.PollIntervalSecs)*time.Second,
			cfg,
			database,
			logger.WithFields(logrus.Fields{"name": "evaluator"}),
			workerpool.New(cfg.Scheduler.EvaluatorWorkerCount),
		),
	}
	srv.taskProcessor = srv
	return srv, nil
}

func (e *Evaluator) GetTaskTimeout(ctx context.Context) (time.Duration, error) {
	return time.Duration(e.config.Scheduler.EvalTimeoutMins) * time.Minute, nil
}

func (e *Evaluator) HandleNoTask(ctx context.Context) error {
	return nil
}

func (e *Evaluator) HandleExecuteFailure(err error, dbTask *schema.Task) (bool, error) {
	return e.db.HandleTaskFailure(dbTask, err, e.config.Scheduler.MaxEvaluatorRetriesPerTask, e.states.Intermediate, e.states.Initial)
}

func (e *Evaluator) Execute(ctx context.Context, task *schema.Task, paths *utils.TaskPaths) error {
	fresh, err := e.db.GetTask(task.ID)
	if err != nil {
		return err
	}

	if fresh.BestCheckpoint == "" {
		return errors.New("trained task has no best checkpoint")
	}
	if _, err := os.Stat(fresh.BestCheckpoint); err != nil {
		return errors.Wrapf(err, "best checkpoint %s", fresh.BestCheckpoint)
	}

	testBLEU, err := e.scoreTestSet(ctx, &fresh, paths)
	if err != nil {
		return err
	}

	report, err := e.buildReport(&fresh, testBLEU)
	if err != nil {
		return err
	}

	// Archiving the save dir and persisting the report are independent.
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		return util.ZipDirectory(paths.SaveDir, paths.Archive)
	})
	g.Go(func() error {
		blob, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(paths.Report, blob, 0644)
	})
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "deliver evaluation artifacts")
	}

	return e.db.UpdateTask(task.ID, schema.Task{
		TestBLEU:    testBLEU,
		ArchivePath: paths.Archive,
		DeliverTime: time.Now().Unix(),
	})
}

// scoreTestSet runs the generation script against the best checkpoint
// through the configured runner and scrapes the corpus BLEU from its
// output.
func (e *Evaluator) scoreTestSet(ctx context.Context, task *schema.Task, paths *utils.TaskPaths) (float64, error) {
	spec, err := readSpecFile(paths.Params)
	if err != nil {
		return 0, errors.Wrap(err, "read params file")
	}

	var bleu float64
	found := false
	sink := runner.SinkFunc(func(line string) error {
		if v, ok := parseBLEU(line); ok {
			bleu, found = v, true
		}
		return nil
	})

	if err := e.runner.Generate(ctx, spec, paths.BasePath, task.BestCheckpoint, sink); err != nil {
		return 0, errors.Wrap(err, "run generation")
	}
	if !found {
		return 0, errors.New("no BLEU score in generation output")
	}
	return bleu, nil
}

// parseBLEU scrapes the corpus BLEU from a generation output line.
func parseBLEU(line string) (float64, bool) {
	m := bleuPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (e *Evaluator) buildReport(task *schema.Task, testBLEU float64) (*Report, error) {
	report := &Report{
		BestMetric:     task.BestMetric,
		BestCheckpoint: task.BestCheckpoint,
		TestBLEU:       testBLEU,
		ParamsBefore:   task.ParamsBefore,
		ParamsAfter:    task.ParamsAfter,
		FlopsBefore:    task.FlopsBefore,
		FlopsAfter:     task.FlopsAfter,
	}
	if task.ParamsBefore > 0 {
		report.Compression = 1 - float64(task.ParamsAfter)/float64(task.ParamsBefore)
	}

	stats, err := e.db.GetEpochStats(task.ID)
	if err != nil {
		return nil, err
	}
	if len(stats) > 0 {
		report.GroupWidths = json.RawMessage(stats[len(stats)-1].GroupWidths)
	}
	return report, nil
}
