package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/ds-ai96/SRP/common/log"
	"github.com/ds-ai96/SRP/common/util"
	"github.com/ds-ai96/SRP/config"
	"github.com/ds-ai96/SRP/internal/ctrl"
	"github.com/ds-ai96/SRP/internal/db"
	"github.com/ds-ai96/SRP/internal/handler"
	"github.com/ds-ai96/SRP/internal/monitor"
	"github.com/ds-ai96/SRP/internal/runner"
	"github.com/ds-ai96/SRP/internal/services"
)

//go:generate swag fmt
//go:generate swag init --dir ./,../../ --output ../../doc

//	@title			SRP Training Broker API
//	@version		0.1.0
//	@description	These APIs submit and track structured-pruning training runs
//	@host			localhost:3090
//	@BasePath		/v1
//	@in				header

func main() {
	cfg := config.GetConfig()
	logger, err := log.GetLogger(&cfg.Logger)
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Runner.Mode == config.RunnerLocal {
		if err := util.CheckPythonEnv(ctx, cfg.Runner.PythonBinary, logger); err != nil {
			panic(err)
		}
	}

	app, err := initializeServices(cfg, logger)
	if err != nil {
		panic(err)
	}

	if err := runApplication(ctx, app, cfg, logger); err != nil {
		panic(err)
	}
}

type applicationServices struct {
	db        *db.DB
	ctrl      *ctrl.Ctrl
	setup     *services.Setup
	trainer   *services.Trainer
	evaluator *services.Evaluator
	sweeper   *services.Sweeper
}

func initializeServices(cfg *config.Config, logger log.Logger) (*applicationServices, error) {
	database, err := db.NewDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(); err != nil {
		return nil, err
	}

	var run runner.Runner
	switch cfg.Runner.Mode {
	case config.RunnerDocker:
		run = runner.NewDocker(cfg.Runner, logger)
	default:
		run = runner.NewLocal(cfg.Runner, logger)
	}

	setup, err := services.NewSetup(database, cfg, logger)
	if err != nil {
		return nil, err
	}

	trainer, err := services.NewTrainer(database, cfg, run, logger)
	if err != nil {
		return nil, err
	}

	evaluator, err := services.NewEvaluator(database, cfg, run, logger)
	if err != nil {
		return nil, err
	}

	sweeper, err := services.NewSweeper(database, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &applicationServices{
		db:        database,
		ctrl:      ctrl.New(database, cfg, logger),
		setup:     setup,
		trainer:   trainer,
		evaluator: evaluator,
		sweeper:   sweeper,
	}, nil
}

func runApplication(ctx context.Context, app *applicationServices, cfg *config.Config, logger log.Logger) error {
	monitor.InitPrometheus("srp-broker")

	snap := monitor.Snapshot(cfg.Paths.WorkRoot)
	logger.Infof("host: %d cpus, %.1f GB mem, %.1f GB free on work root",
		snap.CPUCount,
		float64(snap.MemTotalBytes)/(1<<30),
		float64(snap.DiskFree)/(1<<30))

	// Workers that died with the previous process cannot resume their
	// in-flight runs.
	if err := app.db.MarkInProgressTasksAsFailed(); err != nil {
		return err
	}

	if err := app.setup.Start(ctx); err != nil {
		return err
	}
	if err := app.trainer.Start(ctx); err != nil {
		return err
	}
	if err := app.evaluator.Start(ctx); err != nil {
		return err
	}
	if err := app.sweeper.Start(ctx); err != nil {
		return err
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	h := handler.New(app.ctrl, logger)
	h.Register(engine)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Infof("starting http server on %s...", cfg.Address)
		if err := engine.Run(cfg.Address); err != nil {
			logger.Errorf("HTTP server error: %v", err)
			stop <- os.Interrupt
		}
	}()

	<-stop
	logger.Info("shutting down server...")
	return nil
}
