package config

import (
	"log"
	"os"
	"sync"

	"gopkg.in/yaml.v2"

	commonlog "github.com/ds-ai96/SRP/common/log"
)

// RunnerMode selects how the external trainer is executed.
type RunnerMode string

const (
	RunnerLocal  RunnerMode = "local"
	RunnerDocker RunnerMode = "docker"
)

type Quota struct {
	CpuCount int64 `yaml:"cpuCount"`
	Memory   int64 `yaml:"memory"`  // Memory limit in GB
	Storage  int64 `yaml:"storage"` // Storage limit in GB
	GpuCount int64 `yaml:"gpuCount"`
}

type Runner struct {
	Mode         RunnerMode `yaml:"mode"`
	PythonBinary string     `yaml:"pythonBinary"`
	TrainScript  string     `yaml:"trainScript"`
	GenScript    string     `yaml:"genScript"`
	UserDir      string     `yaml:"userDir"`

	Image   string `yaml:"image"`
	Runtime string `yaml:"runtime"`
	Quota   Quota  `yaml:"quota"`
}

type Scheduler struct {
	SetupWorkerCount     int `yaml:"setupWorkerCount"`
	TrainingWorkerCount  int `yaml:"trainingWorkerCount"`
	EvaluatorWorkerCount int `yaml:"evaluatorWorkerCount"`

	PollIntervalSecs  int64 `yaml:"pollIntervalSecs"`
	SweepIntervalSecs int64 `yaml:"sweepIntervalSecs"`

	SetupTimeoutMins    int64 `yaml:"setupTimeoutMins"`
	TrainingTimeoutMins int64 `yaml:"trainingTimeoutMins"`
	EvalTimeoutMins     int64 `yaml:"evalTimeoutMins"`

	MaxSetupRetriesPerTask     uint `yaml:"maxSetupRetriesPerTask"`
	MaxTrainerRetriesPerTask   uint `yaml:"maxTrainerRetriesPerTask"`
	MaxEvaluatorRetriesPerTask uint `yaml:"maxEvaluatorRetriesPerTask"`

	DataRetentionDays uint `yaml:"dataRetentionDays"`
	MaxTaskQueueSize  uint `yaml:"maxTaskQueueSize"`
}

type Paths struct {
	WorkRoot    string `yaml:"workRoot"`
	ResultsRoot string `yaml:"resultsRoot"`
}

type Config struct {
	Database struct {
		Broker string `yaml:"broker"`
	} `yaml:"database"`

	Address string `yaml:"address"`

	Runner    Runner           `yaml:"runner"`
	Scheduler Scheduler        `yaml:"scheduler"`
	Paths     Paths            `yaml:"paths"`
	Logger    commonlog.Config `yaml:"logger"`

	// GPUs enumerates the host GPU indices the broker may hand out.
	GPUs []int `yaml:"gpus"`
}

var (
	instance *Config
	once     sync.Once
)

func loadConfig(config *Config) error {
	configPath := "/etc/config/config.yaml"
	if envPath := os.Getenv("CONFIG_FILE"); envPath != "" {
		configPath = envPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	return yaml.UnmarshalStrict(data, config)
}

func GetConfig() *Config {
	once.Do(func() {
		instance = &Config{
			Database: struct {
				Broker string `yaml:"broker"`
			}{
				Broker: "root:123456@tcp(srp-broker-db:3306)/srp?parseTime=true",
			},
			Address: ":3090",
			Runner: Runner{
				Mode:         RunnerLocal,
				PythonBinary: "python3",
				TrainScript:  "../src/pruning.py",
				GenScript:    "../src/generate.py",
				UserDir:      "../src",
				Image:        "srp-trainer:latest",
				Runtime:      "nvidia",
				Quota: Quota{
					CpuCount: 8,
					Memory:   32,
					Storage:  100,
					GpuCount: 1,
				},
			},
			Scheduler: Scheduler{
				SetupWorkerCount:           1,
				TrainingWorkerCount:        1,
				EvaluatorWorkerCount:       1,
				PollIntervalSecs:           60,
				SweepIntervalSecs:          60,
				SetupTimeoutMins:           60,
				TrainingTimeoutMins:        60 * 24,
				EvalTimeoutMins:            60,
				MaxSetupRetriesPerTask:     10,
				MaxTrainerRetriesPerTask:   1,
				MaxEvaluatorRetriesPerTask: 10,
				DataRetentionDays:          3,
				MaxTaskQueueSize:           5,
			},
			Paths: Paths{
				WorkRoot:    "/var/lib/srp/tasks",
				ResultsRoot: "/var/lib/srp/res_files",
			},
			Logger: commonlog.Config{
				Format:        "text",
				Level:         "info",
				Path:          "",
				RotationCount: 50,
			},
			GPUs: []int{0},
		}

		if err := loadConfig(instance); err != nil {
			log.Fatalf("Error loading configuration: %v", err)
		}
	})

	return instance
}
