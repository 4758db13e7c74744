package services

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/ds-ai96/SRP/common/errors"
	"github.com/ds-ai96/SRP/config"
	constant "github.com/ds-ai96/SRP/const"
	"github.com/ds-ai96/SRP/internal/launch"
	"github.com/ds-ai96/SRP/internal/utils"
	"github.com/ds-ai96/SRP/schema"
)

// buildSpec turns a task row into the trainer invocation: decode the
// submitted params JSON, fill in the broker defaults and pin the
// checkpoint dir into the task folder.
func buildSpec(task *schema.Task, paths *utils.TaskPaths, cfg *config.Config) (*launch.TrainSpec, error) {
	spec := &launch.TrainSpec{}
	if task.TrainingParams != "" {
		if err := json.Unmarshal([]byte(task.TrainingParams), spec); err != nil {
			return nil, errors.Wrap(err, "decode training params")
		}
	}

	spec.DataBin = task.DataDir
	spec.Arch = task.Architecture
	spec.UserDir = cfg.Runner.UserDir
	spec.Checkpoints.SaveDir = paths.SaveDir
	if task.PretrainedModel != "" {
		spec.PretrainedModel = task.PretrainedModel
	}

	if spec.Task == "" {
		spec.Task = constant.DefaultTask
	}
	if spec.SourceLang == "" {
		spec.SourceLang = constant.DefaultSourceLang
	}
	if spec.TargetLang == "" {
		spec.TargetLang = constant.DefaultTargetLang
	}
	if spec.Optimizer.Name == "" {
		spec.Optimizer = launch.Optimizer{
			Name:        constant.DefaultOptimizer,
			Beta1:       0.9,
			Beta2:       0.98,
			Eps:         1e-8,
			WeightDecay: 0.0001,
		}
	}
	if spec.Criterion == "" {
		spec.Criterion = constant.DefaultCriterion
	}
	if spec.LRScheduler == "" {
		spec.LRScheduler = constant.DefaultLRScheduler
	}
	if spec.Schedule.Decreasing == "" {
		spec.Schedule.Decreasing = launch.DecreasingEpoch
	}
	if spec.BestCheckpointMetric == "" {
		spec.BestCheckpointMetric = "bleu"
		spec.MaximizeBestMetric = true
		spec.EvalBLEU = true
	}
	if spec.EvalBLEU && spec.BLEU.Beam == 0 {
		spec.BLEU = launch.BLEUEval{
			Beam:      5,
			MaxLenA:   1.2,
			MaxLenB:   10,
			LenPen:    1.0,
			Detok:     constant.DefaultDetok,
			RemoveBPE: constant.DefaultRemoveBPE,
		}
	}

	gpus, err := parseGPUs(task.GPUs, cfg.GPUs)
	if err != nil {
		return nil, err
	}
	spec.GPUs = gpus

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// parseGPUs resolves the task's requested device list against the
// host inventory; an empty request takes the whole inventory, and the
// literal "cpu" pins the run to the CPU.
func parseGPUs(requested string, inventory []int) ([]int, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return inventory, nil
	}
	if strings.EqualFold(requested, "cpu") {
		return []int{}, nil
	}

	known := make(map[int]bool, len(inventory))
	for _, gpu := range inventory {
		known[gpu] = true
	}

	var gpus []int
	for _, part := range strings.Split(requested, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Errorf("invalid gpu selection %q", requested)
		}
		if !known[n] {
			return nil, errors.Errorf("gpu %d not in host inventory", n)
		}
		gpus = append(gpus, n)
	}
	return gpus, nil
}

func writeSpecFile(spec *launch.TrainSpec, path string) error {
	data, err := yaml.Marshal(spec)
	if err != nil {
		return errors.Wrap(err, "encode spec")
	}
	return os.WriteFile(path, data, 0644)
}

func readSpecFile(path string) (*launch.TrainSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	spec := &launch.TrainSpec{}
	if err := yaml.Unmarshal(data, spec); err != nil {
		return nil, errors.Wrap(err, "decode spec file")
	}
	return spec, nil
}
