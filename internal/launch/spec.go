// Package launch assembles the command line and environment for one
// invocation of the external structured-pruning trainer.
package launch

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ds-ai96/SRP/common/errors"
)

// DecreasingMode selects when the gate decay is applied during the
// pruning phase.
type DecreasingMode string

const (
	DecreasingEpoch DecreasingMode = "e"
	DecreasingStep  DecreasingMode = "s"
)

// Schedule is the pruning schedule forwarded to the trainer.
type Schedule struct {
	CompressionRate float64        `json:"compressionRate" yaml:"compressionRate"`
	Stage           int            `json:"pruningStage" yaml:"pruningStage"`
	Iter            int            `json:"pruningIter" yaml:"pruningIter"`
	Period          int            `json:"pruningPeriod" yaml:"pruningPeriod"`
	WarmupEpochs    int            `json:"warmupEpochs" yaml:"warmupEpochs"`
	Decreasing      DecreasingMode `json:"decreasing" yaml:"decreasing"`
	SRP             bool           `json:"srp" yaml:"srp"`
}

// BLEUEval configures the trainer's end-of-epoch BLEU validation.
type BLEUEval struct {
	Beam      int     `json:"beam" yaml:"beam"`
	MaxLenA   float64 `json:"max_len_a" yaml:"maxLenA"`
	MaxLenB   int     `json:"max_len_b" yaml:"maxLenB"`
	LenPen    float64 `json:"lenpen" yaml:"lenpen"`
	Detok     string  `json:"detok" yaml:"detok"`
	RemoveBPE string  `json:"removeBpe" yaml:"removeBpe"`
}

// Optimizer holds the spt_adam hyperparameters.
type Optimizer struct {
	Name        string  `json:"name" yaml:"name"`
	Beta1       float64 `json:"beta1" yaml:"beta1"`
	Beta2       float64 `json:"beta2" yaml:"beta2"`
	Eps         float64 `json:"eps" yaml:"eps"`
	WeightDecay float64 `json:"weightDecay" yaml:"weightDecay"`
}

// Checkpoints carries the save/restore settings of the run.
type Checkpoints struct {
	SaveDir             string `json:"saveDir" yaml:"saveDir"`
	RestoreFile         string `json:"restoreFile" yaml:"restoreFile"`
	KeepLastEpochs      int    `json:"keepLastEpochs" yaml:"keepLastEpochs"`
	NoEpochCheckpoints  bool   `json:"noEpochCheckpoints" yaml:"noEpochCheckpoints"`
	SaveInterval        int    `json:"saveInterval" yaml:"saveInterval"`
	SaveIntervalUpdates int    `json:"saveIntervalUpdates" yaml:"saveIntervalUpdates"`
}

// TrainSpec is the full typed form of one training/pruning invocation.
type TrainSpec struct {
	DataBin    string `json:"dataBin" yaml:"dataBin"`
	UserDir    string `json:"userDir" yaml:"userDir"`
	Arch       string `json:"arch" yaml:"arch"`
	Task       string `json:"task" yaml:"task"`
	SourceLang string `json:"sourceLang" yaml:"sourceLang"`
	TargetLang string `json:"targetLang" yaml:"targetLang"`

	Optimizer      Optimizer `json:"optimizer" yaml:"optimizer"`
	LR             float64   `json:"lr" yaml:"lr"`
	LRScheduler    string    `json:"lrScheduler" yaml:"lrScheduler"`
	WarmupUpdates  int       `json:"warmupUpdates" yaml:"warmupUpdates"`
	ClipNorm       float64   `json:"clipNorm" yaml:"clipNorm"`
	Dropout        float64   `json:"dropout" yaml:"dropout"`
	Criterion      string    `json:"criterion" yaml:"criterion"`
	LabelSmoothing float64   `json:"labelSmoothing" yaml:"labelSmoothing"`

	MaxTokens     int     `json:"maxTokens" yaml:"maxTokens"`
	BatchSize     int     `json:"batchSize" yaml:"batchSize"`
	MaxEpoch      int     `json:"maxEpoch" yaml:"maxEpoch"`
	MaxUpdate     int     `json:"maxUpdate" yaml:"maxUpdate"`
	Patience      int     `json:"patience" yaml:"patience"`
	StopMinLR     float64 `json:"stopMinLr" yaml:"stopMinLr"`
	StopTimeHours float64 `json:"stopTimeHours" yaml:"stopTimeHours"`
	Seed          int     `json:"seed" yaml:"seed"`
	FP16          bool    `json:"fp16" yaml:"fp16"`

	Schedule        Schedule    `json:"schedule" yaml:"schedule"`
	PretrainedModel string      `json:"pretrainedModel" yaml:"pretrainedModel"`
	Checkpoints     Checkpoints `json:"checkpoints" yaml:"checkpoints"`

	EvalBLEU             bool     `json:"evalBleu" yaml:"evalBleu"`
	BLEU                 BLEUEval `json:"bleu" yaml:"bleu"`
	BestCheckpointMetric string   `json:"bestCheckpointMetric" yaml:"bestCheckpointMetric"`
	MaximizeBestMetric   bool     `json:"maximizeBestMetric" yaml:"maximizeBestMetric"`

	// GPU indices as visible to the host. An empty list pins the run to
	// the CPU by rendering an empty CUDA_VISIBLE_DEVICES.
	GPUs []int `json:"gpus" yaml:"gpus"`

	LogLevel string `json:"logLevel" yaml:"logLevel"`
}

func (s *TrainSpec) Validate() error {
	if s.DataBin == "" {
		return errors.New("data-bin directory is required")
	}
	if s.Arch == "" {
		return errors.New("architecture is required")
	}
	if s.Schedule.CompressionRate <= 0 || s.Schedule.CompressionRate >= 1 {
		return errors.Errorf("compression rate must be in (0,1), got %v", s.Schedule.CompressionRate)
	}
	if s.Schedule.Stage < 0 || s.Schedule.Stage > 2 {
		return errors.Errorf("unknown pruning stage %d", s.Schedule.Stage)
	}
	if s.Schedule.Iter <= 0 {
		return errors.Errorf("pruning iter must be positive, got %d", s.Schedule.Iter)
	}
	if s.Schedule.Period <= 0 {
		return errors.Errorf("pruning period must be positive, got %d", s.Schedule.Period)
	}
	switch s.Schedule.Decreasing {
	case DecreasingEpoch, DecreasingStep:
	default:
		return errors.Errorf("unknown decreasing mode %q", s.Schedule.Decreasing)
	}
	if s.MaxTokens <= 0 && s.BatchSize <= 0 {
		return errors.New("either max tokens or batch size must be set")
	}
	if s.Checkpoints.SaveDir == "" {
		return errors.New("checkpoint save dir is required")
	}
	return nil
}

// Betas renders the optimizer betas the way the trainer parses them.
func (o Optimizer) Betas() string {
	return fmt.Sprintf("(%s, %s)", trimFloat(o.Beta1), trimFloat(o.Beta2))
}

// Command renders the deterministic argv of the run: interpreter, entry
// script, positional data-bin, then flags in fixed order.
func (s *TrainSpec) Command(python, script string) []string {
	args := []string{python, script, s.DataBin}

	if s.UserDir != "" {
		args = append(args, "--user-dir", s.UserDir)
	}
	args = append(args,
		"-a", s.Arch,
		"--task", s.Task,
		"-s", s.SourceLang,
		"-t", s.TargetLang,
		"--optimizer", s.Optimizer.Name,
		"--adam-betas", s.Optimizer.Betas(),
		"--adam-eps", trimFloat(s.Optimizer.Eps),
		"--weight-decay", trimFloat(s.Optimizer.WeightDecay),
		"--lr", trimFloat(s.LR),
		"--lr-scheduler", s.LRScheduler,
		"--warmup-updates", strconv.Itoa(s.WarmupUpdates),
		"--clip-norm", trimFloat(s.ClipNorm),
		"--dropout", trimFloat(s.Dropout),
		"--criterion", s.Criterion,
		"--label-smoothing", trimFloat(s.LabelSmoothing),
	)

	if s.MaxTokens > 0 {
		args = append(args, "--max-tokens", strconv.Itoa(s.MaxTokens))
	}
	if s.BatchSize > 0 {
		args = append(args, "--batch-size", strconv.Itoa(s.BatchSize))
	}
	if s.MaxEpoch > 0 {
		args = append(args, "--max-epoch", strconv.Itoa(s.MaxEpoch))
	}
	if s.MaxUpdate > 0 {
		args = append(args, "--max-update", strconv.Itoa(s.MaxUpdate))
	}
	if s.Patience != 0 {
		args = append(args, "--patience", strconv.Itoa(s.Patience))
	}
	if s.StopMinLR > 0 {
		args = append(args, "--stop-min-lr", trimFloat(s.StopMinLR))
	}
	if s.StopTimeHours > 0 {
		args = append(args, "--stop-time-hours", trimFloat(s.StopTimeHours))
	}
	args = append(args, "--seed", strconv.Itoa(s.Seed))
	if s.FP16 {
		args = append(args, "--fp16")
	}

	args = append(args,
		"--compression-rate", trimFloat(s.Schedule.CompressionRate),
		"--pruning-stage", strconv.Itoa(s.Schedule.Stage),
		"--pruning-iter", strconv.Itoa(s.Schedule.Iter),
		"--pruning-period", strconv.Itoa(s.Schedule.Period),
		"--decreasing", string(s.Schedule.Decreasing),
	)
	if s.Schedule.SRP {
		args = append(args, "--srp")
	}
	if s.PretrainedModel != "" {
		args = append(args, "--pretrained-model", s.PretrainedModel)
	}

	args = append(args, "--save-dir", s.Checkpoints.SaveDir)
	if s.Checkpoints.RestoreFile != "" {
		args = append(args, "--restore-file", s.Checkpoints.RestoreFile)
	}
	if s.Checkpoints.KeepLastEpochs > 0 {
		args = append(args, "--keep-last-epochs", strconv.Itoa(s.Checkpoints.KeepLastEpochs))
	}
	if s.Checkpoints.NoEpochCheckpoints {
		args = append(args, "--no-epoch-checkpoints")
	}
	if s.Checkpoints.SaveInterval > 0 {
		args = append(args, "--save-interval", strconv.Itoa(s.Checkpoints.SaveInterval))
	}
	if s.Checkpoints.SaveIntervalUpdates > 0 {
		args = append(args, "--save-interval-updates", strconv.Itoa(s.Checkpoints.SaveIntervalUpdates))
	}

	if s.EvalBLEU {
		args = append(args,
			"--eval-bleu",
			"--eval-bleu-args", s.BLEU.GenerationArgs(),
			"--eval-bleu-detok", s.BLEU.Detok,
		)
		if s.BLEU.RemoveBPE != "" {
			args = append(args, "--eval-bleu-remove-bpe", s.BLEU.RemoveBPE)
		}
	}
	args = append(args, "--best-checkpoint-metric", s.BestCheckpointMetric)
	if s.MaximizeBestMetric {
		args = append(args, "--maximize-best-checkpoint-metric")
	}

	return args
}

// GenerateCommand renders the argv that scores a checkpoint on the
// test split with the generation script.
func (s *TrainSpec) GenerateCommand(python, script, checkpointPath string) []string {
	args := []string{python, script, s.DataBin}

	if s.UserDir != "" {
		args = append(args, "--user-dir", s.UserDir)
	}
	args = append(args,
		"--task", s.Task,
		"-s", s.SourceLang,
		"-t", s.TargetLang,
		"--path", checkpointPath,
		"--gen-subset", "test",
		"--beam", strconv.Itoa(s.BLEU.Beam),
		"--lenpen", trimFloat(s.BLEU.LenPen),
		"--max-len-a", trimFloat(s.BLEU.MaxLenA),
		"--max-len-b", strconv.Itoa(s.BLEU.MaxLenB),
	)
	if s.BLEU.RemoveBPE != "" {
		args = append(args, "--remove-bpe", s.BLEU.RemoveBPE)
	}

	return args
}

// GenerationArgs renders the JSON blob passed to --eval-bleu-args.
func (b BLEUEval) GenerationArgs() string {
	blob, _ := json.Marshal(map[string]interface{}{
		"beam":      b.Beam,
		"max_len_a": b.MaxLenA,
		"max_len_b": b.MaxLenB,
		"lenpen":    b.LenPen,
	})
	return string(blob)
}

// Env renders the run environment. The GPU list is comma-joined; an
// empty list still emits CUDA_VISIBLE_DEVICES= so the trainer sees an
// explicit CPU selection.
func (s *TrainSpec) Env() []string {
	devices := make([]string, 0, len(s.GPUs))
	for _, gpu := range s.GPUs {
		devices = append(devices, strconv.Itoa(gpu))
	}

	level := s.LogLevel
	if level == "" {
		level = "INFO"
	}

	return []string{
		"CUDA_VISIBLE_DEVICES=" + strings.Join(devices, ","),
		"LOGLEVEL=" + level,
		"PYTHONUNBUFFERED=1",
	}
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
