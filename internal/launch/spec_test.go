package launch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSpec() *TrainSpec {
	return &TrainSpec{
		DataBin:    "/data/iwslt14-bin",
		UserDir:    "../src",
		Arch:       "spt_iwslt_de_en",
		Task:       "translation",
		SourceLang: "de",
		TargetLang: "en",
		Optimizer: Optimizer{
			Name:        "spt_adam",
			Beta1:       0.9,
			Beta2:       0.98,
			Eps:         1e-8,
			WeightDecay: 0.0001,
		},
		LR:             0.0005,
		LRScheduler:    "inverse_sqrt",
		WarmupUpdates:  4000,
		Criterion:      "spt",
		LabelSmoothing: 0.1,
		MaxTokens:      4096,
		Schedule: Schedule{
			CompressionRate: 0.3,
			Stage:           1,
			Iter:            10,
			Period:          5,
			Decreasing:      DecreasingEpoch,
		},
		Checkpoints:          Checkpoints{SaveDir: "/work/save"},
		BestCheckpointMetric: "bleu",
		MaximizeBestMetric:   true,
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validSpec().Validate())

	s := validSpec()
	s.DataBin = ""
	assert.Error(t, s.Validate())

	s = validSpec()
	s.Schedule.CompressionRate = 1.0
	assert.Error(t, s.Validate())

	s = validSpec()
	s.Schedule.Stage = 3
	assert.Error(t, s.Validate())

	s = validSpec()
	s.Schedule.Period = 0
	assert.Error(t, s.Validate())

	s = validSpec()
	s.Schedule.Decreasing = "x"
	assert.Error(t, s.Validate())

	s = validSpec()
	s.MaxTokens = 0
	assert.Error(t, s.Validate())

	s = validSpec()
	s.Checkpoints.SaveDir = ""
	assert.Error(t, s.Validate())
}

func TestCommand(t *testing.T) {
	t.Parallel()

	argv := validSpec().Command("python3", "../src/pruning.py")

	require.GreaterOrEqual(t, len(argv), 3)
	assert.Equal(t, []string{"python3", "../src/pruning.py", "/data/iwslt14-bin"}, argv[:3])

	joined := strings.Join(argv, " ")
	assert.Contains(t, joined, "--user-dir ../src")
	assert.Contains(t, joined, "-a spt_iwslt_de_en")
	assert.Contains(t, joined, "--optimizer spt_adam")
	assert.Contains(t, joined, "--adam-betas (0.9, 0.98)")
	assert.Contains(t, joined, "--criterion spt")
	assert.Contains(t, joined, "--compression-rate 0.3")
	assert.Contains(t, joined, "--pruning-stage 1")
	assert.Contains(t, joined, "--pruning-iter 10")
	assert.Contains(t, joined, "--pruning-period 5")
	assert.Contains(t, joined, "--decreasing e")
	assert.Contains(t, joined, "--max-tokens 4096")
	assert.Contains(t, joined, "--save-dir /work/save")
	assert.Contains(t, joined, "--maximize-best-checkpoint-metric")

	assert.NotContains(t, joined, "--srp")
	assert.NotContains(t, joined, "--fp16")
	assert.NotContains(t, joined, "--restore-file")
	assert.NotContains(t, joined, "--eval-bleu ")
}

func TestCommandOptionalFlags(t *testing.T) {
	t.Parallel()

	s := validSpec()
	s.Schedule.SRP = true
	s.FP16 = true
	s.PretrainedModel = "/models/base.pt"
	s.Checkpoints.RestoreFile = "/work/save/checkpoint_last.pt"
	s.Checkpoints.KeepLastEpochs = 5
	s.EvalBLEU = true
	s.BLEU = BLEUEval{Beam: 5, MaxLenA: 1.2, MaxLenB: 10, LenPen: 1.0, Detok: "moses", RemoveBPE: "@@ "}

	joined := strings.Join(s.Command("python3", "train.py"), " ")
	assert.Contains(t, joined, "--srp")
	assert.Contains(t, joined, "--fp16")
	assert.Contains(t, joined, "--pretrained-model /models/base.pt")
	assert.Contains(t, joined, "--restore-file /work/save/checkpoint_last.pt")
	assert.Contains(t, joined, "--keep-last-epochs 5")
	assert.Contains(t, joined, "--eval-bleu")
	assert.Contains(t, joined, "--eval-bleu-detok moses")
	assert.Contains(t, joined, "--eval-bleu-remove-bpe @@ ")
}

func TestCommandStopConditions(t *testing.T) {
	t.Parallel()

	s := validSpec()
	joined := strings.Join(s.Command("python3", "train.py"), " ")
	assert.NotContains(t, joined, "--stop-min-lr")
	assert.NotContains(t, joined, "--stop-time-hours")

	s.StopMinLR = 1e-9
	s.StopTimeHours = 12
	joined = strings.Join(s.Command("python3", "train.py"), " ")
	assert.Contains(t, joined, "--stop-min-lr 0.000000001")
	assert.Contains(t, joined, "--stop-time-hours 12")
}

func TestGenerateCommand(t *testing.T) {
	t.Parallel()

	s := validSpec()
	s.BLEU = BLEUEval{Beam: 5, MaxLenA: 1.2, MaxLenB: 10, LenPen: 1.0, RemoveBPE: "@@ "}

	argv := s.GenerateCommand("python3", "../src/generate.py", "/work/save/checkpoint_best.pt")
	assert.Equal(t, []string{"python3", "../src/generate.py", s.DataBin}, argv[:3])

	joined := strings.Join(argv, " ")
	assert.Contains(t, joined, "--path /work/save/checkpoint_best.pt")
	assert.Contains(t, joined, "--gen-subset test")
	assert.Contains(t, joined, "--beam 5")
	assert.Contains(t, joined, "--lenpen 1")
	assert.Contains(t, joined, "--max-len-a 1.2")
	assert.Contains(t, joined, "--max-len-b 10")
	assert.Contains(t, joined, "--remove-bpe @@ ")
	assert.NotContains(t, joined, "--compression-rate")
}

func TestCommandIsDeterministic(t *testing.T) {
	t.Parallel()

	a := validSpec().Command("python3", "train.py")
	b := validSpec().Command("python3", "train.py")
	assert.Equal(t, a, b)
}

func TestGenerationArgs(t *testing.T) {
	t.Parallel()

	b := BLEUEval{Beam: 5, MaxLenA: 1.2, MaxLenB: 10, LenPen: 1.0}
	blob := b.GenerationArgs()
	assert.JSONEq(t, `{"beam":5,"max_len_a":1.2,"max_len_b":10,"lenpen":1}`, blob)
}

func TestEnv(t *testing.T) {
	t.Parallel()

	s := validSpec()
	s.GPUs = []int{0, 2}
	assert.Contains(t, s.Env(), "CUDA_VISIBLE_DEVICES=0,2")
	assert.Contains(t, s.Env(), "PYTHONUNBUFFERED=1")
	assert.Contains(t, s.Env(), "LOGLEVEL=INFO")

	// An empty device list still pins the run to the CPU explicitly.
	s.GPUs = nil
	assert.Contains(t, s.Env(), "CUDA_VISIBLE_DEVICES=")

	s.LogLevel = "DEBUG"
	assert.Contains(t, s.Env(), "LOGLEVEL=DEBUG")
}

func TestBetas(t *testing.T) {
	t.Parallel()

	o := Optimizer{Beta1: 0.9, Beta2: 0.98}
	assert.Equal(t, "(0.9, 0.98)", o.Betas())
}
