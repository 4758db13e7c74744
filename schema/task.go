package schema

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/plugin/soft_delete"
)

type ProgressState int

const (
	ProgressStateInit ProgressState = iota
	ProgressStateSettingUp
	ProgressStateSetUp
	ProgressStateTraining
	ProgressStateTrained
	ProgressStateEvaluating
	ProgressStateDelivered
	ProgressStateFinished
	ProgressStateFailed
)

func (s ProgressState) String() string {
	return [...]string{
		"Init",
		"SettingUp",
		"SetUp",
		"Training",
		"Trained",
		"Evaluating",
		"Delivered",
		"Finished",
		"Failed",
	}[s]
}

type Task struct {
	ID        *uuid.UUID `gorm:"type:char(36);primaryKey" json:"id" readonly:"true"`
	CreatedAt *time.Time `json:"createdAt" readonly:"true"`
	UpdatedAt *time.Time `json:"updatedAt" readonly:"true"`

	UserTag        string `gorm:"type:varchar(255);index" json:"userTag"`
	DataDir        string `gorm:"type:varchar(1024);not null" json:"dataDir" binding:"required"`
	Architecture   string `gorm:"type:varchar(255);not null" json:"architecture" binding:"required"`
	TrainingParams string `gorm:"type:json;not null" json:"trainingParams" binding:"required"`
	GPUs           string `gorm:"type:varchar(255)" json:"gpus"`
	Priority       int    `gorm:"type:int;not null;default:0" json:"priority"`

	// Pretrained checkpoint the run starts from; filled by the setup
	// service for chained recipe stages.
	PretrainedModel string `gorm:"type:varchar(1024)" json:"pretrainedModel"`

	RecipeID   string `gorm:"type:char(36);index" json:"recipeId,omitempty" readonly:"true"`
	StageName  string `gorm:"type:varchar(255)" json:"stageName,omitempty" readonly:"true"`
	WaitingFor string `gorm:"type:text" json:"waitingFor,omitempty" readonly:"true"`

	Progress   string `gorm:"type:varchar(255);not null;default:'Init'" json:"progress" readonly:"true"`
	NumRetries uint   `gorm:"type:int;not null;default:0" json:"numRetries" readonly:"true"`
	Error      string `gorm:"type:text" json:"error,omitempty" readonly:"true"`

	BestMetric     float64 `gorm:"type:double" json:"bestMetric" readonly:"true"`
	BestCheckpoint string  `gorm:"type:varchar(1024)" json:"bestCheckpoint" readonly:"true"`
	TestBLEU       float64 `gorm:"type:double" json:"testBleu" readonly:"true"`
	ParamsBefore   int64   `gorm:"type:bigint" json:"paramsBefore" readonly:"true"`
	ParamsAfter    int64   `gorm:"type:bigint" json:"paramsAfter" readonly:"true"`
	FlopsBefore    float64 `gorm:"type:double" json:"flopsBefore" readonly:"true"`
	FlopsAfter     float64 `gorm:"type:double" json:"flopsAfter" readonly:"true"`
	ArchivePath    string  `gorm:"type:varchar(1024)" json:"archivePath,omitempty" readonly:"true"`

	DeliverTime int64                 `gorm:"type:bigint;not null;default:0" json:"-" readonly:"true"`
	DeletedAt   soft_delete.DeletedAt `gorm:"softDelete:nano;not null;default:0;index:deleted_task" json:"-" readonly:"true"`
}

func (t *Task) Bind(ctx *gin.Context) error {
	var r Task
	if err := ctx.ShouldBindJSON(&r); err != nil {
		return err
	}
	t.UserTag = r.UserTag
	t.DataDir = r.DataDir
	t.Architecture = r.Architecture
	t.TrainingParams = r.TrainingParams
	t.GPUs = r.GPUs
	t.Priority = r.Priority
	t.PretrainedModel = r.PretrainedModel
	return nil
}

// EpochStat is one row per finished training epoch of a task.
type EpochStat struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"-"`
	CreatedAt *time.Time `json:"createdAt" readonly:"true"`

	TaskID      *uuid.UUID `gorm:"type:char(36);not null;index" json:"taskId"`
	Epoch       int        `gorm:"type:int;not null" json:"epoch"`
	Phase       string     `gorm:"type:varchar(32);not null" json:"phase"`
	ValidLoss   float64    `gorm:"type:double" json:"validLoss"`
	ValidBLEU   float64    `gorm:"type:double" json:"validBleu"`
	LR          float64    `gorm:"type:double" json:"lr"`
	NumUpdates  int64      `gorm:"type:bigint" json:"numUpdates"`
	Params      int64      `gorm:"type:bigint" json:"params"`
	GroupWidths string     `gorm:"type:json" json:"groupWidths"`
	Pruned      bool       `gorm:"type:bool;not null;default:false" json:"pruned"`
}
