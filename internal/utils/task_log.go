package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ds-ai96/SRP/common/errors"
)

const (
	SaveDirName     = "save"
	ResultsFileName = "results.csv"
	ParamsFileName  = "params.yaml"
	ReportFileName  = "report.json"
	ArchiveFileName = "archive.zip"
	TaskLogFileName = "progress.log"
)

// TaskPaths lays out one task's working directory.
type TaskPaths struct {
	BasePath string
	SaveDir  string
	Results  string
	Params   string
	Report   string
	Archive  string
}

func NewTaskPaths(basePath string) *TaskPaths {
	return &TaskPaths{
		BasePath: basePath,
		SaveDir:  filepath.Join(basePath, SaveDirName),
		Results:  filepath.Join(basePath, ResultsFileName),
		Params:   filepath.Join(basePath, ParamsFileName),
		Report:   filepath.Join(basePath, ReportFileName),
		Archive:  filepath.Join(basePath, ArchiveFileName),
	}
}

func GetTaskDir(workRoot string, id *uuid.UUID) string {
	return filepath.Join(workRoot, id.String())
}

func InitTaskDirectory(workRoot string, id *uuid.UUID) error {
	dir := GetTaskDir(workRoot, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "create task folder")
	}

	if err := WriteToLogFile(workRoot, id, "creating task....\n"); err != nil {
		return errors.Wrap(err, "initialize task log")
	}

	return nil
}

func WriteToLogFile(workRoot string, id *uuid.UUID, content string) error {
	filePath := filepath.Join(GetTaskDir(workRoot, id), TaskLogFileName)
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.WriteString(fmt.Sprintf("[%s] %s", time.Now().Format(time.RFC3339), content)); err != nil {
		return err
	}
	return nil
}

func ReadLogFile(workRoot string, id *uuid.UUID) (string, error) {
	data, err := os.ReadFile(filepath.Join(GetTaskDir(workRoot, id), TaskLogFileName))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
