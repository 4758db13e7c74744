package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the leveled logger used across the broker. It is a thin
// wrapper over logrus so callers never depend on the backend directly.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Printf(format string, args ...interface{})
	WithFields(fields logrus.Fields) Logger
}

type Config struct {
	Format        string `yaml:"format"`
	Level         string `yaml:"level"`
	Path          string `yaml:"path"`
	RotationCount uint   `yaml:"rotationCount"`
}

type logger struct {
	entry *logrus.Entry
}

func (l *logger) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logger) Info(args ...interface{})                  { l.entry.Info(args...) }
func (l *logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logger) Warn(args ...interface{})                  { l.entry.Warn(args...) }
func (l *logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logger) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
func (l *logger) Printf(format string, args ...interface{}) { l.entry.Printf(format, args...) }

func (l *logger) WithFields(fields logrus.Fields) Logger {
	return &logger{entry: l.entry.WithFields(fields)}
}

// GetLogger builds a logger from config. With a non-empty Path the output
// goes to a dated file under that directory, keeping at most RotationCount
// old files around.
func GetLogger(conf *Config) (Logger, error) {
	base := logrus.New()

	level, err := logrus.ParseLevel(conf.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	switch conf.Format {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if conf.Path != "" {
		out, err := openLogFile(conf.Path, conf.RotationCount)
		if err != nil {
			return nil, err
		}
		base.SetOutput(io.MultiWriter(os.Stdout, out))
	}

	return &logger{entry: logrus.NewEntry(base)}, nil
}

func openLogFile(dir string, rotationCount uint) (io.Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("broker-%s.log", time.Now().Format("20060102"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	if rotationCount > 0 {
		pruneOldLogs(dir, rotationCount)
	}
	return f, nil
}

func pruneOldLogs(dir string, keep uint) {
	matches, err := filepath.Glob(filepath.Join(dir, "broker-*.log"))
	if err != nil || uint(len(matches)) <= keep {
		return
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	for _, stale := range matches[keep:] {
		if strings.HasSuffix(stale, ".log") {
			_ = os.Remove(stale)
		}
	}
}
