// Package logger builds the zap logger shared by every component. The
// console core stays quiet unless asked: progress and the run summary
// are rendered by the display package, not the log.
package logger

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	// Verbose lowers the console threshold to Debug.
	Verbose bool
	// Quiet drops the console core entirely; the file core still runs.
	Quiet bool
	// LogDir receives one JSON log file per day. Empty means ./logs.
	LogDir string
	// Component names the log file (component_YYYYMMDD.log).
	Component string
}

// New builds the process logger: a colored console core on stderr for
// warnings and errors, plus a JSON file core that records everything.
func New(opts Options) (*zap.Logger, error) {
	consoleLevel := zapcore.WarnLevel
	if opts.Verbose {
		consoleLevel = zapcore.DebugLevel
	}

	consoleEncoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    colorLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
	})

	fileEncoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	})

	file, err := os.OpenFile(logFilePath(opts), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, err
	}

	cores := []zapcore.Core{
		zapcore.NewCore(fileEncoder, zapcore.AddSync(file), zapcore.DebugLevel),
	}
	if !opts.Quiet {
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), consoleLevel))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func colorLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var s string
	switch level {
	case zapcore.DebugLevel:
		s = color.CyanString("[DEBUG]")
	case zapcore.InfoLevel:
		s = color.GreenString("[INFO] ")
	case zapcore.WarnLevel:
		s = color.YellowString("[WARN] ")
	case zapcore.ErrorLevel:
		s = color.RedString("[ERROR]")
	default:
		s = level.CapitalString()
	}
	enc.AppendString(s)
}

func logFilePath(opts Options) string {
	dir := opts.LogDir
	if dir == "" {
		dir = "./logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		dir = "."
	}
	component := opts.Component
	if component == "" {
		component = "mtc"
	}
	return filepath.Join(dir, component+"_"+time.Now().Format("20060102")+".log")
}
