package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global logger; Nop until InitFromEnv or Set runs.
var (
	globalLogger *zap.Logger = zap.NewNop()
)

// L returns the global logger.
func L() *zap.Logger { return globalLogger }

// Set replaces the global logger. A nil logger restores Nop.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	globalLogger = l
}

// Or returns l, or the global logger when l is nil.
func Or(l *zap.Logger) *zap.Logger {
	if l != nil {
		return l
	}
	return globalLogger
}

// Options controls the cores built by Build.
type Options struct {
	Level   zapcore.Level
	Console bool
	ToFile  bool
	File    string
	Caller  bool
	Format  string // legacy, json or console
}

// OptionsFromEnv reads LOG_* variables.
func OptionsFromEnv() Options {
	o := Options{
		Level:   parseLevel(getenvDefault("LOG_LEVEL", "info")),
		Console: strings.EqualFold(getenvDefault("LOG_TO_CONSOLE", "true"), "true"),
		ToFile:  strings.EqualFold(getenvDefault("LOG_TO_FILE", "true"), "true"),
		File:    strings.TrimSpace(getenvDefault("LOG_FILE", filepath.Join("logs", "trainer.log"))),
		Caller:  strings.EqualFold(getenvDefault("LOG_CALLER", "false"), "true"),
		Format:  strings.ToLower(strings.TrimSpace(getenvDefault("LOG_FORMAT", "legacy"))),
	}
	if o.Format != "legacy" && o.Format != "json" && o.Format != "console" {
		o.Format = "legacy"
	}
	return o
}

// InitFromEnv builds the logger from LOG_* variables and installs it globally.
func InitFromEnv() error {
	logger, err := Build(OptionsFromEnv())
	if err != nil {
		return err
	}
	globalLogger = logger
	return nil
}

// Build tees a console core and a file core according to o.
func Build(o Options) (*zap.Logger, error) {
	var cores []zapcore.Core

	if o.Console {
		cores = append(cores, zapcore.NewCore(encoderFor(o.Format), zapcore.AddSync(os.Stdout), o.Level))
	}

	if o.ToFile {
		if err := ensureDir(filepath.Dir(o.File)); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(o.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoderFor(o.Format), zapcore.AddSync(f), o.Level))
	}

	if len(cores) == 0 {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), o.Level))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if o.Caller || o.Format == "legacy" {
		logger = logger.WithOptions(zap.AddCaller())
	}
	return logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func encoderFor(format string) zapcore.Encoder {
	switch format {
	case "json":
		return zapcore.NewJSONEncoder(jsonEncoderConfig())
	case "console":
		return zapcore.NewConsoleEncoder(consoleEncoderConfig(false))
	default:
		return zapcore.NewConsoleEncoder(legacyEncoderConfig())
	}
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	default:
		return zapcore.InfoLevel
	}
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func legacyEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " | "
	return cfg
}

func consoleEncoderConfig(color bool) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if color {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return cfg
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}
