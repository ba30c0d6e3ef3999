package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config defines the configuration for the logger.
type Config struct {
	Level       string // debug, info, warn, error
	Format      string // json, console
	EnableColor bool   // true to enable colors (only in console mode)
	// File, when set, receives a JSON copy of every entry with size based rotation.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Output defaults to stdout.
	Output io.Writer
}

var (
	globalLogger *zap.Logger
	atom         = zap.NewAtomicLevel()
	once         sync.Once
	mu           sync.RWMutex
)

// DefaultConfig returns a sane default configuration based on environment variables.
func DefaultConfig() Config {
	return Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Format:      getEnv("LOG_FORMAT", "console"), // options: json, console
		EnableColor: shouldEnableColor(),
	}
}

// New builds a logger from cfg writing to cfg.Output and, optionally, a
// rotated file.
func New(cfg Config) *zap.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	return newLogger(cfg, out, zap.NewAtomicLevelAt(parseLevel(cfg.Level)))
}

func newLogger(cfg Config, out io.Writer, level zap.AtomicLevel) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()

	// Standardize Time Format
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	fileEncoderConfig := encoderConfig

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		if cfg.EnableColor {
			encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
			encoder = NewColoredConsoleEncoder(encoderConfig)
		} else {
			encoder = zapcore.NewConsoleEncoder(encoderConfig)
		}
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(out)), level),
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 50),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 14),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderConfig), zapcore.AddSync(rotator), level))
	}

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Level != "debug" && cfg.Level != "error" {
		opts = append(opts, zap.AddStacktrace(zapcore.FatalLevel))
	} else {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return zap.New(zapcore.NewTee(cores...), opts...)
}

// Initialize sets up the global logger using the provided configuration.
func Initialize(cfg Config) {
	once.Do(func() {
		atom.SetLevel(parseLevel(cfg.Level))
		l := newLogger(cfg, os.Stdout, atom)

		mu.Lock()
		globalLogger = l
		mu.Unlock()
	})
}

// Get returns the global logger. Initializes with defaults if not already set.
func Get() *zap.Logger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l == nil {
		Initialize(DefaultConfig())
		mu.RLock()
		l = globalLogger
		mu.RUnlock()
	}
	return l
}

// SetLevel changes the level of the global logger at runtime.
func SetLevel(level string) {
	atom.SetLevel(parseLevel(level))
}

// With creates a child logger and adds structured context to it.
func With(fields ...zap.Field) *zap.Logger {
	return Get().With(fields...)
}

// --- Wrapper Functions ---

func Info(msg string, fields ...zap.Field) {
	Get().Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Get().Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Get().Fatal(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Get().Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Get().Warn(msg, fields...)
}

func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}

// --- Helpers ---

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.ToLower(value)
	}
	return fallback
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// shouldEnableColor checks NO_COLOR (standard) and LOG_COLOR
func shouldEnableColor() bool {
	if _, noColor := os.LookupEnv("NO_COLOR"); noColor {
		return false
	}
	if val := os.Getenv("LOG_COLOR"); val != "" {
		return val == "true" || val == "1"
	}
	return true
}
