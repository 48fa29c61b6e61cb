package server

import (
	"io"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions select the level and an optional rotated log file.
type LogOptions struct {
	Level  string
	Path   string
	Stderr bool // console output on stderr instead of stdout
}

// SetupLogger builds a slog.Logger writing JSON through zap to the console
// and, when Path is set, to a size-rotated file.
func SetupLogger(opts LogOptions) *slog.Logger {
	if opts.Stderr {
		return newLogger(opts, os.Stderr)
	}
	return newLogger(opts, os.Stdout)
}

func newLogger(opts LogOptions, stdout io.Writer) *slog.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(stdout)}
	if opts.Path != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		}))
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(sinks...),
		zap.NewAtomicLevelAt(logLevel(opts.Level)),
	)
	return slog.New(zapslog.NewHandler(core))
}

func logLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
