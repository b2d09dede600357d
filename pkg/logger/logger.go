package logger

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options describes the logger of one process
type Options struct {
	Level string
	// Format "json" gives machine readable output, anything else a colored console
	Format  string
	Service string
	Env     string
	// Output defaults to stdout
	Output io.Writer
}

// New builds the application logger. JSON output carries the service and
// environment on every entry; production repeats of the same message are
// sampled.
func New(opts Options) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	var fields []zap.Field
	if opts.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
		if opts.Service != "" {
			fields = append(fields, zap.String("service", opts.Service))
		}
		if opts.Env != "" {
			fields = append(fields, zap.String("env", opts.Env))
		}
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), level)
	if opts.Env == "production" {
		core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 10)
	}

	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(fields...),
	), nil
}

// Component returns a named child logger, e.g. "assistant" or "telegram"
func Component(base *zap.Logger, name string) *zap.Logger {
	return base.Named(name)
}
