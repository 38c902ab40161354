package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options select the output of the CLI logger. Output defaults to stderr so
// results printed on stdout stay pipeable.
type Options struct {
	JSON   bool
	Debug  bool
	Output string
}

// New builds the CLI logger: human readable unless json is set.
func New(json bool, debug bool) (*zap.Logger, error) {
	return Build(Options{JSON: json, Debug: debug})
}

func Build(opts Options) (*zap.Logger, error) {
	output := opts.Output
	if output == "" {
		output = "stderr"
	}

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Debug {
		level.SetLevel(zapcore.DebugLevel)
	}

	cfg := zap.Config{
		Encoding:          "console",
		Level:             level,
		DisableStacktrace: !opts.Debug,
		OutputPaths:       []string{output},
		ErrorOutputPaths:  []string{"stderr"},
		EncoderConfig:     encoderConfig(opts.JSON),
	}
	if opts.JSON {
		cfg.Encoding = "json"
	}

	return cfg.Build()
}

func encoderConfig(json bool) zapcore.EncoderConfig {
	enc := zapcore.EncoderConfig{
		MessageKey:    "step",
		LevelKey:      "level",
		NameKey:       "component",
		TimeKey:       "time",
		StacktraceKey: "stacktrace",
		EncodeLevel:   zapcore.CapitalColorLevelEncoder,
		EncodeTime:    zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeName:    zapcore.FullNameEncoder,
	}

	// Machine readable output keeps full timestamps and the call site.
	if json {
		enc.EncodeLevel = zapcore.LowercaseLevelEncoder
		enc.EncodeTime = zapcore.RFC3339TimeEncoder
		enc.CallerKey = "caller"
		enc.EncodeCaller = zapcore.ShortCallerEncoder
	}

	return enc
}
