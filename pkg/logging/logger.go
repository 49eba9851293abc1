package logging

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the CLI logger. Verbose enables debug output; json switches to a
// machine-readable encoder so log lines do not interleave with human output.
func New(verbose, json bool) *zap.Logger {
	level := zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		level.SetLevel(zap.DebugLevel)
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = utcTimeEncoder(zapcore.ISO8601TimeEncoder)

	var encoder zapcore.Encoder
	if json {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = utcTimeEncoder(zapcore.ISO8601TimeEncoder)
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	return zap.New(core)
}

// OrNop returns l, or a no-op logger when l is nil
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func utcTimeEncoder(encoder zapcore.TimeEncoder) zapcore.TimeEncoder {
	return func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		encoder(t.UTC(), enc)
	}
}
