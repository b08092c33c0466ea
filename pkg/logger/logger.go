// Package logger builds the zap loggers shared by the aona gate, agent and CLI.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// FormatConsole is the human readable encoder used by the CLI.
	FormatConsole = "console"

	// FormatJSON is the structured encoder used when the gate runs as a service.
	FormatJSON = "json"
)

// Options configures a logger built with New.
type Options struct {
	// Debug lowers the level to Debug.
	Debug bool

	// Format is FormatConsole (default) or FormatJSON.
	Format string

	// Writers receive every entry. Defaults to os.Stdout.
	Writers []io.Writer
}

func NewLogger(debug bool) *zap.Logger {
	return New(Options{Debug: debug})
}

func NewLoggerWithWriters(debug bool, writers ...io.Writer) *zap.Logger {
	return New(Options{Debug: debug, Writers: writers})
}

// New builds a logger from opts.
func New(opts Options) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if opts.Format == FormatJSON {
		encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	level := zap.InfoLevel
	if opts.Debug {
		level = zap.DebugLevel
	}

	writers := opts.Writers
	if len(writers) == 0 {
		writers = []io.Writer{os.Stdout}
	}

	syncers := make([]zapcore.WriteSyncer, 0, len(writers))
	for _, writer := range writers {
		syncers = append(syncers, zapcore.AddSync(writer))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), level)

	return zap.New(core, zap.AddCaller())
}
