package cliconfig

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/keeval/keeval/pkg/log"
)

// Rotation settings for LogFile.
const (
	logFileMaxSizeMB  = 100
	logFileMaxBackups = 5
	logFileMaxAgeDays = 28
)

// Logger builds the process logger from cfg and sets the global level.
// With LogFile set, JSON lines go to a rotating file and the returned closer
// must be closed on exit; otherwise output is console text on stderr.
func Logger(cfg Config) (zerolog.Logger, io.Closer, error) {
	if err := SetLogLevel(cfg.LogLevel); err != nil {
		return zerolog.Nop(), nil, err
	}

	if cfg.LogFile == "" {
		return log.NewConsoleLogger(os.Stderr), nopCloser{}, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
		MaxAge:     logFileMaxAgeDays,
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(rotator).With().Timestamp().Logger(), rotator, nil
}

// SetLogLevel parses level and installs it as the zerolog global level.
func SetLogLevel(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
