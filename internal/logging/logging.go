// Package logging configures the global zerolog logger for the forest
// binaries. Output goes to a console writer on stderr and, when a file is
// configured, to a size-rotated JSON log.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 50
	maxBackups = 5
	maxAgeDays = 28
)

type Options struct {
	Level   string
	File    string
	Console io.Writer // defaults to os.Stderr
	NoColor bool
}

// Setup installs the global logger described by opts. The returned closer
// flushes and closes the rotated file, if any, and is always non-nil.
func Setup(opts Options) (io.Closer, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return nopCloser{}, fmt.Errorf("parse log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	writers := []io.Writer{zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.RFC3339,
		NoColor:    opts.NoColor,
	}}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		}
		writers = append(writers, rotated)
		closer = rotated
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Logger()

	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
