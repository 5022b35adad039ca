package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogOptions configures the root logger.
type LogOptions struct {
	Level  string    // trace, debug, info, warn, error
	Format string    // console or json
	File   string    // optional file receiving a JSON copy of every event
	Out    io.Writer // defaults to os.Stderr
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger builds the root logger. The returned closer releases the log
// file, if any, and must be called when the run ends.
//
// Example:
//
//	logger, closer, err := debug.NewLogger(debug.LogOptions{Level: "info"})
//	if err != nil {
//		return err
//	}
//	defer closer.Close()
//	logger.Info().Msg("started")
func NewLogger(opts LogOptions) (zerolog.Logger, io.Closer, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}
	if Active.Enabled && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	var primary io.Writer = out
	if !strings.EqualFold(opts.Format, "json") {
		primary = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	var closer io.Closer = nopCloser{}
	writer := primary
	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return zerolog.Nop(), nopCloser{}, fmt.Errorf("create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 - log path is chosen by the operator
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("open log file: %w", err)
		}
		closer = f
		writer = zerolog.MultiLevelWriter(primary, f)
	}

	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	if Active.Enabled {
		logger.Debug().Msg("Debug logging enabled")
	}
	return logger, closer, nil
}

func parseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
