// Package cli implements the ercanvas command-line interface.
//
// Commands are built with cobra and log through charmbracelet/log. The
// logger travels in the command context; see [withLogger].
//
// # Commands
//
//   - scenario, evaluate, sql, hint: ask the text service about a model file
//   - export, dictionary: render a model file without any network access
//   - serve: run the HTTP canvas API
//   - edit: the terminal canvas editor
//   - cache: inspect and clear the response cache
//
// All commands accept --verbose (-v) for debug logging and --config to pick
// a configuration file.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger builds the CLI logger. Timestamps carry hundredths of a second,
// which is enough to tell concurrent export workers apart.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs how long a command step took. Not safe for concurrent use.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time, e.g. "Rendered svg, png (182ms)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey struct{}

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// loggerFromContext returns the command logger, or log.Default when the
// context carries none (tests that call RunE directly).
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
