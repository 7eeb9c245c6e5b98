package migration

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/wickwirew/glowplug/internal/telemetry"
	"go.opentelemetry.io/otel/log"
)

// NewLogger returns a golang-migrate logger that emits OpenTelemetry log
// records via lp.
//
// If verbose is true, golang-migrate's per-statement messages are also
// emitted.
func NewLogger(ctx context.Context, lp log.LoggerProvider, verbose bool) migrate.Logger {
	p := telemetry.Provider{
		LoggerProvider: lp,
	}

	return &logger{
		ctx:     ctx,
		verbose: verbose,
		telem:   p.Recorder("github.com/wickwirew/glowplug/migration"),
	}
}

type logger struct {
	ctx     context.Context
	verbose bool
	telem   *telemetry.Recorder
}

func (l *logger) Printf(format string, v ...any) {
	format = strings.TrimRight(format, "\n")
	l.telem.Debug(l.ctx, "migration.log", fmt.Sprintf(format, v...))
}

func (l *logger) Verbose() bool {
	return l.verbose
}
