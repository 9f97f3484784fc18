package pg

import (
	"context"
	"strings"

	"inquirysync/internal/platform/logger"

	"github.com/rs/zerolog"
)

// QueryEvent describes one finished statement
type QueryEvent struct {
	SQL       string
	Args      []any
	ElapsedUS int64
	Err       error
	Slow      bool
}

// QueryTracer receives every statement the store adapter runs
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer logs statements at debug regardless of the root level, slow ones at warn.
// Arguments are replaced by their count unless withArgs is set.
func Tracer(root logger.Logger, withArgs bool) QueryTracer {
	l := root.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger()
	return &zlTracer{log: l, withArgs: withArgs}
}

type zlTracer struct {
	log      logger.Logger
	withArgs bool
}

func (z *zlTracer) OnQuery(_ context.Context, ev QueryEvent) {
	evt := z.log.Debug()
	if ev.Slow {
		evt = z.log.Warn()
	}
	if z.withArgs {
		evt = evt.Interface("args", ev.Args)
	} else {
		evt = evt.Int("n_args", len(ev.Args))
	}
	evt.Float64("elapsed_ms", float64(ev.ElapsedUS)/1000).
		Bool("slow", ev.Slow).
		Str("sql", compact(ev.SQL)).
		Err(ev.Err).
		Msg("pg query")
}

// compact folds runs of whitespace so multi line SQL logs on one line
func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
