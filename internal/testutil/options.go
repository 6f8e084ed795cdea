package testutil

import (
	"io"
	"log/slog"

	"github.com/roach88/cellgraph/internal/reactor"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ReactorOptions returns options for a reproducible reactor: pass ids from
// gen, a clock starting at 0 and a silent logger. extra options are applied
// last.
func ReactorOptions(gen reactor.PassIDGenerator, extra ...reactor.Option) []reactor.Option {
	opts := []reactor.Option{
		reactor.WithPassGenerator(gen),
		reactor.WithClock(reactor.NewClock()),
		reactor.WithLogger(DiscardLogger()),
	}
	return append(opts, extra...)
}
