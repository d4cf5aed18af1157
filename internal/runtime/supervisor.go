package runtime

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tmoreau/marginalia/internal/logging"
)

// NewSupervisor builds a single-layer suture supervisor tree: the
// compactor and the HTTP server run side by side, and a panic or
// unexpected return in one restarts independently of the other. Events
// are logged through zerolog directly rather than sutureslog, since this
// project has no log/slog logger to hand sutureslog's Handler.
func NewSupervisor() *suture.Supervisor {
	return suture.New("marginalia", suture.Spec{
		EventHook:        logEvent,
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
}

func logEvent(ev suture.Event) {
	logging.Warn().Str("supervisor_event", ev.String()).Msg("supervisor event")
}

// Serve starts sup and blocks until ctx is canceled and every supervised
// service has stopped or the shutdown timeout elapses.
func Serve(ctx context.Context, sup *suture.Supervisor) error {
	return sup.Serve(ctx)
}
