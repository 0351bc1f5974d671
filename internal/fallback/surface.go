// Package fallback provides non-printer surfaces that show a ticket when no
// transport is reachable.
package fallback

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/ticket-dispatch/internal/ticket"
)

// ErrUnavailable is returned by Render when the surface cannot be used in
// the current environment.
var ErrUnavailable = errors.New("fallback surface unavailable")

// Job is one ticket handed to a surface.
type Job struct {
	ID     string
	Ticket ticket.Ticket
}

// Surface renders ticket lines visibly. Render must not block until the
// output is finished; it calls done(nil) once the surface reports completion,
// or done(err) when the output fails after Render returned. Completion
// signals are unreliable, so done may never be called, or be called more
// than once.
type Surface interface {
	Render(ctx context.Context, job Job, done func(err error)) error
	// Release frees anything held for job. It is called exactly once per
	// job that Render accepted or rejected.
	Release(job Job)
}
