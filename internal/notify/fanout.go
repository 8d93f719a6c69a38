// Package notify derives per-recipient notification records from request
// creation (fan-out) and decides, on the delivery side, which incoming
// records deserve a live alert (the freshness window).
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lendhand/lendhand/internal/clock"
	"github.com/lendhand/lendhand/internal/directory"
	"github.com/lendhand/lendhand/internal/fault"
	"github.com/lendhand/lendhand/internal/ident"
	"github.com/lendhand/lendhand/internal/store"
)

// Report accounts for one fan-out run. Zero recipients is a valid success,
// distinct from an error.
type Report struct {
	// Intended is the resolved recipient count.
	Intended int

	// Notified is how many notification writes succeeded.
	Notified int

	// Failures holds one error per failed write.
	Failures []error
}

// Err returns nil when every intended write succeeded, otherwise a
// PartialFanoutError carrying the shortfall. Callers report it; they do not
// fail the triggering request creation over it.
func (r Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return &fault.PartialFanoutError{
		Intended: r.Intended,
		Notified: r.Notified,
		Errs:     r.Failures,
	}
}

// Engine writes notification fan-outs.
type Engine struct {
	store *store.Store
	dir   directory.Directory
	clock clock.Clock
	ids   ident.Generator
}

// NewEngine creates a fan-out engine.
func NewEngine(s *store.Store, dir directory.Directory, c clock.Clock, ids ident.Generator) *Engine {
	return &Engine{store: s, dir: dir, clock: c, ids: ids}
}

// RequestCreated fans a freshly created request out to everyone sharing the
// poster's locality, excluding the poster.
//
// The store offers no multi-row conditional batch, so writes are
// independent and best-effort: a partial failure leaves a subset of
// recipients notified, which the Report records rather than hides. The
// error return is reserved for failures before any write was attempted
// (recipient resolution).
func (e *Engine) RequestCreated(ctx context.Context, req store.Request) (Report, error) {
	poster, err := e.dir.CurrentUser(ctx, req.OwnerID)
	if err != nil {
		return Report{}, fmt.Errorf("fan-out: resolve poster: %w", err)
	}

	members, err := e.dir.UsersByLocality(ctx, poster.Locality)
	if err != nil {
		return Report{}, fmt.Errorf("fan-out: resolve recipients: %w", err)
	}

	var report Report
	for _, m := range members {
		if m.ID == req.OwnerID {
			continue
		}
		report.Intended++

		n := store.Notification{
			ID:          e.ids.NewID(),
			RecipientID: m.ID,
			Title:       Title,
			Body:        Body(poster.DisplayName, req.Title),
			Link:        "/requests/" + req.ID,
			CreatedAt:   e.clock.Now(),
		}
		if _, err := e.store.PutNotification(ctx, n); err != nil {
			report.Failures = append(report.Failures,
				fmt.Errorf("recipient %s: %w", m.ID, err))
			continue
		}
		report.Notified++
	}

	slog.Info("fan-out complete",
		"request", req.ID,
		"locality", poster.Locality,
		"intended", report.Intended,
		"notified", report.Notified)
	return report, nil
}

// Title is the fixed headline of a fan-out notification.
const Title = "New request nearby!"

// Body renders the one-line summary shown to recipients.
func Body(posterName, requestTitle string) string {
	if posterName == "" {
		posterName = "A neighbor"
	}
	return fmt.Sprintf("%s needs: %s", posterName, requestTitle)
}
