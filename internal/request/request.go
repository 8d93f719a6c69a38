// Package request owns the request lifecycle state machine:
// open -> accepted -> fulfilled, with open -> (deleted) also legal.
//
// The single correctness-critical operation is Accept: the status/acceptedBy
// pair is mutated exclusively through the store's conditional update, never
// a plain overwrite, so two racing acceptors resolve to exactly one winner.
//
// Fulfilled is reserved: the state is modeled (and admitted by the schema)
// but no operation currently produces it.
package request

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lendhand/lendhand/internal/clock"
	"github.com/lendhand/lendhand/internal/fault"
	"github.com/lendhand/lendhand/internal/geo"
	"github.com/lendhand/lendhand/internal/ident"
	"github.com/lendhand/lendhand/internal/notify"
	"github.com/lendhand/lendhand/internal/store"
)

// Notifier receives the creation side effect. Implemented by notify.Engine;
// tests substitute their own.
type Notifier interface {
	RequestCreated(ctx context.Context, req store.Request) (notify.Report, error)
}

// Service is the lifecycle engine.
type Service struct {
	store    *store.Store
	clock    clock.Clock
	ids      ident.Generator
	notifier Notifier // nil disables fan-out
}

// NewService creates a lifecycle engine. notifier may be nil, in which case
// creation triggers no fan-out.
func NewService(s *store.Store, c clock.Clock, ids ident.Generator, notifier Notifier) *Service {
	return &Service{store: s, clock: c, ids: ids, notifier: notifier}
}

// CreateParams describes a new posting. Location is the poster's reading at
// post time; it is snapshotted onto the record and never live-updated.
type CreateParams struct {
	Title       string
	Category    store.Category
	Description string
	Duration    string
	Poster      store.User
	Location    *geo.Location
}

// Create posts a new request. The request always starts open. Fan-out runs
// after the write; its Report is returned for display, and a partial fan-out
// never fails the creation.
func (s *Service) Create(ctx context.Context, p CreateParams) (store.Request, notify.Report, error) {
	if strings.TrimSpace(p.Title) == "" {
		return store.Request{}, notify.Report{}, fault.NewValidation("title", "must not be empty")
	}
	if p.Location == nil {
		return store.Request{}, notify.Report{}, fault.NewValidation("location", "poster location unavailable")
	}
	category := p.Category
	if category == "" {
		category = store.CategoryOther
	}

	req := store.Request{
		ID:          s.ids.NewID(),
		Title:       strings.TrimSpace(p.Title),
		Description: p.Description,
		Category:    category,
		Duration:    p.Duration,
		OwnerID:     p.Poster.ID,
		OwnerName:   p.Poster.DisplayName,
		Status:      store.StatusOpen,
		Location:    p.Location,
		CreatedAt:   s.clock.Now(),
	}

	req, err := s.store.CreateRequest(ctx, req)
	if err != nil {
		return store.Request{}, notify.Report{}, fmt.Errorf("create: %w", err)
	}

	var report notify.Report
	if s.notifier != nil {
		report, err = s.notifier.RequestCreated(ctx, req)
		if err != nil {
			// The request exists; the missing notifications are reported,
			// not escalated.
			slog.Warn("fan-out failed after create", "request", req.ID, "error", err)
		}
	}
	return req, report, nil
}

// Accept transitions an open request to accepted on behalf of acceptorID.
//
// The transition is a compare-and-swap on the status field: it succeeds only
// if the record is still open at write time. On a stale precondition the
// record is re-read once to classify the outcome:
//   - record gone: NotFoundError
//   - acceptor is the poster: ValidationError
//   - otherwise: PreconditionFailedError ("already accepted")
func (s *Service) Accept(ctx context.Context, requestID, acceptorID string) (store.Request, error) {
	req, ok, err := s.store.AcceptRequest(ctx, requestID, acceptorID)
	if err != nil {
		return store.Request{}, fmt.Errorf("accept: %w", err)
	}
	if ok {
		return req, nil
	}

	current, err := s.store.GetRequest(ctx, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Request{}, &fault.NotFoundError{
			Collection: store.CollectionRequests, ID: requestID,
		}
	}
	if err != nil {
		return store.Request{}, fmt.Errorf("accept: re-read: %w", err)
	}
	if current.OwnerID == acceptorID {
		return store.Request{}, fault.NewValidation("acceptor", "cannot accept your own request")
	}
	return store.Request{}, &fault.PreconditionFailedError{
		Collection: store.CollectionRequests,
		ID:         requestID,
		Message:    "already accepted",
	}
}

// Delete removes a request on behalf of its poster. Messages referencing the
// id are left as unreachable history. A non-poster actor gets a
// ValidationError; a missing record a NotFoundError.
func (s *Service) Delete(ctx context.Context, requestID, actorID string) error {
	ok, err := s.store.DeleteRequest(ctx, requestID, actorID)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if ok {
		return nil
	}

	_, err = s.store.GetRequest(ctx, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return &fault.NotFoundError{Collection: store.CollectionRequests, ID: requestID}
	}
	if err != nil {
		return fmt.Errorf("delete: re-read: %w", err)
	}
	return fault.NewValidation("actor", "only the poster may delete a request")
}

// Get reads one request.
func (s *Service) Get(ctx context.Context, requestID string) (store.Request, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Request{}, &fault.NotFoundError{
			Collection: store.CollectionRequests, ID: requestID,
		}
	}
	if err != nil {
		return store.Request{}, fmt.Errorf("get: %w", err)
	}
	return req, nil
}
