package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/lendhand/lendhand/internal/clock"
	"github.com/lendhand/lendhand/internal/livequery"
	"github.com/lendhand/lendhand/internal/store"
)

// DefaultFreshnessWindow separates "just happened" from "backlog replayed on
// reconnect". The transport delivers historical records as added events when
// a client (re)connects; anything older than this window is absorbed into
// read history without an alert.
const DefaultFreshnessWindow = 10 * time.Second

// Presenter receives the notifications that clear the freshness window.
// Implementations render however they like (terminal, popup, log); the
// engine only decides whether and what to emit.
type Presenter interface {
	Present(title, body string)
}

// PresenterFunc adapts a function to the Presenter interface.
type PresenterFunc func(title, body string)

// Present implements Presenter.
func (f PresenterFunc) Present(title, body string) { f(title, body) }

// Listener consumes one recipient's notification stream and surfaces fresh
// records as live alerts.
type Listener struct {
	store     *store.Store
	clock     clock.Clock
	window    time.Duration
	presenter Presenter
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithFreshnessWindow overrides DefaultFreshnessWindow.
func WithFreshnessWindow(d time.Duration) ListenerOption {
	return func(l *Listener) { l.window = d }
}

// NewListener creates a listener presenting through p.
func NewListener(s *store.Store, c clock.Clock, p Presenter, opts ...ListenerOption) *Listener {
	l := &Listener{
		store:     s,
		clock:     c,
		window:    DefaultFreshnessWindow,
		presenter: p,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Subscribe opens the recipient's notification stream. The caller owns the
// returned subscription and must Unsubscribe it.
func (l *Listener) Subscribe(ctx context.Context, recipientID string) *livequery.Subscription[store.Notification] {
	return livequery.Subscribe(ctx, l.store, livequery.Query[store.Notification]{
		Collection: store.CollectionNotifications,
		List: func(ctx context.Context) ([]store.Notification, error) {
			return l.store.ListNotifications(ctx, recipientID)
		},
		Match: func(n store.Notification) bool { return n.RecipientID == recipientID },
	})
}

// Listen consumes the recipient's stream until ctx ends or the stream
// closes, presenting each fresh added record. Returns the terminal stream
// error, if any.
func (l *Listener) Listen(ctx context.Context, recipientID string) error {
	sub := l.Subscribe(ctx, recipientID)
	defer sub.Unsubscribe()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if ev.Kind == livequery.KindError {
				return ev.Err
			}
			l.Handle(ev)
		case <-ctx.Done():
			return nil
		}
	}
}

// Handle applies the freshness decision to one stream event. Snapshot
// records and stale added events are backlog: absorbed silently. Only added
// events younger than the window are presented.
func (l *Listener) Handle(ev livequery.Event[store.Notification]) {
	if ev.Kind != livequery.KindAdded {
		return
	}
	if l.Fresh(ev.Record) {
		l.presenter.Present(ev.Record.Title, ev.Record.Body)
		return
	}
	slog.Debug("absorbed stale notification",
		"id", ev.Record.ID, "age", l.clock.Now().Sub(ev.Record.CreatedAt))
}

// Fresh reports whether the record's age is inside the freshness window.
func (l *Listener) Fresh(n store.Notification) bool {
	age := l.clock.Now().Sub(n.CreatedAt)
	return age < l.window
}
