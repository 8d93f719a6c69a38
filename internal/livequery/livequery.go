// Package livequery turns the store's change bus into filtered, ordered,
// long-lived subscriptions: an initial snapshot followed by incremental
// added/modified/removed events.
//
// The snapshot/stream seam is exact: a subscription attaches to the bus
// before reading its snapshot, and every record carries the seq of the write
// that produced it, so bus changes already reflected in the snapshot are
// dropped by seq comparison. A write racing Subscribe is therefore delivered
// exactly once - either in the snapshot or as a change event, never both,
// never neither.
//
// Filter transitions are normalized at this layer: a modification that makes
// a record stop matching the filter is delivered as Removed, one that makes
// it start matching is delivered as Added. Consumers only ever see events
// consistent with their filtered view.
package livequery

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lendhand/lendhand/internal/fault"
	"github.com/lendhand/lendhand/internal/store"
)

// EventKind distinguishes subscription event kinds.
type EventKind int

const (
	// KindSnapshot carries the initial ordered result set in Records.
	KindSnapshot EventKind = iota + 1
	// KindAdded carries a record that entered the view.
	KindAdded
	// KindModified carries a new version of a record already in the view.
	KindModified
	// KindRemoved carries the last known version of a record that left the
	// view (deleted, or modified out of the filter).
	KindRemoved
	// KindError is terminal: the subscription could not reach the store and
	// refuses to hold stale data silently. The event channel closes after it.
	KindError
)

// String returns the wire name of the event kind.
func (k EventKind) String() string {
	switch k {
	case KindSnapshot:
		return "snapshot"
	case KindAdded:
		return "added"
	case KindModified:
		return "modified"
	case KindRemoved:
		return "removed"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one delivery on a subscription stream.
type Event[T store.Record] struct {
	Kind    EventKind
	Records []T // KindSnapshot only
	Record  T   // KindAdded, KindModified, KindRemoved
	Err     error
}

// Query describes a filtered, ordered live query over one collection.
type Query[T store.Record] struct {
	// Collection selects which bus changes apply.
	Collection string

	// List reads the initial snapshot. The store's List functions already
	// order deterministically; Less (if set) re-sorts on top of that.
	List func(ctx context.Context) ([]T, error)

	// Match filters records. Nil matches everything.
	Match func(T) bool

	// Less orders the snapshot. Nil keeps List order. Ties are broken by
	// record id so iteration order is deterministic.
	Less func(a, b T) bool
}

// retryPolicy governs snapshot reads hit by transient store errors.
// Five attempts with doubling backoff from 50ms, capped at 1s.
type retryPolicy struct {
	attempts int
	base     time.Duration
	cap      time.Duration
}

var defaultRetry = retryPolicy{attempts: 5, base: 50 * time.Millisecond, cap: time.Second}

// Subscription is a live view over one Query. Consume Events() until it
// closes; call Unsubscribe when done.
type Subscription[T store.Record] struct {
	events  chan Event[T]
	watcher *store.Watcher
	stop    chan struct{}
	exited  chan struct{}
	once    sync.Once
}

// Subscribe opens a subscription: it attaches to the store's change bus,
// reads the snapshot, and starts the delivery goroutine. The first event is
// always KindSnapshot (possibly empty) unless the snapshot read fails
// terminally, in which case the only event is KindError.
func Subscribe[T store.Record](ctx context.Context, st *store.Store, q Query[T]) *Subscription[T] {
	sub := &Subscription[T]{
		events:  make(chan Event[T], 16),
		watcher: st.Watch(), // attach before snapshot (CP-2 seam)
		stop:    make(chan struct{}),
		exited:  make(chan struct{}),
	}

	go sub.run(ctx, q)
	return sub
}

// Events returns the event stream. The channel closes after a terminal
// error, after Unsubscribe, or when the context given to Subscribe ends.
func (s *Subscription[T]) Events() <-chan Event[T] {
	return s.events
}

// Unsubscribe tears the subscription down: detaches from the bus, stops the
// delivery goroutine, and waits for it to exit, guaranteeing no event is
// delivered after Unsubscribe returns. Idempotent and safe from any
// goroutine, including the one consuming Events.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		close(s.stop)
		s.watcher.Close()
	})
	<-s.exited
}

// run is the delivery goroutine.
func (s *Subscription[T]) run(ctx context.Context, q Query[T]) {
	defer close(s.events)
	defer close(s.exited)
	defer s.watcher.Close()

	snapshot, err := listWithRetry(ctx, q, defaultRetry)
	if err != nil {
		slog.Warn("live query snapshot failed", "collection", q.Collection, "error", err)
		s.deliver(ctx, Event[T]{Kind: KindError, Err: err})
		return
	}

	// Filter, order, and remember what is in view plus the seam seq.
	var maxSeq int64
	view := make(map[string]struct{}, len(snapshot))
	records := make([]T, 0, len(snapshot))
	for _, rec := range snapshot {
		if rec.RecordSeq() > maxSeq {
			maxSeq = rec.RecordSeq()
		}
		if q.Match != nil && !q.Match(rec) {
			continue
		}
		view[rec.RecordID()] = struct{}{}
		records = append(records, rec)
	}
	if q.Less != nil {
		sort.SliceStable(records, func(i, j int) bool {
			if q.Less(records[i], records[j]) {
				return true
			}
			if q.Less(records[j], records[i]) {
				return false
			}
			return records[i].RecordID() < records[j].RecordID()
		})
	}

	if !s.deliver(ctx, Event[T]{Kind: KindSnapshot, Records: records}) {
		return
	}

	for {
		change, ok := s.watcher.TryNext()
		if !ok {
			if s.watcher.Closed() {
				return
			}
			select {
			case <-s.watcher.Wait():
				continue
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}

		ev, ok := s.translate(change, q, maxSeq, view)
		if !ok {
			continue
		}
		if !s.deliver(ctx, ev) {
			return
		}
	}
}

// translate maps a bus change onto the subscription's filtered view.
// Returns false when the change is outside the view (wrong collection,
// already in the snapshot, or filtered out on both sides).
func (s *Subscription[T]) translate(c store.Change, q Query[T], seamSeq int64, view map[string]struct{}) (Event[T], bool) {
	if c.Collection != q.Collection || c.Seq <= seamSeq {
		return Event[T]{}, false
	}
	rec, ok := c.Record.(T)
	if !ok {
		return Event[T]{}, false
	}

	id := rec.RecordID()
	_, inView := view[id]
	matches := q.Match == nil || q.Match(rec)

	switch c.Type {
	case store.ChangeRemoved:
		if !inView {
			return Event[T]{}, false
		}
		delete(view, id)
		return Event[T]{Kind: KindRemoved, Record: rec}, true

	case store.ChangeAdded, store.ChangeModified:
		switch {
		case matches && !inView:
			view[id] = struct{}{}
			return Event[T]{Kind: KindAdded, Record: rec}, true
		case matches && inView:
			return Event[T]{Kind: KindModified, Record: rec}, true
		case !matches && inView:
			delete(view, id)
			return Event[T]{Kind: KindRemoved, Record: rec}, true
		default:
			return Event[T]{}, false
		}

	default:
		return Event[T]{}, false
	}
}

// deliver sends one event, unless teardown wins the race.
func (s *Subscription[T]) deliver(ctx context.Context, ev Event[T]) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

// listWithRetry runs the snapshot read under the retry policy. Validation
// of the query itself never retries; only store-level errors do.
func listWithRetry[T store.Record](ctx context.Context, q Query[T], p retryPolicy) ([]T, error) {
	var lastErr error
	delay := p.base
	for attempt := 1; attempt <= p.attempts; attempt++ {
		records, err := q.List(ctx)
		if err == nil {
			return records, nil
		}
		lastErr = err
		if attempt == p.attempts {
			break
		}
		slog.Debug("snapshot read failed, retrying",
			"collection", q.Collection, "attempt", attempt, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &fault.TransientError{Attempts: attempt, Err: ctx.Err()}
		}
		delay *= 2
		if delay > p.cap {
			delay = p.cap
		}
	}
	return nil, &fault.TransientError{Attempts: p.attempts, Err: lastErr}
}
