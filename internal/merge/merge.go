// Package merge reconciles two or more independently-ordered subscription
// streams that may assert the same logical entity into one deduplicated,
// stably-ordered view.
//
// The motivating view is "all requests relevant to me": one stream where I
// am the poster and one where I am the acceptor. The streams are opened
// independently, so no cross-stream interleave order can be assumed, and a
// record may briefly be asserted by both.
//
// Each view owns its Merger instance; there is deliberately no process-wide
// merge state.
package merge

import (
	"sort"
	"sync"

	"github.com/lendhand/lendhand/internal/livequery"
	"github.com/lendhand/lendhand/internal/store"
)

// entry is the latest known version of a record plus the stream that last
// asserted it.
type entry[T store.Record] struct {
	record T
	origin string
}

// Merger maintains the merged view.
//
// INVARIANTS:
//   - Every application is a keyed upsert or keyed delete; replaying any
//     event sequence is idempotent.
//   - A removal from stream S deletes an entry only if S was the last
//     stream to assert it, so one stream's teardown cannot erase an entity
//     another stream still holds.
//   - Output order is recomputed from Less on every emission, never taken
//     from arrival order.
//
// Thread-safety: Apply and View are safe for concurrent use; callbacks set
// with OnChange are invoked with internal state consistent but must not call
// back into the Merger.
type Merger[T store.Record] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
	less    func(a, b T) bool
	onView  func([]T)
}

// New creates an empty merger ordering its output by less (ties broken by
// record id).
func New[T store.Record](less func(a, b T) bool) *Merger[T] {
	return &Merger[T]{
		entries: make(map[string]entry[T]),
		less:    less,
	}
}

// OnChange registers a callback invoked with the freshly ordered view after
// every application that changed it.
func (m *Merger[T]) OnChange(fn func([]T)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onView = fn
}

// Apply folds one subscription event from the named stream into the view.
//
// Snapshot events are a full resync for that stream: all carried records are
// upserted, and entries last asserted by the same stream but absent from the
// snapshot are dropped (they disappeared while the stream was down).
// Error events are ignored here; stream health is the subscriber's concern.
func (m *Merger[T]) Apply(stream string, ev livequery.Event[T]) {
	m.mu.Lock()

	changed := false
	switch ev.Kind {
	case livequery.KindSnapshot:
		seen := make(map[string]struct{}, len(ev.Records))
		for _, rec := range ev.Records {
			seen[rec.RecordID()] = struct{}{}
			changed = m.upsert(stream, rec) || changed
		}
		for id, e := range m.entries {
			if e.origin != stream {
				continue
			}
			if _, ok := seen[id]; !ok {
				delete(m.entries, id)
				changed = true
			}
		}

	case livequery.KindAdded, livequery.KindModified:
		changed = m.upsert(stream, ev.Record)

	case livequery.KindRemoved:
		id := ev.Record.RecordID()
		if e, ok := m.entries[id]; ok && e.origin == stream {
			delete(m.entries, id)
			changed = true
		}
	}

	var view []T
	notify := m.onView
	if changed && notify != nil {
		view = m.orderedLocked()
	}
	m.mu.Unlock()

	if changed && notify != nil {
		notify(view)
	}
}

// upsert replaces any prior value for the record's key regardless of origin
// and records the asserting stream. Reports whether state changed.
func (m *Merger[T]) upsert(stream string, rec T) bool {
	id := rec.RecordID()
	prev, ok := m.entries[id]
	if ok && prev.origin == stream && prev.record.RecordSeq() == rec.RecordSeq() {
		return false
	}
	m.entries[id] = entry[T]{record: rec, origin: stream}
	return true
}

// View returns the current merged view in output order.
func (m *Merger[T]) View() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orderedLocked()
}

// Len returns the number of distinct entities in the view.
func (m *Merger[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Merger[T]) orderedLocked() []T {
	out := make([]T, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.record)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if m.less(out[i], out[j]) {
			return true
		}
		if m.less(out[j], out[i]) {
			return false
		}
		return out[i].RecordID() < out[j].RecordID()
	})
	return out
}

// Run consumes the given subscriptions until all close or ctx-free teardown
// via the subscriptions themselves. Each stream is drained on its own
// goroutine; Run returns when every stream has closed.
func (m *Merger[T]) Run(streams map[string]*livequery.Subscription[T]) {
	var wg sync.WaitGroup
	for name, sub := range streams {
		wg.Add(1)
		go func(name string, sub *livequery.Subscription[T]) {
			defer wg.Done()
			for ev := range sub.Events() {
				m.Apply(name, ev)
			}
		}(name, sub)
	}
	wg.Wait()
}
