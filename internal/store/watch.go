package store

import (
	"sync"
)

// ChangeType distinguishes change event kinds.
type ChangeType int

const (
	// ChangeAdded means a record was inserted.
	ChangeAdded ChangeType = iota + 1
	// ChangeModified means an existing record was updated.
	ChangeModified
	// ChangeRemoved means a record was deleted.
	ChangeRemoved
)

// String returns the wire name of the change type.
func (t ChangeType) String() string {
	switch t {
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is one committed write, published to watchers after the store
// write succeeds. Record holds the full post-write record (for removals,
// the last known record). Changes are delivered to each watcher in seq
// order.
type Change struct {
	Collection string
	Type       ChangeType
	Record     any
	Seq        int64
}

// Watcher receives the store's change feed for one subscriber.
//
// Each watcher owns an unbounded FIFO queue (CP-4): publishing never blocks
// on a slow consumer, and cascading writes can outpace consumption without
// deadlock. Thread-safety mirrors the usage: the store publishes from write
// paths while a single consumer dequeues.
type Watcher struct {
	mu      sync.Mutex
	changes []Change
	closed  bool
	signal  chan struct{} // Signals availability (buffered, size 1, coalescing)

	detach func()
	once   sync.Once
}

// newWatcher creates an empty watcher queue.
func newWatcher() *Watcher {
	return &Watcher{
		changes: make([]Change, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// publish appends a change to the queue.
// Returns false if the watcher has been closed.
func (w *Watcher) publish(c Change) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return false
	}

	w.changes = append(w.changes, c)

	// Non-blocking send - buffer of 1 coalesces multiple signals
	select {
	case w.signal <- struct{}{}:
	default:
	}

	return true
}

// TryNext attempts to dequeue without blocking.
// Returns (Change{}, false) when the queue is momentarily empty or closed.
func (w *Watcher) TryNext() (Change, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.changes) == 0 {
		return Change{}, false
	}

	c := w.changes[0]
	w.changes = w.changes[1:]
	return c, true
}

// Wait returns a channel that is signaled when a change may be available or
// the watcher is closed. Consumers loop: TryNext until empty, then select on
// Wait() and their context.
func (w *Watcher) Wait() <-chan struct{} {
	return w.signal
}

// Closed reports whether the watcher has been detached and drained.
func (w *Watcher) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed && len(w.changes) == 0
}

// Close detaches the watcher from the store. Idempotent and safe from any
// goroutine, including concurrently with publish. Changes already queued
// remain readable via TryNext; no new changes arrive after Close returns.
func (w *Watcher) Close() {
	w.once.Do(func() {
		if w.detach != nil {
			w.detach()
		}
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()

		// Wake any consumer blocked on Wait
		select {
		case w.signal <- struct{}{}:
		default:
		}
	})
}

// watcherSet is the store-side registry of attached watchers.
type watcherSet struct {
	mu   sync.Mutex
	next int
	set  map[int]*Watcher
}

func newWatcherSet() *watcherSet {
	return &watcherSet{set: make(map[int]*Watcher)}
}

// Watch attaches a new watcher to the store's change feed. The watcher
// receives every change committed after attachment, in seq order. Callers
// must Close the watcher when done; Close is idempotent.
func (s *Store) Watch() *Watcher {
	w := newWatcher()

	s.watchers.mu.Lock()
	id := s.watchers.next
	s.watchers.next++
	s.watchers.set[id] = w
	s.watchers.mu.Unlock()

	w.detach = func() {
		s.watchers.mu.Lock()
		delete(s.watchers.set, id)
		s.watchers.mu.Unlock()
	}

	return w
}

// publish fans a change out to all attached watchers.
// Called with writeMu held so watchers see changes in seq order.
func (s *Store) publish(c Change) {
	s.watchers.mu.Lock()
	watchers := make([]*Watcher, 0, len(s.watchers.set))
	for _, w := range s.watchers.set {
		watchers = append(watchers, w)
	}
	s.watchers.mu.Unlock()

	for _, w := range watchers {
		w.publish(c)
	}
}

// closeAll detaches every watcher. Used by Store.Close.
func (ws *watcherSet) closeAll() {
	ws.mu.Lock()
	watchers := make([]*Watcher, 0, len(ws.set))
	for _, w := range ws.set {
		watchers = append(watchers, w)
	}
	ws.set = make(map[int]*Watcher)
	ws.mu.Unlock()

	for _, w := range watchers {
		w.Close()
	}
}
