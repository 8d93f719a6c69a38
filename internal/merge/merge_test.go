package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendhand/lendhand/internal/livequery"
	"github.com/lendhand/lendhand/internal/store"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func req(id string, seq int64, at time.Time) store.Request {
	return store.Request{
		ID:         id,
		Title:      "t-" + id,
		OwnerID:    "owner",
		Status:     store.StatusAccepted,
		AcceptedBy: "helper",
		CreatedAt:  at,
		Seq:        seq,
	}
}

func byCreatedDesc(a, b store.Request) bool { return a.CreatedAt.After(b.CreatedAt) }

func added(r store.Request) livequery.Event[store.Request] {
	return livequery.Event[store.Request]{Kind: livequery.KindAdded, Record: r}
}

func removed(r store.Request) livequery.Event[store.Request] {
	return livequery.Event[store.Request]{Kind: livequery.KindRemoved, Record: r}
}

func snapshot(rs ...store.Request) livequery.Event[store.Request] {
	return livequery.Event[store.Request]{Kind: livequery.KindSnapshot, Records: rs}
}

func ids(rs []store.Request) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestMerger_DeduplicatesAcrossStreams(t *testing.T) {
	m := New[store.Request](byCreatedDesc)

	r1 := req("r1", 1, baseTime)
	m.Apply("owner", added(r1))
	m.Apply("helper", added(r1))

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, []string{"r1"}, ids(m.View()))
}

func TestMerger_Idempotent(t *testing.T) {
	events := []livequery.Event[store.Request]{
		snapshot(req("r1", 1, baseTime)),
		added(req("r2", 2, baseTime.Add(time.Minute))),
		added(req("r3", 3, baseTime.Add(2*time.Minute))),
		removed(req("r2", 2, baseTime.Add(time.Minute))),
	}

	apply := func(m *Merger[store.Request]) {
		for _, ev := range events {
			m.Apply("owner", ev)
		}
	}

	once := New[store.Request](byCreatedDesc)
	apply(once)

	twice := New[store.Request](byCreatedDesc)
	apply(twice)
	apply(twice)

	require.Equal(t, ids(once.View()), ids(twice.View()))
	assert.Equal(t, []string{"r3", "r1"}, ids(twice.View()))
}

func TestMerger_RemovalFromOtherStreamDoesNotDelete(t *testing.T) {
	m := New[store.Request](byCreatedDesc)

	r1 := req("r1", 1, baseTime)
	m.Apply("owner", added(r1))

	// helper last asserted nothing for r1; its removal must not win
	m.Apply("helper", removed(r1))

	assert.Equal(t, []string{"r1"}, ids(m.View()),
		"stream A's removal deleted an entity stream B still asserts")
}

func TestMerger_RemovalFromAssertingStreamDeletes(t *testing.T) {
	m := New[store.Request](byCreatedDesc)

	r1 := req("r1", 1, baseTime)
	m.Apply("owner", added(r1))
	m.Apply("owner", removed(r1))

	assert.Empty(t, m.View())
}

func TestMerger_LatestUpsertWinsRegardlessOfOrigin(t *testing.T) {
	m := New[store.Request](byCreatedDesc)

	v1 := req("r1", 1, baseTime)
	m.Apply("owner", added(v1))

	v2 := req("r1", 2, baseTime)
	v2.Title = "updated"
	m.Apply("helper", added(v2))

	view := m.View()
	require.Len(t, view, 1)
	assert.Equal(t, "updated", view[0].Title)

	// Now the helper stream owns the entry; owner's removal is ignored
	m.Apply("owner", removed(v2))
	assert.Equal(t, 1, m.Len())

	m.Apply("helper", removed(v2))
	assert.Equal(t, 0, m.Len())
}

func TestMerger_SnapshotResyncDropsStaleEntries(t *testing.T) {
	m := New[store.Request](byCreatedDesc)

	m.Apply("owner", snapshot(req("r1", 1, baseTime), req("r2", 2, baseTime)))
	require.Equal(t, 2, m.Len())

	// r2 vanished while the stream was down; resync prunes it
	m.Apply("owner", snapshot(req("r1", 3, baseTime)))
	assert.Equal(t, []string{"r1"}, ids(m.View()))

	// ...but never entries another stream asserted
	m.Apply("helper", added(req("r9", 4, baseTime)))
	m.Apply("owner", snapshot(req("r1", 5, baseTime)))
	assert.Equal(t, 2, m.Len())
}

func TestMerger_OutputOrderIsTotalNotArrival(t *testing.T) {
	m := New[store.Request](byCreatedDesc)

	// Arrive oldest-first from one stream, newest-first from another
	m.Apply("owner", added(req("r1", 1, baseTime)))
	m.Apply("helper", added(req("r3", 2, baseTime.Add(2*time.Minute))))
	m.Apply("owner", added(req("r2", 3, baseTime.Add(time.Minute))))

	assert.Equal(t, []string{"r3", "r2", "r1"}, ids(m.View()))
}

func TestMerger_TieBrokenByID(t *testing.T) {
	m := New[store.Request](byCreatedDesc)

	m.Apply("owner", added(req("b", 1, baseTime)))
	m.Apply("owner", added(req("a", 2, baseTime)))

	assert.Equal(t, []string{"a", "b"}, ids(m.View()))
}

func TestMerger_OnChangeDeliversOrderedView(t *testing.T) {
	m := New[store.Request](byCreatedDesc)

	var last []string
	calls := 0
	m.OnChange(func(view []store.Request) {
		last = ids(view)
		calls++
	})

	m.Apply("owner", added(req("r1", 1, baseTime)))
	m.Apply("owner", added(req("r1", 1, baseTime))) // no state change, no call

	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"r1"}, last)
}
