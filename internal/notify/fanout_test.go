package notify

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendhand/lendhand/internal/directory"
	"github.com/lendhand/lendhand/internal/fault"
	"github.com/lendhand/lendhand/internal/ident"
	"github.com/lendhand/lendhand/internal/store"
	"github.com/lendhand/lendhand/internal/testutil"
)

func openTest(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seedUsers registers the scenario cohort: poster + 3 sharing their
// locality + 1 elsewhere.
func seedUsers(t *testing.T, s *store.Store) *directory.Service {
	t.Helper()
	dir := directory.NewService(s, testutil.NewFrozenClock(),
		ident.NewFixedGenerator("poster", "n1", "n2", "n3", "far"))
	ctx := t.Context()

	for _, reg := range []directory.RegisterParams{
		{DisplayName: "Paula", Locality: "X"},
		{DisplayName: "Nia", Locality: "X"},
		{DisplayName: "Noor", Locality: "x"}, // different spelling, same cohort
		{DisplayName: "Ned", Locality: "X"},
		{DisplayName: "Faye", Locality: "Y"},
	} {
		_, err := dir.Register(ctx, reg)
		require.NoError(t, err)
	}
	return dir
}

func testRequest() store.Request {
	return store.Request{
		ID:        "r1",
		Title:     "a soldering iron",
		OwnerID:   "poster",
		OwnerName: "Paula",
		Status:    store.StatusOpen,
	}
}

func TestRequestCreated_NotifiesLocalityExcludingPoster(t *testing.T) {
	s := openTest(t)
	dir := seedUsers(t, s)
	eng := NewEngine(s, dir, testutil.NewFrozenClock(), ident.UUIDv7Generator{})
	ctx := t.Context()

	report, err := eng.RequestCreated(ctx, testRequest())
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, 3, report.Intended)
	assert.Equal(t, 3, report.Notified)

	// None addressed to the poster or to the other locality
	for _, id := range []string{"poster", "far"} {
		notes, err := s.ListNotifications(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, notes, "user %s must not be notified", id)
	}
	for _, id := range []string{"n1", "n2", "n3"} {
		notes, err := s.ListNotifications(ctx, id)
		require.NoError(t, err)
		require.Len(t, notes, 1, "user %s", id)
		assert.Equal(t, "New request nearby!", notes[0].Title)
		assert.Equal(t, "Paula needs: a soldering iron", notes[0].Body)
		assert.Equal(t, "/requests/r1", notes[0].Link)
		assert.False(t, notes[0].Read)
	}
}

func TestRequestCreated_ZeroRecipientsIsSuccess(t *testing.T) {
	s := openTest(t)
	dir := directory.NewService(s, testutil.NewFrozenClock(), ident.NewFixedGenerator("poster"))
	ctx := t.Context()

	_, err := dir.Register(ctx, directory.RegisterParams{DisplayName: "Paula", Locality: "Z"})
	require.NoError(t, err)

	eng := NewEngine(s, dir, testutil.NewFrozenClock(), ident.UUIDv7Generator{})
	report, err := eng.RequestCreated(ctx, testRequest())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Intended)
	assert.Equal(t, 0, report.Notified)
	assert.NoError(t, report.Err())
}

func TestRequestCreated_UnknownPosterFailsBeforeAnyWrite(t *testing.T) {
	s := openTest(t)
	dir := directory.NewService(s, testutil.NewFrozenClock(), ident.NewFixedGenerator())
	eng := NewEngine(s, dir, testutil.NewFrozenClock(), ident.UUIDv7Generator{})

	_, err := eng.RequestCreated(t.Context(), testRequest())
	require.Error(t, err)
	assert.True(t, fault.IsNotFound(err))
}

func TestRequestCreated_PartialFailureIsReported(t *testing.T) {
	s := openTest(t)
	dir := seedUsers(t, s)

	// Two recipients get the same notification id: the second insert
	// violates the primary key and fails, leaving a partial fan-out.
	eng := NewEngine(s, dir, testutil.NewFrozenClock(),
		ident.NewFixedGenerator("note-1", "note-1", "note-2"))

	report, err := eng.RequestCreated(t.Context(), testRequest())
	require.NoError(t, err, "partial failure must not fail the fan-out call")
	assert.Equal(t, 3, report.Intended)
	assert.Equal(t, 2, report.Notified)
	require.Len(t, report.Failures, 1)

	assert.True(t, fault.IsPartialFanout(report.Err()))
}

func TestBody(t *testing.T) {
	assert.Equal(t, "Paula needs: a charger", Body("Paula", "a charger"))
	assert.Equal(t, "A neighbor needs: a charger", Body("", "a charger"))
}
