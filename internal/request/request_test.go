package request

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendhand/lendhand/internal/fault"
	"github.com/lendhand/lendhand/internal/geo"
	"github.com/lendhand/lendhand/internal/ident"
	"github.com/lendhand/lendhand/internal/notify"
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

// notifierStub records fan-out calls and optionally fails them.
type notifierStub struct {
	calls []store.Request
	err   error
}

func (n *notifierStub) RequestCreated(_ context.Context, req store.Request) (notify.Report, error) {
	n.calls = append(n.calls, req)
	if n.err != nil {
		return notify.Report{}, n.err
	}
	return notify.Report{Intended: 2, Notified: 2}, nil
}

func newTestService(t *testing.T, ids ...string) (*Service, *store.Store, *notifierStub) {
	t.Helper()
	s := openTest(t)
	stub := &notifierStub{}
	svc := NewService(s, testutil.NewFrozenClock(), ident.NewFixedGenerator(ids...), stub)
	return svc, s, stub
}

func paula() store.User {
	return store.User{ID: "paula", DisplayName: "Paula"}
}

func campusLocation() *geo.Location {
	return &geo.Location{
		Point:   geo.Point{Latitude: 42.35, Longitude: -71.09},
		Address: "Main St, Cambridge",
	}
}

func createParams() CreateParams {
	return CreateParams{
		Title:    "a soldering iron",
		Category: store.CategoryHousehold,
		Duration: "2 hours",
		Poster:   paula(),
		Location: campusLocation(),
	}
}

func TestCreate_StartsOpenAndFansOut(t *testing.T) {
	svc, s, stub := newTestService(t, "r1")

	req, report, err := svc.Create(t.Context(), createParams())
	require.NoError(t, err)

	assert.Equal(t, "r1", req.ID)
	assert.Equal(t, store.StatusOpen, req.Status)
	assert.Empty(t, req.AcceptedBy)
	assert.Equal(t, "Paula", req.OwnerName)
	assert.Equal(t, 2, report.Notified)

	require.Len(t, stub.calls, 1)
	assert.Equal(t, "r1", stub.calls[0].ID)

	stored, err := s.GetRequest(t.Context(), "r1")
	require.NoError(t, err)
	assert.Equal(t, req.Title, stored.Title)
	require.NotNil(t, stored.Location)
	assert.Equal(t, "Main St, Cambridge", stored.Location.Address)
}

func TestCreate_ValidatesTitleAndLocation(t *testing.T) {
	svc, _, stub := newTestService(t)

	for _, title := range []string{"", "   ", "\t\n"} {
		p := createParams()
		p.Title = title
		_, _, err := svc.Create(t.Context(), p)
		assert.True(t, fault.IsValidation(err), "title %q", title)
	}

	p := createParams()
	p.Location = nil
	_, _, err := svc.Create(t.Context(), p)
	assert.True(t, fault.IsValidation(err))

	assert.Empty(t, stub.calls, "no fan-out for rejected creates")
}

func TestCreate_TrimsTitleAndDefaultsCategory(t *testing.T) {
	svc, _, _ := newTestService(t, "r1")

	p := createParams()
	p.Title = "  a ladder  "
	p.Category = ""
	req, _, err := svc.Create(t.Context(), p)
	require.NoError(t, err)
	assert.Equal(t, "a ladder", req.Title)
	assert.Equal(t, store.CategoryOther, req.Category)
}

func TestCreate_FanoutFailureDoesNotFailCreate(t *testing.T) {
	svc, s, stub := newTestService(t, "r1")
	stub.err = errors.New("directory unavailable")

	req, _, err := svc.Create(t.Context(), createParams())
	require.NoError(t, err)

	_, err = s.GetRequest(t.Context(), req.ID)
	assert.NoError(t, err, "request must exist despite the failed fan-out")
}

func TestAccept_OpenRequest(t *testing.T) {
	svc, _, _ := newTestService(t, "r1")
	_, _, err := svc.Create(t.Context(), createParams())
	require.NoError(t, err)

	req, err := svc.Accept(t.Context(), "r1", "henry")
	require.NoError(t, err)
	assert.Equal(t, store.StatusAccepted, req.Status)
	assert.Equal(t, "henry", req.AcceptedBy)
}

func TestAccept_ClassifiesFailures(t *testing.T) {
	svc, _, _ := newTestService(t, "r1")
	_, _, err := svc.Create(t.Context(), createParams())
	require.NoError(t, err)

	_, err = svc.Accept(t.Context(), "missing", "henry")
	assert.True(t, fault.IsNotFound(err))

	_, err = svc.Accept(t.Context(), "r1", "paula")
	assert.True(t, fault.IsValidation(err), "poster accepting own request")

	_, err = svc.Accept(t.Context(), "r1", "henry")
	require.NoError(t, err)

	_, err = svc.Accept(t.Context(), "r1", "iris")
	assert.True(t, fault.IsPreconditionFailed(err), "lost race reports already accepted")
}

func TestDelete_PosterOnly(t *testing.T) {
	svc, s, _ := newTestService(t, "r1")
	_, _, err := svc.Create(t.Context(), createParams())
	require.NoError(t, err)

	err = svc.Delete(t.Context(), "r1", "henry")
	assert.True(t, fault.IsValidation(err))

	err = svc.Delete(t.Context(), "r1", "paula")
	require.NoError(t, err)

	_, err = s.GetRequest(t.Context(), "r1")
	assert.Error(t, err)

	err = svc.Delete(t.Context(), "r1", "paula")
	assert.True(t, fault.IsNotFound(err))
}

func TestGet_MissingIsNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Get(t.Context(), "nope")
	assert.True(t, fault.IsNotFound(err))
}

func TestQueries_MatchLifecycleStates(t *testing.T) {
	open := store.Request{ID: "a", OwnerID: "paula", Status: store.StatusOpen}
	taken := store.Request{ID: "b", OwnerID: "paula", Status: store.StatusAccepted, AcceptedBy: "henry"}

	s := openTest(t)
	assert.True(t, OpenFeed(s).Match(open))
	assert.False(t, OpenFeed(s).Match(taken))

	assert.True(t, Mine(s, "paula").Match(taken))
	assert.False(t, Mine(s, "henry").Match(taken))

	assert.True(t, Helping(s, "henry").Match(taken))
	assert.False(t, Helping(s, "henry").Match(open))
}

func TestDistance_AnnotatesWhenBothSidesHavePositions(t *testing.T) {
	viewer := &geo.Point{Latitude: 42.35, Longitude: -71.09}
	req := store.Request{Location: campusLocation()}

	meters, ok := Distance(viewer, req)
	require.True(t, ok)
	assert.InDelta(t, 0, meters, 0.001)

	_, ok = Distance(nil, req)
	assert.False(t, ok)

	_, ok = Distance(viewer, store.Request{})
	assert.False(t, ok)
}
