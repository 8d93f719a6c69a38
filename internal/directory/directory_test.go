package directory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendhand/lendhand/internal/fault"
	"github.com/lendhand/lendhand/internal/ident"
	"github.com/lendhand/lendhand/internal/store"
	"github.com/lendhand/lendhand/internal/testutil"
)

func newTestService(t *testing.T, ids ...string) (*Service, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewService(s, testutil.NewFrozenClock(), ident.NewFixedGenerator(ids...)), s
}

func TestNormalizeLocality(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"case folded", "North Campus", "north campus"},
		{"whitespace collapsed", "  north   campus ", "north campus"},
		{"already canonical", "north campus", "north campus"},
		{"unicode composed", "café quarter", "café quarter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLocality(tt.in))
		})
	}
}

func TestRegister_CreatesUserWithNormalizedLocality(t *testing.T) {
	svc, _ := newTestService(t, "u1")
	ctx := t.Context()

	u, err := svc.Register(ctx, RegisterParams{DisplayName: "Dana", Locality: "North Campus"})
	require.NoError(t, err)

	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "North Campus", u.Locality, "display form preserved")
	assert.Equal(t, "north campus", u.LocalityNorm)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t, "u1")
	ctx := t.Context()

	_, err := svc.Register(ctx, RegisterParams{DisplayName: "", Locality: "x"})
	assert.True(t, fault.IsValidation(err), "empty display name must be rejected")

	_, err = svc.Register(ctx, RegisterParams{DisplayName: "Dana", Locality: "   "})
	assert.True(t, fault.IsValidation(err), "blank locality must be rejected")
}

func TestUsersByLocality_MatchesAcrossSpellings(t *testing.T) {
	svc, _ := newTestService(t, "u1", "u2", "u3")
	ctx := t.Context()

	_, err := svc.Register(ctx, RegisterParams{DisplayName: "Dana", Locality: "North Campus"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterParams{DisplayName: "Eli", Locality: "north campus"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterParams{DisplayName: "Sam", Locality: "South Campus"})
	require.NoError(t, err)

	members, err := svc.UsersByLocality(ctx, "NORTH CAMPUS")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Dana", members[0].DisplayName)
	assert.Equal(t, "Eli", members[1].DisplayName)
}

func TestCurrentUser_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CurrentUser(t.Context(), "ghost")
	assert.True(t, fault.IsNotFound(err))
}

func TestUpdateDisplayName(t *testing.T) {
	svc, _ := newTestService(t, "u1")
	ctx := t.Context()

	_, err := svc.Register(ctx, RegisterParams{DisplayName: "Dana", Locality: "x"})
	require.NoError(t, err)

	u, err := svc.UpdateDisplayName(ctx, "u1", "Dana R.")
	require.NoError(t, err)
	assert.Equal(t, "Dana R.", u.DisplayName)

	_, err = svc.UpdateDisplayName(ctx, "u1", "  ")
	assert.True(t, fault.IsValidation(err))
}
