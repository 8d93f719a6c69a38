// Package directory is the identity/directory provider: who a user is, who
// shares their locality, and the registration flow that creates them.
//
// Locality tags are free text ("North Campus", "north campus") chosen by
// users, so matching normalizes to NFC and case-folds before comparison.
// The normalized form is computed once at registration and stored alongside
// the display form.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/lendhand/lendhand/internal/clock"
	"github.com/lendhand/lendhand/internal/fault"
	"github.com/lendhand/lendhand/internal/geo"
	"github.com/lendhand/lendhand/internal/ident"
	"github.com/lendhand/lendhand/internal/store"
)

// Member is the directory's view of a user: just enough for fan-out
// recipient resolution.
type Member struct {
	ID          string
	DisplayName string
}

// Directory resolves identities and locality cohorts. The fan-out engine
// depends on this interface, not on the store, so tests can script
// arbitrary cohorts.
type Directory interface {
	// CurrentUser returns the full record for an authenticated id.
	CurrentUser(ctx context.Context, id string) (store.User, error)

	// UsersByLocality returns every member whose locality tag normalizes to
	// the same form as tag. Result size is unbounded; zero is valid.
	UsersByLocality(ctx context.Context, tag string) ([]Member, error)
}

// NormalizeLocality maps a free-text locality tag to its canonical matching
// form: NFC-normalized, case-folded, inner whitespace collapsed.
func NormalizeLocality(tag string) string {
	s := norm.NFC.String(tag)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// Service is the store-backed Directory plus the registration and profile
// operations recovered from the account flow.
type Service struct {
	store *store.Store
	clock clock.Clock
	ids   ident.Generator
}

// NewService creates a directory over the given store.
func NewService(s *store.Store, c clock.Clock, ids ident.Generator) *Service {
	return &Service{store: s, clock: c, ids: ids}
}

// RegisterParams describes a new member. Locality is immutable once set.
type RegisterParams struct {
	DisplayName string
	Locality    string
	Location    *geo.Point
	AvatarRef   string
}

// Register creates a user record. The display name and locality are
// required; everything else is optional.
func (s *Service) Register(ctx context.Context, p RegisterParams) (store.User, error) {
	if strings.TrimSpace(p.DisplayName) == "" {
		return store.User{}, fault.NewValidation("displayName", "must not be empty")
	}
	if strings.TrimSpace(p.Locality) == "" {
		return store.User{}, fault.NewValidation("locality", "must not be empty")
	}

	u := store.User{
		ID:           s.ids.NewID(),
		DisplayName:  strings.TrimSpace(p.DisplayName),
		Locality:     strings.TrimSpace(p.Locality),
		LocalityNorm: NormalizeLocality(p.Locality),
		Location:     p.Location,
		AvatarRef:    p.AvatarRef,
		CreatedAt:    s.clock.Now(),
	}
	u, err := s.store.PutUser(ctx, u)
	if err != nil {
		return store.User{}, fmt.Errorf("register: %w", err)
	}
	return u, nil
}

// CurrentUser implements Directory.
func (s *Service) CurrentUser(ctx context.Context, id string) (store.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, &fault.NotFoundError{Collection: store.CollectionUsers, ID: id}
	}
	if err != nil {
		return store.User{}, fmt.Errorf("current user: %w", err)
	}
	return u, nil
}

// UsersByLocality implements Directory.
func (s *Service) UsersByLocality(ctx context.Context, tag string) ([]Member, error) {
	users, err := s.store.ListUsersByLocality(ctx, NormalizeLocality(tag))
	if err != nil {
		return nil, fmt.Errorf("users by locality: %w", err)
	}
	members := make([]Member, 0, len(users))
	for _, u := range users {
		members = append(members, Member{ID: u.ID, DisplayName: u.DisplayName})
	}
	return members, nil
}

// UpdateDisplayName changes the caller's own display name.
func (s *Service) UpdateDisplayName(ctx context.Context, userID, displayName string) (store.User, error) {
	if strings.TrimSpace(displayName) == "" {
		return store.User{}, fault.NewValidation("displayName", "must not be empty")
	}
	u, err := s.store.UpdateUserDisplayName(ctx, userID, strings.TrimSpace(displayName))
	if err != nil {
		return store.User{}, fmt.Errorf("update display name: %w", err)
	}
	return u, nil
}

// ProfileStats returns how many requests the user has posted and how many
// they accepted.
func (s *Service) ProfileStats(ctx context.Context, userID string) (posted, helped int, err error) {
	return s.store.CountRequests(ctx, userID)
}
