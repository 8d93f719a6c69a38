package request

import (
	"context"

	"github.com/lendhand/lendhand/internal/geo"
	"github.com/lendhand/lendhand/internal/livequery"
	"github.com/lendhand/lendhand/internal/store"
)

// newestFirst orders the feed and both "my activity" views: most recent
// posting on top. Equal timestamps fall back to the id so the order is
// stable across resubscribes.
func newestFirst(a, b store.Request) bool {
	return a.CreatedAt.After(b.CreatedAt)
}

// OpenFeed is the community feed: every request still waiting for a helper,
// regardless of poster.
func OpenFeed(s *store.Store) livequery.Query[store.Request] {
	return livequery.Query[store.Request]{
		Collection: store.CollectionRequests,
		List: func(ctx context.Context) ([]store.Request, error) {
			return s.ListRequests(ctx, store.RequestFilter{Status: store.StatusOpen})
		},
		Match: func(r store.Request) bool { return r.Status == store.StatusOpen },
		Less:  newestFirst,
	}
}

// Mine is everything the user posted, in any state.
func Mine(s *store.Store, userID string) livequery.Query[store.Request] {
	return livequery.Query[store.Request]{
		Collection: store.CollectionRequests,
		List: func(ctx context.Context) ([]store.Request, error) {
			return s.ListRequests(ctx, store.RequestFilter{OwnerID: userID})
		},
		Match: func(r store.Request) bool { return r.OwnerID == userID },
		Less:  newestFirst,
	}
}

// Helping is everything the user has accepted.
func Helping(s *store.Store, userID string) livequery.Query[store.Request] {
	return livequery.Query[store.Request]{
		Collection: store.CollectionRequests,
		List: func(ctx context.Context) ([]store.Request, error) {
			return s.ListRequests(ctx, store.RequestFilter{AcceptedBy: userID})
		},
		Match: func(r store.Request) bool { return r.AcceptedBy == userID },
		Less:  newestFirst,
	}
}

// Distance returns the great-circle distance in meters between the viewer
// and the request's snapshotted location. ok is false when either side has
// no position, in which case the feed shows the row without an annotation.
func Distance(viewer *geo.Point, r store.Request) (meters float64, ok bool) {
	if viewer == nil || r.Location == nil {
		return 0, false
	}
	return geo.Distance(*viewer, r.Location.Point), true
}
