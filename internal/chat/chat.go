// Package chat runs the per-request message threads. A thread is every
// message carrying the request's id; there is no separate thread record, so
// a thread exists exactly when its first message does.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/lendhand/lendhand/internal/clock"
	"github.com/lendhand/lendhand/internal/fault"
	"github.com/lendhand/lendhand/internal/ident"
	"github.com/lendhand/lendhand/internal/livequery"
	"github.com/lendhand/lendhand/internal/store"
)

// Service sends and streams thread messages.
type Service struct {
	store *store.Store
	clock clock.Clock
	ids   ident.Generator
}

// NewService creates a chat service.
func NewService(s *store.Store, c clock.Clock, ids ident.Generator) *Service {
	return &Service{store: s, clock: c, ids: ids}
}

// Send appends a message to the request's thread. The sender's display name
// is denormalized onto the record at send time; later renames do not rewrite
// history. Whitespace-only text is rejected.
//
// Send does not check that the request still exists: threads outlive their
// requests, and a message against a deleted request is kept as unreachable
// history rather than refused.
func (s *Service) Send(ctx context.Context, requestID string, sender store.User, text string) (store.Message, error) {
	if strings.TrimSpace(text) == "" {
		return store.Message{}, fault.NewValidation("text", "must not be empty")
	}
	if requestID == "" {
		return store.Message{}, fault.NewValidation("requestID", "must not be empty")
	}

	m := store.Message{
		ID:         s.ids.NewID(),
		RequestID:  requestID,
		SenderID:   sender.ID,
		SenderName: sender.DisplayName,
		Text:       text,
		CreatedAt:  s.clock.Now(),
	}
	m, err := s.store.PutMessage(ctx, m)
	if err != nil {
		return store.Message{}, fmt.Errorf("send: %w", err)
	}
	return m, nil
}

// Thread reads the request's full message history, oldest first.
func (s *Service) Thread(ctx context.Context, requestID string) ([]store.Message, error) {
	msgs, err := s.store.ListMessages(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("thread: %w", err)
	}
	return msgs, nil
}

// Subscribe opens a live view of the request's thread: a snapshot of the
// history followed by each new message as it lands, oldest first throughout.
func (s *Service) Subscribe(ctx context.Context, requestID string) *livequery.Subscription[store.Message] {
	return livequery.Subscribe(ctx, s.store, Query(s.store, requestID))
}

// Query is the thread's live query, exposed for callers that merge several
// threads into one view.
func Query(s *store.Store, requestID string) livequery.Query[store.Message] {
	return livequery.Query[store.Message]{
		Collection: store.CollectionMessages,
		List: func(ctx context.Context) ([]store.Message, error) {
			return s.ListMessages(ctx, requestID)
		},
		Match: func(m store.Message) bool { return m.RequestID == requestID },
		Less: func(a, b store.Message) bool {
			return a.CreatedAt.Before(b.CreatedAt)
		},
	}
}
