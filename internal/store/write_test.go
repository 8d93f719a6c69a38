package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
)

func TestAcceptRequest_OpenRequestSucceeds(t *testing.T) {
	s := openTest(t)
	ctx := t.Context()

	if _, err := s.CreateRequest(ctx, testRequest("r1", "iPhone charger", "owner")); err != nil {
		t.Fatalf("CreateRequest() failed: %v", err)
	}

	r, ok, err := s.AcceptRequest(ctx, "r1", "helper")
	if err != nil {
		t.Fatalf("AcceptRequest() failed: %v", err)
	}
	if !ok {
		t.Fatal("AcceptRequest() precondition failed for open request")
	}
	if r.Status != StatusAccepted {
		t.Errorf("status = %q, want %q", r.Status, StatusAccepted)
	}
	if r.AcceptedBy != "helper" {
		t.Errorf("acceptedBy = %q, want %q", r.AcceptedBy, "helper")
	}
}

func TestAcceptRequest_SecondAcceptorLoses(t *testing.T) {
	s := openTest(t)
	ctx := t.Context()

	if _, err := s.CreateRequest(ctx, testRequest("r1", "iPhone charger", "owner")); err != nil {
		t.Fatalf("CreateRequest() failed: %v", err)
	}

	if _, ok, err := s.AcceptRequest(ctx, "r1", "first"); err != nil || !ok {
		t.Fatalf("first accept: ok=%v err=%v", ok, err)
	}

	_, ok, err := s.AcceptRequest(ctx, "r1", "second")
	if err != nil {
		t.Fatalf("second accept errored: %v", err)
	}
	if ok {
		t.Fatal("second accept succeeded; conditional write did not hold")
	}

	// The winner's write must be intact
	r, err := s.GetRequest(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRequest() failed: %v", err)
	}
	if r.AcceptedBy != "first" {
		t.Errorf("acceptedBy = %q, want %q (winner overwritten)", r.AcceptedBy, "first")
	}
}

func TestAcceptRequest_ConcurrentRaceHasOneWinner(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if _, err := s.CreateRequest(ctx, testRequest("r1", "iPhone charger", "owner")); err != nil {
		t.Fatalf("CreateRequest() failed: %v", err)
	}

	const acceptors = 8
	wins := make([]bool, acceptors)
	var wg sync.WaitGroup
	for i := 0; i < acceptors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok, err := s.AcceptRequest(ctx, "r1", acceptorID(i))
			if err != nil {
				t.Errorf("acceptor %d errored: %v", i, err)
				return
			}
			wins[i] = ok
		}(i)
	}
	wg.Wait()

	winners := 0
	winner := ""
	for i, ok := range wins {
		if ok {
			winners++
			winner = acceptorID(i)
		}
	}
	if winners != 1 {
		t.Fatalf("got %d winners, want exactly 1", winners)
	}

	r, err := s.GetRequest(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRequest() failed: %v", err)
	}
	if r.AcceptedBy != winner {
		t.Errorf("acceptedBy = %q, want winner %q", r.AcceptedBy, winner)
	}
}

func acceptorID(i int) string {
	return string(rune('a' + i))
}

func TestAcceptRequest_OwnerCannotAcceptOwnRequest(t *testing.T) {
	s := openTest(t)
	ctx := t.Context()

	if _, err := s.CreateRequest(ctx, testRequest("r1", "iPhone charger", "owner")); err != nil {
		t.Fatalf("CreateRequest() failed: %v", err)
	}

	_, ok, err := s.AcceptRequest(ctx, "r1", "owner")
	if err != nil {
		t.Fatalf("AcceptRequest() errored: %v", err)
	}
	if ok {
		t.Error("owner accepted own request")
	}
}

func TestDeleteRequest_PosterOnly(t *testing.T) {
	s := openTest(t)
	ctx := t.Context()

	if _, err := s.CreateRequest(ctx, testRequest("r1", "iPhone charger", "owner")); err != nil {
		t.Fatalf("CreateRequest() failed: %v", err)
	}

	if ok, err := s.DeleteRequest(ctx, "r1", "stranger"); err != nil || ok {
		t.Fatalf("delete by non-poster: ok=%v err=%v, want ok=false", ok, err)
	}
	if ok, err := s.DeleteRequest(ctx, "r1", "owner"); err != nil || !ok {
		t.Fatalf("delete by poster: ok=%v err=%v, want ok=true", ok, err)
	}

	_, err := s.GetRequest(ctx, "r1")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetRequest() after delete = %v, want sql.ErrNoRows", err)
	}
}

func TestDeleteRequest_LeavesMessagesInPlace(t *testing.T) {
	s := openTest(t)
	ctx := t.Context()

	if _, err := s.CreateRequest(ctx, testRequest("r1", "iPhone charger", "owner")); err != nil {
		t.Fatalf("CreateRequest() failed: %v", err)
	}
	if _, err := s.PutMessage(ctx, Message{
		ID: "m1", RequestID: "r1", SenderID: "owner", SenderName: "Poster",
		Text: "still there?", CreatedAt: baseTime,
	}); err != nil {
		t.Fatalf("PutMessage() failed: %v", err)
	}
	if ok, err := s.DeleteRequest(ctx, "r1", "owner"); err != nil || !ok {
		t.Fatalf("DeleteRequest(): ok=%v err=%v", ok, err)
	}

	// Orphaned history is kept, not purged
	msgs, err := s.ListMessages(ctx, "r1")
	if err != nil {
		t.Fatalf("ListMessages() failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("got %d orphaned messages, want 1", len(msgs))
	}
}

func TestPutUser_DuplicateIDIgnored(t *testing.T) {
	s := openTest(t)
	ctx := t.Context()

	if _, err := s.PutUser(ctx, testUser("u1", "Dana", "north-campus")); err != nil {
		t.Fatalf("PutUser() failed: %v", err)
	}

	// Second put with a different locality must not overwrite (immutable)
	dup := testUser("u1", "Dana", "south-campus")
	if _, err := s.PutUser(ctx, dup); err != nil {
		t.Fatalf("duplicate PutUser() errored: %v", err)
	}

	u, err := s.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if u.Locality != "north-campus" {
		t.Errorf("locality = %q, want original %q", u.Locality, "north-campus")
	}
}

func TestSchemaInvariant_AcceptedByIffNotOpen(t *testing.T) {
	s := openTest(t)
	ctx := t.Context()

	// An open request with an acceptor violates the CHECK constraint
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests
		(id, title, category, owner_id, owner_name, status, accepted_by, created_at, seq)
		VALUES ('bad', 'x', 'Other', 'o', 'O', 'open', 'h', 0, 1)
	`)
	if err == nil {
		t.Error("open request with accepted_by was accepted by schema")
	}

	// An accepted request without an acceptor violates it too
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO requests
		(id, title, category, owner_id, owner_name, status, accepted_by, created_at, seq)
		VALUES ('bad2', 'x', 'Other', 'o', 'O', 'accepted', NULL, 0, 2)
	`)
	if err == nil {
		t.Error("accepted request without accepted_by was accepted by schema")
	}

	// Self-acceptance violates the ownership check
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO requests
		(id, title, category, owner_id, owner_name, status, accepted_by, created_at, seq)
		VALUES ('bad3', 'x', 'Other', 'o', 'O', 'accepted', 'o', 0, 3)
	`)
	if err == nil {
		t.Error("self-accepted request was accepted by schema")
	}
}

func TestMarkNotificationRead_RecipientScoped(t *testing.T) {
	s := openTest(t)
	ctx := t.Context()

	if _, err := s.PutNotification(ctx, Notification{
		ID: "n1", RecipientID: "alice", Title: "New request nearby",
		Body: "Bob needs: a charger", CreatedAt: baseTime,
	}); err != nil {
		t.Fatalf("PutNotification() failed: %v", err)
	}

	if ok, err := s.MarkNotificationRead(ctx, "n1", "mallory"); err != nil || ok {
		t.Fatalf("foreign recipient marked read: ok=%v err=%v", ok, err)
	}
	if ok, err := s.MarkNotificationRead(ctx, "n1", "alice"); err != nil || !ok {
		t.Fatalf("recipient mark read: ok=%v err=%v", ok, err)
	}
	// Second mark is a no-op
	if ok, err := s.MarkNotificationRead(ctx, "n1", "alice"); err != nil || ok {
		t.Fatalf("re-mark read: ok=%v err=%v, want ok=false", ok, err)
	}
}
