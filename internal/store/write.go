package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// PutUser inserts a user record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - re-registering an
// existing id is silently ignored (locality is immutable after creation, so
// an overwrite here would be an illegal migration).
func (s *Store) PutUser(ctx context.Context, u User) (User, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	u.Seq = s.nextSeq()

	var lat, lon any
	if u.Location != nil {
		lat, lon = u.Location.Latitude, u.Location.Longitude
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users
		(id, display_name, locality, locality_norm, latitude, longitude, avatar_ref, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		u.ID,
		u.DisplayName,
		u.Locality,
		u.LocalityNorm,
		lat,
		lon,
		u.AvatarRef,
		u.CreatedAt.UnixMilli(),
		u.Seq,
	)
	if err != nil {
		return User{}, fmt.Errorf("put user: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		s.publish(Change{Collection: CollectionUsers, Type: ChangeAdded, Record: u, Seq: u.Seq})
		slog.Debug("user written", "id", u.ID, "seq", u.Seq)
	}
	return u, nil
}

// UpdateUserDisplayName changes a user's display name. Owner-only mutation;
// the caller is responsible for passing the owner's own id.
func (s *Store) UpdateUserDisplayName(ctx context.Context, id, displayName string) (User, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	seq := s.nextSeq()
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET display_name = ?, seq = ? WHERE id = ?
	`, displayName, seq, id)
	if err != nil {
		return User{}, fmt.Errorf("update display name: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return User{}, fmt.Errorf("update display name: rows affected: %w", err)
	}
	if n == 0 {
		return User{}, fmt.Errorf("update display name: no such user %s", id)
	}

	u, err := s.getUserLocked(ctx, id)
	if err != nil {
		return User{}, fmt.Errorf("update display name: %w", err)
	}
	s.publish(Change{Collection: CollectionUsers, Type: ChangeModified, Record: u, Seq: seq})
	return u, nil
}

// CreateRequest inserts a request record. The record must already satisfy
// the lifecycle invariants (status open, no acceptor); the schema CHECK
// constraints reject anything else.
func (s *Store) CreateRequest(ctx context.Context, r Request) (Request, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	r.Seq = s.nextSeq()

	var lat, lon any
	address := ""
	if r.Location != nil {
		lat, lon = r.Location.Latitude, r.Location.Longitude
		address = r.Location.Address
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests
		(id, title, description, category, duration, owner_id, owner_name,
		 status, accepted_by, latitude, longitude, address, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.Title,
		r.Description,
		string(r.Category),
		r.Duration,
		r.OwnerID,
		r.OwnerName,
		string(r.Status),
		lat,
		lon,
		address,
		r.CreatedAt.UnixMilli(),
		r.Seq,
	)
	if err != nil {
		return Request{}, fmt.Errorf("create request: %w", err)
	}

	s.publish(Change{Collection: CollectionRequests, Type: ChangeAdded, Record: r, Seq: r.Seq})
	slog.Debug("request written", "id", r.ID, "owner", r.OwnerID, "seq", r.Seq)
	return r, nil
}

// AcceptRequest performs the conditional acceptance write (CP-1).
//
// This is a single atomic UPDATE guarded by the current status, not a
// read-then-write pair: of two racing acceptors exactly one affects a row.
// Returns (request, true) for the winner. Returns (Request{}, false) when
// the precondition failed - the record is gone, already accepted, or owned
// by the acceptor - and the caller must re-read to classify which.
func (s *Store) AcceptRequest(ctx context.Context, id, acceptorID string) (Request, bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	seq := s.nextSeq()
	res, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET status = ?, accepted_by = ?, seq = ?
		WHERE id = ? AND status = ? AND owner_id <> ?
	`,
		string(StatusAccepted),
		acceptorID,
		seq,
		id,
		string(StatusOpen),
		acceptorID,
	)
	if err != nil {
		return Request{}, false, fmt.Errorf("accept request: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return Request{}, false, fmt.Errorf("accept request: rows affected: %w", err)
	}
	if n == 0 {
		return Request{}, false, nil
	}

	r, err := s.getRequestLocked(ctx, id)
	if err != nil {
		return Request{}, false, fmt.Errorf("accept request: read back: %w", err)
	}
	s.publish(Change{Collection: CollectionRequests, Type: ChangeModified, Record: r, Seq: seq})
	slog.Debug("request accepted", "id", id, "acceptor", acceptorID, "seq", seq)
	return r, true, nil
}

// DeleteRequest removes a request if actorID is its poster.
// Returns false when no row matched (missing record or wrong actor).
// Messages referencing the id are left in place as unreachable history.
func (s *Store) DeleteRequest(ctx context.Context, id, actorID string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// Read first so the removal event can carry the last-known record.
	r, err := s.getRequestLocked(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete request: %w", err)
	}

	seq := s.nextSeq()
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM requests WHERE id = ? AND owner_id = ?
	`, id, actorID)
	if err != nil {
		return false, fmt.Errorf("delete request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete request: rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	r.Seq = seq
	s.publish(Change{Collection: CollectionRequests, Type: ChangeRemoved, Record: r, Seq: seq})
	slog.Debug("request deleted", "id", id, "seq", seq)
	return true, nil
}

// PutMessage appends a message to a request's thread.
// Messages are append-only: there is no update or delete path.
func (s *Store) PutMessage(ctx context.Context, m Message) (Message, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	m.Seq = s.nextSeq()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages
		(id, request_id, sender_id, sender_name, text, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID,
		m.RequestID,
		m.SenderID,
		m.SenderName,
		m.Text,
		m.CreatedAt.UnixMilli(),
		m.Seq,
	)
	if err != nil {
		return Message{}, fmt.Errorf("put message: %w", err)
	}

	s.publish(Change{Collection: CollectionMessages, Type: ChangeAdded, Record: m, Seq: m.Seq})
	return m, nil
}

// PutNotification inserts one derived notification record.
func (s *Store) PutNotification(ctx context.Context, n Notification) (Notification, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	n.Seq = s.nextSeq()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications
		(id, recipient_id, title, body, link, read, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		n.ID,
		n.RecipientID,
		n.Title,
		n.Body,
		n.Link,
		n.Read,
		n.CreatedAt.UnixMilli(),
		n.Seq,
	)
	if err != nil {
		return Notification{}, fmt.Errorf("put notification: %w", err)
	}

	s.publish(Change{Collection: CollectionNotifications, Type: ChangeAdded, Record: n, Seq: n.Seq})
	return n, nil
}

// MarkNotificationRead flips the read flag. Recipient-owned mutation; the
// recipient id is part of the predicate so one client cannot mark another's
// records.
func (s *Store) MarkNotificationRead(ctx context.Context, id, recipientID string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	seq := s.nextSeq()
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = 1, seq = ?
		WHERE id = ? AND recipient_id = ? AND read = 0
	`, seq, id, recipientID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read: rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	rec, err := s.getNotificationLocked(ctx, id)
	if err != nil {
		return false, fmt.Errorf("mark notification read: read back: %w", err)
	}
	s.publish(Change{Collection: CollectionNotifications, Type: ChangeModified, Record: rec, Seq: seq})
	return true, nil
}
