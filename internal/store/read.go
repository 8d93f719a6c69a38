package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lendhand/lendhand/internal/geo"
)

// RequestFilter narrows ListRequests. Zero values mean "no constraint".
type RequestFilter struct {
	OwnerID    string
	AcceptedBy string
	Status     Status
}

// GetUser reads one user by id. Returns sql.ErrNoRows (wrapped) when absent.
func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, id)
}

func (s *Store) getUser(ctx context.Context, id string) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, locality, locality_norm, latitude, longitude,
		       avatar_ref, created_at, seq
		FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

// getUserLocked is getUser for callers already holding writeMu.
func (s *Store) getUserLocked(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, id)
}

// ListUsersByLocality returns all users whose normalized locality tag equals
// norm, ordered by creation time with an id tie-break (CP-3).
func (s *Store) ListUsersByLocality(ctx context.Context, norm string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, locality, locality_norm, latitude, longitude,
		       avatar_ref, created_at, seq
		FROM users WHERE locality_norm = ?
		ORDER BY created_at ASC, id ASC
	`, norm)
	if err != nil {
		return nil, fmt.Errorf("list users by locality: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list users by locality: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetRequest reads one request by id. Returns sql.ErrNoRows (wrapped) when
// absent.
func (s *Store) GetRequest(ctx context.Context, id string) (Request, error) {
	return s.getRequest(ctx, id)
}

func (s *Store) getRequest(ctx context.Context, id string) (Request, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, category, duration, owner_id, owner_name,
		       status, accepted_by, latitude, longitude, address, created_at, seq
		FROM requests WHERE id = ?
	`, id)
	return scanRequest(row)
}

// getRequestLocked is getRequest for callers already holding writeMu.
func (s *Store) getRequestLocked(ctx context.Context, id string) (Request, error) {
	return s.getRequest(ctx, id)
}

// ListRequests returns requests matching the filter, newest first with an id
// tie-break (CP-3). The feed and both merge-engine sources read through
// here.
func (s *Store) ListRequests(ctx context.Context, f RequestFilter) ([]Request, error) {
	query := `
		SELECT id, title, description, category, duration, owner_id, owner_name,
		       status, accepted_by, latitude, longitude, address, created_at, seq
		FROM requests WHERE 1=1`
	var args []any
	if f.OwnerID != "" {
		query += " AND owner_id = ?"
		args = append(args, f.OwnerID)
	}
	if f.AcceptedBy != "" {
		query += " AND accepted_by = ?"
		args = append(args, f.AcceptedBy)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, string(f.Status))
	}
	query += " ORDER BY created_at DESC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var reqs []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("list requests: %w", err)
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

// CountRequests returns profile stats: how many requests the user posted and
// how many they are (or were) the acceptor of.
func (s *Store) CountRequests(ctx context.Context, userID string) (posted, helped int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE owner_id = ?`, userID).Scan(&posted)
	if err != nil {
		return 0, 0, fmt.Errorf("count posted: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE accepted_by = ?`, userID).Scan(&helped)
	if err != nil {
		return 0, 0, fmt.Errorf("count helped: %w", err)
	}
	return posted, helped, nil
}

// ListMessages returns a request's thread ordered ascending by creation time
// with an id tie-break (CP-3).
func (s *Store) ListMessages(ctx context.Context, requestID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, sender_id, sender_name, text, created_at, seq
		FROM messages WHERE request_id = ?
		ORDER BY created_at ASC, id ASC
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.RequestID, &m.SenderID, &m.SenderName,
			&m.Text, &createdAt, &m.Seq); err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		m.CreatedAt = time.UnixMilli(createdAt).UTC()
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ListNotifications returns a recipient's notifications ordered ascending by
// creation time with an id tie-break (CP-3).
func (s *Store) ListNotifications(ctx context.Context, recipientID string) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipient_id, title, body, link, read, created_at, seq
		FROM notifications WHERE recipient_id = ?
		ORDER BY created_at ASC, id ASC
	`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notes []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("list notifications: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *Store) getNotificationLocked(ctx context.Context, id string) (Notification, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, recipient_id, title, body, link, read, created_at, seq
		FROM notifications WHERE id = ?
	`, id)
	return scanNotification(row)
}

// scanner is the shared subset of sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (User, error) {
	var u User
	var lat, lon sql.NullFloat64
	var createdAt int64
	err := row.Scan(&u.ID, &u.DisplayName, &u.Locality, &u.LocalityNorm,
		&lat, &lon, &u.AvatarRef, &createdAt, &u.Seq)
	if err != nil {
		return User{}, err
	}
	if lat.Valid && lon.Valid {
		u.Location = &geo.Point{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	return u, nil
}

func scanRequest(row scanner) (Request, error) {
	var r Request
	var category string
	var acceptedBy sql.NullString
	var lat, lon sql.NullFloat64
	var address string
	var createdAt int64
	err := row.Scan(&r.ID, &r.Title, &r.Description, &category, &r.Duration,
		&r.OwnerID, &r.OwnerName, (*string)(&r.Status), &acceptedBy,
		&lat, &lon, &address, &createdAt, &r.Seq)
	if err != nil {
		return Request{}, err
	}
	r.Category = categoryOrOther(category)
	r.AcceptedBy = acceptedBy.String
	if lat.Valid && lon.Valid {
		r.Location = &geo.Location{
			Point:   geo.Point{Latitude: lat.Float64, Longitude: lon.Float64},
			Address: address,
		}
	}
	r.CreatedAt = time.UnixMilli(createdAt).UTC()
	return r, nil
}

func scanNotification(row scanner) (Notification, error) {
	var n Notification
	var createdAt int64
	err := row.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Body, &n.Link,
		&n.Read, &createdAt, &n.Seq)
	if err != nil {
		return Notification{}, err
	}
	n.CreatedAt = time.UnixMilli(createdAt).UTC()
	return n, nil
}
