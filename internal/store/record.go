package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/lendhand/lendhand/internal/geo"
)

// Collection names. Each is one SQLite table with a TEXT primary key.
const (
	CollectionUsers         = "users"
	CollectionRequests      = "requests"
	CollectionMessages      = "messages"
	CollectionNotifications = "notifications"
)

// Status is the request lifecycle state.
//
// Lifecycle: open -> accepted -> fulfilled, with open -> (deleted) also
// legal. No transition skips forward or reverses. Fulfilled is modeled but
// reserved: no operation currently produces it.
type Status string

const (
	StatusOpen      Status = "open"
	StatusAccepted  Status = "accepted"
	StatusFulfilled Status = "fulfilled"
)

// Valid reports whether s is one of the modeled states.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusAccepted, StatusFulfilled:
		return true
	}
	return false
}

// Category classifies a request.
type Category string

const (
	CategoryAcademic  Category = "Academic"
	CategoryTech      Category = "Tech"
	CategoryHousehold Category = "Household"
	CategoryTransport Category = "Transport"
	CategoryOther     Category = "Other"
)

// Categories lists all categories in display order.
var Categories = []Category{
	CategoryAcademic,
	CategoryTech,
	CategoryHousehold,
	CategoryTransport,
	CategoryOther,
}

// ParseCategory matches case-insensitively. Unknown input is an error at the
// input boundary; rows read back with an unknown value fall back to Other.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// categoryOrOther is the read-side fallback for legacy rows.
func categoryOrOther(s string) Category {
	if c, err := ParseCategory(s); err == nil {
		return c
	}
	return CategoryOther
}

// Record is implemented by all four collection types. Live queries use it
// for identity-keyed dedup and the snapshot/stream seam.
type Record interface {
	RecordID() string
	RecordSeq() int64
}

// User is a registered member of a locality.
//
// Locality is immutable after creation (there is no migration flow);
// DisplayName is mutable by the owner. LocalityNorm is the normalized form
// used for fan-out matching, computed by the directory at registration.
type User struct {
	ID           string     `json:"id"`
	DisplayName  string     `json:"displayName"`
	Locality     string     `json:"locality"`
	LocalityNorm string     `json:"-"`
	Location     *geo.Point `json:"location,omitempty"`
	AvatarRef    string     `json:"avatarRef,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	Seq          int64      `json:"-"`
}

// Request is an item request posting.
//
// Invariants (schema-enforced): AcceptedBy is set iff Status != open;
// AcceptedBy never equals OwnerID; once accepted, status does not revert.
// Location is a snapshot captured at creation, never live-updated.
type Request struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Category    Category      `json:"category"`
	Duration    string        `json:"duration,omitempty"`
	OwnerID     string        `json:"ownerId"`
	OwnerName   string        `json:"ownerName"`
	Status      Status        `json:"status"`
	AcceptedBy  string        `json:"acceptedBy,omitempty"`
	Location    *geo.Location `json:"location,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	Seq         int64         `json:"-"`
}

// Message is one entry in a request's chat thread. Append-only; the sender
// display name is denormalized at send time so threads render without user
// lookups.
type Message struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"requestId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
	Seq        int64     `json:"-"`
}

// Notification is a derived record written by the fan-out engine. Only the
// recipient mutates it, and only the Read flag.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipientId"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Link        string    `json:"link,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
	Seq         int64     `json:"-"`
}

func (u User) RecordID() string { return u.ID }
func (u User) RecordSeq() int64 { return u.Seq }

func (r Request) RecordID() string { return r.ID }
func (r Request) RecordSeq() int64 { return r.Seq }

func (m Message) RecordID() string { return m.ID }
func (m Message) RecordSeq() int64 { return m.Seq }

func (n Notification) RecordID() string { return n.ID }
func (n Notification) RecordSeq() int64 { return n.Seq }
