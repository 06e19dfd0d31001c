// Package crm exposes a normalized, read-only view of the CRM store to the
// insight engine. The CRM application owns the records; this package only
// reads snapshots, counts and structured fields, always scoped to a tenant.
package crm

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound          = errors.New("entity not found")
	ErrUnknownEntityType = errors.New("unknown entity type")
)

// EntityType identifies the kind of CRM record a snapshot describes.
type EntityType string

const (
	EntityDeal     EntityType = "deal"
	EntityContact  EntityType = "contact"
	EntityActivity EntityType = "activity"
)

// ParseEntityType validates a caller-supplied entity type string.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(strings.ToLower(strings.TrimSpace(s))) {
	case EntityDeal:
		return EntityDeal, nil
	case EntityContact:
		return EntityContact, nil
	case EntityActivity:
		return EntityActivity, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, s)
}

// DealStatus is the lifecycle state of a deal.
type DealStatus string

const (
	DealOpen DealStatus = "open"
	DealWon  DealStatus = "won"
	DealLost DealStatus = "lost"
)

// Closed reports whether the deal has a definitive outcome.
func (s DealStatus) Closed() bool {
	return s == DealWon || s == DealLost
}

// Deal is the structured view of a deal record.
type Deal struct {
	TenantID       string     `json:"tenant_id"`
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Stage          string     `json:"stage"`
	Status         DealStatus `json:"status"`
	Value          float64    `json:"value"`
	StageEnteredAt time.Time  `json:"stage_entered_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Contact is the structured view of a contact record.
type Contact struct {
	TenantID  string    `json:"tenant_id"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	Company   string    `json:"company"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Activity is a logged interaction attached to a deal and/or contact.
type Activity struct {
	TenantID   string    `json:"tenant_id"`
	ID         string    `json:"id"`
	DealID     string    `json:"deal_id,omitempty"`
	ContactID  string    `json:"contact_id,omitempty"`
	Kind       string    `json:"kind"`
	Subject    string    `json:"subject"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Snapshot is an ephemeral, text-serializable view of a CRM entity.
// It is the unit handed to the embedding pipeline; the CRM store owns the
// underlying record and the snapshot is never persisted here.
type Snapshot struct {
	TenantID  string
	Type      EntityType
	ID        string
	Fields    map[string]string
	CreatedAt time.Time
}

// TextBlob renders the snapshot's fields as a deterministic text block.
// Field keys are emitted in sorted order so the same record always yields
// the same blob, which makes the content hash stable across runs.
func (s *Snapshot) TextBlob() string {
	keys := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s\n", s.Type, s.ID))
	for _, k := range keys {
		v := s.Fields[k]
		if v == "" {
			continue
		}
		b.WriteString(fmt.Sprintf("%s: %s\n", k, v))
	}
	return b.String()
}

// SourceHash returns the sha256 hex digest of the snapshot's text blob.
// An embedding record carrying the same hash is up to date for this snapshot.
func (s *Snapshot) SourceHash() string {
	sum := sha256.Sum256([]byte(s.TextBlob()))
	return hex.EncodeToString(sum[:])
}

// SnapshotFromDeal builds the canonical snapshot for a deal. Both store
// implementations go through here so the rendered blob is identical
// regardless of the backing store.
func SnapshotFromDeal(d *Deal) *Snapshot {
	return &Snapshot{
		TenantID: d.TenantID,
		Type:     EntityDeal,
		ID:       d.ID,
		Fields: map[string]string{
			"title":  d.Title,
			"stage":  d.Stage,
			"status": string(d.Status),
			"value":  fmt.Sprintf("%.2f", d.Value),
		},
		CreatedAt: d.CreatedAt,
	}
}

// SnapshotFromContact builds the canonical snapshot for a contact.
func SnapshotFromContact(c *Contact) *Snapshot {
	return &Snapshot{
		TenantID: c.TenantID,
		Type:     EntityContact,
		ID:       c.ID,
		Fields: map[string]string{
			"name":    c.Name,
			"title":   c.Title,
			"company": c.Company,
			"email":   c.Email,
		},
		CreatedAt: c.CreatedAt,
	}
}

// SnapshotFromActivity builds the canonical snapshot for an activity.
func SnapshotFromActivity(a *Activity) *Snapshot {
	fields := map[string]string{
		"kind":    a.Kind,
		"subject": a.Subject,
		"note":    a.Note,
	}
	if a.DealID != "" {
		fields["deal_id"] = a.DealID
	}
	if a.ContactID != "" {
		fields["contact_id"] = a.ContactID
	}
	if !a.OccurredAt.IsZero() {
		fields["occurred_at"] = a.OccurredAt.Format("2006-01-02")
	}
	return &Snapshot{
		TenantID:  a.TenantID,
		Type:      EntityActivity,
		ID:        a.ID,
		Fields:    fields,
		CreatedAt: a.OccurredAt,
	}
}
