// Package history is the append-only log of objection-handler exchanges.
// Turns are only recorded when the caller explicitly asks for it, and only
// after a successful generation, so the log never accumulates error turns.
package history

import (
	"context"
	"errors"
	"time"
)

var ErrMissingTenant = errors.New("tenant id is required")

// Turn is one recorded user/assistant exchange. Turns are never mutated or
// deleted by this subsystem.
type Turn struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	ContactID        string    `json:"contact_id,omitempty"`
	DealID           string    `json:"deal_id,omitempty"`
	UserMessage      string    `json:"message_user"`
	AssistantMessage string    `json:"message_assistant"`
	CreatedAt        time.Time `json:"created_at"`
}

// Store is the chat history contract.
type Store interface {
	// Append records one turn at the end of the tenant/contact/deal log.
	Append(ctx context.Context, turn Turn) error

	// Recent returns up to limit of the newest turns for the
	// tenant/contact/deal log, ordered oldest to newest.
	Recent(ctx context.Context, tenantID, contactID, dealID string, limit int) ([]Turn, error)
}
