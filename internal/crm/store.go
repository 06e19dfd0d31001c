package crm

import "context"

// Store is the read-only contract the insight engine has with the CRM store.
// Every method takes a tenant ID; implementations must never return another
// tenant's records.
type Store interface {
	// Snapshot returns the text-serializable view of one entity.
	// Returns ErrNotFound when the entity does not exist for the tenant,
	// which callers treat as "entity not embeddable".
	Snapshot(ctx context.Context, tenantID string, entityType EntityType, id string) (*Snapshot, error)

	// ListIDs returns up to limit entity IDs of the given type for the
	// tenant, in stable (creation) order. limit <= 0 means no cap.
	ListIDs(ctx context.Context, tenantID string, entityType EntityType, limit int) ([]string, error)

	// Deal returns the structured deal record.
	Deal(ctx context.Context, tenantID, id string) (*Deal, error)

	// Contact returns the structured contact record.
	Contact(ctx context.Context, tenantID, id string) (*Contact, error)

	// Activities returns up to limit activities attached to a deal or
	// contact, most recent first.
	Activities(ctx context.Context, tenantID string, entityType EntityType, entityID string, limit int) ([]Activity, error)

	// CountActivities returns the number of activities attached to a deal
	// or contact.
	CountActivities(ctx context.Context, tenantID string, entityType EntityType, entityID string) (int, error)

	// CountEntities returns the tenant's total number of entities of a type.
	CountEntities(ctx context.Context, tenantID string, entityType EntityType) (int, error)
}
