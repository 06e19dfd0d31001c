// Package coldstart decides whether an entity has enough historical signal
// to support a trustworthy insight. When it says no, downstream retrieval
// and generation must not run: an answer synthesized from empty context is
// indistinguishable from a hallucination.
package coldstart

import (
	"context"
	"fmt"

	"github.com/Relayline/pulse/internal/crm"
	"github.com/Relayline/pulse/internal/vecstore"
)

// Reason is a stable, user-displayable reason code for a cold verdict.
type Reason string

const (
	ReasonNoActivities  Reason = "no_activities"
	ReasonNoInteractions Reason = "no_interactions"
	ReasonSparseTenant  Reason = "sparse_tenant_history"
	ReasonNoEmbeddings  Reason = "no_embeddings"
)

// Thresholds are the configured minimums. They are policy knobs, not
// business logic baked into the detector.
type Thresholds struct {
	// MinActivities is the minimum number of activities attached to the
	// target deal or contact.
	MinActivities int `yaml:"min_activities"`

	// MinTenantEntities is the minimum number of entities of the target's
	// type the tenant must have overall.
	MinTenantEntities int `yaml:"min_tenant_entities"`

	// MinEmbeddings is the minimum number of stored embeddings of the
	// target's type for the tenant.
	MinEmbeddings int `yaml:"min_embeddings"`
}

// DefaultThresholds returns the default cold-start policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinActivities:     1,
		MinTenantEntities: 3,
		MinEmbeddings:     1,
	}
}

// Verdict is the result of one evaluation. When Sufficient is false the
// reason and message explain what is missing and how to remedy it.
type Verdict struct {
	Sufficient bool   `json:"sufficient"`
	Reason     Reason `json:"reason,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Detector applies the configured thresholds to one entity.
type Detector struct {
	crmStore   crm.Store
	vectors    vecstore.Store
	thresholds Thresholds
}

// NewDetector creates a cold-start detector.
func NewDetector(crmStore crm.Store, vectors vecstore.Store, thresholds Thresholds) (*Detector, error) {
	if crmStore == nil {
		return nil, fmt.Errorf("crm store cannot be nil")
	}
	if vectors == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}
	return &Detector{
		crmStore:   crmStore,
		vectors:    vectors,
		thresholds: thresholds,
	}, nil
}

// Evaluate checks whether the entity and its tenant carry enough signal.
// The checks run cheapest-first; the first unmet threshold wins.
func (d *Detector) Evaluate(ctx context.Context, tenantID string, entityType crm.EntityType, id string) (*Verdict, error) {
	activities, err := d.crmStore.CountActivities(ctx, tenantID, entityType, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count activities: %w", err)
	}
	if activities < d.thresholds.MinActivities {
		return cold(entityType), nil
	}

	entities, err := d.crmStore.CountEntities(ctx, tenantID, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to count entities: %w", err)
	}
	if entities < d.thresholds.MinTenantEntities {
		return &Verdict{
			Reason: ReasonSparseTenant,
			Message: fmt.Sprintf("This workspace has only %d %s so far. Insights improve once more %s are recorded.",
				entities, plural(entityType), plural(entityType)),
		}, nil
	}

	embeddings, err := d.vectors.Count(ctx, tenantID, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to count embeddings: %w", err)
	}
	if embeddings < d.thresholds.MinEmbeddings {
		return &Verdict{
			Reason:  ReasonNoEmbeddings,
			Message: "No indexed history yet. Run embedding generation and try again.",
		}, nil
	}

	return &Verdict{Sufficient: true}, nil
}

func plural(entityType crm.EntityType) string {
	if entityType == crm.EntityActivity {
		return "activities"
	}
	return string(entityType) + "s"
}

func cold(entityType crm.EntityType) *Verdict {
	if entityType == crm.EntityContact {
		return &Verdict{
			Reason:  ReasonNoInteractions,
			Message: "This contact has no recorded interactions yet. Log a call, email or meeting to unlock insights.",
		}
	}
	return &Verdict{
		Reason:  ReasonNoActivities,
		Message: "This deal has no logged activities yet. Log at least one activity to unlock insights.",
	}
}
