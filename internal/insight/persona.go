package insight

import (
	"context"
	"fmt"

	"github.com/Relayline/pulse/internal/assembler"
	"github.com/Relayline/pulse/internal/coldstart"
	"github.com/Relayline/pulse/internal/crm"
)

const personaInteractionWindow = 20

// personaRaw is the provider's response shape before coercion.
type personaRaw struct {
	Persona         Persona         `json:"persona"`
	Motivators      []string        `json:"motivators"`
	DecisionPattern DecisionPattern `json:"decision_pattern"`
	EngagementTips  []string        `json:"engagement_tips"`
}

// PersonaBuilder derives a buying persona from a contact's recorded
// interactions.
func (s *Service) PersonaBuilder(ctx context.Context, tenantID, contactID string) (*PersonaInsight, *coldstart.Verdict, error) {
	contact, err := s.crmStore.Contact(ctx, tenantID, contactID)
	if err != nil {
		return nil, nil, err
	}

	verdict, err := s.detector.Evaluate(ctx, tenantID, crm.EntityContact, contactID)
	if err != nil {
		return nil, nil, err
	}
	if !verdict.Sufficient {
		return nil, verdict, nil
	}

	activities, err := s.crmStore.Activities(ctx, tenantID, crm.EntityContact, contactID, personaInteractionWindow)
	if err != nil {
		return nil, nil, err
	}

	assembled, err := s.assembler.Assemble(ctx, assembler.Request{
		TenantID:   tenantID,
		TargetType: crm.EntityContact,
		TargetID:   contactID,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	prompt := personaPrompt(contact, activities, assembled.Prompt)

	response, err := s.provider.Generate(ctx, prompt)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var raw personaRaw
	if err := decodeStrict(response, &raw); err != nil {
		return nil, nil, err
	}

	if err := requireText("persona.communication_style", raw.Persona.CommunicationStyle); err != nil {
		return nil, nil, err
	}
	if err := requireText("persona.description", raw.Persona.Description); err != nil {
		return nil, nil, err
	}
	if err := requireText("decision_pattern.type", raw.DecisionPattern.Type); err != nil {
		return nil, nil, err
	}
	if err := requireList("motivators", raw.Motivators); err != nil {
		return nil, nil, err
	}
	if err := requireList("engagement_tips", raw.EngagementTips); err != nil {
		return nil, nil, err
	}

	return &PersonaInsight{
		Persona:         raw.Persona,
		Motivators:      raw.Motivators,
		DecisionPattern: raw.DecisionPattern,
		EngagementTips:  raw.EngagementTips,
	}, nil, nil
}
