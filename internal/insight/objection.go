package insight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Relayline/pulse/internal/assembler"
	"github.com/Relayline/pulse/internal/crm"
	"github.com/Relayline/pulse/internal/history"
)

// ObjectionRequest is one objection-handler call. DealID and ContactID are
// optional grounding; History decides whether the exchange is logged —
// always an explicit parameter, never ambient state.
type ObjectionRequest struct {
	TenantID      string
	ObjectionText string
	DealID        string
	ContactID     string
	History       bool
}

// objectionRaw is the provider's response shape before coercion.
type objectionRaw struct {
	Category          string   `json:"category"`
	ToneAdvice        string   `json:"tone_advice"`
	Responses         []string `json:"responses"`
	FollowUpQuestions []string `json:"follow_up_questions"`
}

// ObjectionHandler drafts responses to a free-text objection. It is never
// cold-gated: the objection text alone is actionable, and deal/contact
// grounding is used opportunistically when supplied.
func (s *Service) ObjectionHandler(ctx context.Context, req ObjectionRequest) (*ObjectionInsight, error) {
	objection := strings.TrimSpace(req.ObjectionText)
	if objection == "" {
		return nil, fmt.Errorf("%w: objection_text is required", ErrInvalidUsage)
	}

	asmReq := assembler.Request{
		TenantID:       req.TenantID,
		QueryText:      objection,
		IncludeHistory: req.History,
		ContactID:      req.ContactID,
		DealID:         req.DealID,
	}
	// Ground on the deal when given, otherwise the contact. Unknown IDs
	// are a usage error, not a silent fallback.
	if req.DealID != "" {
		if _, err := s.crmStore.Deal(ctx, req.TenantID, req.DealID); err != nil {
			return nil, err
		}
		asmReq.TargetType = crm.EntityDeal
		asmReq.TargetID = req.DealID
	} else if req.ContactID != "" {
		if _, err := s.crmStore.Contact(ctx, req.TenantID, req.ContactID); err != nil {
			return nil, err
		}
		asmReq.TargetType = crm.EntityContact
		asmReq.TargetID = req.ContactID
	}

	assembled, err := s.assembler.Assemble(ctx, asmReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	prompt := objectionPrompt(objection, assembled.Prompt)

	response, err := s.provider.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var raw objectionRaw
	if err := decodeStrict(response, &raw); err != nil {
		return nil, err
	}

	if err := requireText("category", raw.Category); err != nil {
		return nil, err
	}
	if err := requireText("tone_advice", raw.ToneAdvice); err != nil {
		return nil, err
	}
	if err := requireList("responses", raw.Responses); err != nil {
		return nil, err
	}

	result := &ObjectionInsight{
		ObjectionText:     objection,
		Category:          raw.Category,
		ToneAdvice:        raw.ToneAdvice,
		Responses:         raw.Responses,
		FollowUpQuestions: raw.FollowUpQuestions,
	}

	// The turn is recorded only after a successful generation, so the
	// log never accumulates empty or error turns. A failed append does
	// not fail the request; the insight is already terminal.
	if req.History && s.histStore != nil {
		turn := history.Turn{
			ID:               uuid.NewString(),
			TenantID:         req.TenantID,
			ContactID:        req.ContactID,
			DealID:           req.DealID,
			UserMessage:      objection,
			AssistantMessage: strings.Join(raw.Responses, "\n"),
			CreatedAt:        time.Now().UTC(),
		}
		if err := s.histStore.Append(ctx, turn); err != nil {
			log.Warn().Err(err).
				Str("tenant_id", req.TenantID).
				Msg("failed to append chat turn")
		}
	}

	return result, nil
}
