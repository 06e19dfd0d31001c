package insight

import (
	"context"
	"fmt"

	"github.com/Relayline/pulse/internal/assembler"
	"github.com/Relayline/pulse/internal/coldstart"
	"github.com/Relayline/pulse/internal/crm"
)

// winLossRaw is the provider's response shape before coercion.
type winLossRaw struct {
	KeyFactors       []KeyFactor `json:"key_factors"`
	Recommendations  []string    `json:"recommendations"`
	DetailedAnalysis string      `json:"detailed_analysis"`
}

// WinLoss explains a closed deal's outcome. Calling it on an open deal is
// a usage error, not a cold-start condition.
func (s *Service) WinLoss(ctx context.Context, tenantID, dealID string) (*WinLossInsight, *coldstart.Verdict, error) {
	deal, err := s.crmStore.Deal(ctx, tenantID, dealID)
	if err != nil {
		return nil, nil, err
	}
	if !deal.Status.Closed() {
		return nil, nil, fmt.Errorf("%w: deal %s has status %q", ErrDealNotClosed, dealID, deal.Status)
	}

	verdict, err := s.detector.Evaluate(ctx, tenantID, crm.EntityDeal, dealID)
	if err != nil {
		return nil, nil, err
	}
	if !verdict.Sufficient {
		return nil, verdict, nil
	}

	assembled, err := s.assembler.Assemble(ctx, assembler.Request{
		TenantID:     tenantID,
		TargetType:   crm.EntityDeal,
		TargetID:     dealID,
		NeighborType: crm.EntityDeal,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	prompt := winLossPrompt(deal, assembled.Prompt)

	response, err := s.provider.Generate(ctx, prompt)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var raw winLossRaw
	if err := decodeStrict(response, &raw); err != nil {
		return nil, nil, err
	}

	if len(raw.KeyFactors) == 0 {
		return nil, nil, fmt.Errorf("%w: missing key_factors", ErrMalformedResponse)
	}
	for i := range raw.KeyFactors {
		impact, err := coerceEnum(raw.KeyFactors[i].Impact, "low", "medium", "high")
		if err != nil {
			return nil, nil, err
		}
		raw.KeyFactors[i].Impact = impact
		if err := requireText("key_factors.factor", raw.KeyFactors[i].Factor); err != nil {
			return nil, nil, err
		}
	}
	if err := requireText("detailed_analysis", raw.DetailedAnalysis); err != nil {
		return nil, nil, err
	}

	return &WinLossInsight{
		Outcome:          string(deal.Status),
		KeyFactors:       raw.KeyFactors,
		Recommendations:  raw.Recommendations,
		DetailedAnalysis: raw.DetailedAnalysis,
	}, nil, nil
}
