package insight

import (
	"context"
	"fmt"
	"time"

	"github.com/Relayline/pulse/internal/assembler"
	"github.com/Relayline/pulse/internal/coldstart"
	"github.com/Relayline/pulse/internal/crm"
)

// dealCoachRaw is the provider's response shape before coercion.
type dealCoachRaw struct {
	HealthScore         *int     `json:"health_score"`
	NextSteps           []string `json:"next_steps"`
	EngagementQuality   string   `json:"engagement_quality"`
	SuggestedActivities []string `json:"suggested_activities"`
	Recommendations     []string `json:"recommendations"`
	Risks               []string `json:"risks"`
}

// DealCoach assesses an open deal's health. Exact facts (days in stage,
// activity count, overdue flag) come from the CRM record; the provider
// contributes the synthesis, coerced into the fixed shape or rejected.
func (s *Service) DealCoach(ctx context.Context, tenantID, dealID string) (*DealCoachInsight, *coldstart.Verdict, error) {
	deal, err := s.crmStore.Deal(ctx, tenantID, dealID)
	if err != nil {
		return nil, nil, err
	}

	verdict, err := s.detector.Evaluate(ctx, tenantID, crm.EntityDeal, dealID)
	if err != nil {
		return nil, nil, err
	}
	if !verdict.Sufficient {
		return nil, verdict, nil
	}

	totalActivities, err := s.crmStore.CountActivities(ctx, tenantID, crm.EntityDeal, dealID)
	if err != nil {
		return nil, nil, err
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

	daysInStage := daysSince(deal.StageEnteredAt)
	prompt := dealCoachPrompt(deal, daysInStage, totalActivities, assembled.Prompt)

	response, err := s.provider.Generate(ctx, prompt)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var raw dealCoachRaw
	if err := decodeStrict(response, &raw); err != nil {
		return nil, nil, err
	}

	if raw.HealthScore == nil {
		return nil, nil, fmt.Errorf("%w: missing health_score", ErrMalformedResponse)
	}
	if *raw.HealthScore < 0 || *raw.HealthScore > 100 {
		return nil, nil, fmt.Errorf("%w: health_score %d out of range", ErrMalformedResponse, *raw.HealthScore)
	}
	quality, err := coerceEnum(raw.EngagementQuality, "Low", "Medium", "High")
	if err != nil {
		return nil, nil, err
	}
	if err := requireList("next_steps", raw.NextSteps); err != nil {
		return nil, nil, err
	}
	if err := requireList("recommendations", raw.Recommendations); err != nil {
		return nil, nil, err
	}

	return &DealCoachInsight{
		HealthScore: *raw.HealthScore,
		StageAnalysis: StageAnalysis{
			DaysInStage: daysInStage,
			IsOverdue:   daysInStage > s.config.OverdueStageDays,
			NextSteps:   raw.NextSteps,
		},
		ActivityAnalysis: ActivityAnalysis{
			TotalActivities:     totalActivities,
			EngagementQuality:   quality,
			SuggestedActivities: raw.SuggestedActivities,
		},
		Recommendations: raw.Recommendations,
		Risks:           raw.Risks,
	}, nil, nil
}

func daysSince(t time.Time) int {
	if t.IsZero() {
		return 0
	}
	return int(time.Since(t).Hours() / 24)
}
