package insight

// StageAnalysis describes where a deal sits in its pipeline stage.
// DaysInStage and IsOverdue are computed from the deal record, not taken
// from the provider.
type StageAnalysis struct {
	DaysInStage int      `json:"days_in_stage"`
	IsOverdue   bool     `json:"is_overdue"`
	NextSteps   []string `json:"next_steps"`
}

// ActivityAnalysis summarizes engagement on a deal. TotalActivities is
// exact; EngagementQuality is the provider's synthesis, coerced to
// Low/Medium/High.
type ActivityAnalysis struct {
	TotalActivities     int      `json:"total_activities"`
	EngagementQuality   string   `json:"engagement_quality"`
	SuggestedActivities []string `json:"suggested_activities"`
}

// DealCoachInsight is the deal coach's fixed output shape.
type DealCoachInsight struct {
	HealthScore      int              `json:"health_score"`
	StageAnalysis    StageAnalysis    `json:"stage_analysis"`
	ActivityAnalysis ActivityAnalysis `json:"activity_analysis"`
	Recommendations  []string         `json:"recommendations"`
	Risks            []string         `json:"risks"`
}

// Persona captures how a contact communicates.
type Persona struct {
	CommunicationStyle string `json:"communication_style"`
	Description        string `json:"description"`
}

// DecisionPattern captures how a contact makes decisions.
type DecisionPattern struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// PersonaInsight is the persona builder's fixed output shape.
type PersonaInsight struct {
	Persona         Persona         `json:"persona"`
	Motivators      []string        `json:"motivators"`
	DecisionPattern DecisionPattern `json:"decision_pattern"`
	EngagementTips  []string        `json:"engagement_tips"`
}

// ObjectionInsight is the objection handler's fixed output shape.
type ObjectionInsight struct {
	ObjectionText     string   `json:"objection_text"`
	Category          string   `json:"category"`
	ToneAdvice        string   `json:"tone_advice"`
	Responses         []string `json:"responses"`
	FollowUpQuestions []string `json:"follow_up_questions"`
}

// KeyFactor is one factor behind a won or lost deal.
type KeyFactor struct {
	Factor      string `json:"factor"`
	Impact      string `json:"impact"` // low, medium, high
	Description string `json:"description"`
}

// WinLossInsight is the win-loss explainer's fixed output shape.
type WinLossInsight struct {
	Outcome          string      `json:"outcome"`
	KeyFactors       []KeyFactor `json:"key_factors"`
	Recommendations  []string    `json:"recommendations"`
	DetailedAnalysis string      `json:"detailed_analysis"`
}
