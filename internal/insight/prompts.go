package insight

import (
	"fmt"
	"strings"

	"github.com/Relayline/pulse/internal/crm"
)

func dealCoachPrompt(deal *crm.Deal, daysInStage, totalActivities int, contextBlock string) string {
	var b strings.Builder

	b.WriteString("You are a sales coach for a CRM. Your task is to assess the health of the ")
	b.WriteString("deal below and recommend concrete next steps, using only the deal data and ")
	b.WriteString("the related history provided.\n\n")

	b.WriteString("# Deal Under Review\n\n")
	b.WriteString(fmt.Sprintf("**Title:** %s\n", deal.Title))
	b.WriteString(fmt.Sprintf("**Stage:** %s (%d days in stage)\n", deal.Stage, daysInStage))
	b.WriteString(fmt.Sprintf("**Value:** %.2f\n", deal.Value))
	b.WriteString(fmt.Sprintf("**Status:** %s\n", deal.Status))
	b.WriteString(fmt.Sprintf("**Logged activities:** %d\n\n", totalActivities))

	b.WriteString(contextBlock)

	b.WriteString("\n# Task\n\n")
	b.WriteString("Respond with a single JSON object and nothing else, in exactly this shape:\n")
	b.WriteString("{\"health_score\": <integer 0-100>, \"next_steps\": [<strings>], ")
	b.WriteString("\"engagement_quality\": \"Low\"|\"Medium\"|\"High\", \"suggested_activities\": [<strings>], ")
	b.WriteString("\"recommendations\": [<strings>], \"risks\": [<strings>]}\n")
	b.WriteString("Base every statement strictly on the provided data; do not invent outcomes or contacts. ")
	b.WriteString("Similar historical deals are background evidence, not facts about this deal.\n")

	return b.String()
}

func personaPrompt(contact *crm.Contact, activities []crm.Activity, contextBlock string) string {
	var b strings.Builder

	b.WriteString("You are a sales communication analyst. Build a buying persona for the ")
	b.WriteString("contact below from their recorded interactions.\n\n")

	b.WriteString("# Contact\n\n")
	b.WriteString(fmt.Sprintf("**Name:** %s\n", contact.Name))
	if contact.Title != "" {
		b.WriteString(fmt.Sprintf("**Title:** %s\n", contact.Title))
	}
	if contact.Company != "" {
		b.WriteString(fmt.Sprintf("**Company:** %s\n", contact.Company))
	}
	b.WriteString("\n**Recent interactions:**\n")
	if len(activities) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, a := range activities {
		b.WriteString(fmt.Sprintf("- %s: %s", a.Kind, a.Subject))
		if a.Note != "" {
			note := a.Note
			if len(note) > 200 {
				note = note[:200] + "..."
			}
			b.WriteString(" — " + note)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(contextBlock)

	b.WriteString("\n# Task\n\n")
	b.WriteString("Respond with a single JSON object and nothing else, in exactly this shape:\n")
	b.WriteString("{\"persona\": {\"communication_style\": <string>, \"description\": <string>}, ")
	b.WriteString("\"motivators\": [<strings>], \"decision_pattern\": {\"type\": <string>, \"description\": <string>}, ")
	b.WriteString("\"engagement_tips\": [<strings>]}\n")
	b.WriteString("Describe only patterns supported by the recorded interactions.\n")

	return b.String()
}

func objectionPrompt(objectionText string, contextBlock string) string {
	var b strings.Builder

	b.WriteString("You are a sales objection-handling assistant. A prospect has raised the ")
	b.WriteString("objection below. Classify it, advise on tone, and draft responses. Use ")
	b.WriteString("the related history and prior conversation, when present, to ground your ")
	b.WriteString("answers in this workspace's actual deals.\n\n")

	b.WriteString("# Objection\n\n")
	b.WriteString(objectionText + "\n\n")

	if contextBlock != "" {
		b.WriteString(contextBlock)
	}

	b.WriteString("\n# Task\n\n")
	b.WriteString("Respond with a single JSON object and nothing else, in exactly this shape:\n")
	b.WriteString("{\"category\": <string>, \"tone_advice\": <string>, \"responses\": [<strings>], ")
	b.WriteString("\"follow_up_questions\": [<strings>]}\n")

	return b.String()
}

func winLossPrompt(deal *crm.Deal, contextBlock string) string {
	var b strings.Builder

	b.WriteString("You are a sales analyst explaining why a deal was won or lost. Use only ")
	b.WriteString("the deal data and the similar closed deals provided.\n\n")

	b.WriteString("# Closed Deal\n\n")
	b.WriteString(fmt.Sprintf("**Title:** %s\n", deal.Title))
	b.WriteString(fmt.Sprintf("**Final stage:** %s\n", deal.Stage))
	b.WriteString(fmt.Sprintf("**Value:** %.2f\n", deal.Value))
	b.WriteString(fmt.Sprintf("**Outcome:** %s\n\n", deal.Status))

	b.WriteString(contextBlock)

	b.WriteString("\n# Task\n\n")
	b.WriteString("Respond with a single JSON object and nothing else, in exactly this shape:\n")
	b.WriteString("{\"key_factors\": [{\"factor\": <string>, \"impact\": \"low\"|\"medium\"|\"high\", ")
	b.WriteString("\"description\": <string>}], \"recommendations\": [<strings>], ")
	b.WriteString("\"detailed_analysis\": <string>}\n")
	b.WriteString("Attribute factors only to evidence in the provided records.\n")

	return b.String()
}
