package notify

import (
	"fmt"
	"strings"

	"github.com/docketwatch/docketwatch/internal/models"
)

// RenderMessage formats an alert for a channel. Critical and high urgency
// get a heavier treatment; Slack and Teams get markdown, SMS gets a bare
// one-liner, everything else gets plain text.
func RenderMessage(channel models.Channel, filing models.Filing, analysis models.FilingAnalysis) string {
	switch channel {
	case models.ChannelSlack, models.ChannelTeams:
		return renderMarkdown(filing, analysis)
	case models.ChannelSMS, models.ChannelPush:
		return renderShort(filing, analysis)
	default:
		return renderPlain(filing, analysis)
	}
}

func headline(analysis models.FilingAnalysis) string {
	switch analysis.Urgency {
	case models.UrgencyEmergency:
		return "EMERGENCY FILING"
	case models.UrgencyUrgent:
		return "Urgent filing"
	default:
		return "New filing"
	}
}

func renderMarkdown(filing models.Filing, analysis models.FilingAnalysis) string {
	var b strings.Builder

	fmt.Fprintf(&b, "*%s*: %s\n", headline(analysis), filing.Title)
	fmt.Fprintf(&b, "> Type: `%s` | Impact: `%s` | Urgency: `%s` | Risk: %.1f/10\n",
		analysis.Classification.Primary, analysis.Impact, analysis.Urgency, analysis.RiskScore)

	if filing.CaseID != "" {
		fmt.Fprintf(&b, "> Case: %s", filing.CaseID)
		if filing.Court != "" {
			fmt.Fprintf(&b, " (%s)", filing.Court)
		}
		b.WriteString("\n")
	}

	if len(analysis.Recommendations) > 0 {
		b.WriteString("*Recommended actions:*\n")
		for _, rec := range analysis.Recommendations {
			fmt.Fprintf(&b, "• %s\n", rec)
		}
	}

	return b.String()
}

func renderPlain(filing models.Filing, analysis models.FilingAnalysis) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %s\n\n", headline(analysis), filing.Title)
	fmt.Fprintf(&b, "Type: %s\nImpact: %s\nUrgency: %s\nRisk score: %.1f/10\n",
		analysis.Classification.Primary, analysis.Impact, analysis.Urgency, analysis.RiskScore)

	if filing.CaseID != "" {
		fmt.Fprintf(&b, "Case: %s\n", filing.CaseID)
	}
	if filing.Court != "" {
		fmt.Fprintf(&b, "Court: %s\n", filing.Court)
	}

	if len(analysis.Deadlines) > 0 {
		b.WriteString("\nDeadlines:\n")
		for _, d := range analysis.Deadlines {
			fmt.Fprintf(&b, "- %s (%s)\n", d.Description, d.Due.Format("2006-01-02"))
		}
	}

	if len(analysis.Recommendations) > 0 {
		b.WriteString("\nRecommended actions:\n")
		for _, rec := range analysis.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}

	return b.String()
}

func renderShort(filing models.Filing, analysis models.FilingAnalysis) string {
	title := filing.Title
	if len(title) > 80 {
		title = title[:77] + "..."
	}
	return fmt.Sprintf("%s: %s [%s/%s]", headline(analysis), title, analysis.Impact, analysis.Urgency)
}
