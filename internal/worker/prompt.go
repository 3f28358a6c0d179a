package worker

import (
	"fmt"
	"strings"

	"costbot/internal/costs"
	"costbot/internal/domain"
	"costbot/internal/knowledge"
)

// maxReplayedAnswerRunes truncates prior assistant answers when replaying
// history into the prompt, to keep token spend bounded.
const maxReplayedAnswerRunes = 200

// buildPrompt assembles the single user message sent to the reasoning
// service: cost breakdown, remediation snippet, chronological history, and
// the caller's free-text query.
func buildPrompt(summary domain.CostSummary, snippet string, history []domain.Interaction, query string) string {
	sections := []string{costSection(summary)}

	if snippet != knowledge.NoSnippet {
		sections = append(sections, "Relevant remediation template:\n"+snippet)
	}
	if h := historySection(history); h != "" {
		sections = append(sections, h)
	}

	sections = append(sections,
		"Instructions: "+query,
		"Please provide a clear, helpful analysis of these cloud costs. "+
			"Consider the conversation history if provided to maintain context and avoid repeating information. "+
			"Where the remediation template applies, include it in your answer.",
	)
	return strings.Join(sections, "\n\n")
}

func costSection(summary domain.CostSummary) string {
	lines := []string{"Here is the recent cloud cost breakdown:"}
	if summary.Unavailable() {
		lines = append(lines, "- "+costs.SentinelText())
	}
	for _, service := range costs.SortedServices(summary) {
		if service == domain.SentinelErrorKey {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: $%.2f", service, summary[service]))
	}
	if !summary.Unavailable() {
		lines = append(lines, fmt.Sprintf("Total: $%.2f", summary.Total()))
	}
	return strings.Join(lines, "\n")
}

// historySection renders prior turns oldest-first so the model reads them
// as a natural transcript.
func historySection(history []domain.Interaction) string {
	if len(history) == 0 {
		return ""
	}
	lines := []string{"Recent conversation history (for context):"}
	for _, turn := range history {
		lines = append(lines,
			"User: "+turn.Query,
			"Assistant: "+truncate(turn.Response, maxReplayedAnswerRunes),
		)
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// formatMessage builds the outbound callback text: a header line with the
// window and total, then the narrative body.
func formatMessage(task domain.TaskRecord, summary domain.CostSummary, analysis string) string {
	var header string
	switch {
	case summary.Unavailable():
		header = fmt.Sprintf("*Cloud spend, last %d days: %s*", task.Days, costs.SentinelText())
	default:
		header = fmt.Sprintf("*Cloud spend, last %d days: $%.2f*", task.Days, summary.Total())
	}
	if task.UserName != "" {
		header = fmt.Sprintf("@%s %s", task.UserName, header)
	}
	return header + "\n\n" + analysis
}
