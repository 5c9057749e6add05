package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/calvinwilliamsjr/orch/pkg/models"
)

var (
	stageHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("12")).
				Bold(true)
	unitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
	depStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))
	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
	cancelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))
)

// RenderWorkflow renders a workflow plan as an indented stage listing.
func RenderWorkflow(plan *models.WorkflowPlan) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Plan %s: %s\n", plan.ID, plan.Request))
	for _, stage := range plan.Stages {
		sb.WriteString(stageHeaderStyle.Render(fmt.Sprintf("Stage %d", stage.Index+1)))
		sb.WriteString("\n")
		for _, u := range stage.Units {
			sb.WriteString("  ")
			sb.WriteString(statusGlyph(u.Status))
			sb.WriteString(" ")
			sb.WriteString(unitStyle.Render(u.ID))
			if u.Title != "" && u.Title != u.ID {
				sb.WriteString(unitStyle.Render("  " + u.Title))
			}
			if len(u.DependsOn) > 0 {
				sb.WriteString(depStyle.Render("  (after " + strings.Join(u.DependsOn, ", ") + ")"))
			}
			if u.AssignedTo != "" {
				sb.WriteString(depStyle.Render("  -> " + u.AssignedTo))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// RenderConsensus renders a decided consensus topic.
func RenderConsensus(topic *models.ConsensusTopic) string {
	var sb strings.Builder

	sb.WriteString(stageHeaderStyle.Render("Topic: " + topic.Topic))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  participation: %d/%d (%.0f%%, floor %.0f%%)\n",
		topic.Responded(), len(topic.Participants),
		topic.ParticipationRate*100, topic.MinParticipation*100))
	sb.WriteString(fmt.Sprintf("  approval:      %d/%d (%.0f%%, quorum %.0f%%)\n",
		topic.Approvals(), topic.Responded(),
		topic.ApprovalRate*100, topic.Quorum*100))

	var outcome string
	switch topic.Outcome {
	case models.ConsensusApproved:
		outcome = doneStyle.Render(string(topic.Outcome))
	case models.ConsensusRejected:
		outcome = failStyle.Render(string(topic.Outcome))
	default:
		outcome = cancelStyle.Render(string(topic.Outcome))
	}
	sb.WriteString("  outcome:       " + outcome + "\n")
	return sb.String()
}

func statusGlyph(s models.UnitStatus) string {
	switch s {
	case models.UnitStatusDone:
		return doneStyle.Render("✓")
	case models.UnitStatusFailed:
		return failStyle.Render("✗")
	case models.UnitStatusCancelled:
		return cancelStyle.Render("-")
	case models.UnitStatusRunning:
		return cancelStyle.Render("●")
	default:
		return depStyle.Render("○")
	}
}
