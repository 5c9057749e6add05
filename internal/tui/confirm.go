// Package tui provides the terminal user interface for orch: the plan
// confirmation gate, plan rendering, and live execution progress.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/calvinwilliamsjr/orch/pkg/models"
)

// ConfirmResult holds the outcome of a confirmation prompt.
type ConfirmResult struct {
	Accepted bool
	Reason   string
}

// confirmModel is the bubbletea model for the plan confirmation gate.
// It renders the invocation plan with its estimates and blocks until the
// requester answers.
type confirmModel struct {
	plan     *models.InvocationPlan
	answered bool
	accepted bool

	titleStyle  lipgloss.Style
	labelStyle  lipgloss.Style
	valueStyle  lipgloss.Style
	warnStyle   lipgloss.Style
	promptStyle lipgloss.Style
	dimStyle    lipgloss.Style
}

func newConfirmModel(plan *models.InvocationPlan) confirmModel {
	return confirmModel{
		plan: plan,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Background(lipgloss.Color("236")).
			Padding(0, 2),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true),
		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		warnStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true),
		promptStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true),
		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
	}
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "y", "Y":
			m.answered = true
			m.accepted = true
			return m, tea.Quit
		case "n", "N", "q", "esc", "ctrl+c":
			m.answered = true
			m.accepted = false
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m confirmModel) View() string {
	var sb strings.Builder

	sb.WriteString(m.titleStyle.Render(" Confirmation Required "))
	sb.WriteString("\n\n")

	sb.WriteString(m.labelStyle.Render("Request: "))
	sb.WriteString(m.valueStyle.Render(m.plan.RequestSummary))
	sb.WriteString("\n")
	sb.WriteString(m.labelStyle.Render("Scope:   "))
	sb.WriteString(m.valueStyle.Render(string(m.plan.Scope)))
	sb.WriteString("\n")
	sb.WriteString(m.labelStyle.Render("Agents:  "))
	sb.WriteString(m.warnStyle.Render(fmt.Sprintf("%d", len(m.plan.AgentIDs))))
	sb.WriteString("\n\n")

	sb.WriteString(m.labelStyle.Render("Estimated time: "))
	sb.WriteString(m.valueStyle.Render(m.plan.EstimatedTime.String()))
	sb.WriteString("\n")
	sb.WriteString(m.labelStyle.Render("Estimated cost: "))
	sb.WriteString(m.valueStyle.Render(fmt.Sprintf("$%.2f", m.plan.EstimatedCost)))
	sb.WriteString("\n\n")

	if m.plan.Completeness != nil && len(m.plan.Completeness.Missing) > 0 {
		sb.WriteString(m.warnStyle.Render("Missing critical agents: "))
		sb.WriteString(strings.Join(m.plan.Completeness.Missing, ", "))
		sb.WriteString("\n\n")
	}

	sb.WriteString(m.promptStyle.Render(
		fmt.Sprintf("Invoke %d agents? [Y]es / [N]o", len(m.plan.AgentIDs))))
	sb.WriteString("\n")
	sb.WriteString(m.dimStyle.Render("(Y to proceed, N or Esc to abort)"))

	return sb.String()
}

// Confirm runs the confirmation prompt for a gated plan and returns the
// requester's answer. A plan that needs no confirmation is accepted
// without prompting.
func Confirm(plan *models.InvocationPlan) (ConfirmResult, error) {
	if !plan.PendingConfirmation() {
		return ConfirmResult{Accepted: true}, nil
	}

	final, err := tea.NewProgram(newConfirmModel(plan)).Run()
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("confirmation prompt: %w", err)
	}

	m := final.(confirmModel)
	if !m.accepted {
		return ConfirmResult{Accepted: false, Reason: "declined by requester"}, nil
	}
	return ConfirmResult{Accepted: true}, nil
}
