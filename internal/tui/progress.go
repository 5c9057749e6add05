package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/calvinwilliamsjr/orch/internal/dispatch"
)

type eventMsg dispatch.Event

type eventsClosedMsg struct{}

// progressModel renders live dispatcher progress: a spinner, per-stage
// status, and a rolling tally of unit outcomes. The terminal runs in raw
// mode while the model is live, so ctrl-c arrives as a key press; it is
// forwarded to the dispatcher's cancel func and the display keeps draining
// events until the plan reaches its terminal outcome.
type progressModel struct {
	spin   spinner.Model
	events <-chan dispatch.Event
	cancel func()

	stage      int
	running    map[string]string // unit ID -> agent ID
	completed  int
	failed     int
	cancelled  int
	retries    int
	outcome    string
	finished   bool
	cancelling bool

	headStyle lipgloss.Style
	dimStyle  lipgloss.Style
}

func newProgressModel(events <-chan dispatch.Event, cancel func()) progressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return progressModel{
		spin:    sp,
		events:  events,
		cancel:  cancel,
		running: make(map[string]string),

		headStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true),
		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
	}
}

func waitForEvent(events <-chan dispatch.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, waitForEvent(m.events))
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			// Cancel the plan, not just the display. The dispatcher
			// emits its terminal event once in-flight units unwind,
			// which quits the program through the normal path.
			if m.cancel != nil && !m.cancelling {
				m.cancelling = true
				m.cancel()
			}
			return m, nil
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case eventsClosedMsg:
		m.finished = true
		return m, tea.Quit

	case eventMsg:
		ev := dispatch.Event(msg)
		switch ev.Type {
		case dispatch.EventStageStarted:
			m.stage = ev.StageIndex
		case dispatch.EventUnitStarted:
			m.running[ev.UnitID] = ev.AgentID
		case dispatch.EventUnitCompleted:
			delete(m.running, ev.UnitID)
			m.completed++
		case dispatch.EventUnitRetrying:
			m.retries++
		case dispatch.EventUnitFailed:
			delete(m.running, ev.UnitID)
			m.failed++
		case dispatch.EventUnitCancelled:
			delete(m.running, ev.UnitID)
			m.cancelled++
		case dispatch.EventPlanDone:
			m.outcome = ev.Message
			m.finished = true
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)
	}

	return m, nil
}

func (m progressModel) View() string {
	var sb strings.Builder

	if m.finished {
		sb.WriteString(m.headStyle.Render(fmt.Sprintf("Plan finished: %s", m.outcome)))
	} else if m.cancelling {
		sb.WriteString(m.spin.View())
		sb.WriteString(m.headStyle.Render(" Cancelling, waiting for running units"))
	} else {
		sb.WriteString(m.spin.View())
		sb.WriteString(m.headStyle.Render(fmt.Sprintf(" Stage %d", m.stage+1)))
	}
	sb.WriteString("\n")

	for unitID, agentID := range m.running {
		sb.WriteString(fmt.Sprintf("  %s running on %s\n", unitID, agentID))
	}

	sb.WriteString(m.dimStyle.Render(fmt.Sprintf(
		"  %d completed, %d failed, %d cancelled, %d retries",
		m.completed, m.failed, m.cancelled, m.retries)))
	sb.WriteString("\n")
	return sb.String()
}

// RunProgress displays live progress for a dispatcher's event stream and
// returns when the plan reaches a terminal outcome. The cancel func is
// invoked when the user presses ctrl-c; pass the dispatcher's Cancel so
// an interrupt stops the plan cooperatively instead of only closing the
// display.
func RunProgress(events <-chan dispatch.Event, cancel func()) error {
	if _, err := tea.NewProgram(newProgressModel(events, cancel)).Run(); err != nil {
		return fmt.Errorf("progress display: %w", err)
	}
	return nil
}
