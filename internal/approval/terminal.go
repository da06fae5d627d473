package approval

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/taskflow/internal/plan"
)

const previewLimit = 10

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	yesStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	noStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// Terminal is an interactive Gate: it renders the plan and waits for y/n.
type Terminal struct {
	In  io.Reader
	Out io.Writer
}

// NewTerminal creates a gate bound to stdin/stdout.
func NewTerminal() *Terminal {
	return &Terminal{In: os.Stdin, Out: os.Stdout}
}

// Request implements Gate.
func (t *Terminal) Request(ctx context.Context, description string, operations []string, risk plan.RiskLevel) (bool, error) {
	model := newModel(description, operations, risk)

	program := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(t.In),
		tea.WithOutput(t.Out),
	)

	final, err := program.Run()
	if err != nil {
		return false, fmt.Errorf("run approval prompt: %w", err)
	}
	return final.(approvalModel).approved, nil
}

// approvalModel is the bubbletea model behind Terminal.
type approvalModel struct {
	description string
	operations  []string
	risk        plan.RiskLevel
	approved    bool
	quitting    bool
}

func newModel(description string, operations []string, risk plan.RiskLevel) approvalModel {
	return approvalModel{description: description, operations: operations, risk: risk}
}

func (m approvalModel) Init() tea.Cmd {
	return nil
}

func (m approvalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "y", "Y":
			m.approved = true
			m.quitting = true
			return m, tea.Quit
		case "n", "N", "q", "esc", "ctrl+c":
			m.approved = false
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m approvalModel) View() string {
	if m.quitting {
		if m.approved {
			return yesStyle.Render("Plan approved, executing...") + "\n"
		}
		return noStyle.Render("Plan declined.") + "\n"
	}
	return renderSummary(m.description, m.operations, m.risk) + "\n\n" +
		titleStyle.Render("Approve and execute?") + " " +
		yesStyle.Render("(y)") + " / " + noStyle.Render("(n)") + ": "
}

// renderSummary formats the request for display. Only the first
// previewLimit operations are listed.
func renderSummary(description string, operations []string, risk plan.RiskLevel) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Approval required") + "\n\n")
	if description != "" {
		b.WriteString(description + "\n\n")
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Risk:"), riskStyle(risk).Render(risk.String()))
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("Operations:"), len(operations))

	for i, op := range operations {
		if i >= previewLimit {
			fmt.Fprintf(&b, "  ... and %d more\n", len(operations)-previewLimit)
			break
		}
		fmt.Fprintf(&b, "  %d. %s\n", i+1, op)
	}
	return strings.TrimRight(b.String(), "\n")
}

func riskStyle(risk plan.RiskLevel) lipgloss.Style {
	switch risk {
	case plan.RiskLow:
		return yesStyle
	case plan.RiskMedium:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	default:
		return noStyle.Bold(true)
	}
}
