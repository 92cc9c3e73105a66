package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/careloop/careloop/internal/application/usecase"
	"github.com/careloop/careloop/internal/domain/repository"
)

// Review console: a terminal UI over the approval queue. Agents browse
// pending AI drafts, inspect the rendered reply, and approve, modify or
// reject it in place.

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	vipStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F5F"))
	highStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB454"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

type viewState int

const (
	stateQueue viewState = iota
	stateDetail
	stateModify
)

type pendingLoadedMsg struct {
	items []*repository.PendingApproval
	err   error
}

type decisionDoneMsg struct {
	result *usecase.DecideResult
	err    error
}

type refreshTickMsg struct{}

// Model is the bubbletea model for the review console.
type Model struct {
	approvals *usecase.ApprovalUsecase
	tenantID  string
	agentID   string

	state    viewState
	items    []*repository.PendingApproval
	cursor   int
	width    int
	height   int
	loading  bool
	status   string
	lastErr  string
	spinner  spinner.Model
	preview  viewport.Model
	editor   textarea.Model
	markdown *glamour.TermRenderer
}

// NewModel creates the review console model.
func NewModel(approvals *usecase.ApprovalUsecase, tenantID, agentID string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ta := textarea.New()
	ta.Placeholder = "Edited reply..."
	ta.CharLimit = 0

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(76),
	)

	return Model{
		approvals: approvals,
		tenantID:  tenantID,
		agentID:   agentID,
		state:     stateQueue,
		loading:   true,
		spinner:   sp,
		preview:   viewport.New(80, 20),
		editor:    ta,
		markdown:  renderer,
	}
}

// Init loads the queue.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadPending(), refreshTick())
}

func (m Model) loadPending() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		items, err := m.approvals.ListPending(ctx, m.tenantID)
		return pendingLoadedMsg{items: items, err: err}
	}
}

func (m Model) decide(action, submittedText string) tea.Cmd {
	item := m.items[m.cursor]
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		result, err := m.approvals.Decide(ctx, usecase.DecideInput{
			ResponseID:    item.Response.ID,
			AgentID:       m.agentID,
			Action:        action,
			SubmittedText: submittedText,
		})
		return decisionDoneMsg{result: result, err: err}
	}
}

func refreshTick() tea.Cmd {
	return tea.Tick(30*time.Second, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.preview.Width = msg.Width - 4
		m.preview.Height = msg.Height - 10
		m.editor.SetWidth(msg.Width - 6)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case refreshTickMsg:
		var cmd tea.Cmd
		if m.state == stateQueue && !m.loading {
			m.loading = true
			cmd = m.loadPending()
		}
		return m, tea.Batch(cmd, refreshTick())

	case pendingLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.lastErr = msg.err.Error()
			return m, nil
		}
		m.lastErr = ""
		m.items = msg.items
		if m.cursor >= len(m.items) {
			m.cursor = len(m.items) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		return m, nil

	case decisionDoneMsg:
		m.loading = true
		m.state = stateQueue
		if msg.err != nil {
			m.lastErr = msg.err.Error()
			m.status = ""
		} else {
			m.lastErr = ""
			m.status = msg.result.Message
		}
		return m, m.loadPending()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.state == stateModify {
		switch msg.Type {
		case tea.KeyEsc:
			m.state = stateDetail
			return m, nil
		case tea.KeyCtrlS:
			text := strings.TrimSpace(m.editor.Value())
			if text == "" {
				m.lastErr = "edited reply must not be empty"
				return m, nil
			}
			return m, m.decide("modified", text)
		case tea.KeyCtrlC:
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.state == stateQueue && m.cursor > 0 {
			m.cursor--
		} else if m.state == stateDetail {
			var cmd tea.Cmd
			m.preview, cmd = m.preview.Update(msg)
			return m, cmd
		}

	case "down", "j":
		if m.state == stateQueue && m.cursor < len(m.items)-1 {
			m.cursor++
		} else if m.state == stateDetail {
			var cmd tea.Cmd
			m.preview, cmd = m.preview.Update(msg)
			return m, cmd
		}

	case "enter":
		if m.state == stateQueue && len(m.items) > 0 {
			m.state = stateDetail
			m.preview.SetContent(m.renderDetail(m.items[m.cursor]))
			m.preview.GotoTop()
		}

	case "esc":
		if m.state == stateDetail {
			m.state = stateQueue
		}

	case "R":
		if !m.loading {
			m.loading = true
			return m, m.loadPending()
		}

	case "a":
		if len(m.items) > 0 && (m.state == stateQueue || m.state == stateDetail) {
			return m, m.decide("approved", "")
		}

	case "r":
		if len(m.items) > 0 && (m.state == stateQueue || m.state == stateDetail) {
			return m, m.decide("rejected", "")
		}

	case "m":
		if len(m.items) > 0 && (m.state == stateQueue || m.state == stateDetail) {
			m.state = stateModify
			m.editor.SetValue(m.items[m.cursor].ProposedMessage.Body)
			m.editor.Focus()
			return m, textarea.Blink
		}
	}

	return m, nil
}

func (m Model) renderDetail(item *repository.PendingApproval) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Conversation %s · %s · %s\n",
		item.Conversation.ID,
		item.Conversation.Channel,
		priorityLabel(string(item.Conversation.Priority)),
	)
	fmt.Fprintf(&b, "Confidence %.2f · %s/%s · waiting %s\n\n",
		item.Response.Confidence,
		item.Response.Provider,
		item.Response.Model,
		time.Since(item.Response.GeneratedAt).Round(time.Second),
	)

	b.WriteString(dimStyle.Render("Customer:") + "\n")
	b.WriteString(item.LastCustomerMessage.Body + "\n\n")

	b.WriteString(dimStyle.Render("AI draft:") + "\n")
	draft := item.ProposedMessage.Body
	if m.markdown != nil {
		if rendered, err := m.markdown.Render(draft); err == nil {
			draft = strings.TrimSpace(rendered)
		}
	}
	b.WriteString(draft + "\n")

	if len(item.Response.KnowledgeSources) > 0 {
		b.WriteString("\n" + dimStyle.Render("Sources:") + "\n")
		for _, s := range item.Response.KnowledgeSources {
			fmt.Fprintf(&b, "  · %s (%.2f)\n", s.Title, s.Score)
		}
	}

	return b.String()
}

// View renders the console.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Careloop Review") + dimStyle.Render("  tenant: "+m.tenantID) + "\n\n")

	switch m.state {
	case stateModify:
		b.WriteString("Edit the reply, then " + okStyle.Render("ctrl+s") + " to submit or " + dimStyle.Render("esc") + " to cancel.\n\n")
		b.WriteString(m.editor.View() + "\n")

	case stateDetail:
		b.WriteString(boxStyle.Render(m.preview.View()) + "\n")
		b.WriteString(dimStyle.Render("[a]pprove  [m]odify  [r]eject  [esc] back  [q]uit") + "\n")

	default:
		if m.loading {
			b.WriteString(m.spinner.View() + " loading queue...\n")
		} else if len(m.items) == 0 {
			b.WriteString(dimStyle.Render("Queue is empty. 🎉") + "\n")
		} else {
			for i, item := range m.items {
				line := fmt.Sprintf("%s  %.2f  %s  %s",
					priorityLabel(string(item.Conversation.Priority)),
					item.Response.Confidence,
					item.Conversation.ID[:8],
					truncate(item.LastCustomerMessage.Body, 48),
				)
				if i == m.cursor {
					b.WriteString(selectedStyle.Render("❯ "+line) + "\n")
				} else {
					b.WriteString("  " + line + "\n")
				}
			}
		}
		b.WriteString("\n" + dimStyle.Render("[enter] inspect  [a]pprove  [m]odify  [r]eject  [R]efresh  [q]uit") + "\n")
	}

	if m.status != "" {
		b.WriteString("\n" + okStyle.Render(m.status) + "\n")
	}
	if m.lastErr != "" {
		b.WriteString("\n" + errStyle.Render("error: "+m.lastErr) + "\n")
	}

	return b.String()
}

func priorityLabel(p string) string {
	switch p {
	case "vip":
		return vipStyle.Render("VIP ")
	case "high":
		return highStyle.Render("HIGH")
	default:
		return dimStyle.Render("std ")
	}
}

func truncate(s string, limit int) string {
	runes := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit-1]) + "…"
}

// Run starts the review console and blocks until it exits.
func Run(approvals *usecase.ApprovalUsecase, tenantID, agentID string) error {
	program := tea.NewProgram(NewModel(approvals, tenantID, agentID), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
