// Package tui is the interactive feedback form.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"polyglot/internal/client/events"
	"polyglot/internal/client/submission"
	"polyglot/internal/domain/feedback"
)

// Submitter runs one submission at a time.
type Submitter interface {
	Submit(ctx context.Context, text, product string) (feedback.Record, error)
	Cancel() bool
}

// Config wires the form to the orchestrator and the notification bus.
type Config struct {
	Submitter     Submitter
	Products      []string
	Phases        <-chan submission.Phase
	Notifications <-chan events.Notification
}

// PhaseFeed forwards orchestrator phases to ch without blocking the orchestrator.
func PhaseFeed(ch chan<- submission.Phase) func(submission.Phase) {
	return func(p submission.Phase) {
		select {
		case ch <- p:
		default:
		}
	}
}

type statusKind int

const (
	statusInfo statusKind = iota
	statusSuccess
	statusError
)

type (
	phaseMsg        submission.Phase
	notificationMsg events.Notification
	submitDoneMsg   struct {
		record feedback.Record
		err    error
	}
)

// Model is the bubbletea model for the form.
type Model struct {
	ctx           context.Context
	submitter     Submitter
	products      []string
	selected      int
	text          textarea.Model
	spinner       spinner.Model
	phase         submission.Phase
	submitting    bool
	status        string
	kind          statusKind
	phases        <-chan submission.Phase
	notifications <-chan events.Notification
	width         int
}

// NewModel builds the form. ctx bounds every submission it starts.
func NewModel(ctx context.Context, cfg Config) Model {
	ta := textarea.New()
	ta.Placeholder = "Write your feedback in any language..."
	ta.CharLimit = 5000
	ta.ShowLineNumbers = false
	ta.SetHeight(5)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:           ctx,
		submitter:     cfg.Submitter,
		products:      cfg.Products,
		text:          ta,
		spinner:       sp,
		phases:        cfg.Phases,
		notifications: cfg.Notifications,
	}
	if len(m.products) == 0 {
		m.status, m.kind = "No products are configured; ask an admin to add one", statusError
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, waitForPhase(m.phases), waitForNotification(m.notifications))
}

// CanSubmit reports whether the submit action is enabled.
func (m Model) CanSubmit() bool {
	return !m.submitting && m.phase == submission.PhaseIdle && len(m.products) > 0
}

// Product returns the selected product, or "" when none exist.
func (m Model) Product() string {
	if len(m.products) == 0 {
		return ""
	}
	return m.products[m.selected]
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.text.SetWidth(max(msg.Width-8, 20))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.submitting {
				m.submitter.Cancel()
			}
			return m, tea.Quit
		case "esc":
			if m.submitting && m.submitter.Cancel() {
				m.status, m.kind = "Cancelling...", statusInfo
			}
			return m, nil
		case "ctrl+s":
			return m.submit()
		case "tab":
			if !m.submitting && len(m.products) > 0 {
				m.selected = (m.selected + 1) % len(m.products)
			}
			return m, nil
		case "shift+tab":
			if !m.submitting && len(m.products) > 0 {
				m.selected = (m.selected + len(m.products) - 1) % len(m.products)
			}
			return m, nil
		}
		if m.submitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.text, cmd = m.text.Update(msg)
		return m, cmd

	case phaseMsg:
		m.phase = submission.Phase(msg)
		return m, waitForPhase(m.phases)

	case notificationMsg:
		m.applyNotification(events.Notification(msg))
		return m, waitForNotification(m.notifications)

	case submitDoneMsg:
		m.submitting = false
		m.phase = submission.PhaseIdle
		if msg.err != nil {
			m.status, m.kind = DescribeError(msg.err), statusError
			return m, nil
		}
		m.status, m.kind = fmt.Sprintf("Thanks! Saved as #%d (%s, %s)", msg.record.ID, msg.record.Language, msg.record.Sentiment), statusSuccess
		m.text.Reset()
		return m, nil

	case spinner.TickMsg:
		if !m.submitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.text, cmd = m.text.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if !m.CanSubmit() {
		return m, nil
	}
	text, product := m.text.Value(), m.Product()
	if strings.TrimSpace(text) == "" {
		m.status, m.kind = "Check your input: feedback text is required", statusError
		return m, nil
	}
	m.submitting = true
	m.status, m.kind = "", statusInfo
	ctx, submitter := m.ctx, m.submitter
	run := func() tea.Msg {
		record, err := submitter.Submit(ctx, text, product)
		return submitDoneMsg{record: record, err: err}
	}
	return m, tea.Batch(run, m.spinner.Tick)
}

func (m *Model) applyNotification(n events.Notification) {
	if n.Kind == events.KindLoggedOut && n.Reason != events.ReasonUser {
		m.status, m.kind = "Your session ended ("+string(n.Reason)+"); log in again", statusError
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Polyglot feedback"))
	b.WriteString("\n\n")
	b.WriteString("Product: " + productStyle.Render(m.productLabel()) + "\n\n")
	b.WriteString(m.text.View())
	b.WriteString("\n\n")

	switch {
	case m.submitting:
		b.WriteString(infoStyle.Render(m.spinner.View() + " " + phaseLabel(m.phase)))
	case m.status != "":
		b.WriteString(m.statusStyle().Render(m.status))
	}
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render(m.help()))
	return frameStyle.Render(b.String())
}

func (m Model) productLabel() string {
	if len(m.products) == 0 {
		return "(none)"
	}
	return fmt.Sprintf("< %s >", m.Product())
}

func (m Model) statusStyle() lipgloss.Style {
	switch m.kind {
	case statusSuccess:
		return successStyle
	case statusError:
		return errorStyle
	default:
		return infoStyle
	}
}

func (m Model) help() string {
	if m.submitting {
		return "esc cancel • ctrl+c quit"
	}
	return "ctrl+s submit • tab product • ctrl+c quit"
}

func phaseLabel(p submission.Phase) string {
	switch p {
	case submission.PhaseSaving:
		return "Saving..."
	default:
		return "Analyzing..."
	}
}

func waitForPhase(ch <-chan submission.Phase) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return phaseMsg(p)
	}
}

func waitForNotification(ch <-chan events.Notification) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return notificationMsg(n)
	}
}

// Run shows the form until the user quits or ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	_, err := tea.NewProgram(NewModel(ctx, cfg), tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
