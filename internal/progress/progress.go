// Package progress renders the playback progress of the mixer in the terminal.
package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/herzi/mb-audio-engine/engine"
)

const (
	padding  = 2
	maxWidth = 60
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	statStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	loopStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
)

// reportMsg carries a progress snapshot into the model.
type reportMsg engine.Progress

// doneMsg ends the display.
type doneMsg struct{}

// Model holds the progress view state.
type Model struct {
	title     string
	bar       progress.Model
	last      engine.Progress
	seen      bool
	trigger   func()
	interrupt func()
}

// New creates a progress view. trigger is called for the effect keys,
// interrupt when the user quits. Both may be nil.
func New(title string, trigger, interrupt func()) Model {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = maxWidth
	return Model{
		title:     title,
		bar:       bar,
		trigger:   trigger,
		interrupt: interrupt,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-padding*2, 10), maxWidth)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.interrupt != nil {
				m.interrupt()
			}
			return m, tea.Quit
		case "e", " ":
			if m.trigger != nil {
				m.trigger()
			}
		}

	case reportMsg:
		m.last = engine.Progress(msg)
		m.seen = true

	case doneMsg:
		return m, tea.Quit
	}
	return m, nil
}

// Percent is the position within the current traversal of the background.
func (m Model) Percent() float64 {
	if m.last.Duration <= 0 {
		return 0
	}
	return min(float64(m.last.Position)/float64(m.last.Duration), 1)
}

// View renders the progress bar and counters.
func (m Model) View() string {
	pad := strings.Repeat(" ", padding)

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(pad + titleStyle.Render(m.title) + "\n\n")
	b.WriteString(pad + m.bar.ViewAs(m.Percent()) + "\n\n")

	if m.seen {
		stats := fmt.Sprintf("%s / %s  %s  effects %d  (%d attached, %d detached)",
			formatDuration(m.last.Position), formatDuration(m.last.Duration),
			strings.ToLower(m.last.State.String()),
			m.last.ActiveEffects, m.last.Attaches, m.last.Detaches)
		b.WriteString(pad + statStyle.Render(stats))
		if m.last.Looping {
			b.WriteString("  " + loopStyle.Render(fmt.Sprintf("loop %d", m.last.Loops+1)))
		}
		b.WriteString("\n\n")
	}

	b.WriteString(pad + hintStyle.Render("e trigger effect • q quit") + "\n")
	return b.String()
}

// formatDuration renders d as m:ss, or --:-- when unknown.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "--:--"
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d/time.Minute), int(d%time.Minute/time.Second))
}
