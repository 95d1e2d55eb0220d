package progress

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/herzi/mb-audio-engine/engine"
)

// Display runs the progress view as a bubbletea program and implements
// engine.Reporter.
type Display struct {
	program *tea.Program
	updates chan engine.Progress
	done    chan struct{}
	once    sync.Once
}

var _ engine.Reporter = (*Display)(nil)

func NewDisplay(m Model, opts ...tea.ProgramOption) *Display {
	return &Display{
		program: tea.NewProgram(m, opts...),
		updates: make(chan engine.Progress, 1),
		done:    make(chan struct{}),
	}
}

// Report hands a snapshot to the display. It never blocks: when the display
// lags behind, the snapshot is dropped in favour of the next one.
func (d *Display) Report(p engine.Progress) {
	select {
	case d.updates <- p:
	default:
	}
}

// Run blocks until the user quits or Close is called.
func (d *Display) Run() error {
	go d.forward()
	defer d.stop()
	_, err := d.program.Run()
	return err
}

// Close ends the display.
func (d *Display) Close() {
	d.program.Send(doneMsg{})
}

func (d *Display) forward() {
	for {
		select {
		case p := <-d.updates:
			d.program.Send(reportMsg(p))
		case <-d.done:
			return
		}
	}
}

func (d *Display) stop() {
	d.once.Do(func() { close(d.done) })
}
