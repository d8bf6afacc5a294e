package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// refreshInterval is how often the progress view re-reads its tracker.
const refreshInterval = 100 * time.Millisecond

type (
	tickMsg time.Time
	doneMsg struct{ err error }
)

// progressModel is a Bubble Tea model that redraws a Progress until the
// work it watches reports completion.
type progressModel struct {
	progress *Progress
	err      error
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model
func (m *progressModel) Init() tea.Cmd {
	return tick()
}

// Update implements tea.Model
func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tick()
	case tea.WindowSizeMsg:
		m.progress.SetWidth(clampWidth(msg.Width))
	case doneMsg:
		m.err = msg.err
		m.progress.Done = msg.err == nil
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model
func (m *progressModel) View() string {
	return m.progress.Render() + "\n"
}

// RunWithProgress runs work while rendering p to out. It returns the error
// of work once the final frame has been drawn. Interrupts are left to ctx,
// which work is expected to honor.
func RunWithProgress(ctx context.Context, out io.Writer, p *Progress, work func(context.Context) error) error {
	prog := tea.NewProgram(&progressModel{progress: p},
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	result := make(chan error, 1)
	go func() {
		err := work(ctx)
		result <- err
		prog.Send(doneMsg{err: err})
	}()

	if _, err := prog.Run(); err != nil {
		workErr := <-result
		if workErr != nil {
			return workErr
		}
		return fmt.Errorf("render progress: %w", err)
	}
	return <-result
}

// Printer provides methods for printing UI components to a writer.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w, width: GetTerminalWidth()}
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// SetWidth overrides the detected terminal width.
func (p *Printer) SetWidth(width int) *Printer {
	p.width = width
	return p
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params ...Param) {
	p.Println(NewHeader(title, command, params...).SetWidth(p.width).Render())
	p.Newline()
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details ...Param) {
	p.Println(NewSuccessResult(title, details...).SetWidth(p.width).Render())
}

// PrintFailure prints an error result box with troubleshooting tips
func (p *Printer) PrintFailure(title string, err error, troubleshooting ...string) {
	p.Println(NewFailureResult(title, err, troubleshooting...).SetWidth(p.width).Render())
}

// PrintReport prints a full analysis report view.
func (p *Printer) PrintReport(v *ReportView) {
	p.Println(v.SetWidth(p.width).Render())
}
