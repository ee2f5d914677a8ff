package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/gridmarch/internal/march"
)

const (
	barWidth        = 40
	historyCapacity = 600
)

// SliceMsg carries one completed slice into the live view.
type SliceMsg struct {
	Report  march.SliceReport
	Profile []float64
	Metrics map[string]float64
}

// DoneMsg ends the run.
type DoneMsg struct {
	Summary march.Summary
	Err     error
}

// Model is the bubbletea view of a running march. Updates arrive on a
// channel fed from a march.Observer.
type Model struct {
	title     string
	first     int
	last      int
	updates   <-chan tea.Msg
	started   time.Time
	current   march.SliceReport
	done      int
	residuals []float64
	profile   []float64
	metrics   map[string]float64
	canvas    *Canvas
	summary   *march.Summary
	err       error
	finished  bool
}

// NewModel watches slices first..last-1.
func NewModel(title string, first, last int, updates <-chan tea.Msg) Model {
	return Model{
		title:     title,
		first:     first,
		last:      last,
		updates:   updates,
		started:   time.Now(),
		residuals: make([]float64, 0, historyCapacity),
		canvas:    NewCanvas(barWidth, 6),
	}
}

func waitFor(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return DoneMsg{}
		}
		return msg
	}
}

func (m Model) Init() tea.Cmd {
	return waitFor(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case SliceMsg:
		m.current = msg.Report
		m.done++
		m.residuals = append(m.residuals, msg.Report.Counters.MaxResidual)
		if len(m.residuals) > historyCapacity {
			m.residuals = m.residuals[1:]
		}
		if msg.Profile != nil {
			m.profile = msg.Profile
		}
		if msg.Metrics != nil {
			m.metrics = msg.Metrics
		}
		return m, waitFor(m.updates)
	case DoneMsg:
		m.finished = true
		m.err = msg.Err
		if msg.Err == nil {
			s := msg.Summary
			m.summary = &s
		}
		return m, tea.Quit
	}
	return m, nil
}

// Progress is the fraction of slices completed.
func (m Model) Progress() float64 {
	total := m.last - m.first
	if total <= 0 {
		return 1
	}
	return float64(m.done) / float64(total)
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(Title.Render(m.title))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s %5.1f%%  slice %d/%d\n\n",
		ProgressBar(m.Progress(), barWidth), 100*m.Progress(), m.first+m.done, m.last)

	c := m.current.Counters
	rows := map[string]float64{
		"points":     float64(c.Points),
		"shifts":     float64(c.ShiftRefills),
		"clamps":     float64(c.Clamps),
		"backtracks": float64(c.Backtracks),
		"residual":   c.MaxResidual,
		"slice ms":   float64(m.current.Duration.Microseconds()) / 1000,
	}
	for k, v := range m.metrics {
		rows[k] = v
	}
	b.WriteString(Panel.Render(MetricTable(rows)))
	b.WriteString("\n")

	b.WriteString(MetricLabel.Render("residual"))
	b.WriteString(Sparkline(m.residuals, barWidth))
	b.WriteString("\n")

	if len(m.profile) > 0 {
		m.canvas.Clear()
		m.canvas.Profile(m.profile)
		b.WriteString(Panel.Render(m.canvas.String()))
		b.WriteString("\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(StatusFailed.Render("failed: " + m.err.Error()))
	case m.summary != nil:
		b.WriteString(StatusOK.Render(fmt.Sprintf("done: %d slices in %s", m.summary.Slices, m.summary.Duration.Round(time.Millisecond))))
	default:
		b.WriteString(KeyHint.Render(fmt.Sprintf("running %s  q: quit", time.Since(m.started).Round(time.Second))))
	}
	b.WriteString("\n")
	return b.String()
}
