package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

const (
	graphWidth      = 70
	graphHeight     = 12
	historyCapacity = 600
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(0, 2)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

// Sample is one accepted integration step as seen by the watcher.
type Sample struct {
	T  float64
	Vm []float64 // per-bus voltage magnitude
}

type TickMsg time.Time

// DoneMsg signals that the background integration finished.
type DoneMsg struct{ Err error }

// Model scrolls bus voltage magnitudes as samples arrive from a
// running integration.
type Model struct {
	caseName string
	busNames []string
	samples  <-chan Sample

	history  [][]float64 // one ring per bus
	t        float64
	steps    int
	selected int
	done     bool
	runErr   error
}

func NewModel(caseName string, busNames []string, samples <-chan Sample) Model {
	hist := make([][]float64, len(busNames))
	for i := range hist {
		hist[i] = make([]float64, 0, historyCapacity)
	}
	return Model{
		caseName: caseName,
		busNames: busNames,
		samples:  samples,
		history:  hist,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			if len(m.busNames) > 0 {
				m.selected = (m.selected + 1) % len(m.busNames)
			}
		}
	case DoneMsg:
		m.done = true
		m.runErr = msg.Err
	case TickMsg:
		m.drain()
		return m, tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
	}
	return m, nil
}

func (m *Model) drain() {
	for {
		select {
		case s, ok := <-m.samples:
			if !ok {
				return
			}
			m.t = s.T
			m.steps++
			for i := range m.history {
				if i >= len(s.Vm) {
					break
				}
				if len(m.history[i]) >= historyCapacity {
					m.history[i] = m.history[i][1:]
				}
				m.history[i] = append(m.history[i], s.Vm[i])
			}
		default:
			return
		}
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("gridyn live — %s", m.caseName)))
	b.WriteString("\n")

	series := m.history[m.selected]
	if len(series) > 1 {
		plot := asciigraph.Plot(series,
			asciigraph.Height(graphHeight),
			asciigraph.Width(graphWidth),
			asciigraph.Caption(fmt.Sprintf("|V| at %s", m.busNames[m.selected])))
		b.WriteString(graphStyle.Render(plot))
	} else {
		b.WriteString(graphStyle.Render("waiting for samples..."))
	}
	b.WriteString("\n")

	var stats strings.Builder
	stats.WriteString(labelStyle.Render("time") + valueStyle.Render(fmt.Sprintf("%.4f s", m.t)) + "\n")
	stats.WriteString(labelStyle.Render("steps") + valueStyle.Render(fmt.Sprintf("%d", m.steps)) + "\n")
	for i, name := range m.busNames {
		style := valueStyle
		if i == m.selected {
			style = activeStyle
		}
		vm := math.NaN()
		if n := len(m.history[i]); n > 0 {
			vm = m.history[i][n-1]
		}
		stats.WriteString(labelStyle.Render(name) + style.Render(fmt.Sprintf("%.5f pu", vm)) + "\n")
	}
	if m.done {
		if m.runErr != nil {
			stats.WriteString(activeStyle.Render(fmt.Sprintf("failed: %v", m.runErr)))
		} else {
			stats.WriteString(valueStyle.Render("finished"))
		}
	}
	b.WriteString(statsStyle.Render(stats.String()))

	b.WriteString(helpStyle.Render("tab: next bus  q: quit"))
	return b.String()
}

// Watch runs the provided integration in the background and displays
// its samples until it finishes or the user quits. The emit callback
// handed to run never blocks; samples are dropped if the UI falls
// behind.
func Watch(caseName string, busNames []string, run func(emit func(Sample)) error) error {
	ch := make(chan Sample, 512)
	p := tea.NewProgram(NewModel(caseName, busNames, ch))
	go func() {
		err := run(func(s Sample) {
			select {
			case ch <- s:
			default:
			}
		})
		p.Send(DoneMsg{Err: err})
	}()
	_, err := p.Run()
	return err
}
