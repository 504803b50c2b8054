package browse

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	pickerTitle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(1, 0, 1, 2)
	pickerItem     = lipgloss.NewStyle().Padding(0, 0, 0, 4)
	pickerSelected = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 0, 0, 2)
	pickerHint     = lipgloss.NewStyle().Foreground(colorMuted).Padding(1, 0, 0, 2)
)

// Window is a lookback period over stored jobs. Since == 0 means everything.
type Window struct {
	Label string
	Since time.Duration
}

// DefaultWindows lists the lookbacks offered by the picker, starting with one
// poll interval (the window the digest itself covers).
func DefaultWindows(interval time.Duration) []Window {
	return []Window{
		{Label: fmt.Sprintf("Last cycle (%s)", interval), Since: interval},
		{Label: "Last 24 hours", Since: 24 * time.Hour},
		{Label: "Last 7 days", Since: 7 * 24 * time.Hour},
		{Label: "Everything stored", Since: 0},
	}
}

const (
	pickerPending = -1
	pickerQuit    = -2
)

type pickerModel struct {
	windows []Window
	cursor  int
	chosen  int
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.chosen = pickerQuit
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.windows)-1 {
				m.cursor++
			}
		case "enter":
			m.chosen = m.cursor
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	var b strings.Builder
	b.WriteString(pickerTitle.Render("Stored jobs: pick a window") + "\n")
	for i, w := range m.windows {
		line := pickerItem.Render(w.Label)
		if i == m.cursor {
			line = pickerSelected.Render("> " + w.Label)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(pickerHint.Render("↑/↓/j/k navigate  enter select  q quit"))
	return b.String()
}

// RunWindowPicker shows the window selector and returns the chosen index, or
// -1 if the user quit.
func RunWindowPicker(windows []Window) (int, error) {
	m := pickerModel{windows: windows, chosen: pickerPending}

	result, err := tea.NewProgram(m).Run()
	if err != nil {
		return -1, err
	}
	final := result.(pickerModel)
	if final.chosen < 0 {
		return -1, nil
	}
	return final.chosen, nil
}
