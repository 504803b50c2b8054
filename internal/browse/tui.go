// Package browse is the interactive terminal view over stored jobs.
package browse

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobdigest/internal/digest"
	"github.com/amishk599/jobdigest/internal/model"
)

// Lines per job item in the list view (title + subtitle + blank separator).
const jobItemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

const (
	paneStored = iota
	paneMatching
)

// palette is shared by the picker, loader and browser views.
const (
	colorAccent   = lipgloss.Color("39")
	colorMuted    = lipgloss.Color("240")
	colorSubtle   = lipgloss.Color("245")
	colorText     = lipgloss.Color("252")
	colorBright   = lipgloss.Color("15")
	colorSelected = lipgloss.Color("24")
	colorBar      = lipgloss.Color("236")
	colorSpinner  = lipgloss.Color("33")
)

var (
	paneBorder = lipgloss.NewStyle().Border(lipgloss.RoundedBorder())

	activeBorderStyle   = paneBorder.BorderForeground(colorAccent)
	inactiveBorderStyle = paneBorder.BorderForeground(colorMuted)

	paneHeader          = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	activeHeaderStyle   = paneHeader.Foreground(colorAccent)
	inactiveHeaderStyle = paneHeader.Foreground(colorMuted)

	statusBarStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(colorText).Background(colorBar)

	itemTitle            = lipgloss.NewStyle().Bold(true)
	itemSubtitle         = lipgloss.NewStyle().Foreground(colorSubtle)
	selectedItemTitle    = itemTitle.Foreground(colorBright).Background(colorSelected)
	selectedItemSubtitle = lipgloss.NewStyle().Foreground(colorText).Background(colorSelected)

	fieldLabel   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Width(14)
	detailHeader = lipgloss.NewStyle().Bold(true).Foreground(colorBright).MarginBottom(1)
	dividerStyle = lipgloss.NewStyle().Foreground(colorMuted)
	hintStyle    = lipgloss.NewStyle().Foreground(colorSubtle).Italic(true)
	bodyStyle    = lipgloss.NewStyle().Foreground(colorText)
)

type browseModel struct {
	title         string
	storedJobs    []model.Job
	matchingJobs  []model.Job
	leftViewport  viewport.Model
	rightViewport viewport.Model
	activePane    int
	leftCursor    int
	rightCursor   int
	width         int
	height        int
	ready         bool

	view            viewState
	detailJob       model.Job
	detailViewport  viewport.Model
	showDescription bool

	// openURL is swapped out in tests.
	openURL func(string)

	wantQuit bool
}

func newBrowseModel(title string, stored []model.Job, filter model.JobFilter) browseModel {
	var matching []model.Job
	if filter != nil {
		for _, j := range stored {
			if filter.Match(j) {
				matching = append(matching, j)
			}
		}
	}
	return browseModel{
		title:        title,
		storedJobs:   stored,
		matchingJobs: matching,
		openURL:      openURL,
	}
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m browseModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "b":
		m.wantQuit = false
		return m, tea.Quit
	case "tab", "left", "right":
		m.activePane = 1 - m.activePane
		m.recalcContent()
		return m, nil
	case "up", "k":
		m.moveCursor(-1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		return m.openDetailView()
	case "o":
		if jobs := m.activeJobs(); len(jobs) > 0 {
			m.openURL(jobs[m.activeCursor()].URL)
		}
		return m, nil
	}

	// pgup/pgdn/home/end go to the active viewport.
	var cmd tea.Cmd
	if m.activePane == paneStored {
		m.leftViewport, cmd = m.leftViewport.Update(msg)
	} else {
		m.rightViewport, cmd = m.rightViewport.Update(msg)
	}
	return m, cmd
}

func (m browseModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "o":
		m.openURL(m.detailJob.URL)
		return m, nil
	case "r":
		if m.detailJob.Description != "" {
			m.showDescription = !m.showDescription
			m.detailViewport.SetContent(m.renderDetail())
			m.detailViewport.SetYOffset(0)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m *browseModel) moveCursor(delta int) {
	if m.activePane == paneStored {
		m.leftCursor = step(m.leftCursor, delta, len(m.storedJobs))
	} else {
		m.rightCursor = step(m.rightCursor, delta, len(m.matchingJobs))
	}
}

// step moves cursor by delta within [0, n).
func step(cursor, delta, n int) int {
	return max(min(cursor+delta, n-1), 0)
}

func (m *browseModel) ensureCursorVisible() {
	vp, cursor := &m.leftViewport, m.leftCursor
	if m.activePane == paneMatching {
		vp, cursor = &m.rightViewport, m.rightCursor
	}

	cursorTop := cursor * jobItemHeight
	cursorBottom := cursorTop + jobItemHeight - 1

	if cursorTop < vp.YOffset {
		vp.SetYOffset(cursorTop)
	} else if cursorBottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(cursorBottom - vp.Height + 1)
	}
}

func (m browseModel) openDetailView() (tea.Model, tea.Cmd) {
	jobs := m.activeJobs()
	if len(jobs) == 0 {
		return m, nil
	}

	m.view = viewDetail
	m.detailJob = jobs[m.activeCursor()]
	m.showDescription = false
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderDetail())
	return m, nil
}

func (m *browseModel) recalcLayout() {
	// 2 border chars per pane + 1 gap between panes.
	paneWidth := max((m.width-5)/2, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1).
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.leftViewport = viewport.New(paneWidth, paneHeight)
		m.rightViewport = viewport.New(paneWidth, paneHeight)
		m.ready = true
	} else {
		m.leftViewport.Width = paneWidth
		m.leftViewport.Height = paneHeight
		m.rightViewport.Width = paneWidth
		m.rightViewport.Height = paneHeight
	}

	m.recalcContent()
}

func (m *browseModel) recalcContent() {
	m.leftViewport.SetContent(renderJobs(m.storedJobs, m.leftCursor, m.activePane == paneStored))
	m.rightViewport.SetContent(renderJobs(m.matchingJobs, m.rightCursor, m.activePane == paneMatching))
}

func (m browseModel) activeJobs() []model.Job {
	if m.activePane == paneStored {
		return m.storedJobs
	}
	return m.matchingJobs
}

func (m browseModel) activeCursor() int {
	if m.activePane == paneStored {
		return m.leftCursor
	}
	return m.rightCursor
}

func (m browseModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.view == viewDetail {
		return m.viewDetail()
	}
	return m.viewList()
}

func (m browseModel) viewList() string {
	paneWidth := m.leftViewport.Width

	leftHeader := fmt.Sprintf(" %s (%d)", m.title, len(m.storedJobs))
	rightHeader := fmt.Sprintf(" Still matching (%d)", len(m.matchingJobs))

	leftHeaderStyle, rightHeaderStyle := activeHeaderStyle, inactiveHeaderStyle
	leftBorder, rightBorder := activeBorderStyle, inactiveBorderStyle
	if m.activePane == paneMatching {
		leftHeaderStyle, rightHeaderStyle = inactiveHeaderStyle, activeHeaderStyle
		leftBorder, rightBorder = inactiveBorderStyle, activeBorderStyle
	}

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(paneWidth+2).Render(leftHeaderStyle.Render(leftHeader)),
		" ",
		lipgloss.NewStyle().Width(paneWidth+2).Render(rightHeaderStyle.Render(rightHeader)),
	)

	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		leftBorder.Width(paneWidth).Render(m.leftViewport.View()),
		" ",
		rightBorder.Width(paneWidth).Render(m.rightViewport.View()),
	)

	statusText := fmt.Sprintf(" %d stored | %d matching    ←/→/Tab switch  ↑/↓ cursor  Enter detail  o open  Esc back  q quit",
		len(m.storedJobs), len(m.matchingJobs))
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return headerRow + "\n" + panes + "\n" + statusBar
}

func (m browseModel) viewDetail() string {
	title := detailHeader.Render("Job Details")
	content := activeBorderStyle.Width(m.width - 2).Render(m.detailViewport.View())

	statusText := " o open URL  esc/backspace back  ↑/↓ scroll  q quit"
	if m.detailJob.Description != "" {
		statusText = " o open URL  r desc  esc/backspace back  ↑/↓ scroll  q quit"
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return title + "\n" + content + "\n" + statusBar
}

func (m browseModel) renderDetail() string {
	j := m.detailJob
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "%s%s\n", fieldLabel.Render(label), value)
	}

	addField("Title", j.Title)
	addField("Company", j.Company)
	addField("Location", j.Location)
	addField("Source", j.Source)
	addField("External ID", j.ExternalID)

	b.WriteByte('\n')
	addField("Posted", digest.FormatPosted(j.PostedAtUTC))
	addField("First seen", digest.FormatPosted(j.CreatedAtUTC))

	b.WriteByte('\n')
	addField("Apply URL", j.URL)

	if j.Description == "" {
		return b.String()
	}

	wrapWidth := max(m.width-8, 20)
	b.WriteByte('\n')
	if m.showDescription {
		b.WriteString(dividerStyle.Render(divider("Job Description", wrapWidth)) + "\n\n")
		b.WriteString(bodyStyle.Width(wrapWidth).Render(strings.Join(strings.Fields(j.Description), " ")) + "\n")
	} else {
		b.WriteString(hintStyle.Render("  press r to read job description") + "\n")
	}
	return b.String()
}

func renderJobs(jobs []model.Job, cursor int, isActive bool) string {
	if len(jobs) == 0 {
		return "  (no jobs)"
	}

	var b strings.Builder
	for i, j := range jobs {
		titleSt, subtitleSt, prefix := itemTitle, itemSubtitle, "  "
		if isActive && i == cursor {
			titleSt, subtitleSt, prefix = selectedItemTitle, selectedItemSubtitle, "> "
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(j.Title))
		b.WriteByte('\n')

		posted := digest.FormatPosted(j.PostedAtUTC)
		if posted == "" {
			posted = "n/a"
		}
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(fmt.Sprintf("%s · %s · %s", j.Company, j.Location, posted)))
		b.WriteByte('\n')

		if i < len(jobs)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func divider(label string, width int) string {
	head := "── " + label + " "
	return head + strings.Repeat("─", max(width-len([]rune(head)), 3))
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	if url == "" {
		return
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// Run launches the split-pane browser over stored jobs. The right pane lists
// the subset that filter still accepts; filter may be nil. Returns
// wantQuit=true on q/ctrl+c and false on esc, which goes back to the picker.
func Run(title string, stored []model.Job, filter model.JobFilter) (bool, error) {
	m := newBrowseModel(title, stored, filter)

	result, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return false, err
	}
	return result.(browseModel).wantQuit, nil
}
