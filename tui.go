package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rehearse/interview"
	"rehearse/report"
	"rehearse/session"
	"rehearse/transcript"
)

// quitRequestMsg asks the model to release the session before exiting; sent
// on SIGTERM.
type quitRequestMsg struct{}

type screen int

const (
	screenSetup screen = iota
	screenInterview
	screenFeedback
)

var categories = []interview.Category{
	interview.Behavioral,
	interview.Technical,
	interview.SystemDesign,
}

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	aiStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	recStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	scoreStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)
	sectionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	feedbackStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
)

type tuiModel struct {
	deps   *appDeps
	screen screen

	cursor     int
	connecting bool

	orch      *session.Orchestrator
	state     session.State
	messages  []transcript.Message
	recording bool
	ending    bool

	feedback  *report.Feedback
	reportErr error

	errText       string
	width, height int
}

func newTUIModel(deps *appDeps) tuiModel {
	return tuiModel{deps: deps}
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sessionStartedMsg:
		m.connecting = false
		m.orch = msg.orch
		m.state = msg.orch.State()
		m.screen = screenInterview
		m.errText = ""
		return m, waitForUpdate(m.orch)

	case sessionFailedMsg:
		m.connecting = false
		m.errText = msg.err.Error()

	case sessionUpdateMsg:
		switch u := msg.update.(type) {
		case session.StateUpdate:
			m.state = u.State
		case session.TranscriptUpdate:
			m.messages = u.Messages
		case session.ErrorUpdate:
			m.errText = u.Err.Error()
		}
		if m.state == session.StateTerminated {
			return m, nil
		}
		return m, waitForUpdate(m.orch)

	case reportMsg:
		m.ending = false
		m.feedback = msg.report
		m.reportErr = msg.err
		m.screen = screenFeedback

	case turnErrMsg:
		m.errText = msg.err.Error()

	case quitRequestMsg:
		if m.orch != nil {
			m.orch.Dispose()
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		if m.orch != nil {
			m.orch.Dispose()
		}
		return m, tea.Quit
	}

	switch m.screen {
	case screenSetup:
		if m.connecting {
			return m, nil
		}
		switch key {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(categories)-1 {
				m.cursor++
			}
		case "enter":
			m.connecting = true
			m.errText = ""
			return m, startSession(m.deps, categories[m.cursor])
		}

	case screenInterview:
		if m.ending {
			return m, nil
		}
		switch key {
		case "m":
			if m.deps.mode == session.ModeVoice && m.orch != nil {
				if m.orch.Muted() {
					m.orch.Unmute()
				} else {
					m.orch.Mute()
				}
			}
		case " ":
			if m.deps.mode == session.ModePushToTalk && m.orch != nil {
				if m.recording {
					m.recording = false
					return m, endTurn(m.orch)
				}
				m.recording = true
				m.errText = ""
				return m, beginTurn(m.orch)
			}
		case "e":
			m.ending = true
			m.recording = false
			return m, endSession(m.deps, m.orch, categories[m.cursor])
		}

	case screenFeedback:
		if key == "q" || key == "enter" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	switch m.screen {
	case screenInterview:
		return m.viewInterview()
	case screenFeedback:
		return m.viewFeedback()
	}
	return m.viewSetup()
}

func (m tuiModel) viewSetup() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("rehearse — mock interview practice") + "\n\n")
	b.WriteString("Interview type:\n\n")
	for i, cat := range categories {
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("  ▶ "+string(cat)) + "\n")
		} else {
			b.WriteString("    " + string(cat) + "\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("mode: %s", m.deps.mode)) + "\n")
	if m.deps.device != nil {
		b.WriteString(dimStyle.Render("mic: "+m.deps.device.Name) + "\n")
	} else {
		b.WriteString(dimStyle.Render("mic: system default") + "\n")
	}
	b.WriteString("\n")
	if m.connecting {
		b.WriteString(pendingStyle.Render("Connecting...") + "\n")
	} else {
		b.WriteString(helpStyle.Render("↑/↓ select · Enter to start · Ctrl+C to quit") + "\n")
	}
	if m.errText != "" {
		b.WriteString("\n" + errStyle.Render("Error: "+m.errText) + "\n")
	}
	return b.String()
}

func (m tuiModel) viewInterview() string {
	wrapWidth := m.width - 10
	if wrapWidth < 20 {
		wrapWidth = 20
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Interview — "+string(categories[m.cursor])) + "\n\n")

	if len(m.messages) == 0 {
		b.WriteString(dimStyle.Render("Waiting for the interviewer...") + "\n")
	}
	for _, msg := range m.messages {
		label := userStyle.Render("You")
		if msg.Speaker == transcript.AI {
			label = aiStyle.Render("Interviewer")
		}
		b.WriteString(label + "\n")
		text := msg.Text
		style := feedbackStyle
		if !msg.Final {
			text += " …"
			style = pendingStyle
		}
		for _, line := range wrapText(text, wrapWidth) {
			b.WriteString("  " + style.Render(line) + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(m.statusLine() + "\n")
	if m.errText != "" {
		b.WriteString(errStyle.Render("Error: "+m.errText) + "\n")
	}
	b.WriteString(m.helpLine() + "\n")
	return b.String()
}

func (m tuiModel) statusLine() string {
	if m.ending {
		return pendingStyle.Render("Ending interview, generating feedback...")
	}
	switch {
	case m.deps.mode == session.ModePushToTalk && m.recording:
		return recStyle.Render("● RECORDING")
	case m.orch != nil && m.orch.Muted():
		return mutedStyle.Render("◌ MUTED")
	case m.state == session.StateProcessing:
		return pendingStyle.Render("… interviewer is responding")
	case m.state == session.StateListening:
		return dimStyle.Render("○ listening")
	}
	return dimStyle.Render(m.state.String())
}

func (m tuiModel) helpLine() string {
	if m.deps.mode == session.ModePushToTalk {
		return helpStyle.Render("Space talk/stop · e end interview · Ctrl+C abandon")
	}
	return helpStyle.Render("m mute · e end interview · Ctrl+C abandon")
}

func (m tuiModel) viewFeedback() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Interview feedback") + "\n\n")

	if m.reportErr != nil {
		b.WriteString(errStyle.Render("Feedback unavailable: "+m.reportErr.Error()) + "\n")
		b.WriteString(dimStyle.Render("The transcript was still saved to your history.") + "\n\n")
		b.WriteString(helpStyle.Render("q to quit") + "\n")
		return b.String()
	}
	if m.feedback == nil {
		b.WriteString(dimStyle.Render("No feedback: the interview had no completed answers.") + "\n\n")
		b.WriteString(helpStyle.Render("q to quit") + "\n")
		return b.String()
	}

	fb := m.feedback
	b.WriteString(scoreStyle.Render(fmt.Sprintf("Overall: %d/100", fb.OverallScore)) + "\n\n")

	writeSection := func(name string, score int, feedback string, extras ...string) {
		b.WriteString(sectionStyle.Render(fmt.Sprintf("%s — %d/100", name, score)) + "\n")
		for _, line := range wrapText(feedback, m.width-4) {
			b.WriteString("  " + feedbackStyle.Render(line) + "\n")
		}
		for _, extra := range extras {
			if extra != "" {
				for _, line := range wrapText(extra, m.width-6) {
					b.WriteString("    " + dimStyle.Render(line) + "\n")
				}
			}
		}
		b.WriteString("\n")
	}

	writeSection("Answer quality", fb.AnswerQuality.Score, fb.AnswerQuality.Feedback,
		exampleLine(fb.AnswerQuality.Example))
	writeSection("Communication", fb.CommunicationSkills.Score, fb.CommunicationSkills.Feedback,
		fmt.Sprintf("filler words: %d", fb.CommunicationSkills.FillerWords),
		labelled("pace", fb.CommunicationSkills.Pace))

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Content — %d/100", fb.ContentFeedback.Score)) + "\n")
	for _, line := range wrapText(fb.ContentFeedback.Feedback, m.width-4) {
		b.WriteString("  " + feedbackStyle.Render(line) + "\n")
	}
	for _, missed := range fb.ContentFeedback.MissedOpportunities {
		for _, line := range wrapText("• "+missed, m.width-6) {
			b.WriteString("    " + dimStyle.Render(line) + "\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Saved to history.") + "\n\n")
	b.WriteString(helpStyle.Render("q to quit") + "\n")
	return b.String()
}

func exampleLine(example string) string {
	if example == "" {
		return ""
	}
	return `e.g. "` + example + `"`
}

func labelled(label, value string) string {
	if value == "" {
		return ""
	}
	return label + ": " + value
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
