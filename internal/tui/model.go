package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/diogo/querychat/internal/api"
	"github.com/diogo/querychat/internal/models"
	"github.com/diogo/querychat/internal/render"
	"github.com/diogo/querychat/internal/widget"
)

// Animation tick message
type animationTickMsg time.Time

// exchangeDoneMsg carries the outcome of a query back to the event loop
type exchangeDoneMsg struct {
	result widget.Result
}

// Options configures the chat window
type Options struct {
	// Markdown renders replies through glamour instead of showing them verbatim
	Markdown bool
	Render   render.Options
	// CopyReplies puts every reply on the system clipboard
	CopyReplies bool
	Logger      zerolog.Logger
}

// screen collects the widget's side effects during one Update so the
// model can apply them to its bubbles components.
type screen struct {
	changed    bool
	clearInput bool
	scroll     bool
	failure    error
}

func (s *screen) Appended(models.Message) { s.changed = true }
func (s *screen) InputCleared()           { s.clearInput = true }
func (s *screen) ScrollToBottom()         { s.scroll = true }

func (s *screen) Failed(_ string, err error) {
	s.failure = err
}

// Model represents the TUI state
type Model struct {
	client api.ClientInterface
	ctrl   *widget.Controller
	screen *screen
	opts   Options

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	// State
	loading        bool
	ready          bool
	err            error
	notice         string
	cancel         context.CancelFunc
	animationFrame int

	// copy writes to the clipboard; replaced in tests
	copy func(string) error

	// Dimensions
	width  int
	height int
}

// NewChatModel creates a chat window that sends queries through client
func NewChatModel(client api.ClientInterface, opts Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask something..."
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	// Enter sends; it never inserts a newline
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorMuted)
	ta.BlurredStyle = ta.FocusedStyle

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	if opts.Render.Style == "" {
		opts.Render = render.DefaultOptions()
	}

	scr := &screen{}
	ctrl := widget.New(client, widget.WithView(scr), widget.WithLogger(opts.Logger))

	return Model{
		client:   client,
		ctrl:     ctrl,
		screen:   scr,
		opts:     opts,
		textarea: ta,
		spinner:  s,
		copy:     clipboard.WriteAll,
	}
}

// Controller returns the widget controller behind the window
func (m Model) Controller() *widget.Controller {
	return m.ctrl
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func animationTick() tea.Cmd {
	return tea.Tick(time.Millisecond*80, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.abandon()
			return m, tea.Quit

		case "esc":
			if m.loading {
				m.abandon()
				m.notice = "cancelling..."
				return m, nil
			}
			return m, tea.Quit

		case "enter", "ctrl+s":
			return m.submit()

		case "ctrl+y":
			m.copyLastReply()
			return m, nil
		}

	case exchangeDoneMsg:
		return m.finish(msg.result)

	case spinner.TickMsg:
		if m.loading {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case animationTickMsg:
		if m.loading {
			m.animationFrame++
			cmds = append(cmds, animationTick())
		}
	}

	// Only pass KeyMsg to textarea to prevent escape sequence leaks
	if !m.loading {
		if _, ok := msg.(tea.KeyMsg); ok {
			m.textarea, cmd = m.textarea.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	headerHeight := 3
	inputHeight := 5
	statusHeight := 1
	padding := 2

	vpHeight := m.height - headerHeight - inputHeight - statusHeight - padding
	if vpHeight < 5 {
		vpHeight = 5
	}
	contentWidth := m.width - 4

	if !m.ready {
		m.viewport = viewport.New(contentWidth, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(contentWidth - 4)
	m.updateViewport()
}

// submit is the single send path for Enter and ctrl+s. Empty input and
// input typed while a query is in flight are ignored.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.loading {
		return m, nil
	}

	input := m.textarea.Value()
	switch strings.TrimSpace(input) {
	case "/quit", "/exit":
		return m, tea.Quit
	}

	ex, err := m.ctrl.Begin(input)
	if err != nil {
		return m, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.loading = true
	m.err = nil
	m.notice = ""
	m.animationFrame = 0
	m.applyScreen()

	return m, tea.Batch(
		runExchange(ctx, ex),
		m.spinner.Tick,
		animationTick(),
	)
}

// runExchange performs the network call off the event loop
func runExchange(ctx context.Context, ex *widget.Exchange) tea.Cmd {
	return func() tea.Msg {
		return exchangeDoneMsg{result: ex.Run(ctx)}
	}
}

func (m Model) finish(res widget.Result) (tea.Model, tea.Cmd) {
	res = m.ctrl.Finish(res)
	m.loading = m.ctrl.Pending()
	if !m.loading {
		m.abandon()
		m.notice = ""
	}
	m.applyScreen()

	if res.Reply != nil && m.opts.CopyReplies {
		m.copyText(res.Reply.Text)
	}
	return m, nil
}

// abandon cancels the in-flight query, if any
func (m *Model) abandon() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// applyScreen applies the widget's recorded side effects
func (m *Model) applyScreen() {
	s := m.screen
	if s.clearInput {
		m.textarea.Reset()
	}
	if s.changed {
		m.updateViewport()
	}
	if s.scroll {
		m.viewport.GotoBottom()
	}
	if s.failure != nil {
		m.err = s.failure
	}
	*s = screen{}
}

func (m *Model) copyLastReply() {
	reply, ok := m.ctrl.Transcript().LastReply()
	if !ok {
		m.notice = "nothing to copy yet"
		return
	}
	m.copyText(reply.Text)
}

func (m *Model) copyText(text string) {
	if err := m.copy(text); err != nil {
		m.notice = fmt.Sprintf("clipboard unavailable: %v", err)
		return
	}
	m.notice = "reply copied to clipboard"
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	var sections []string
	contentWidth := m.width - 4

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render("querychat"),
		hintStyle.Render("  •  "),
		subtitleStyle.Render(m.client.Endpoint()),
	)
	sections = append(sections, headerStyle.Width(contentWidth).Render(header))

	var messagesContent string
	if m.ctrl.Transcript().Len() == 0 {
		messagesContent = hintStyle.Render("Type a question below and press Enter.")
	} else {
		messagesContent = m.viewport.View()
	}
	sections = append(sections, messagesAreaStyle.
		Width(contentWidth).
		Height(m.viewport.Height).
		Render(messagesContent))

	var inputContent string
	if m.loading {
		inputContent = m.renderLoading()
	} else {
		inputContent = lipgloss.JoinVertical(lipgloss.Left,
			inputLabelStyle.Render("You"),
			m.textarea.View(),
		)
	}
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(inputContent))

	sections = append(sections, m.renderStatusBar(contentWidth))

	if m.notice != "" {
		sections = append(sections, noticeStyle.Render(m.notice))
	}
	if m.err != nil {
		sections = append(sections, FormatError(m.err))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderLoading() string {
	dots := strings.Repeat("●", (m.animationFrame/3)%4)
	return fmt.Sprintf("%s %s",
		m.spinner.View(),
		loadingStyle.Render("waiting for reply "+dots),
	)
}

func (m Model) renderStatusBar(width int) string {
	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter/^S", "Send"},
		{"^Y", "Copy reply"},
		{"Esc", "Cancel/Quit"},
		{"↑↓", "Scroll"},
	}

	var items []string
	for _, s := range shortcuts {
		items = append(items, statusKeyStyle.Render(s.key)+statusDescStyle.Render(" "+s.desc))
	}

	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(strings.Join(items, "  │  "))
}

// updateViewport refreshes the viewport content from the transcript
func (m *Model) updateViewport() {
	var content strings.Builder
	bubbleWidth := m.viewport.Width - 6
	if bubbleWidth < 20 {
		bubbleWidth = 20
	}

	for i, msg := range m.ctrl.Transcript().Entries() {
		if i > 0 {
			content.WriteString("\n")
		}

		switch msg.Role {
		case models.RoleUser:
			content.WriteString(userLabelStyle.Render("You") + "\n")
			content.WriteString(userBubbleStyle.Width(bubbleWidth).Render(msg.Text))
		default:
			text := render.Reply(msg.Text, m.opts.Markdown, m.opts.Render.WithWidth(bubbleWidth-4))
			content.WriteString(assistantLabelStyle.Render("Assistant") + "\n")
			content.WriteString(assistantBubbleStyle.Width(bubbleWidth).Render(text))
		}
		content.WriteString("\n")
	}

	m.viewport.SetContent(content.String())
}

// RunChat starts the chat TUI
func RunChat(client api.ClientInterface, opts Options) error {
	p := tea.NewProgram(
		NewChatModel(client, opts),
		tea.WithAltScreen(),
	)

	_, err := p.Run()
	return err
}
