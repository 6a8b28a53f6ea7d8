package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/blindchat/internal/core/identity"
	"github.com/hay-kot/blindchat/internal/feed"
)

// Options configures the TUI behavior.
type Options struct {
	Collection string
	Markdown   bool
}

// feedChangedMsg is sent when the controller reports a state change.
type feedChangedMsg struct{}

// waitForChange blocks until the controller changes.
func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return feedChangedMsg{}
	}
}

// Model is the Bubble Tea model for a single conversation.
type Model struct {
	ctx  context.Context
	feed *feed.Controller
	ids  identity.Provider
	opts Options

	keys     keyMap
	help     help.Model
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	md       *markdown

	view       feed.View
	selected   string // ID of the selected own message
	modal      Modal
	lastScroll uint64

	width  int
	height int
	ready  bool
}

// New creates the chat model. The controller must already be started.
func New(ctx context.Context, c *feed.Controller, ids identity.Provider, opts Options) Model {
	input := textinput.New()
	input.Placeholder = "Say something..."
	input.Prompt = "› "
	input.CharLimit = 2000
	input.Focus()

	return Model{
		ctx:      ctx,
		feed:     c,
		ids:      ids,
		opts:     opts,
		keys:     defaultKeyMap(),
		help:     help.New(),
		input:    input,
		viewport: viewport.New(0, 0),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
		md:       newMarkdown(opts.Markdown),
		view:     c.State(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForChange(m.feed.Changes()))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.refresh()
		return m, nil

	case feedChangedMsg:
		m.apply(m.feed.State())
		return m, waitForChange(m.feed.Changes())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.view.PendingDelete != "" {
			return m.handleModalKey(msg)
		}
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// apply moves the model to a new controller view.
func (m *Model) apply(v feed.View) {
	prev := m.view
	m.view = v

	if v.PendingDelete != "" && v.PendingDelete != prev.PendingDelete {
		preview := ""
		if row, ok := v.PendingRow(); ok {
			preview = truncate(row.Text, 60)
		}
		m.modal = NewModal("Delete message?", preview)
	}

	if m.selected != "" && !slices.ContainsFunc(v.Rows, func(r feed.Row) bool { return r.ID == m.selected && r.Mine }) {
		m.selected = ""
	}

	if m.input.Value() != v.Draft {
		m.input.SetValue(v.Draft)
		m.input.CursorEnd()
	}

	m.refresh()
	if v.ScrollSeq != m.lastScroll {
		m.lastScroll = v.ScrollSeq
		m.viewport.GotoBottom()
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Send):
		// Refusals leave the send affordance disabled; nothing to report.
		_ = m.feed.Submit(m.ctx)
		return m, nil

	case key.Matches(msg, m.keys.SelectPrev):
		m.selected = m.stepSelection(-1)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.SelectNext):
		m.selected = m.stepSelection(1)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if m.selected != "" {
			_ = m.feed.RequestDelete(m.ctx, m.selected)
		}
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		switch {
		case m.view.Notice != nil:
			m.feed.DismissNotice()
		case m.selected != "":
			m.selected = ""
			m.refresh()
		}
		return m, nil

	case key.Matches(msg, m.keys.Resubscribe):
		_ = m.feed.Resubscribe()
		return m, nil

	case key.Matches(msg, m.keys.SignIn):
		if !m.view.SignedIn {
			m.ids.RequestSignIn(m.ctx)
		}
		return m, nil

	case key.Matches(msg, m.keys.SignOut):
		if m.view.SignedIn {
			m.ids.RequestSignOut(m.ctx)
		}
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp, m.keys.ScrollDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.feed.SetDraft(after)
	}
	return m, cmd
}

func (m Model) handleModalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "right", "h", "l", "tab":
		m.modal.ToggleSelection()
	case "enter":
		if m.modal.ConfirmSelected() {
			_ = m.feed.ConfirmDelete(m.ctx)
		} else {
			m.feed.CancelDelete()
		}
	case "y":
		_ = m.feed.ConfirmDelete(m.ctx)
	case "n", "esc":
		m.feed.CancelDelete()
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

// stepSelection moves the selection across the user's own messages. Stepping
// past the newest one clears it.
func (m Model) stepSelection(dir int) string {
	var own []string
	for _, r := range m.view.Rows {
		if r.Mine {
			own = append(own, r.ID)
		}
	}
	if len(own) == 0 {
		return ""
	}

	idx := slices.Index(own, m.selected)
	switch {
	case idx < 0 && dir < 0:
		return own[len(own)-1]
	case idx < 0:
		return ""
	case idx+dir < 0:
		return own[0]
	case idx+dir >= len(own):
		return ""
	default:
		return own[idx+dir]
	}
}

// refresh recomputes the layout and viewport content.
func (m *Model) refresh() {
	if !m.ready {
		return
	}

	m.input.Width = max(m.width-8, 10)
	m.help.Width = m.width
	m.md.SetWidth(max(m.bubbleWidth()-4, 10))

	chrome := lipgloss.Height(m.headerView()) + lipgloss.Height(m.statusView()) +
		lipgloss.Height(m.inputView()) + lipgloss.Height(m.help.View(m.keys))
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-chrome, 1)
	m.viewport.SetContent(m.messagesView())
}

func (m Model) bubbleWidth() int {
	return min(max(m.width*3/4, 20), 90)
}

func (m Model) View() string {
	if !m.ready {
		return ""
	}

	if m.view.PendingDelete != "" {
		return m.modal.Overlay(m.width, m.height)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.headerView(),
		m.viewport.View(),
		m.statusView(),
		m.inputView(),
		m.help.View(m.keys),
	)
}

func (m Model) headerView() string {
	title := headerStyle.Render("blindchat")
	if m.opts.Collection != "" {
		title += timeStyle.Render(" " + iconDot + " " + m.opts.Collection)
	}

	var who string
	if m.view.SignedIn {
		name := m.view.Identity.Name
		if name == "" {
			name = m.view.Identity.ID
		}
		who = identityStyle.Render("signed in as " + name)
	} else {
		who = signedOutStyle.Render("signed out, press ctrl+l to sign in")
	}

	gap := max(m.width-lipgloss.Width(title)-lipgloss.Width(who)-1, 1)
	header := title + strings.Repeat(" ", gap) + who

	if m.view.Banner != nil {
		banner := bannerStyle.Width(m.width).Render(m.view.Banner.Message() + " (ctrl+r to reconnect)")
		header = lipgloss.JoinVertical(lipgloss.Left, header, banner)
	}
	return header
}

func (m Model) messagesView() string {
	switch {
	case !m.view.SignedIn:
		return emptyStyle.Render("Sign in to join the conversation.")
	case !m.view.Loaded && m.view.Banner == nil:
		return emptyStyle.Render(m.spinner.View() + " loading messages")
	case len(m.view.Rows) == 0:
		return emptyStyle.Render("No messages yet. Say hi!")
	}

	width := m.bubbleWidth()
	blocks := make([]string, 0, len(m.view.Rows))
	for _, row := range m.view.Rows {
		blocks = append(blocks, m.rowView(row, width))
	}
	return strings.Join(blocks, "\n")
}

func (m Model) rowView(row feed.Row, width int) string {
	author := authorStyle.Render(row.AuthorID)
	style := theirsStyle
	if row.Mine {
		author = mineAuthorStyle.Render("you")
		style = mineStyle
		if row.ID == m.selected {
			style = selectedStyle
		}
	}

	header := author + " " + timeStyle.Render(row.CreatedAt.Local().Format("15:04"))
	body := m.md.Render(row.ID, row.Text)
	content := header + "\n" + body
	if lipgloss.Width(content) > width-4 {
		style = style.Width(width - 2)
	}
	bubble := style.Render(content)

	if row.Mine {
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, bubble)
	}
	return bubble
}

func (m Model) statusView() string {
	switch {
	case m.view.Notice != nil:
		return noticeStyle.Render(iconDot + " " + m.view.Notice.Message() + " (esc to dismiss)")
	case m.view.Sending:
		return typingStyle.Render(m.spinner.View() + " sending...")
	case m.view.Typing:
		return typingStyle.Render("User is typing...")
	default:
		return " "
	}
}

func (m Model) inputView() string {
	hint := sendDisabledStyle.Render("send")
	style := inputDisabledStyle
	if m.view.CanSubmit {
		hint = sendHintStyle.Render("send ⏎")
		style = inputStyle
	}

	line := m.input.View()
	gap := max(m.width-4-lipgloss.Width(line)-lipgloss.Width(hint), 1)
	return style.Width(max(m.width-2, 10)).Render(line + strings.Repeat(" ", gap) + hint)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, c *feed.Controller, ids identity.Provider, opts Options) error {
	p := tea.NewProgram(New(ctx, c, ids, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
