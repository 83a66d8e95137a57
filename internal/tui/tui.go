// Package tui is the terminal client: a scrolling game log, a sidebar of
// live sessions and a command prompt.
package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/lox/rockpapercrane/internal/client"
	"github.com/lox/rockpapercrane/internal/render"
	"github.com/lox/rockpapercrane/internal/rules"
	"github.com/lox/rockpapercrane/internal/server"
	"github.com/lox/rockpapercrane/internal/session"
	"github.com/lox/rockpapercrane/internal/sessionid"
)

// Backend performs requests for the player. *client.Client implements it.
type Backend interface {
	Challenge(ctx context.Context, opponent string) (session.Snapshot, error)
	Respond(ctx context.Context, sessionID string, accept bool) (session.Snapshot, error)
	Choose(ctx context.Context, sessionID, item string) (session.Snapshot, error)
	Upgrade(ctx context.Context, sessionID, item string) (session.Snapshot, error)
	Rematch(ctx context.Context, sessionID string) (session.Snapshot, error)
	List(ctx context.Context) ([]session.Snapshot, error)
	IsConnected() bool
}

// EventMsg carries a session event pushed by the server.
type EventMsg struct {
	Event server.EventData
}

// replyMsg is the outcome of a request started from the prompt.
type replyMsg struct {
	command Command
	session session.Snapshot
	err     error
}

type listMsg struct {
	sessions []session.Snapshot
	err      error
}

// Options configures a Model.
type Options struct {
	PlayerID       string
	Render         render.Options
	RequestTimeout time.Duration
}

// Model is the Bubble Tea model of the terminal client
type Model struct {
	backend   Backend
	logger    *log.Logger
	formatter *render.Formatter
	player    string
	timeout   time.Duration

	// UI components
	logViewport viewport.Model
	actionInput textinput.Model

	// State
	gameLog     []string
	sessions    map[string]session.Snapshot // live sessions by ID
	finished    map[string]session.Snapshot // finished games, for rematches
	current     string                      // session that changed last
	quitting    bool
	focusedPane int // 0 = log, 1 = input

	// Dimensions
	width  int
	height int
}

// NewModel creates a model that sends requests through backend.
func NewModel(backend Backend, opts Options, logger *log.Logger) *Model {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	// Sized properly once the first WindowSizeMsg arrives
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "challenge <player>, rock, accept, rematch, help"
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 100
	ti.PromptStyle = lipgloss.NewStyle().Foreground(focusColor).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(white)
	ti.Prompt = "> "

	return &Model{
		backend:     backend,
		logger:      logger.WithPrefix("tui"),
		formatter:   render.NewFormatter(opts.Render),
		player:      opts.PlayerID,
		timeout:     opts.RequestTimeout,
		logViewport: vp,
		actionInput: ti,
		sessions:    make(map[string]session.Snapshot),
		finished:    make(map[string]session.Snapshot),
		focusedPane: 1,
	}
}

// ForwardEvents returns a client handler that feeds pushed events into a
// running program.
func ForwardEvents(send func(tea.Msg), logger *log.Logger) client.EventHandler {
	return func(msg *server.Message) {
		var data server.EventData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			logger.Warn("Dropping malformed event", "error", err)
			return
		}
		send(EventMsg{Event: data})
	}
}

// Init starts the cursor blinking and loads the player's live sessions.
func (m *Model) Init() tea.Cmd {
	m.AddLogEntry(InfoStyle.Render(fmt.Sprintf("Signed in as %s. Type help for commands.", m.player)))
	return tea.Batch(textinput.Blink, m.execute(Command{Kind: CommandList}))
}

// Update handles messages in the TUI
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case EventMsg:
		m.track(msg.Event.Session)
		m.AddLogEntry(eventStyle(msg.Event.Kind).Render(msg.Event.Text))

	case replyMsg:
		m.handleReply(msg)

	case listMsg:
		m.handleList(msg)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "tab":
			if m.focusedPane == 0 {
				m.focusedPane = 1
				m.actionInput.Focus()
			} else {
				m.focusedPane = 0
				m.actionInput.Blur()
			}
		case "enter":
			if m.focusedPane == 1 {
				line := strings.TrimSpace(m.actionInput.Value())
				m.actionInput.SetValue("")
				if cmd := m.submit(line); cmd != nil {
					cmds = append(cmds, cmd)
				}
			}
		case "up", "k":
			if m.focusedPane == 0 {
				m.logViewport.ScrollUp(1)
			}
		case "down", "j":
			if m.focusedPane == 0 {
				m.logViewport.ScrollDown(1)
			}
		case "pgup", "b":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageUp()
			}
		case "pgdown", "f":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageDown()
			}
		case "home", "g":
			if m.focusedPane == 0 {
				m.logViewport.GotoTop()
			}
		case "end", "G":
			if m.focusedPane == 0 {
				m.logViewport.GotoBottom()
			}
		}
	}

	var cmd tea.Cmd
	if m.focusedPane == 1 {
		m.actionInput, cmd = m.actionInput.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit parses a line from the prompt and starts the request it names.
func (m *Model) submit(line string) tea.Cmd {
	if line == "" {
		return nil
	}
	m.AddLogEntry(InfoStyle.Render("> " + line))

	command, err := ParseCommand(line)
	if err != nil {
		m.addError(err)
		return nil
	}
	return m.execute(command)
}

func (m *Model) execute(command Command) tea.Cmd {
	switch command.Kind {
	case CommandHelp:
		for _, line := range helpText {
			m.AddLogEntry(InfoStyle.Render(line))
		}
		return nil

	case CommandQuit:
		m.quitting = true
		return tea.Quit

	case CommandList:
		return m.request(func(ctx context.Context) tea.Msg {
			sessions, err := m.backend.List(ctx)
			return listMsg{sessions: sessions, err: err}
		})

	case CommandChallenge:
		return m.sessionRequest(command, func(ctx context.Context) (session.Snapshot, error) {
			return m.backend.Challenge(ctx, command.Argument)
		})
	}

	id, err := m.resolveSession(command.SessionID)
	if err != nil {
		m.addError(err)
		return nil
	}
	command.SessionID = id

	return m.sessionRequest(command, func(ctx context.Context) (session.Snapshot, error) {
		switch command.Kind {
		case CommandAccept:
			return m.backend.Respond(ctx, id, true)
		case CommandDecline:
			return m.backend.Respond(ctx, id, false)
		case CommandChoose:
			return m.backend.Choose(ctx, id, command.Argument)
		case CommandUpgrade:
			return m.backend.Upgrade(ctx, id, command.Argument)
		default:
			return m.backend.Rematch(ctx, id)
		}
	})
}

func (m *Model) request(fn func(ctx context.Context) tea.Msg) tea.Cmd {
	timeout := m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return fn(ctx)
	}
}

func (m *Model) sessionRequest(command Command, fn func(ctx context.Context) (session.Snapshot, error)) tea.Cmd {
	return m.request(func(ctx context.Context) tea.Msg {
		snap, err := fn(ctx)
		return replyMsg{command: command, session: snap, err: err}
	})
}

// resolveSession expands a typed session reference. Empty means the
// session that changed last; otherwise any unique ending of a known ID
// matches. Unknown references go to the server unchanged.
func (m *Model) resolveSession(ref string) (string, error) {
	if ref == "" {
		if m.current == "" {
			return "", errors.New("no game yet, challenge someone first")
		}
		return m.current, nil
	}

	var matches []string
	for _, known := range []map[string]session.Snapshot{m.sessions, m.finished} {
		for id := range known {
			if id == ref {
				return id, nil
			}
			if strings.HasSuffix(id, ref) {
				matches = append(matches, id)
			}
		}
	}

	switch len(matches) {
	case 0:
		return ref, nil
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", fmt.Errorf("%q matches %s", ref, strings.Join(matches, ", "))
	}
}

func (m *Model) handleReply(msg replyMsg) {
	if msg.err != nil {
		m.logger.Debug("Request failed", "command", msg.command.Kind, "error", msg.err)
		m.addError(msg.err)
		return
	}
	m.track(msg.session)

	// Other replies are followed by an event describing the change
	if msg.command.Kind == CommandChoose {
		if item, err := rules.ParseItem(msg.command.Argument); err == nil {
			m.AddLogEntry(SuccessStyle.Render(fmt.Sprintf("You locked in %s.", item.Title())))
		}
	}
}

func (m *Model) handleList(msg listMsg) {
	if msg.err != nil {
		m.addError(msg.err)
		return
	}
	m.sessions = make(map[string]session.Snapshot, len(msg.sessions))
	if len(msg.sessions) == 0 {
		m.AddLogEntry(InfoStyle.Render("No live games."))
		return
	}
	for _, snap := range msg.sessions {
		m.track(snap)
		m.AddLogEntry(m.formatter.FormatSnapshot(snap))
	}
}

// track records the latest snapshot of a session and makes it current.
func (m *Model) track(snap session.Snapshot) {
	if snap.ID == "" {
		return
	}
	if snap.Phase.Terminal() {
		delete(m.sessions, snap.ID)
		if snap.Phase == session.Completed {
			m.finished[snap.ID] = snap
		}
	} else {
		m.sessions[snap.ID] = snap
	}
	m.current = snap.ID
}

func (m *Model) addError(err error) {
	var remote *client.RemoteError
	if errors.As(err, &remote) {
		m.AddLogEntry(ErrorStyle.Render(m.formatter.FormatError(session.Code(remote.Code), remote.Message)))
		return
	}
	m.AddLogEntry(ErrorStyle.Render(err.Error()))
}

func eventStyle(kind session.EventType) lipgloss.Style {
	switch kind {
	case session.EventTypeGameCompleted, session.EventTypeChallengeAccepted:
		return SuccessStyle
	case session.EventTypeChallengeDeclined, session.EventTypeChallengeExpired:
		return WarningStyle
	default:
		return lipgloss.NewStyle()
	}
}

// AddLogEntry appends to the game log and scrolls to the bottom.
func (m *Model) AddLogEntry(entry string) {
	m.gameLog = append(m.gameLog, entry)
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))

	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

// Log returns the entries written so far.
func (m *Model) Log() []string {
	return m.gameLog
}

// Current returns the ID of the session that changed last.
func (m *Model) Current() string {
	return m.current
}

// View renders the TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	actionContent := m.renderActionPane()
	actionHeight := lipgloss.Height(actionContent)

	actionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Width(max(m.width-2, 1)).
		Height(max(actionHeight, 1))
	if m.focusedPane == 1 {
		actionStyle = actionStyle.BorderForeground(focusColor)
	}
	actionPane := actionStyle.Render(actionContent)

	sidebarContent := m.renderSidebarPane()
	sidebarWidth := max(lipgloss.Width(sidebarContent), 25)
	paneHeight := max(m.height-actionHeight-4, 1)

	sidebarPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Width(sidebarWidth).
		Height(paneHeight).
		Render(sidebarContent)

	m.logViewport.Width = max(m.width-sidebarWidth-4, 1)
	m.logViewport.Height = paneHeight

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Width(m.logViewport.Width).
		Height(paneHeight)
	if m.focusedPane == 0 {
		logStyle = logStyle.BorderForeground(focusColor)
	}
	logPane := logStyle.Render(m.logViewport.View())

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, logPane, sidebarPane)
	return lipgloss.JoinVertical(lipgloss.Top, topRow, actionPane)
}

// renderSidebarPane lists live sessions, the current one highlighted.
func (m *Model) renderSidebarPane() string {
	var content strings.Builder
	content.WriteString(SidebarTitleStyle.Render(" " + m.player + " "))
	content.WriteString("\n")
	if m.backend.IsConnected() {
		content.WriteString(SuccessStyle.Render("online"))
	} else {
		content.WriteString(ErrorStyle.Render("disconnected"))
	}
	content.WriteString("\n\n")

	if len(m.sessions) == 0 {
		content.WriteString(InfoStyle.Render("No live games"))
		return content.String()
	}

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		snap := m.sessions[id]
		suffix := sessionid.Suffix(id)
		line := fmt.Sprintf("vs %s %s [%s]", snap.Opponent(m.player), snap.Phase, suffix[max(len(suffix)-4, 0):])
		if id == m.current {
			content.WriteString(CurrentSessionStyle.Render("> " + line))
		} else {
			content.WriteString(SessionStyle.Render("  " + line))
		}
		content.WriteString("\n")
	}
	return content.String()
}

func (m *Model) renderActionPane() string {
	var content strings.Builder
	content.WriteString(m.actionInput.View())
	content.WriteString("\n")

	if m.focusedPane == 0 {
		content.WriteString(InfoStyle.Render("Log focused: ↑↓ scroll, PgUp/PgDn half page, Home/End, Tab to input"))
	} else {
		content.WriteString(InfoStyle.Render("Tab to scroll log • Enter to submit • Ctrl+C to quit"))
	}
	return content.String()
}
