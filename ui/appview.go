package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"moochat/api"
	"moochat/config"
	"moochat/mcp"
	"moochat/session"
	"moochat/settings"
	"moochat/storage"
)

// Deps are the long-lived services the chat view works with.
// Store may be nil when the local cache could not be opened.
type Deps struct {
	Config   *config.Config
	Client   *api.Client
	Store    *storage.TranscriptStore
	Settings *settings.Service
	Version  string
}

type overlay int

const (
	overlayNone overlay = iota
	overlayModels
	overlayConversations
	overlaySearch
	overlayHelp
	overlayAck
)

type AppView struct {
	ctx  context.Context
	stop context.CancelFunc

	cfg      *config.Config
	client   *api.Client
	store    *storage.TranscriptStore
	settings *settings.Service
	ctrl     *session.Controller
	registry *mcp.Registry
	version  string

	states        *feed[session.State]
	settingsFeed  *feed[settings.State]
	unsubSettings func()

	// latest snapshots received through the feeds
	state  session.State
	modals settings.State

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	// rendered markdown keyed by message id, valid for renderWidth
	rendered    map[string]string
	renderQueue map[string]bool
	renderWidth int

	overlay      overlay
	picker       picker
	searchInput  textinput.Model
	searchActive bool

	ackTitle string
	ackMsg   string
	ackType  ackKind

	keyModal apiKeyModal
	mcpModal mcpModal

	status      string
	statusError bool
	statusSeq   int
}

// NewAppView wires a controller and MCP registry to the given services.
func NewAppView(deps Deps) AppView {
	ctx, stop := context.WithCancel(context.Background())

	settingsSvc := deps.Settings
	if settingsSvc == nil {
		settingsSvc = settings.NewService()
	}

	states := newFeed[session.State]()
	settingsFeed := newFeed[settings.State]()
	unsub := settingsSvc.Subscribe(settingsFeed.publish)

	store := deps.Store
	opts := []session.Option{
		session.WithObserver(states.publish),
		session.WithKeyPrompter(settingsSvc),
		session.WithModel(deps.Config.DefaultModel),
		session.WithFlags(deps.Config.Reasoning, deps.Config.ToolCalling),
	}
	var ctrl *session.Controller
	opts = append(opts, session.WithConversationsChanged(func() {
		go func() {
			if err := ctrl.RefreshConversations(ctx); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[UI] failed to refresh conversations: %v", err)
			}
		}()
	}))
	if store != nil {
		opts = append(opts,
			session.WithRecorder(store),
			session.WithNavigate(func(id string) {
				if err := store.SetCurrentConversation(id); err != nil && config.DebugLog != nil {
					config.DebugLog.Printf("[UI] failed to remember conversation: %v", err)
				}
			}),
		)
	}
	ctrl = session.New(deps.Client, opts...)

	ta := textarea.New()
	ta.Placeholder = "Type your message here (Alt+Enter for a new line)..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))
	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accentColor)

	si := textinput.New()
	si.Prompt = "Search: "
	si.CharLimit = 128

	return AppView{
		ctx:           ctx,
		stop:          stop,
		cfg:           deps.Config,
		client:        deps.Client,
		store:         store,
		settings:      settingsSvc,
		ctrl:          ctrl,
		registry:      mcp.NewRegistry(deps.Client),
		version:       deps.Version,
		states:        states,
		settingsFeed:  settingsFeed,
		unsubSettings: unsub,
		state:         ctrl.Snapshot(),
		viewport:      viewport.New(0, 0),
		textarea:      ta,
		spinner:       sp,
		rendered:      make(map[string]string),
		renderQueue:   make(map[string]bool),
		searchInput:   si,
		keyModal:      newAPIKeyModal(),
		mcpModal:      newMCPModal(),
	}
}

// Run starts the full-screen chat.
func Run(deps Deps) error {
	app := NewAppView(deps)
	defer app.shutdown()

	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (a AppView) shutdown() {
	a.ctrl.Cancel()
	a.stop()
	if a.unsubSettings != nil {
		a.unsubSettings()
	}
}

func (a AppView) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		a.spinner.Tick,
		a.waitForState(),
		a.waitForSettings(),
		a.bootstrapCmd(),
		a.refreshMCPCmd(),
	)
}

func (a AppView) contentWidth() int {
	if a.width <= 0 {
		return 80
	}
	return a.width
}

// layout sizes the viewport around the input and status lines.
func (a *AppView) layout() {
	a.textarea.SetWidth(a.width)
	inputHeight := a.textarea.Height() + 1
	statusHeight := 2
	a.viewport.Width = a.width
	a.viewport.Height = max(a.height-inputHeight-statusHeight, 1)
}

func (a *AppView) refreshViewport() {
	atBottom := a.viewport.AtBottom() || a.state.Loading
	a.viewport.SetContent(a.renderTranscript())
	if atBottom {
		a.viewport.GotoBottom()
	}
}

func (a AppView) View() string {
	if !a.ready {
		return "Loading..."
	}

	switch a.modals.Active() {
	case settings.ModalAPIKeys:
		return a.renderAPIKeyModal(a.width, a.height)
	case settings.ModalMCPConfigs:
		return a.renderMCPModal(a.width, a.height)
	}

	switch a.overlay {
	case overlayModels, overlayConversations:
		return a.picker.View(a.width, a.height)
	case overlaySearch:
		return a.renderSearch(a.width, a.height)
	case overlayHelp:
		return a.renderHelpModal(a.width, a.height)
	case overlayAck:
		return renderAckModal(a.ackTitle, a.ackMsg, a.ackType, a.width, a.height)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		a.viewport.View(),
		a.renderStatusBar(),
		a.textarea.View(),
		a.renderFooter(),
	)
}

func (a AppView) renderStatusBar() string {
	s := a.state
	title := s.Title
	if title == "" {
		title = "New conversation"
	}
	modelName := "no model"
	if s.Model.ID != "" {
		modelName = s.Model.DisplayName
	}

	var flags []string
	if s.Reasoning {
		flags = append(flags, "reasoning")
	}
	if s.ToolCalling {
		flags = append(flags, "tools")
	}

	left := TitleStyle.Render(truncate(title, a.width/2)) + DimStyle.Render(" · "+modelName)
	if len(flags) > 0 {
		left += DimStyle.Render(" [" + strings.Join(flags, ",") + "]")
	}
	if s.Phase != session.PhaseIdle {
		left += " " + a.spinner.View() + DimStyle.Render(s.Phase.String())
	}

	right := ""
	if a.status != "" {
		style := StatusStyle
		if a.statusError {
			style = ErrorStyle
		}
		right = style.Render(truncate(a.status, max(a.width-lipgloss.Width(left)-2, 0)))
	}

	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}

func (a AppView) renderFooter() string {
	if _, blocked := a.state.PendingToolUse(); blocked {
		return HelpStyle.Render(FormatFooter("y", "Approve tool", "n", "Reject tool", "Alt+H", "Help"))
	}
	if a.state.Loading {
		return HelpStyle.Render(FormatFooter("Esc", "Cancel", "Alt+H", "Help"))
	}
	return HelpStyle.Render(FormatFooter("Enter", "Send", "Alt+M", "Model", "Alt+S", "Chats", "Alt+K", "Keys", "Alt+H", "Help"))
}

func (a AppView) renderSearch(width, height int) string {
	if a.searchActive {
		return a.picker.View(width, height)
	}
	modalWidth := min(70, max(width-10, 20))
	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Foreground(accentColor).Width(modalWidth).Align(lipgloss.Center).Render("Search cached messages"),
		"",
		a.searchInput.View(),
		"",
		HelpStyle.Render(FormatFooter("Enter", "Search", "Esc", "Close")),
	)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

func (a *AppView) setStatus(text string, isErr bool) tea.Cmd {
	a.status = text
	a.statusError = isErr
	a.statusSeq++
	return clearStatusAfter(a.statusSeq)
}

func (a *AppView) showAck(title, msg string, t ackKind) {
	a.overlay = overlayAck
	a.ackTitle = title
	a.ackMsg = msg
	a.ackType = t
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	if api.IsUnauthorized(err) {
		return "session expired, run `moochat login`"
	}
	return fmt.Sprint(err)
}
