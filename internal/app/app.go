package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/classfeed/internal/feedview"
	"github.com/nhle/classfeed/internal/keys"
	"github.com/nhle/classfeed/internal/logging"
	"github.com/nhle/classfeed/internal/metrics"
	"github.com/nhle/classfeed/internal/model"
	"github.com/nhle/classfeed/internal/seen"
	appsync "github.com/nhle/classfeed/internal/sync"
	"github.com/nhle/classfeed/internal/ui"
	"github.com/nhle/classfeed/internal/ui/command"
	configview "github.com/nhle/classfeed/internal/ui/config"
	"github.com/nhle/classfeed/internal/ui/courses"
	"github.com/nhle/classfeed/internal/ui/detail"
	"github.com/nhle/classfeed/internal/ui/feed"
	helpview "github.com/nhle/classfeed/internal/ui/help"
	settingsview "github.com/nhle/classfeed/internal/ui/settings"
)

const labelRefreshInterval = time.Minute

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewCourse
	ViewSettings
	ViewConfig
	ViewHelp
	ViewCommand
)

// settingsLoadedMsg carries the settings read at mount.
type settingsLoadedMsg struct {
	settings model.NotificationSettings
}

// settingsSavedMsg reports the outcome of a settings write.
type settingsSavedMsg struct {
	err error
}

// labelTickMsg re-evaluates relative time labels.
type labelTickMsg struct{}

// Options holds the collaborators of the root model.
type Options struct {
	Config     model.AppConfig
	ConfigPath string
	Role       model.Role
	Secrets    Secrets
	Settings   *seen.Store
	Logger     *logging.Logger
	Metrics    *metrics.FetchMetrics
}

// Model is the root Bubble Tea model that manages view routing, layout,
// the aggregation poller and settings persistence.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	cfg        model.AppConfig
	configPath string
	role       model.Role
	secrets    Secrets
	settings   *seen.Store
	log        *logging.Logger
	metrics    *metrics.FetchMetrics

	feed         feed.Model
	detail       detail.Model
	courseView   courses.Model
	settingsView settingsview.Model
	configView   configview.Model
	helpView     helpview.Model
	commandView  command.Model

	courseOpen   bool
	settingsOpen bool

	poller           *appsync.Poller
	ready            bool
	authErrorMessage string
	statusMessage    string
}

// New creates the root application model.
func New(opts Options) Model {
	k := keys.DefaultKeyMap()
	role := opts.Role
	if !role.IsValid() {
		role = model.RoleLearner
	}
	state := feedview.New(role, model.DefaultNotificationSettings())

	return Model{
		currentView: ViewList,
		keys:        k,
		cfg:         opts.Config,
		configPath:  opts.ConfigPath,
		role:        role,
		secrets:     opts.Secrets,
		settings:    opts.Settings,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		feed:        feed.New(state, k, 80, 24),
		detail:      detail.New(k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		configView:  configview.New(opts.Config, opts.ConfigPath, opts.Secrets, ValidateLMS, k, 80, 24),
	}
}

// Init loads the persisted settings and registers sources before the
// poller starts.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadSettings(),
		m.registerSources(),
		labelTick(),
	)
}

func labelTick() tea.Cmd {
	return tea.Tick(labelRefreshInterval, func(time.Time) tea.Msg {
		return labelTickMsg{}
	})
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.feed.SetSize(w, h)
		m.detail.SetSize(w, h)
		if m.courseOpen {
			m.courseView.SetSize(w, h)
		}
		if m.settingsOpen {
			m.settingsView.SetSize(w, h)
		}
		m.configView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case settingsLoadedMsg:
		return m, m.feed.SetSettings(msg.settings)

	case settingsSavedMsg:
		if msg.err != nil {
			m.statusMessage = "could not save notification settings"
		}
		return m, nil

	case sourcesRegisteredMsg:
		if msg.poller == nil {
			// First run or missing credentials.
			if errors.Is(msg.err, ErrNotConfigured) {
				return m.openConfig()
			}
			m.statusMessage = fmt.Sprintf("sources unavailable: %v", msg.err)
			return m, nil
		}
		if m.poller != nil && m.poller != msg.poller {
			m.poller.Stop()
		}
		m.poller = msg.poller
		return m, m.poller.Start()

	case appsync.FeedLoadedMsg:
		if m.poller == nil || !m.poller.Owns(msg) {
			return m, nil
		}
		if !m.poller.Accept(msg) {
			return m, m.poller.WaitForNextResult()
		}
		if msg.AuthError != nil {
			m.authErrorMessage = msg.AuthError.Message
		} else {
			m.authErrorMessage = ""
		}
		cmds := []tea.Cmd{m.feed.SetFeed(msg.Result), m.poller.WaitForNextResult()}
		if m.currentView == ViewCourse {
			cmds = append(cmds, m.courseView.SetState(m.feed.State()))
		}
		return m, tea.Batch(cmds...)

	case labelTickMsg:
		cmds := []tea.Cmd{m.feed.Refresh(), labelTick()}
		if m.currentView == ViewCourse {
			cmds = append(cmds, m.courseView.SetState(m.feed.State()))
		}
		return m, tea.Batch(cmds...)

	case feed.ClickedMsg:
		m.previousView = ViewList
		m.currentView = ViewDetail
		m.detail.SetNotification(msg.Notification)
		return m, m.saveSettings(msg.Settings)

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case detail.OpenCourseMsg:
		m.previousView = ViewDetail
		m.currentView = ViewCourse
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.courseOpen = true
		m.courseView = courses.New(
			feedview.NewCourseScreen(msg.CourseID, msg.CourseName),
			m.feed.State(), m.keys, w, h,
		)
		return m, nil

	case courses.BackMsg:
		m.currentView = ViewDetail
		return m, nil

	case settingsview.SavedMsg:
		m.currentView = ViewList
		return m, tea.Batch(m.feed.SetSettings(msg.Settings), m.saveSettings(msg.Settings))

	case settingsview.CancelledMsg:
		m.currentView = ViewList
		return m, nil

	case configview.ConfigDoneMsg:
		m.currentView = ViewList
		return m, nil

	case configview.ConfigSavedMsg:
		m.currentView = ViewList
		m.cfg = msg.Config
		m.authErrorMessage = ""
		if m.poller != nil {
			m.poller.Stop()
			m.poller = nil
		}
		return m, m.registerSources()

	case command.CommandMsg:
		m.currentView = m.previousView
		return m.executeCommand(msg)

	case command.ErrorMsg:
		m.currentView = m.previousView
		m.statusMessage = msg.Err.Error()
		return m, nil

	case tea.KeyMsg:
		// Global keys that work regardless of current view
		switch {
		case msg.String() == "ctrl+c":
			return m.quit()

		case m.currentView == ViewList && msg.String() == "q":
			return m.quit()

		case msg.String() == "?" && m.currentView != ViewSettings &&
			m.currentView != ViewConfig && m.currentView != ViewCommand:
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case m.currentView == ViewHelp && msg.String() == "esc":
			m.currentView = m.previousView
			return m, nil

		case m.currentView == ViewCommand && msg.String() == "esc":
			m.currentView = m.previousView
			return m, nil

		case m.currentView == ViewList && msg.String() == ":":
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.commandView.Focus()

		case m.currentView == ViewList && msg.String() == "c":
			return m.openConfig()

		case m.currentView == ViewList && msg.String() == "s":
			return m.openSettings()

		case m.currentView == ViewList && msg.String() == "r":
			return m.refresh()
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.poller != nil {
		m.poller.Stop()
	}
	return m, tea.Quit
}

func (m Model) refresh() (tea.Model, tea.Cmd) {
	if m.poller == nil {
		return m, m.registerSources()
	}
	return m, m.poller.RefreshAll()
}

func (m Model) openConfig() (tea.Model, tea.Cmd) {
	m.previousView = m.currentView
	m.currentView = ViewConfig
	w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
	if w <= 0 {
		w, h = 80, 24
	}
	m.configView = configview.New(m.cfg, m.configPath, m.secrets, ValidateLMS, m.keys, w, h)
	return m, m.configView.Init()
}

func (m Model) openSettings() (tea.Model, tea.Cmd) {
	m.previousView = m.currentView
	m.currentView = ViewSettings
	w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
	if w <= 0 {
		w, h = 80, 24
	}
	m.settingsOpen = true
	m.settingsView = settingsview.New(m.feed.State().Settings, w, h)
	return m, m.settingsView.Init()
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.feed, cmd = m.feed.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewCourse:
		m.courseView, cmd = m.courseView.Update(msg)
	case ViewSettings:
		m.settingsView, cmd = m.settingsView.Update(msg)
	case ViewConfig:
		m.configView, cmd = m.configView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "classfeed"
	if b := m.feed.State().Badges(time.Now())[feedview.TabAll]; b.Unseen > 0 {
		title = fmt.Sprintf("classfeed [%d new]", b.Unseen)
	}
	header := m.layout.RenderHeader(title, m.syncStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.feed.View()
	case ViewDetail:
		return m.detail.View()
	case ViewCourse:
		return m.courseView.View()
	case ViewSettings:
		return m.settingsView.View()
	case ViewConfig:
		return m.configView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the combined load state.
func (m Model) syncStatus() string {
	if m.poller == nil {
		return "not connected"
	}
	statuses := m.poller.GetStatuses()

	running := 0
	var failed []string
	var last time.Time
	for _, s := range statuses {
		switch s.State {
		case appsync.SyncRunning:
			running++
		case appsync.SyncError:
			failed = append(failed, strings.ToLower(s.Category.Label()))
		}
		if s.LastSync.After(last) {
			last = s.LastSync
		}
	}

	if running > 0 {
		return "loading..."
	}
	if len(failed) > 0 {
		return "⚠ unavailable: " + strings.Join(failed, ", ")
	}
	if last.IsZero() {
		return "idle"
	}
	return "updated " + last.Format("15:04")
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	// Show auth error prominently when present.
	if m.authErrorMessage != "" && m.currentView == ViewList {
		return m.authErrorMessage
	}
	if m.statusMessage != "" && m.currentView == ViewList {
		return m.statusMessage
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewDetail:
		return "esc back | j/k scroll"
	case ViewCourse:
		return "o toggle sort | esc back"
	case ViewSettings, ViewConfig:
		return "enter next | esc cancel"
	default:
		return "q quit | ? help | tab switch | s settings | r refresh | : command"
	}
}

// executeCommand handles a command from the command palette.
func (m Model) executeCommand(cmd command.CommandMsg) (tea.Model, tea.Cmd) {
	m.statusMessage = ""
	switch cmd.Name {
	case command.Refresh:
		return m.refresh()
	case command.Quit:
		return m.quit()
	case command.Configure:
		return m.openConfig()
	case command.Settings:
		return m.openSettings()
	case command.Help:
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil
	case command.Tab:
		tab := feedview.Tab(cmd.Arg)
		c := m.feed.SelectTab(tab)
		if m.feed.State().ActiveTab != tab {
			m.statusMessage = fmt.Sprintf("no %q tab", cmd.Arg)
		}
		return m, c
	case command.Reset:
		next := seen.ResetAll(m.feed.State().Settings)
		return m, tea.Batch(m.feed.SetSettings(next), m.saveSettings(next))
	default:
		return m, nil
	}
}

// loadSettings reads the role's settings from the store.
func (m Model) loadSettings() tea.Cmd {
	store := m.settings
	return func() tea.Msg {
		if store == nil {
			return settingsLoadedMsg{settings: model.DefaultNotificationSettings()}
		}
		return settingsLoadedMsg{settings: store.Load(context.Background())}
	}
}

// saveSettings writes settings back to the store.
func (m Model) saveSettings(settings model.NotificationSettings) tea.Cmd {
	store := m.settings
	log := m.log
	if store == nil {
		return func() tea.Msg { return settingsSavedMsg{} }
	}
	version := store.NextVersion()
	return func() tea.Msg {
		ctx := log.WithRole(context.Background(), string(store.Role()))
		err := store.SaveVersion(ctx, version, settings)
		if err != nil {
			log.Error(ctx, "saving notification settings", err)
		}
		return settingsSavedMsg{err: err}
	}
}
