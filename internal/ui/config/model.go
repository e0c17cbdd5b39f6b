package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/classfeed/internal/credential"
	"github.com/nhle/classfeed/internal/keys"
	"github.com/nhle/classfeed/internal/model"
	"github.com/nhle/classfeed/internal/theme"
)

// ConfigMode represents the current state of the configuration view.
type ConfigMode int

const (
	ModeForm           ConfigMode = iota // Editing connection settings
	ModeValidating                       // Testing connection
	ModeValidateResult                   // Show validation failure
)

const validateTimeout = 20 * time.Second

// ConfigDoneMsg signals the config view should close without changes.
type ConfigDoneMsg struct{}

// ConfigSavedMsg signals the configuration and credentials were stored.
// The parent should rebuild its sources from Config.
type ConfigSavedMsg struct {
	Config model.AppConfig
}

// ValidateResultMsg carries the result of a connection validation attempt.
type ValidateResultMsg struct {
	Err error
}

// ValidateFunc checks that the LMS accepts token at baseURL.
type ValidateFunc func(ctx context.Context, baseURL, token string) error

// SecretStore stores credentials.
type SecretStore interface {
	Set(key, value string) error
}

// formValues lives on the heap so huh's bindings survive Model copies.
type formValues struct {
	baseURL         string
	token           string
	mailboxEnabled  bool
	mailboxHost     string
	mailboxPort     string
	mailboxUser     string
	mailboxPassword string
	mailboxTLS      bool
}

// Model is the Bubble Tea model for the connection settings screen.
type Model struct {
	mode       ConfigMode
	cfg        model.AppConfig
	configPath string
	secrets    SecretStore
	validate   ValidateFunc

	form    *huh.Form
	values  *formValues
	spinner spinner.Model

	validError error
	statusMsg  string

	keys          *keys.KeyMap
	width, height int
}

// New creates a configuration view pre-filled from cfg.
func New(
	cfg model.AppConfig,
	configPath string,
	secrets SecretStore,
	validate ValidateFunc,
	k *keys.KeyMap,
	width, height int,
) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		mode:       ModeForm,
		cfg:        cfg,
		configPath: configPath,
		secrets:    secrets,
		validate:   validate,
		values: &formValues{
			baseURL:        cfg.LMS.BaseURL,
			mailboxEnabled: cfg.Mailbox.Enabled,
			mailboxHost:    cfg.Mailbox.Host,
			mailboxPort:    cfg.Mailbox.Port,
			mailboxUser:    cfg.Mailbox.Username,
			mailboxTLS:     cfg.Mailbox.TLS,
		},
		spinner: sp,
		keys:    k,
		width:   width,
		height:  height,
	}
	m.form = m.buildForm()
	return m
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ValidateResultMsg:
		if msg.Err != nil {
			m.validError = msg.Err
			m.mode = ModeValidateResult
			return m, nil
		}
		return m.save()

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeValidating:
			if key.Matches(msg, m.keys.Back) {
				m.mode = ModeForm
				m.form = m.buildForm()
				return m, m.form.Init()
			}
			return m, nil
		case ModeValidateResult:
			return m.handleValidateResultKeys(msg)
		}
	}

	return m.updateForm(msg)
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m.startValidation()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return ConfigDoneMsg{} }
	}

	return m, cmd
}

func (m Model) handleValidateResultKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case msg.String() == "r":
		return m.startValidation()
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Select):
		m.mode = ModeForm
		m.form = m.buildForm()
		return m, m.form.Init()
	}
	return m, nil
}

func (m Model) startValidation() (Model, tea.Cmd) {
	m.mode = ModeValidating
	m.validError = nil

	validate := m.validate
	baseURL := strings.TrimSpace(m.values.baseURL)
	token := strings.TrimSpace(m.values.token)

	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		if validate == nil {
			return ValidateResultMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), validateTimeout)
		defer cancel()
		return ValidateResultMsg{Err: validate(ctx, baseURL, token)}
	})
}

// save stores the secrets in the keyring and writes the config file.
func (m Model) save() (Model, tea.Cmd) {
	cfg, err := m.apply()
	if err != nil {
		m.validError = err
		m.mode = ModeValidateResult
		return m, nil
	}
	m.cfg = cfg
	m.statusMsg = "Connection settings saved"
	return m, func() tea.Msg { return ConfigSavedMsg{Config: cfg} }
}

func (m Model) apply() (model.AppConfig, error) {
	v := m.values
	cfg := m.cfg
	cfg.LMS.BaseURL = strings.TrimSpace(v.baseURL)
	cfg.Mailbox.Enabled = v.mailboxEnabled
	if v.mailboxEnabled {
		cfg.Mailbox.Host = strings.TrimSpace(v.mailboxHost)
		cfg.Mailbox.Port = strings.TrimSpace(v.mailboxPort)
		cfg.Mailbox.Username = strings.TrimSpace(v.mailboxUser)
		cfg.Mailbox.TLS = v.mailboxTLS
	}

	if err := m.secrets.Set(credential.KeyLMSToken, strings.TrimSpace(v.token)); err != nil {
		return cfg, fmt.Errorf("saving LMS token: %w", err)
	}
	if v.mailboxEnabled && v.mailboxPassword != "" {
		if err := m.secrets.Set(credential.KeyMailboxPassword, v.mailboxPassword); err != nil {
			return cfg, fmt.Errorf("saving mailbox password: %w", err)
		}
	}
	if err := model.SaveConfig(m.configPath, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (m Model) buildForm() *huh.Form {
	v := m.values
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("LMS URL").
				Description("Base URL of the course platform API").
				Placeholder("https://lms.example.edu").
				Value(&v.baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Access Token").
				Description("Personal API token for the LMS").
				EchoMode(huh.EchoModePassword).
				Value(&v.token).
				Validate(validateRequired("Token")),
			huh.NewConfirm().
				Title("Mailbox announcements").
				Description("Read site-wide announcements from an IMAP folder").
				Affirmative("Yes").
				Negative("No").
				Value(&v.mailboxEnabled),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Host").
				Placeholder("imap.example.edu").
				Value(&v.mailboxHost).
				Validate(validateRequired("IMAP Host")),
			huh.NewInput().
				Title("IMAP Port").
				Placeholder("993").
				Value(&v.mailboxPort).
				Validate(validatePort),
			huh.NewInput().
				Title("Username").
				Value(&v.mailboxUser).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				Description("Leave empty to keep the stored password").
				EchoMode(huh.EchoModePassword).
				Value(&v.mailboxPassword),
			huh.NewConfirm().
				Title("Use TLS").
				Affirmative("Yes").
				Negative("No").
				Value(&v.mailboxTLS),
		).WithHideFunc(func() bool { return !v.mailboxEnabled }),
	).WithWidth(m.formWidth())
}

// View renders the configuration view for the current mode.
func (m Model) View() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	switch m.mode {
	case ModeValidating:
		return style.Render(fmt.Sprintf(
			"%s Testing connection...\n\nPress esc to cancel.",
			m.spinner.View(),
		))

	case ModeValidateResult:
		errStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorRed)
		msg := "unknown error"
		if m.validError != nil {
			msg = m.validError.Error()
		}
		return style.Render(errStyle.Render("Connection failed") + "\n\n" +
			msg + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("r retry | enter/esc edit"))
	}

	return style.Render(m.form.View())
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.form = m.form.WithWidth(m.formWidth())
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

// --- Validators ---

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("URL is required")
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("must be an http(s) URL")
	}
	return nil
}

func validatePort(s string) error {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return errors.New("must be a port between 1 and 65535")
	}
	return nil
}
