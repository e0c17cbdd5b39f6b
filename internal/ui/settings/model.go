package settings

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/classfeed/internal/model"
	"github.com/nhle/classfeed/internal/seen"
)

// SavedMsg carries the settings produced by a completed form. The parent
// persists them.
type SavedMsg struct {
	Settings model.NotificationSettings
}

// CancelledMsg signals the form was dismissed without changes.
type CancelledMsg struct{}

// PersistDayChoices are the retention windows offered in the form.
var PersistDayChoices = []int{model.PersistDaysDisabled, 1, 3, 7, 14, 30}

// values lives on the heap so huh's field bindings survive the value
// copies bubbletea makes of Model.
type values struct {
	persistDays    int
	showTimeLabels bool
	reset          bool
}

// Model is the notification settings form.
type Model struct {
	base   model.NotificationSettings
	values *values
	form   *huh.Form
	width  int
	height int
}

// New builds the form pre-filled from current.
func New(current model.NotificationSettings, width, height int) Model {
	v := &values{
		persistDays:    current.PersistDays,
		showTimeLabels: current.ShowTimeLabels,
	}
	m := Model{base: current, values: v, width: width, height: height}
	m.form = m.buildForm()
	return m
}

func persistDaysLabel(days int) string {
	if days == model.PersistDaysDisabled {
		return "Off (show everything, no new indicators)"
	}
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

func (m Model) buildForm() *huh.Form {
	opts := make([]huh.Option[int], 0, len(PersistDayChoices)+1)
	known := false
	for _, d := range PersistDayChoices {
		opts = append(opts, huh.NewOption(persistDaysLabel(d), d))
		known = known || d == m.values.persistDays
	}
	if !known {
		opts = append(opts, huh.NewOption(persistDaysLabel(m.values.persistDays), m.values.persistDays))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Keep notifications for").
				Description("Older items are hidden and never marked new").
				Options(opts...).
				Value(&m.values.persistDays),
			huh.NewConfirm().
				Title("Time labels").
				Description("Show relative ages instead of dates").
				Affirmative("Relative").
				Negative("Absolute").
				Value(&m.values.showTimeLabels),
			huh.NewConfirm().
				Title("Reset new indicators").
				Description("Mark every notification as unseen again").
				Affirmative("Reset").
				Negative("Keep").
				Value(&m.values.reset),
		),
	).WithWidth(m.formWidth()).WithShowHelp(true)
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update forwards input to the form and emits SavedMsg or CancelledMsg
// when it finishes.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		next, err := m.Apply()
		if err != nil {
			return m, func() tea.Msg { return CancelledMsg{} }
		}
		return m, func() tea.Msg { return SavedMsg{Settings: next} }
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelledMsg{} }
	}

	return m, cmd
}

// Apply derives the new settings from the form values.
func (m Model) Apply() (model.NotificationSettings, error) {
	next, err := seen.SetPersistDays(m.base, m.values.persistDays)
	if err != nil {
		return m.base, err
	}
	next = seen.SetShowTimeLabels(next, m.values.showTimeLabels)
	if m.values.reset {
		next = seen.ResetAll(next)
	}
	return next, nil
}

// View renders the form.
func (m Model) View() string {
	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(m.form.View())
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.form = m.form.WithWidth(m.formWidth())
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}
