package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/classfeed/internal/aggregate"
	"github.com/nhle/classfeed/internal/credential"
	"github.com/nhle/classfeed/internal/logging"
	"github.com/nhle/classfeed/internal/model"
	"github.com/nhle/classfeed/internal/seen"
	"github.com/nhle/classfeed/internal/source/lms"
	"github.com/nhle/classfeed/internal/source/mailbox"
	"github.com/nhle/classfeed/internal/store"
	appsync "github.com/nhle/classfeed/internal/sync"
	"github.com/nhle/classfeed/internal/ui/command"
)

type fakeSecrets map[string]string

func (f fakeSecrets) Get(key string) (string, error) {
	v, ok := f[key]
	if !ok {
		return "", credential.ErrNotFound
	}
	return v, nil
}

func (f fakeSecrets) Set(key, value string) error {
	f[key] = value
	return nil
}

type emptyRunner struct{}

func (emptyRunner) Aggregate(context.Context) aggregate.Result { return aggregate.Result{} }

type countingRunner struct{ calls atomic.Int64 }

func (r *countingRunner) Aggregate(context.Context) aggregate.Result {
	r.calls.Add(1)
	return aggregate.Result{}
}

func newTestModel(t *testing.T, role model.Role) (Model, *seen.Store) {
	t.Helper()
	settings := seen.NewStore(store.NewMemoryStore(), role, logging.Nop())
	m := New(Options{
		Role:     role,
		Secrets:  fakeSecrets{},
		Settings: settings,
		Logger:   logging.Nop(),
	})
	return m, settings
}

func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		out = append(out, drain(c)...)
	}
	return out
}

func TestBuildSourcesRequiresConfiguration(t *testing.T) {
	_, err := BuildSources(model.AppConfig{}, fakeSecrets{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	cfg := model.AppConfig{LMS: model.LMSConfig{BaseURL: "https://lms.example.edu"}}
	_, err = BuildSources(cfg, fakeSecrets{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = BuildSources(cfg, fakeSecrets{credential.KeyLMSToken: ""})
	assert.ErrorIs(t, err, ErrNotConfigured)

	srcs, err := BuildSources(cfg, fakeSecrets{credential.KeyLMSToken: "tok"})
	require.NoError(t, err)
	assert.IsType(t, &lms.Adapter{}, srcs.Global)
	assert.IsType(t, &lms.Adapter{}, srcs.Courses)
}

func TestBuildSourcesMailboxReplacesGlobal(t *testing.T) {
	cfg := model.AppConfig{
		LMS:     model.LMSConfig{BaseURL: "https://lms.example.edu"},
		Mailbox: model.MailboxConfig{Enabled: true, Host: "imap.example.edu", Port: "993"},
	}
	secrets := fakeSecrets{credential.KeyLMSToken: "tok"}

	_, err := BuildSources(cfg, secrets)
	assert.ErrorContains(t, err, "loading mailbox password")

	secrets[credential.KeyMailboxPassword] = "pw"
	srcs, err := BuildSources(cfg, secrets)
	require.NoError(t, err)
	assert.IsType(t, &mailbox.Adapter{}, srcs.Global)
	assert.IsType(t, &lms.Adapter{}, srcs.Courses)
}

func TestNotConfiguredOpensConfig(t *testing.T) {
	m, _ := newTestModel(t, model.RoleLearner)

	next, _ := m.Update(sourcesRegisteredMsg{err: ErrNotConfigured})
	assert.Equal(t, ViewConfig, next.(Model).currentView)
}

func TestForeignFeedMessageIgnored(t *testing.T) {
	m, _ := newTestModel(t, model.RoleLearner)
	m.poller = appsync.New(emptyRunner{}, []model.Category{model.CategoryGlobal})

	next, cmd := m.Update(appsync.FeedLoadedMsg{Generation: 0})
	assert.Nil(t, cmd)
	assert.False(t, next.(Model).feed.Loaded())
}

func TestResetCommandPersists(t *testing.T) {
	ctx := context.Background()
	m, settings := newTestModel(t, model.RoleLearner)

	stored := model.DefaultNotificationSettings()
	stored.SeenMap["global_1"] = time.Now().UnixMilli()
	require.NoError(t, settings.Save(ctx, stored))

	next, _ := m.Update(m.loadSettings()())
	m = next.(Model)
	require.Contains(t, m.feed.State().Settings.SeenMap, "global_1")

	next, cmd := m.Update(command.CommandMsg{Name: command.Reset})
	m = next.(Model)
	assert.Empty(t, m.feed.State().Settings.SeenMap)

	var saved bool
	for _, msg := range drain(cmd) {
		if s, ok := msg.(settingsSavedMsg); ok {
			require.NoError(t, s.err)
			saved = true
		}
	}
	require.True(t, saved)
	assert.Empty(t, settings.Load(ctx).SeenMap)
}

func TestTabCommandRejectsUnavailableTab(t *testing.T) {
	m, _ := newTestModel(t, model.RoleTeacher)

	next, _ := m.Update(command.CommandMsg{Name: command.Tab, Arg: "content"})
	assert.Equal(t, `no "content" tab`, next.(Model).statusMessage)

	next, _ = m.Update(command.CommandMsg{Name: command.Tab, Arg: "course"})
	assert.Empty(t, next.(Model).statusMessage)
}

func TestViewShowsConnectionState(t *testing.T) {
	m, _ := newTestModel(t, model.RoleLearner)
	assert.Equal(t, "Loading...", m.View())

	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	assert.Contains(t, next.(Model).View(), "not connected")
}

func TestReRegistrationStopsReplacedPoller(t *testing.T) {
	m, _ := newTestModel(t, model.RoleLearner)
	categories := []model.Category{model.CategoryGlobal}

	first := &countingRunner{}
	second := &countingRunner{}
	p1 := appsync.New(first, categories, appsync.WithInterval(5*time.Millisecond))
	p2 := appsync.New(second, categories, appsync.WithInterval(time.Hour))

	next, _ := m.Update(sourcesRegisteredMsg{poller: p1})
	require.Eventually(t, func() bool { return first.calls.Load() > 0 }, time.Second, time.Millisecond)

	next, _ = next.(Model).Update(sourcesRegisteredMsg{poller: p2})
	t.Cleanup(p2.Stop)

	// Let a pass that was already in flight finish.
	time.Sleep(20 * time.Millisecond)
	settled := first.calls.Load()
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, settled, first.calls.Load())
	assert.Same(t, p2, next.(Model).poller)
}
