package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/classfeed/internal/aggregate"
	"github.com/nhle/classfeed/internal/credential"
	"github.com/nhle/classfeed/internal/logging"
	"github.com/nhle/classfeed/internal/metrics"
	"github.com/nhle/classfeed/internal/model"
	"github.com/nhle/classfeed/internal/source"
	"github.com/nhle/classfeed/internal/source/lms"
	"github.com/nhle/classfeed/internal/source/mailbox"
	appsync "github.com/nhle/classfeed/internal/sync"
)

// ErrNotConfigured is returned when the LMS URL or token is missing.
var ErrNotConfigured = errors.New("lms connection not configured")

// Secrets resolves and stores credentials.
type Secrets interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// sourcesRegisteredMsg is sent once sources have been built from the
// configuration. A nil poller means first-run setup is required.
type sourcesRegisteredMsg struct {
	poller *appsync.Poller
	err    error
}

// BuildSources creates the source adapters described by cfg. Credentials
// are loaded from the environment or the system keyring.
func BuildSources(cfg model.AppConfig, secrets Secrets) (source.Sources, error) {
	if cfg.LMS.BaseURL == "" {
		return source.Sources{}, ErrNotConfigured
	}
	token, err := secrets.Get(credential.KeyLMSToken)
	if errors.Is(err, credential.ErrNotFound) || (err == nil && token == "") {
		return source.Sources{}, ErrNotConfigured
	}
	if err != nil {
		return source.Sources{}, fmt.Errorf("loading LMS token: %w", err)
	}

	adapter := lms.NewAdapter(cfg.LMS.BaseURL, token,
		lms.WithTimeout(time.Duration(cfg.LMS.TimeoutSec)*time.Second),
		lms.WithMaxRetries(cfg.LMS.MaxRetries),
	)
	srcs := source.Sources{Global: adapter, Courses: adapter}

	if cfg.Mailbox.Enabled {
		password, err := secrets.Get(credential.KeyMailboxPassword)
		if err != nil {
			return source.Sources{}, fmt.Errorf("loading mailbox password: %w", err)
		}
		srcs.Global = mailbox.NewAdapter(
			cfg.Mailbox.Host,
			cfg.Mailbox.Port,
			cfg.Mailbox.Username,
			password,
			cfg.Mailbox.Folder,
			cfg.Mailbox.TLS,
			cfg.Mailbox.Limit,
		)
	}

	return srcs, nil
}

// ValidateLMS checks that token is accepted by the LMS at baseURL.
func ValidateLMS(ctx context.Context, baseURL, token string) error {
	_, err := lms.NewAdapter(baseURL, token, lms.WithMaxRetries(1)).FetchUserCourses(ctx)
	return err
}

// newPoller wires an aggregator for role to a poller.
func newPoller(
	cfg model.AppConfig,
	role model.Role,
	srcs source.Sources,
	log *logging.Logger,
	fm *metrics.FetchMetrics,
) *appsync.Poller {
	categories := aggregate.CategoriesFor(role)
	agg := aggregate.New(srcs,
		aggregate.WithCategories(categories...),
		aggregate.WithMaxConcurrency(cfg.Feed.MaxConcurrency),
		aggregate.WithMetrics(fm),
		aggregate.WithLogger(log),
	)
	return appsync.New(agg, categories,
		appsync.WithInterval(time.Duration(cfg.Feed.PollIntervalSec)*time.Second),
		appsync.WithFetchTimeout(time.Duration(cfg.Feed.FetchTimeoutSec)*time.Second),
		appsync.WithLogger(log),
	)
}

// registerSources builds the sources and a poller for the current config.
func (m *Model) registerSources() tea.Cmd {
	cfg := m.cfg
	role := m.role
	secrets := m.secrets
	log := m.log
	fm := m.metrics

	return func() tea.Msg {
		srcs, err := BuildSources(cfg, secrets)
		if err != nil {
			log.Warn(context.Background(), "sources not registered", err)
			return sourcesRegisteredMsg{err: err}
		}
		return sourcesRegisteredMsg{poller: newPoller(cfg, role, srcs, log, fm)}
	}
}
