package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/classfeed/internal/aggregate"
	"github.com/nhle/classfeed/internal/logging"
	"github.com/nhle/classfeed/internal/model"
	"github.com/nhle/classfeed/internal/source"
)

// SyncState represents the current state of a category's last load.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the sync state for a single notification category.
type SyncStatus struct {
	Category model.Category
	State    SyncState
	LastSync time.Time
	Error    error
}

// FeedLoadedMsg is a tea.Msg sent when an aggregation pass completes.
// Hosts must pass it through Poller.Accept before applying it.
type FeedLoadedMsg struct {
	Generation uint64
	Result     aggregate.Result
	AuthError  *AuthErrorMsg

	from *Poller
}

// AuthErrorMsg describes a category whose credentials were rejected.
type AuthErrorMsg struct {
	Category model.Category
	Message  string
}

// Runner performs one aggregation pass.
type Runner interface {
	Aggregate(ctx context.Context) aggregate.Result
}

const (
	defaultInterval     = 5 * time.Minute
	defaultFetchTimeout = 30 * time.Second
)

// Option customizes a Poller.
type Option func(*Poller)

// WithInterval sets the time between scheduled passes.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithFetchTimeout bounds a single pass.
func WithFetchTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.fetchTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Poller) {
		p.log = l
	}
}

// Poller schedules aggregation passes. Every pass gets a new generation and
// its own context; starting a pass cancels the previous one, and results
// from a superseded generation are never delivered as current.
type Poller struct {
	runner       Runner
	interval     time.Duration
	fetchTimeout time.Duration
	log          *logging.Logger

	statuses  map[model.Category]*SyncStatus
	resultCh  chan FeedLoadedMsg
	triggerCh chan struct{}
	stopCh    chan struct{}

	mu         gosync.Mutex
	running    bool
	generation uint64
	cancel     context.CancelFunc
}

// New creates a Poller that runs runner for the given categories.
func New(runner Runner, categories []model.Category, opts ...Option) *Poller {
	p := &Poller{
		runner:       runner,
		interval:     defaultInterval,
		fetchTimeout: defaultFetchTimeout,
		statuses:     make(map[model.Category]*SyncStatus, len(categories)),
		resultCh:     make(chan FeedLoadedMsg, 4),
		triggerCh:    make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
	}
	for _, c := range categories {
		p.statuses[c] = &SyncStatus{Category: c, State: SyncIdle}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start returns a tea.Cmd that starts the polling goroutine and
// subscribes to results. The first pass runs immediately.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()

	return p.waitForResult()
}

// Stop cancels any in-flight pass and halts polling. Results still in
// transit become stale.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.generation++
	p.running = false
}

// RefreshAll triggers an immediate pass, superseding any in flight.
func (p *Poller) RefreshAll() tea.Cmd {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A refresh is already queued.
	}
	return nil
}

// Generation returns the generation of the most recent pass.
func (p *Poller) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// Accept reports whether msg was produced by this poller's current
// generation.
func (p *Poller) Accept(msg FeedLoadedMsg) bool {
	return p.Owns(msg) && msg.Generation == p.Generation()
}

// Owns reports whether msg was produced by this poller, current or not.
// Hosts keep listening only for messages they own.
func (p *Poller) Owns(msg FeedLoadedMsg) bool {
	return msg.from == p
}

// GetStatuses returns the current sync status of every category.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.statuses))
	for _, c := range model.Categories {
		if s, ok := p.statuses[c]; ok {
			statuses = append(statuses, *s)
		}
	}
	return statuses
}

func (p *Poller) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.startPass()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.startPass()
		case <-p.triggerCh:
			p.startPass()
		}
	}
}

// startPass bumps the generation, cancels the previous pass and runs a new
// one in the background.
func (p *Poller) startPass() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.generation++
	gen := p.generation
	ctx, cancel := context.WithTimeout(context.Background(), p.fetchTimeout)
	p.cancel = cancel
	for _, s := range p.statuses {
		s.State = SyncRunning
	}
	p.mu.Unlock()

	go p.runPass(ctx, cancel, gen)
}

func (p *Poller) runPass(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer cancel()

	res := p.runner.Aggregate(ctx)

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		p.log.Debug(p.log.WithPassID(context.Background(), res.PassID),
			fmt.Sprintf("discarding stale aggregation pass (generation %d)", gen))
		return
	}
	now := time.Now()
	var authMsg *AuthErrorMsg
	for c, s := range p.statuses {
		err := res.Err(c)
		s.Error = err
		if err != nil {
			s.State = SyncError
			if authMsg == nil && source.IsAuthError(err) {
				authMsg = &AuthErrorMsg{
					Category: c,
					Message: fmt.Sprintf(
						"%s: authentication expired. Press 'c' to reconfigure.",
						c.Label(),
					),
				}
			}
			continue
		}
		s.State = SyncIdle
		s.LastSync = now
	}
	p.mu.Unlock()

	p.sendResult(FeedLoadedMsg{Generation: gen, Result: res, AuthError: authMsg, from: p})
}

// sendResult delivers msg, dropping the oldest queued result if the
// channel is full so the newest generation always gets through.
func (p *Poller) sendResult(msg FeedLoadedMsg) {
	for {
		select {
		case p.resultCh <- msg:
			return
		default:
		}
		select {
		case <-p.resultCh:
		default:
		}
	}
}

// waitForResult returns a tea.Cmd that waits for the next result.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next pass result.
// Call it after handling a FeedLoadedMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
