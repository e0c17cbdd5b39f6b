// Package aggregate runs one notification aggregation pass: it fans out to
// every source concurrently, normalizes what comes back, and reports a
// per-category outcome so that one failing backend never hides the others.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	"github.com/nhle/classfeed/internal/logging"
	"github.com/nhle/classfeed/internal/metrics"
	"github.com/nhle/classfeed/internal/model"
	"github.com/nhle/classfeed/internal/normalize"
	"github.com/nhle/classfeed/internal/source"
)

// DefaultMaxConcurrency bounds each fan-out level when no option is given.
const DefaultMaxConcurrency = 8

var errNoSource = errors.New("no source configured")

// Result is the outcome of one aggregation pass.
type Result struct {
	// PassID correlates log lines of one pass.
	PassID string

	// ByCategory holds the normalized items of every requested category.
	// A failed category maps to an empty slice.
	ByCategory map[model.Category][]model.Notification

	// Errors holds a *source.CategoryError for each category that could
	// not be loaded at all.
	Errors map[model.Category]error

	// Warnings holds combined errors of individual branches (one course,
	// one module) that failed while their siblings succeeded.
	Warnings map[model.Category]error
}

// Items flattens every category into one slice. Order is unspecified.
func (r Result) Items() []model.Notification {
	var n int
	for _, items := range r.ByCategory {
		n += len(items)
	}
	out := make([]model.Notification, 0, n)
	for _, c := range model.Categories {
		out = append(out, r.ByCategory[c]...)
	}
	return out
}

// Err returns the error recorded for category, if any.
func (r Result) Err(category model.Category) error {
	return r.Errors[category]
}

// Aggregator fetches and normalizes notifications from Sources.
type Aggregator struct {
	sources        source.Sources
	categories     map[model.Category]bool
	maxConcurrency int
	metrics        *metrics.FetchMetrics
	log            *logging.Logger
	now            func() time.Time
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithCategories restricts the pass to the given categories.
func WithCategories(categories ...model.Category) Option {
	return func(a *Aggregator) {
		a.categories = make(map[model.Category]bool, len(categories))
		for _, c := range categories {
			a.categories[c] = true
		}
	}
}

// WithMaxConcurrency bounds the number of concurrent fetches per level.
func WithMaxConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxConcurrency = n
		}
	}
}

// WithMetrics records fetch outcomes.
func WithMetrics(m *metrics.FetchMetrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Aggregator) {
		a.log = l
	}
}

// WithClock overrides the time source used for undated items.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// CategoriesFor returns the categories aggregated for role. Teachers do not
// see module and assessment publications.
func CategoriesFor(role model.Role) []model.Category {
	if role == model.RoleTeacher {
		return []model.Category{model.CategoryGlobal, model.CategoryCourse}
	}
	return model.Categories
}

// New creates an Aggregator over sources. All categories are requested
// unless WithCategories says otherwise.
func New(sources source.Sources, opts ...Option) *Aggregator {
	a := &Aggregator{
		sources:        sources,
		maxConcurrency: DefaultMaxConcurrency,
		now:            time.Now,
	}
	WithCategories(model.Categories...)(a)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// outcome is what one category resolved to.
type outcome struct {
	items []model.Notification
	err   error
	warn  error
}

// Aggregate runs a pass. It always returns a Result; a cancelled context
// surfaces as category errors.
func (a *Aggregator) Aggregate(ctx context.Context) Result {
	res := Result{
		PassID:     uuid.New().String(),
		ByCategory: make(map[model.Category][]model.Notification),
		Errors:     make(map[model.Category]error),
		Warnings:   make(map[model.Category]error),
	}
	ctx = a.log.WithPassID(ctx, res.PassID)
	started := a.now()
	a.log.Debug(ctx, "aggregation pass started")

	var (
		global   outcome
		tree     map[model.Category]outcome
		top      = pool.New().WithMaxGoroutines(2)
		wantTree = a.categories[model.CategoryCourse] ||
			a.categories[model.CategoryModule] ||
			a.categories[model.CategoryAssessment]
	)

	if a.categories[model.CategoryGlobal] {
		top.Go(func() {
			global = a.fetchGlobal(ctx, started)
			a.record(model.CategoryGlobal, started, global.err)
		})
	}
	if wantTree {
		top.Go(func() {
			tree = a.fetchCourseTree(ctx, started)
		})
	}
	top.Wait()

	outcomes := map[model.Category]outcome{}
	if a.categories[model.CategoryGlobal] {
		outcomes[model.CategoryGlobal] = global
	}
	for c, o := range tree {
		if a.categories[c] {
			outcomes[c] = o
		}
	}

	seen := make(map[string]bool)
	for _, c := range model.Categories {
		o, ok := outcomes[c]
		if !ok {
			continue
		}

		items := make([]model.Notification, 0, len(o.items))
		var dupes int
		for _, n := range o.items {
			if seen[n.ID] {
				dupes++
				continue
			}
			seen[n.ID] = true
			items = append(items, n)
		}
		res.ByCategory[c] = items

		cctx := a.log.WithField(ctx, "category", string(c))
		if dupes > 0 {
			a.log.Warn(cctx, fmt.Sprintf("dropped %d duplicate notification ids", dupes), nil)
		}
		if o.err != nil {
			res.Errors[c] = o.err
			a.log.Error(cctx, "notification category failed", o.err)
		}
		if o.warn != nil {
			res.Warnings[c] = o.warn
			a.log.Warn(cctx, "some notification branches failed", o.warn)
		}
	}

	a.log.Debug(ctx, fmt.Sprintf("aggregation pass finished with %d items", len(res.Items())))
	return res
}

func (a *Aggregator) record(c model.Category, started time.Time, err error) {
	a.metrics.ObserveDuration(string(c), a.now().Sub(started))
	if err != nil {
		a.metrics.IncFailure(string(c))
		return
	}
	a.metrics.IncSuccess(string(c))
}

func categoryErr(c model.Category, op string, err error) error {
	return &source.CategoryError{Category: c, Op: op, Err: err}
}

func (a *Aggregator) fetchGlobal(ctx context.Context, now time.Time) outcome {
	if a.sources.Global == nil {
		return outcome{err: categoryErr(model.CategoryGlobal, "fetch global announcements", errNoSource)}
	}

	raw, err := a.sources.Global.FetchGlobal(ctx)
	if err != nil {
		return outcome{err: categoryErr(model.CategoryGlobal, "fetch global announcements", err)}
	}

	items := make([]model.Notification, 0, len(raw))
	for i, r := range raw {
		items = append(items, normalize.Normalize(r, model.CategoryGlobal, normalize.Context{Index: i, Now: now}))
	}
	return outcome{items: items}
}

// branch is the result of one nested fetch (one course or one module).
type branch struct {
	items   []model.Notification
	modules []moduleRef
	err     error
}

// moduleRef identifies a fetched module so its assessments can be loaded.
type moduleRef struct {
	id     string
	course source.Course
}

func (a *Aggregator) fetchCourseTree(ctx context.Context, now time.Time) map[model.Category]outcome {
	out := make(map[model.Category]outcome, 3)
	wantCourse := a.categories[model.CategoryCourse]
	wantModules := a.categories[model.CategoryModule] || a.categories[model.CategoryAssessment]

	fail := func(op string, err error, categories ...model.Category) {
		for _, c := range categories {
			if a.categories[c] {
				out[c] = outcome{err: categoryErr(c, op, err)}
				a.record(c, now, out[c].err)
			}
		}
	}

	if a.sources.Courses == nil {
		fail("fetch user courses", errNoSource,
			model.CategoryCourse, model.CategoryModule, model.CategoryAssessment)
		return out
	}

	courses, err := a.sources.Courses.FetchUserCourses(ctx)
	if err != nil {
		fail("fetch user courses", err,
			model.CategoryCourse, model.CategoryModule, model.CategoryAssessment)
		return out
	}
	index := normalize.CourseIndex(courses)

	var announcements, modules, assessments outcome
	level := pool.New().WithMaxGoroutines(2)
	if wantCourse {
		level.Go(func() {
			announcements = a.fetchAnnouncements(ctx, courses, index, now)
			a.record(model.CategoryCourse, now, announcements.err)
		})
	}
	if wantModules {
		level.Go(func() {
			modules, assessments = a.fetchModules(ctx, courses, index, now)
			if a.categories[model.CategoryModule] {
				a.record(model.CategoryModule, now, modules.err)
			}
			if a.categories[model.CategoryAssessment] {
				a.record(model.CategoryAssessment, now, assessments.err)
			}
		})
	}
	level.Wait()

	if wantCourse {
		out[model.CategoryCourse] = announcements
	}
	if wantModules {
		out[model.CategoryModule] = modules
		out[model.CategoryAssessment] = assessments
	}
	return out
}

func (a *Aggregator) fetchAnnouncements(
	ctx context.Context,
	courses []source.Course,
	index map[string]string,
	now time.Time,
) outcome {
	p := pool.NewWithResults[branch]().WithMaxGoroutines(a.maxConcurrency)
	for _, course := range courses {
		p.Go(func() branch {
			id := course.ID.String()
			raw, err := a.sources.Courses.FetchCourseAnnouncements(ctx, id)
			if err != nil {
				return branch{err: fmt.Errorf("course %s: %w", id, err)}
			}
			items := make([]model.Notification, 0, len(raw))
			for i, r := range raw {
				items = append(items, normalize.Normalize(r, model.CategoryCourse, normalize.Context{
					Index:      i,
					Parent:     id,
					CourseID:   id,
					CourseName: course.Name,
					Courses:    index,
					Now:        now,
				}))
			}
			return branch{items: items}
		})
	}
	return collect(model.CategoryCourse, "fetch course announcements", p.Wait())
}

// fetchModules loads every course's modules, then every module's
// assessments. A failed assessment fetch never removes its module.
func (a *Aggregator) fetchModules(
	ctx context.Context,
	courses []source.Course,
	index map[string]string,
	now time.Time,
) (modules, assessments outcome) {
	mp := pool.NewWithResults[branch]().WithMaxGoroutines(a.maxConcurrency)
	for _, course := range courses {
		mp.Go(func() branch {
			id := course.ID.String()
			raw, err := a.sources.Courses.FetchModules(ctx, id)
			if err != nil {
				return branch{err: fmt.Errorf("course %s: %w", id, err)}
			}
			b := branch{items: make([]model.Notification, 0, len(raw))}
			for i, r := range raw {
				b.items = append(b.items, normalize.Module(r, normalize.Context{
					Index:      i,
					Parent:     id,
					CourseID:   id,
					CourseName: course.Name,
					Courses:    index,
					Now:        now,
				}))
				if moduleID := r.ID.String(); moduleID != "" {
					b.modules = append(b.modules, moduleRef{id: moduleID, course: course})
				}
			}
			return b
		})
	}
	moduleBranches := mp.Wait()
	modules = collect(model.CategoryModule, "fetch course modules", moduleBranches)

	if !a.categories[model.CategoryAssessment] {
		return modules, outcome{}
	}
	if modules.err != nil {
		var ce *source.CategoryError
		errors.As(modules.err, &ce)
		return modules, outcome{err: categoryErr(model.CategoryAssessment, ce.Op, ce.Err)}
	}

	ap := pool.NewWithResults[branch]().WithMaxGoroutines(a.maxConcurrency)
	for _, b := range moduleBranches {
		for _, ref := range b.modules {
			ap.Go(func() branch {
				raw, err := a.sources.Courses.FetchAssessments(ctx, ref.id)
				if err != nil {
					return branch{err: fmt.Errorf("module %s: %w", ref.id, err)}
				}
				courseID := ref.course.ID.String()
				items := make([]model.Notification, 0, len(raw))
				for i, r := range raw {
					items = append(items, normalize.Assessment(r, normalize.Context{
						Index:      i,
						Parent:     ref.id,
						CourseID:   courseID,
						CourseName: ref.course.Name,
						Courses:    index,
						Now:        now,
					}))
				}
				return branch{items: items}
			})
		}
	}
	assessments = collect(model.CategoryAssessment, "fetch module assessments", ap.Wait())
	return modules, assessments
}

// collect merges branch results. The category fails only when every branch
// failed; otherwise branch errors become a warning.
func collect(c model.Category, op string, branches []branch) outcome {
	var (
		o      outcome
		errs   []error
		failed int
	)
	for _, b := range branches {
		if b.err != nil {
			failed++
			errs = append(errs, b.err)
			continue
		}
		o.items = append(o.items, b.items...)
	}

	if failed == 0 {
		return o
	}
	combined := multierr.Combine(errs...)
	if failed == len(branches) {
		return outcome{err: categoryErr(c, op, combined)}
	}
	o.warn = combined
	return o
}
