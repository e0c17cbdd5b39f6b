package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/classfeed/internal/metrics"
	"github.com/nhle/classfeed/internal/model"
	"github.com/nhle/classfeed/internal/source"
)

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func item(id string, age time.Duration) source.RawItem {
	return source.RawItem{
		ID:        source.Scalar(id),
		Title:     "item " + id,
		CreatedAt: source.Scalar(now.Add(-age).Format(time.RFC3339)),
	}
}

type fakeGlobal struct {
	items []source.RawItem
	err   error
}

func (f fakeGlobal) FetchGlobal(context.Context) ([]source.RawItem, error) {
	return f.items, f.err
}

type fakeCourses struct {
	courses     []source.Course
	coursesErr  error
	announce    map[string][]source.RawItem
	announceErr map[string]error
	modules     map[string][]source.RawModule
	modulesErr  map[string]error
	assess      map[string][]source.RawAssessment
	assessErr   map[string]error

	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakeCourses) enter() func() {
	n := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeCourses) FetchUserCourses(context.Context) ([]source.Course, error) {
	return f.courses, f.coursesErr
}

func (f *fakeCourses) FetchCourseAnnouncements(_ context.Context, id string) ([]source.RawItem, error) {
	defer f.enter()()
	return f.announce[id], f.announceErr[id]
}

func (f *fakeCourses) FetchModules(_ context.Context, id string) ([]source.RawModule, error) {
	defer f.enter()()
	return f.modules[id], f.modulesErr[id]
}

func (f *fakeCourses) FetchAssessments(_ context.Context, id string) ([]source.RawAssessment, error) {
	defer f.enter()()
	return f.assess[id], f.assessErr[id]
}

func fullFixture() (fakeGlobal, *fakeCourses) {
	g := fakeGlobal{items: []source.RawItem{item("1", time.Hour), item("2", 2*time.Hour)}}
	c := &fakeCourses{
		courses: []source.Course{{ID: "c1", Name: "Algebra"}, {ID: "c2", Name: "Biology"}},
		announce: map[string][]source.RawItem{
			"c1": {item("10", time.Hour)},
			"c2": {item("20", time.Hour), item("21", time.Hour)},
		},
		modules: map[string][]source.RawModule{
			"c1": {{RawItem: item("m1", time.Hour)}},
			"c2": {{RawItem: item("m2", time.Hour)}, {RawItem: item("m3", time.Hour)}},
		},
		assess: map[string][]source.RawAssessment{
			"m1": {{RawItem: item("a1", time.Hour)}},
			"m2": {{RawItem: item("a2", time.Hour)}, {RawItem: item("a3", time.Hour)}},
		},
	}
	return g, c
}

func ids(items []model.Notification) []string {
	out := make([]string, 0, len(items))
	for _, n := range items {
		out = append(out, n.ID)
	}
	return out
}

func TestAggregateAllCategories(t *testing.T) {
	g, c := fullFixture()
	res := New(source.Sources{Global: g, Courses: c}, WithClock(clock)).Aggregate(context.Background())

	assert.NotEmpty(t, res.PassID)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)

	assert.ElementsMatch(t, []string{"global_1", "global_2"}, ids(res.ByCategory[model.CategoryGlobal]))
	assert.ElementsMatch(t, []string{"course_10", "course_20", "course_21"}, ids(res.ByCategory[model.CategoryCourse]))
	assert.ElementsMatch(t, []string{"module_m1", "module_m2", "module_m3"}, ids(res.ByCategory[model.CategoryModule]))
	assert.ElementsMatch(t, []string{"assessment_a1", "assessment_a2", "assessment_a3"}, ids(res.ByCategory[model.CategoryAssessment]))

	all := res.Items()
	assert.Len(t, all, 11)
	unique := map[string]bool{}
	for _, n := range all {
		unique[n.ID] = true
	}
	assert.Len(t, unique, 11)

	for _, n := range res.ByCategory[model.CategoryCourse] {
		if n.ID == "course_20" {
			assert.Equal(t, "Biology", n.CourseName)
		}
	}
	for _, n := range res.ByCategory[model.CategoryAssessment] {
		if n.ID == "assessment_a2" {
			assert.Equal(t, "m2", n.SourceRef["module_id"])
			assert.Equal(t, "c2", n.CourseID)
		}
	}
}

func TestAggregateGlobalFailureIsolated(t *testing.T) {
	g := fakeGlobal{err: errors.New("503")}
	_, c := fullFixture()

	res := New(source.Sources{Global: g, Courses: c}, WithClock(clock)).Aggregate(context.Background())

	require.Error(t, res.Err(model.CategoryGlobal))
	var ce *source.CategoryError
	require.ErrorAs(t, res.Err(model.CategoryGlobal), &ce)
	assert.Equal(t, model.CategoryGlobal, ce.Category)

	assert.NotNil(t, res.ByCategory[model.CategoryGlobal])
	assert.Empty(t, res.ByCategory[model.CategoryGlobal])
	assert.Len(t, res.ByCategory[model.CategoryCourse], 3)
	assert.NoError(t, res.Err(model.CategoryCourse))
}

func TestAggregateCourseListFailureFailsTree(t *testing.T) {
	g, c := fullFixture()
	c.coursesErr = &source.AuthError{SourceType: source.SourceTypeLMS, Message: "expired"}

	res := New(source.Sources{Global: g, Courses: c}, WithClock(clock)).Aggregate(context.Background())

	assert.Len(t, res.ByCategory[model.CategoryGlobal], 2)
	for _, cat := range []model.Category{model.CategoryCourse, model.CategoryModule, model.CategoryAssessment} {
		err := res.Err(cat)
		require.Error(t, err, cat)
		assert.True(t, source.IsAuthError(err), cat)
		assert.Empty(t, res.ByCategory[cat])
	}
}

func TestAggregatePartialCourseFailureIsWarning(t *testing.T) {
	g, c := fullFixture()
	c.announceErr = map[string]error{"c1": errors.New("timeout")}

	res := New(source.Sources{Global: g, Courses: c}, WithClock(clock)).Aggregate(context.Background())

	assert.NoError(t, res.Err(model.CategoryCourse))
	require.Error(t, res.Warnings[model.CategoryCourse])
	assert.Contains(t, res.Warnings[model.CategoryCourse].Error(), "course c1")
	assert.ElementsMatch(t, []string{"course_20", "course_21"}, ids(res.ByCategory[model.CategoryCourse]))
}

func TestAggregateAllBranchesFailedIsError(t *testing.T) {
	g, c := fullFixture()
	c.announceErr = map[string]error{"c1": errors.New("a"), "c2": errors.New("b")}

	res := New(source.Sources{Global: g, Courses: c}, WithClock(clock)).Aggregate(context.Background())

	err := res.Err(model.CategoryCourse)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "course c1")
	assert.Contains(t, err.Error(), "course c2")
	assert.Empty(t, res.ByCategory[model.CategoryCourse])
}

func TestAggregateAssessmentFailureKeepsModule(t *testing.T) {
	g, c := fullFixture()
	c.assessErr = map[string]error{"m2": errors.New("boom")}

	res := New(source.Sources{Global: g, Courses: c}, WithClock(clock)).Aggregate(context.Background())

	assert.Len(t, res.ByCategory[model.CategoryModule], 3)
	assert.NoError(t, res.Err(model.CategoryAssessment))
	assert.Error(t, res.Warnings[model.CategoryAssessment])
	assert.ElementsMatch(t, []string{"assessment_a1"}, ids(res.ByCategory[model.CategoryAssessment]))
}

func TestAggregateModulesFailedFailsAssessments(t *testing.T) {
	g, c := fullFixture()
	c.modulesErr = map[string]error{"c1": errors.New("x"), "c2": errors.New("y")}

	res := New(source.Sources{Global: g, Courses: c}, WithClock(clock)).Aggregate(context.Background())

	assert.Error(t, res.Err(model.CategoryModule))
	assert.Error(t, res.Err(model.CategoryAssessment))
	assert.Len(t, res.ByCategory[model.CategoryCourse], 3)
}

func TestAggregateTeacherCategories(t *testing.T) {
	g, c := fullFixture()

	res := New(
		source.Sources{Global: g, Courses: c},
		WithClock(clock),
		WithCategories(CategoriesFor(model.RoleTeacher)...),
	).Aggregate(context.Background())

	assert.Len(t, res.ByCategory, 2)
	assert.NotContains(t, res.ByCategory, model.CategoryModule)
	assert.NotContains(t, res.ByCategory, model.CategoryAssessment)
}

func TestAggregateDeduplicatesIDs(t *testing.T) {
	g := fakeGlobal{items: []source.RawItem{item("1", time.Hour), item("1", 2*time.Hour)}}

	res := New(source.Sources{Global: g}, WithClock(clock), WithCategories(model.CategoryGlobal)).
		Aggregate(context.Background())

	require.Len(t, res.ByCategory[model.CategoryGlobal], 1)
	assert.True(t, now.Add(-time.Hour).Equal(res.ByCategory[model.CategoryGlobal][0].CreatedAt))
}

func TestAggregateMissingSources(t *testing.T) {
	res := New(source.Sources{}, WithClock(clock)).Aggregate(context.Background())

	assert.Len(t, res.Errors, 4)
	assert.Empty(t, res.Items())
}

func TestAggregateBoundsConcurrency(t *testing.T) {
	c := &fakeCourses{delay: 5 * time.Millisecond, announce: map[string][]source.RawItem{}}
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("c%d", i)
		c.courses = append(c.courses, source.Course{ID: source.Scalar(id)})
		c.announce[id] = []source.RawItem{item("x"+id, time.Hour)}
	}

	res := New(
		source.Sources{Courses: c},
		WithClock(clock),
		WithCategories(model.CategoryCourse),
		WithMaxConcurrency(3),
	).Aggregate(context.Background())

	assert.Len(t, res.ByCategory[model.CategoryCourse], 20)
	assert.LessOrEqual(t, c.peak.Load(), int32(3))
}

func TestAggregateRecordsMetrics(t *testing.T) {
	g := fakeGlobal{err: errors.New("down")}
	_, c := fullFixture()
	reg := prometheus.NewRegistry()

	New(source.Sources{Global: g, Courses: c}, WithClock(clock), WithMetrics(metrics.NewFetchMetrics(reg))).
		Aggregate(context.Background())

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["classfeed_fetch_failure_total"])
	assert.True(t, names["classfeed_fetch_success_total"])
	assert.True(t, names["classfeed_fetch_duration_seconds"])
}

// blockingGlobal waits for cancellation before failing.
type blockingGlobal struct{}

func (blockingGlobal) FetchGlobal(ctx context.Context) ([]source.RawItem, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAggregateCancelledStillReturns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New(source.Sources{Global: blockingGlobal{}}, WithCategories(model.CategoryGlobal)).Aggregate(ctx)

	assert.ErrorIs(t, res.Err(model.CategoryGlobal), context.Canceled)
}
