package lms

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nhle/classfeed/internal/source"
)

// Adapter implements source.GlobalSource and source.CourseSource on top of
// the LMS REST API.
type Adapter struct {
	client *Client
}

var (
	_ source.GlobalSource = (*Adapter)(nil)
	_ source.CourseSource = (*Adapter)(nil)
)

// NewAdapter creates a new LMS source adapter.
func NewAdapter(baseURL, token string, opts ...ClientOption) *Adapter {
	return &Adapter{client: NewClient(baseURL, token, opts...)}
}

// Type returns the source type identifier for the LMS.
func (a *Adapter) Type() source.SourceType {
	return source.SourceTypeLMS
}

// FetchGlobal lists site-wide announcements.
func (a *Adapter) FetchGlobal(ctx context.Context) ([]source.RawItem, error) {
	var items []source.RawItem
	if err := a.client.GetList(ctx, "/api/announcements/global", &items); err != nil {
		return nil, fmt.Errorf("fetching global announcements: %w", err)
	}
	return items, nil
}

// FetchUserCourses lists the current user's courses.
func (a *Adapter) FetchUserCourses(ctx context.Context) ([]source.Course, error) {
	var courses []source.Course
	if err := a.client.GetList(ctx, "/api/users/me/courses", &courses); err != nil {
		return nil, fmt.Errorf("fetching user courses: %w", err)
	}
	return courses, nil
}

// FetchCourseAnnouncements lists announcements for a single course.
func (a *Adapter) FetchCourseAnnouncements(
	ctx context.Context,
	courseID string,
) ([]source.RawItem, error) {
	path := fmt.Sprintf("/api/courses/%s/announcements", url.PathEscape(courseID))

	var items []source.RawItem
	if err := a.client.GetList(ctx, path, &items); err != nil {
		return nil, fmt.Errorf("fetching announcements for course %s: %w", courseID, err)
	}
	return items, nil
}

// FetchModules lists published modules of a course.
func (a *Adapter) FetchModules(
	ctx context.Context,
	courseID string,
) ([]source.RawModule, error) {
	path := fmt.Sprintf("/api/courses/%s/modules", url.PathEscape(courseID))

	var modules []source.RawModule
	if err := a.client.GetList(ctx, path, &modules); err != nil {
		return nil, fmt.Errorf("fetching modules for course %s: %w", courseID, err)
	}
	return modules, nil
}

// FetchAssessments lists published assessments of a module.
func (a *Adapter) FetchAssessments(
	ctx context.Context,
	moduleID string,
) ([]source.RawAssessment, error) {
	path := fmt.Sprintf("/api/modules/%s/assessments", url.PathEscape(moduleID))

	var assessments []source.RawAssessment
	if err := a.client.GetList(ctx, path, &assessments); err != nil {
		return nil, fmt.Errorf("fetching assessments for module %s: %w", moduleID, err)
	}
	return assessments, nil
}
