package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/classfeed/internal/model"
)

// AuthError indicates that authentication has failed or expired for a source.
// It is returned by source clients when a 401 or 403 response is received.
type AuthError struct {
	SourceType SourceType
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.SourceType, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// CategoryError records that a whole notification category could not be
// loaded during an aggregation pass.
type CategoryError struct {
	Category model.Category

	// Op names the failing fetch, e.g. "fetch user courses".
	Op  string
	Err error
}

func (e *CategoryError) Error() string {
	return fmt.Sprintf("%s notifications: %s: %v", e.Category, e.Op, e.Err)
}

func (e *CategoryError) Unwrap() error {
	return e.Err
}

// SourceType identifies the kind of backend integration.
type SourceType string

const (
	SourceTypeLMS     SourceType = "lms"
	SourceTypeMailbox SourceType = "mailbox"
)

// GlobalSource provides site-wide announcements.
type GlobalSource interface {
	FetchGlobal(ctx context.Context) ([]RawItem, error)
}

// CourseSource provides everything scoped to the user's enrolled courses.
type CourseSource interface {
	// FetchUserCourses lists the courses the current user is enrolled in
	// (or teaches).
	FetchUserCourses(ctx context.Context) ([]Course, error)

	// FetchCourseAnnouncements lists announcements for one course.
	FetchCourseAnnouncements(ctx context.Context, courseID string) ([]RawItem, error)

	// FetchModules lists published modules for one course.
	FetchModules(ctx context.Context, courseID string) ([]RawModule, error)

	// FetchAssessments lists published assessments for one module.
	FetchAssessments(ctx context.Context, moduleID string) ([]RawAssessment, error)
}

// Sources bundles the adapters an aggregation pass reads from. Global may be
// served by a different backend than Courses.
type Sources struct {
	Global  GlobalSource
	Courses CourseSource
}
