package source

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Scalar is a loosely typed JSON value. Backends disagree on whether ids
// and timestamps are strings or numbers, so both are accepted and kept in
// their textual form. A null or absent value is the empty string.
type Scalar string

// UnmarshalJSON accepts a string, number, bool or null.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*s = Scalar(num.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	*s = Scalar(strconv.FormatBool(b))
	return nil
}

// String returns the trimmed textual value.
func (s Scalar) String() string {
	return strings.TrimSpace(string(s))
}

// IsZero reports whether the value is absent or blank.
func (s Scalar) IsZero() bool {
	return s.String() == ""
}

// Course is an enrolled course as returned by the course listing.
type Course struct {
	ID   Scalar `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// RawItem is the tolerant shape shared by every category. Only ID, a title
// and a timestamp are meaningful; all fields may be missing.
type RawItem struct {
	ID Scalar `json:"id"`

	Title   string `json:"title"`
	Name    string `json:"name"`
	Subject string `json:"subject"`

	Message     string `json:"message"`
	Content     string `json:"content"`
	Body        string `json:"body"`
	Description string `json:"description"`

	CreatedAtCamel   Scalar `json:"createdAt"`
	CreatedAt        Scalar `json:"created_at"`
	PublishedAt      Scalar `json:"published_at"`
	PublishedAtCamel Scalar `json:"publishedAt"`
	Date             Scalar `json:"date"`

	CourseID   Scalar `json:"course_id"`
	CourseName string `json:"course_name"`
}

// Timestamps returns the candidate creation timestamps in priority order.
func (r RawItem) Timestamps() []Scalar {
	return []Scalar{
		r.CreatedAtCamel,
		r.CreatedAt,
		r.PublishedAt,
		r.PublishedAtCamel,
		r.Date,
	}
}

// RawModule is a published course module.
type RawModule struct {
	RawItem
}

// RawAssessment is a published assessment inside a module.
type RawAssessment struct {
	RawItem
	ModuleID Scalar `json:"module_id"`
	DueDate  Scalar `json:"due_date"`
}
