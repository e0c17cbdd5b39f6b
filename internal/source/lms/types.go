package lms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// envelope is the wrapped list form some LMS deployments return.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// ErrorResponse is the error body returned by the LMS API.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// Text flattens the error body into a single line.
func (e ErrorResponse) Text() string {
	parts := make([]string, 0, 2+len(e.Errors))
	for _, p := range append([]string{e.Error, e.Message}, e.Errors...) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "; ")
}

// decodeList unmarshals a bare JSON array or a {"data": [...]} envelope.
// An empty body or a null payload yields an empty list.
func decodeList(body []byte, result interface{}) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil
	}

	switch body[0] {
	case '[':
		return json.Unmarshal(body, result)
	case '{':
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return err
		}
		data := bytes.TrimSpace(env.Data)
		if len(data) == 0 || bytes.Equal(data, []byte("null")) {
			return nil
		}
		return json.Unmarshal(data, result)
	default:
		return fmt.Errorf("expected JSON list or envelope, got %q", truncate(body, 32))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
