package matchsvc

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

var (
	// ErrNotConfigured is returned when no service URL is set.
	ErrNotConfigured = errors.New("matching service URL not configured")
	// ErrUnauthorized matches any 401 from the service that survived the
	// refresh-and-retry attempt.
	ErrUnauthorized = errors.New("unauthorized")
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// ServiceError is a non-2xx response from the matching service.
type ServiceError struct {
	Op         string
	StatusCode int
	// Detail is the human-readable reason the service gave, if any.
	Detail string
}

func (e *ServiceError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: service returned %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: service returned %d", e.Op, e.StatusCode)
}

func (e *ServiceError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Detail returns the service-provided reason carried by err, or "".
func Detail(err error) string {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Detail
	}
	return ""
}

// errorBody covers FastAPI errors ({"detail": "..."} or a list of
// validation errors) and RFC 7807 problem documents.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Title  string          `json:"title"`
}

type validationItem struct {
	Msg string `json:"msg"`
	Loc []any  `json:"loc"`
}

func newServiceError(op string, resp *http.Response) *ServiceError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &ServiceError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Detail:     parseDetail(data),
	}
}

func parseDetail(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}

	if len(body.Detail) > 0 {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}

		var items []validationItem
		if err := json.Unmarshal(body.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, item := range items {
				if item.Msg == "" {
					continue
				}
				if field := lastLoc(item.Loc); field != "" {
					msgs = append(msgs, field+": "+item.Msg)
				} else {
					msgs = append(msgs, item.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}

	return strings.TrimSpace(body.Title)
}

func lastLoc(loc []any) string {
	if len(loc) == 0 {
		return ""
	}
	if s, ok := loc[len(loc)-1].(string); ok && s != "body" {
		return s
	}
	return ""
}
