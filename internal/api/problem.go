package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/hyperengineering/grantscan/internal/archive"
	"github.com/hyperengineering/grantscan/internal/matchsvc"
	"github.com/hyperengineering/grantscan/internal/profile"
	"github.com/hyperengineering/grantscan/internal/scan"
	"github.com/hyperengineering/grantscan/internal/validation"
	"github.com/hyperengineering/grantscan/internal/wizard"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

type problemType struct {
	typeURI string
	title   string
}

// problemTypes maps HTTP status codes to RFC 7807 type URIs and titles.
var problemTypes = map[int]problemType{
	http.StatusUnauthorized:        {"https://grantscan.dev/errors/unauthorized", "Unauthorized"},
	http.StatusBadRequest:          {"https://grantscan.dev/errors/bad-request", "Bad Request"},
	http.StatusNotFound:            {"https://grantscan.dev/errors/not-found", "Not Found"},
	http.StatusConflict:            {"https://grantscan.dev/errors/conflict", "Conflict"},
	http.StatusUnprocessableEntity: {"https://grantscan.dev/errors/validation-error", "Validation Error"},
	http.StatusInternalServerError: {"https://grantscan.dev/errors/internal-error", "Internal Server Error"},
	http.StatusBadGateway:          {"https://grantscan.dev/errors/upstream-error", "Bad Gateway"},
	http.StatusServiceUnavailable:  {"https://grantscan.dev/errors/service-unavailable", "Service Unavailable"},
	http.StatusGatewayTimeout:      {"https://grantscan.dev/errors/upstream-timeout", "Gateway Timeout"},
}

func lookupProblemType(status int) problemType {
	if pt, ok := problemTypes[status]; ok {
		return pt
	}
	return problemType{typeURI: "https://grantscan.dev/errors/unknown", title: http.StatusText(status)}
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	pt := lookupProblemType(status)
	writeProblemBody(w, status, Problem{
		Type:     pt.typeURI,
		Title:    pt.title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}

// ProblemWithErrors extends Problem with validation error details.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// WriteProblemWithErrors writes a 422 Problem Details response with field errors.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, detail string, errs []validation.ValidationError) {
	pt := lookupProblemType(http.StatusUnprocessableEntity)
	writeProblemBody(w, http.StatusUnprocessableEntity, ProblemWithErrors{
		Problem: Problem{
			Type:     pt.typeURI,
			Title:    pt.title,
			Status:   http.StatusUnprocessableEntity,
			Detail:   detail,
			Instance: r.URL.Path,
		},
		Errors: errs,
	})
}

func writeProblemBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// MapError converts domain errors to Problem Details responses.
func MapError(w http.ResponseWriter, r *http.Request, err error) {
	var verr validation.ValidationError
	var serr *matchsvc.ServiceError

	switch {
	case errors.As(err, &verr):
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{verr})
	case errors.Is(err, profile.ErrUnknownField):
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, wizard.ErrStepOutOfRange):
		WriteProblem(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, scan.ErrSuperseded):
		WriteProblem(w, r, http.StatusConflict, "Scan superseded by a newer request")
	case errors.Is(err, matchsvc.ErrNotConfigured), errors.Is(err, archive.ErrNotConfigured):
		WriteProblem(w, r, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		WriteProblem(w, r, http.StatusGatewayTimeout, "Matching service timed out")
	case errors.As(err, &serr):
		if serr.StatusCode == http.StatusNotFound {
			WriteProblem(w, r, http.StatusNotFound, matchsvc.Detail(err))
			return
		}
		WriteProblem(w, r, http.StatusBadGateway, matchsvc.Detail(err))
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		// Never expose internal error details to client
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
