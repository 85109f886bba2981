package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prn-tf/inkwell/internal/auth"
	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/repository"
	"github.com/prn-tf/inkwell/internal/service"
)

// =============================================================================
// Errors
// =============================================================================

// APIError is the JSON error body.
type APIError struct {
	Code       string             `json:"code"`
	Message    string             `json:"message"`
	Field      string             `json:"field,omitempty"`
	Violations []domain.Violation `json:"violations,omitempty"`
	RequestID  string             `json:"requestId,omitempty"`
}

// statusOf maps an error kind to its HTTP status and code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidSession),
		errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrUserInactive),
		errors.Is(err, auth.ErrInsufficientRole):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_FAILED"
	case errors.Is(err, repository.ErrLockNotAcquired):
		return http.StatusTooManyRequests, "BUSY"
	case errors.Is(err, domain.ErrStoreUnavailable),
		errors.Is(err, repository.ErrCacheUnavailable):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// writeError writes err as JSON. Internal errors are logged and their detail withheld.
func writeError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	status, code := statusOf(err)
	body := APIError{
		Code:      code,
		Message:   err.Error(),
		RequestID: middleware.GetReqID(r.Context()),
	}

	switch status {
	case http.StatusInternalServerError:
		logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", body.RequestID).
			Msg("request failed")
		body.Message = "internal server error"
	case http.StatusServiceUnavailable:
		logger.Warn().Err(err).Str("path", r.URL.Path).Msg("dependency unavailable")
	case http.StatusBadRequest:
		body.Field = domain.FieldOf(err)
		body.Violations = domain.ViolationsOf(err)
	case http.StatusConflict:
		body.Field = domain.FieldOf(err)
	}

	writeJSON(w, status, map[string]APIError{"error": body})
}

// badRequest builds a validation error for malformed input.
func badRequest(field, message string) error {
	return domain.Invalid("Request", domain.Violation{Field: field, Message: message})
}

// =============================================================================
// Encoding
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// decode reads a JSON body into v, rejecting unknown fields and trailing data.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return badRequest("body", fmt.Sprintf("exceeds %d bytes", maxErr.Limit))
		}
		return badRequest("body", "invalid JSON: "+err.Error())
	}
	if dec.More() {
		return badRequest("body", "unexpected data after JSON object")
	}
	return nil
}

// =============================================================================
// Request parameters
// =============================================================================

func pathID(r *http.Request, name string) domain.ID {
	return domain.ID(chi.URLParam(r, name))
}

// parsePagination reads page, limit, search, searchFields and sort from the query string.
// sort is a comma-separated list of field or field:asc|desc; a leading '-' means descending.
func parsePagination(r *http.Request) (query.Pagination, error) {
	q := r.URL.Query()
	var p query.Pagination

	for name, dst := range map[string]*int{"page": &p.Page, "limit": &p.Limit} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, badRequest(name, "must be an integer")
		}
		*dst = n
	}

	p.Search = strings.TrimSpace(q.Get("search"))
	if raw := q.Get("searchFields"); raw != "" {
		p.SearchFields = splitList(raw)
	}

	for _, item := range splitList(q.Get("sort")) {
		key := query.OrderBy(item)
		if field, dir, ok := strings.Cut(item, ":"); ok {
			key = query.SortKey{Field: field, Direction: query.Direction(strings.ToLower(dir))}
		} else if strings.HasPrefix(item, "-") {
			key = query.OrderByDesc(strings.TrimPrefix(item, "-"))
		}
		p.Sort = append(p.Sort, key)
	}
	return p, nil
}

// wantsPagination reports whether the client asked for a paginated shape.
func wantsPagination(r *http.Request) bool {
	q := r.URL.Query()
	for _, k := range []string{"page", "limit", "search", "sort"} {
		if q.Has(k) {
			return true
		}
	}
	return false
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
