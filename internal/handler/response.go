package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON / writeError so the API has one
// success shape and one error shape:
//
//	{"error": "not_found", "message": "snippet not found with id ..."}
//
// The frontend can always rely on those two fields, whatever the status.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/codevault/codevault/internal/apperror"
	"github.com/codevault/codevault/internal/auth"
)

// defaultBodyLimit caps JSON bodies for everything except uploads.
const defaultBodyLimit = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// successResponse is returned by updates and deletes, which have nothing
// else to say. Acting on a row the caller does not own also lands here.
var successResponse = map[string]bool{"success": true}

// jsonNull is an explicit null body; writeJSON skips the body for a nil value.
var jsonNull = json.RawMessage("null")

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorStatus maps a domain error to its HTTP status and error type.
//
// errors.Is walks the whole chain, so a service error like
// fmt.Errorf("creating snippet: %w", apperror.NotFound(...)) still maps to 404.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, apperror.ErrUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError sends err in the standard shape. Server-side failures are
// logged with their cause; the client only ever sees the public message.
func writeError(w http.ResponseWriter, err error) {
	status, errorType := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: apperror.PublicMessage(err),
	})
}

// decodeJSON reads exactly one JSON object from the body into dst. Unknown
// fields and trailing data are rejected so typos surface as 400s.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("body",
				fmt.Sprintf("request body must be %d bytes or less", maxErr.Limit))
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body is required")
		default:
			return apperror.ValidationFailed("body", "invalid JSON body: "+err.Error())
		}
	}
	if dec.More() {
		return apperror.ValidationFailed("body", "request body must contain a single JSON object")
	}
	return nil
}

// idParam reads a path parameter that must be a well-formed id.
func idParam(r *http.Request, name string) (string, error) {
	return parseID(name, chi.URLParam(r, name))
}

// optionalIDQuery reads a query parameter that, when present, must be an id.
func optionalIDQuery(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", nil
	}
	return parseID(name, v)
}

// optionalIDField validates an id taken from a JSON body; nil passes.
func optionalIDField(name string, v *string) error {
	if v == nil {
		return nil
	}
	_, err := parseID(name, *v)
	return err
}

func parseID(name, v string) (string, error) {
	if _, err := xid.FromString(v); err != nil {
		return "", apperror.ValidationFailed(name, name+" is not a valid id")
	}
	return v, nil
}

// positiveIntParam reads a path parameter that must be an integer >= 1 and
// fit the 32-bit INTEGER columns it is stored in.
func positiveIntParam(r *http.Request, name string) (int, error) {
	n, err := strconv.ParseInt(chi.URLParam(r, name), 10, 32)
	if err != nil || n < 1 {
		return 0, apperror.ValidationFailed(name, name+" must be a positive integer")
	}
	return int(n), nil
}

// callerID returns the authenticated user. RequireAuth guarantees it on
// protected routes; the check keeps a mis-wired route from running unscoped.
func callerID(r *http.Request) (string, error) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok || userID == "" {
		return "", apperror.Unauthorized("Please login (10001)")
	}
	return userID, nil
}
