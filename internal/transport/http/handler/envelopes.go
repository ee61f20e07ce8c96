package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-auth-nosql/internal/domain"
)

// Envelope is the body of every response the service writes.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

const msgInternal = "Internal server error"

// publicErrors lists the client-facing error classes in match order with the
// message used when the service attached none.
var publicErrors = []struct {
	err      error
	fallback string
}{
	{domain.ErrValidation, "All fields are required"},
	{domain.ErrConflict, "User already exists"},
	{domain.ErrInvalidCredentials, "Invalid credentials"},
	{domain.ErrInvalidToken, "Invalid or expired token"},
	{domain.ErrNotFound, "User not found"},
	{domain.ErrUnauthorized, "Unauthorized"},
	{domain.ErrRateLimited, "Too many requests, please try again later"},
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, msg string, data interface{}) {
	writeJSON(w, status, Envelope{Success: true, Message: msg, Data: data})
}

// writeError maps err to a status and a public message. Unexpected errors
// are logged and surfaced in the diagnostic field only.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	env := Envelope{Message: publicMessage(err)}
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		env.Error = err.Error()
	}
	writeJSON(w, status, env)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// publicMessage returns the text services put in front of the sentinel
// ("Invalid credentials: invalid credentials" -> "Invalid credentials").
func publicMessage(err error) string {
	for _, pe := range publicErrors {
		if !errors.Is(err, pe.err) {
			continue
		}
		if msg, ok := strings.CutSuffix(err.Error(), ": "+pe.err.Error()); ok && msg != "" {
			return msg
		}
		return pe.fallback
	}
	return msgInternal
}

// decode reads a JSON body into v. A malformed body is a validation error.
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("Invalid request body: %w", domain.ErrValidation)
	}
	return nil
}

// NotFound is the router's fallback for unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, Envelope{Message: "Route " + r.Method + " " + r.URL.Path + " not found"})
}

// MethodNotAllowed is the router's fallback for known routes hit with the
// wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, Envelope{Message: "Method " + r.Method + " not allowed on " + r.URL.Path})
}
