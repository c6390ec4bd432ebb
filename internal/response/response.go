// Package response provides shared plain-text response helpers for HTTP handlers.
package response

import (
	"fmt"
	"net/http"
)

// Text writes message as a text/plain body with the given HTTP status code.
func Text(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}

// BadRequest writes a 400 response.
func BadRequest(w http.ResponseWriter, message string) {
	Text(w, http.StatusBadRequest, message)
}

// Unauthorized writes a 401 basic-auth challenge for realm.
func Unauthorized(w http.ResponseWriter, realm string) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", realm))
	Text(w, http.StatusUnauthorized, "Unauthorized")
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, message string) {
	Text(w, http.StatusNotFound, message)
}

// TooLarge writes a 413 response.
func TooLarge(w http.ResponseWriter, message string) {
	Text(w, http.StatusRequestEntityTooLarge, message)
}

// TooManyRequests writes a 429 response.
func TooManyRequests(w http.ResponseWriter, message string) {
	Text(w, http.StatusTooManyRequests, message)
}

// InternalError writes a 500 response.
func InternalError(w http.ResponseWriter, message string) {
	Text(w, http.StatusInternalServerError, message)
}

// BadGateway writes a 502 response, used when an upstream service fails.
func BadGateway(w http.ResponseWriter, message string) {
	Text(w, http.StatusBadGateway, message)
}
