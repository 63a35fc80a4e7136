// Package response provides shared JSON response helpers for HTTP handlers.
//
// Every success body is {"data": ...} and every failure body is
// {"error": {"code": ..., "message": ...}}. Clients branch on the stable
// machine-readable code; the message is for humans and may change.
package response

import (
	"encoding/json"
	"net/http"
)

// Stable error codes carried in the error envelope.
const (
	CodeAuth             = "auth"
	CodeValidation       = "validation"
	CodeNotFound         = "not_found"
	CodeInvalidRecord    = "invalid_record"
	CodeStorageError     = "storage_error"
	CodeStoreUnreachable = "store_unreachable"
)

// Envelope wraps every successful response.
type Envelope struct {
	Data interface{} `json:"data"`
}

// ErrorBody is the payload inside a failure envelope.
type ErrorBody struct {
	Code    string `json:"code" example:"validation"`
	Message string `json:"message" example:"filename is required"`
}

// ErrorEnvelope wraps every failure response.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// JSON writes a JSON-encoded payload with the given HTTP status code.
func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// OK writes a 200 response with data.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, Envelope{Data: data})
}

// Created writes a 201 response with data.
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, Envelope{Data: data})
}

// Error writes a failure envelope with the given status, code and message.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorEnvelope{Error: ErrorBody{Code: code, Message: message}})
}

// BadRequest writes a 400 validation error.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, CodeValidation, message)
}

// Unauthorized writes a 401 auth error.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, CodeAuth, message)
}

// Forbidden writes a 403 auth error.
func Forbidden(w http.ResponseWriter, message string) {
	Error(w, http.StatusForbidden, CodeAuth, message)
}

// NotFound writes a 404 not_found error.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, CodeNotFound, message)
}

// Conflict writes a 409 validation error.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, CodeValidation, message)
}
