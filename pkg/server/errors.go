package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/vango-dev/derive/internal/errors"
)

// statusFor maps a coded error to an HTTP status.
func statusFor(err error) int {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return http.StatusInternalServerError
	}

	switch e.Code {
	case errors.CodeUnknownNode, errors.CodeSnapshotNotFound:
		return http.StatusNotFound
	case errors.CodeDestroyed:
		return http.StatusGone
	case errors.CodeUnsupportedWrite, errors.CodeUnsupportedRead, errors.CodeSnapshotMismatch:
		return http.StatusConflict
	case errors.CodeSelfReference, errors.CodeComputePanic:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeError writes err as a JSON error object.
func writeError(w http.ResponseWriter, err error) {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		e = &errors.Error{Message: err.Error()}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	_, _ = w.Write([]byte(e.FormatJSON()))
}

// badRequest writes a plain 400 error.
func badRequest(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
