package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/roach88/dynaquery/internal/dqerr"
)

// JSONResponse is the envelope every route answers with.
type JSONResponse struct {
	Result any        `json:"result"`
	Error  *errorBody `json:"error,omitempty"`
	Ok     bool       `json:"ok"`

	status int
	err    error
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// badRequest marks transport-level input errors (malformed body, bad
// path parameter).
type badRequest struct {
	err error
}

func (e *badRequest) Error() string { return e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

// NewJSONResponse returns a success envelope for value, or an error
// envelope with the status err maps to.
func NewJSONResponse(value any, err error) *JSONResponse {
	if err != nil {
		return errorResponse(err)
	}
	return &JSONResponse{Result: value, Ok: true, status: http.StatusOK}
}

// StatusFor maps an error to its HTTP status:
//
//	schema and client errors: 400
//	not found:                404
//	backend grammar errors:   422
//	everything else:          500
func StatusFor(err error) int {
	var br *badRequest
	if errors.As(err, &br) {
		return http.StatusBadRequest
	}
	var de *dqerr.Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}
	switch de.Code.Category() {
	case dqerr.CategorySchema, dqerr.CategoryClient:
		return http.StatusBadRequest
	case dqerr.CategoryNotFound:
		return http.StatusNotFound
	case dqerr.CategoryBackend:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func errorResponse(err error) *JSONResponse {
	status := StatusFor(err)
	body := &errorBody{Code: "INTERNAL", Message: "internal error"}

	var br *badRequest
	var de *dqerr.Error
	switch {
	case errors.As(err, &br):
		body = &errorBody{Code: "BAD_REQUEST", Message: br.Error()}
	case errors.As(err, &de) && status != http.StatusInternalServerError:
		body = &errorBody{Code: string(de.Code), Message: de.Message, Details: de.Details()}
	}
	return &JSONResponse{Error: body, Ok: false, status: status, err: err}
}

// Write encodes the envelope.
func (r *JSONResponse) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(r.status)
	json.NewEncoder(w).Encode(r)
}
