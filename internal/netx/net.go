// Package netx carries the HTTP conventions shared by the filestore API and
// its remote clients: JSON bodies and a stable mapping between sentinel
// errors and status codes.
package netx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/filestore/internal/common"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

var statusTable = []struct {
	err    error
	status int
}{
	{common.ErrorValidation, http.StatusBadRequest},
	{common.ErrorUnauthorized, http.StatusUnauthorized},
	{common.ErrInvalidToken, http.StatusUnauthorized},
	{common.ErrTokenExpired, http.StatusUnauthorized},
	{common.ErrorPermissionDenied, http.StatusForbidden},
	{common.ErrorNotFound, http.StatusNotFound},
	{common.ErrorAlreadyExists, http.StatusConflict},
	{common.ErrorNotImplemented, http.StatusNotImplemented},
	{common.ErrorMisconfigured, http.StatusServiceUnavailable},
}

// StatusFor maps err to a response status. Errors that match more than one
// sentinel resolve to the first entry in table order, so "owned by someone
// else" is reported as 403.
func StatusFor(err error) int {
	for _, e := range statusTable {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// ErrorFor is the inverse of StatusFor.
func ErrorFor(status int) error {
	switch status {
	case http.StatusBadRequest:
		return common.ErrorValidation
	case http.StatusUnauthorized:
		return common.ErrorUnauthorized
	case http.StatusForbidden:
		return common.ErrorPermissionDenied
	case http.StatusNotFound:
		return common.ErrorNotFound
	case http.StatusConflict:
		return common.ErrorAlreadyExists
	case http.StatusNotImplemented:
		return common.ErrorNotImplemented
	case http.StatusServiceUnavailable:
		return common.ErrorMisconfigured
	default:
		return common.ErrorInternal
	}
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes err with its mapped status. Internal errors are not
// echoed to the caller.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = common.ErrorInternal.Error()
	}
	WriteJSON(w, status, ErrorBody{Error: msg})
}

// DecodeResponse turns a non-2xx response into a sentinel-wrapping error and
// otherwise decodes the body into out, when out is not nil.
func DecodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		var body ErrorBody
		msg := strings.TrimSpace(string(b))
		if json.Unmarshal(b, &body) == nil && body.Error != "" {
			msg = body.Error
		}
		return fmt.Errorf("remote %s: %s: %w", resp.Status, msg, ErrorFor(resp.StatusCode))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
