package netx

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("x: %w", common.ErrorNotFound), http.StatusNotFound},
		{"exists", common.ErrorAlreadyExists, http.StatusConflict},
		{"denied", common.ErrorPermissionDenied, http.StatusForbidden},
		{"owned by someone else", fmt.Errorf("x: %w %w", common.ErrorAlreadyExists, common.ErrorPermissionDenied), http.StatusForbidden},
		{"misconfigured", common.ErrorMisconfigured, http.StatusServiceUnavailable},
		{"not implemented", common.ErrorNotImplemented, http.StatusNotImplemented},
		{"unauthorized", common.ErrInvalidToken, http.StatusUnauthorized},
		{"validation", common.ErrorValidation, http.StatusBadRequest},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestErrorFor_RoundTrip(t *testing.T) {
	for _, e := range []error{
		common.ErrorNotFound,
		common.ErrorAlreadyExists,
		common.ErrorPermissionDenied,
		common.ErrorMisconfigured,
		common.ErrorNotImplemented,
		common.ErrorUnauthorized,
		common.ErrorValidation,
	} {
		assert.ErrorIs(t, ErrorFor(StatusFor(e)), e)
	}
	assert.ErrorIs(t, ErrorFor(http.StatusTeapot), common.ErrorInternal)
}

func TestWriteError_HidesInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("db password leaked"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("a.txt: %w", common.ErrorNotFound))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"a.txt: not found"}`, rec.Body.String())
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestDecodeResponse(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, DecodeResponse(response(http.StatusOK, `{"name":"cdn"}`), &out))
	assert.Equal(t, "cdn", out.Name)

	err := DecodeResponse(response(http.StatusConflict, `{"error":"a.txt already exists"}`), &out)
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
	assert.ErrorContains(t, err, "a.txt already exists")

	err = DecodeResponse(response(http.StatusBadGateway, `upstream down`), nil)
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.ErrorContains(t, err, "upstream down")

	err = DecodeResponse(response(http.StatusOK, `not json`), &out)
	assert.Error(t, err)
}
