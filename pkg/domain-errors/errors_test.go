package dErrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode_WalksWrappedChains(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := Wrap(cause, CodeExternal, "directory call failed")
	annotated := fmt.Errorf("step create_identity: %w", wrapped)

	assert.True(t, HasCode(annotated, CodeExternal))
	assert.False(t, HasCode(annotated, CodeNotFound))
	assert.True(t, errors.Is(annotated, cause), "cause must stay reachable")
}

func TestHasCode_NonDomainError(t *testing.T) {
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeValidation, GetCode(New(CodeValidation, "missing field")))
	assert.Equal(t, CodeInternal, GetCode(errors.New("plain")))
}

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeInvalidInput, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeExternal, http.StatusBadGateway},
		{CodePartialFailure, http.StatusBadGateway},
		{CodeInternal, http.StatusInternalServerError},
		{Code("unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, ToHTTPStatus(tt.code))
		})
	}
}

func TestErrorString(t *testing.T) {
	plain := New(CodeNotFound, "request not found")
	require.Equal(t, "not_found: request not found", plain.Error())

	wrapped := Wrap(errors.New("boom"), CodeInternal, "store failed")
	assert.Equal(t, "internal: store failed: boom", wrapped.Error())
}
