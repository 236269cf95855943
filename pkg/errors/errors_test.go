package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"entry", ErrEntryNotFound, http.StatusNotFound},
		{"wrapped unresolved", fmt.Errorf("resolving %q: %w", "x", ErrUnresolved), http.StatusNotFound},
		{"module", ErrModuleNotFound, http.StatusNotFound},
		{"composite", ErrMalformedCompositeID, http.StatusBadRequest},
		{"invalid", ErrInvalidInput, http.StatusBadRequest},
		{"cache", ErrCacheUnavailable, http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"app error overrides", New(ErrEntryNotFound, http.StatusGone, "retired"), http.StatusGone},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "limit %d too large", 500)

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "invalid input: limit 500 too large", err.Error())
}
