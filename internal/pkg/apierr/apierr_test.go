package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "auth", err: AuthErr(http.StatusUnauthorized), expected: http.StatusUnauthorized},
		{name: "validation with 404", err: ValidationErr(http.StatusNotFound, "missing", nil), expected: http.StatusNotFound},
		{name: "logical failure on 200", err: ValidationErr(http.StatusOK, "In use", nil), expected: http.StatusUnprocessableEntity},
		{name: "client input", err: ClientInputErr("bad file", nil), expected: http.StatusBadRequest},
		{name: "network", err: NetworkErr(0, errors.New("dial")), expected: http.StatusBadGateway},
		{name: "foreign", err: errors.New("boom"), expected: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, HTTPStatus(tc.err))
		})
	}
}

func TestWrappedErrorsKeepTheirKind(t *testing.T) {
	err := fmt.Errorf("deleting product: %w", ValidationErr(http.StatusOK, "In use", nil))

	assert.Equal(t, Validation, KindOf(err))
	assert.Equal(t, "In use", PublicMessage(err))
	assert.False(t, IsAuth(err))
	assert.True(t, IsAuth(fmt.Errorf("listing: %w", AuthErr(http.StatusUnauthorized))))
	assert.Equal(t, genericMessage, PublicMessage(errors.New("boom")))
}
