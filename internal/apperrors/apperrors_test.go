package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, NotFound, CategoryOf(New(NotFound, "gone")))
	assert.Equal(t, ServiceTimeout, CategoryOf(context.DeadlineExceeded))
	assert.Equal(t, ServiceTimeout, CategoryOf(fmt.Errorf("query: %w", context.DeadlineExceeded)))
	assert.Equal(t, Internal, CategoryOf(errors.New("boom")))
}

func TestCategoryOfWrapped(t *testing.T) {
	cause := errors.New("row missing")
	err := Wrap(NotFound, "conversation not found", cause)
	wrapped := fmt.Errorf("handler: %w", err)

	assert.Equal(t, NotFound, CategoryOf(wrapped))
	assert.True(t, errors.Is(wrapped, cause))
	assert.Equal(t, "conversation not found", MessageOf(wrapped))
}

func TestMessageOfHidesInternals(t *testing.T) {
	assert.Equal(t, "internal error", MessageOf(errors.New("pq: connection refused")))
	assert.Equal(t, "service unavailable", MessageOf(context.DeadlineExceeded))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Category]int{
		AuthenticationRequired: http.StatusUnauthorized,
		PermissionDenied:       http.StatusForbidden,
		NotFound:               http.StatusNotFound,
		InvalidRequest:         http.StatusBadRequest,
		Conflict:               http.StatusConflict,
		RateLimited:            http.StatusTooManyRequests,
		ServiceTimeout:         http.StatusServiceUnavailable,
		Internal:               http.StatusInternalServerError,
	}
	for cat, want := range cases {
		assert.Equal(t, want, HTTPStatus(New(cat, "x")))
	}
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}
