package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/tasklink/internal/domain"
	"github.com/phrazzld/tasklink/internal/queue"
	"github.com/phrazzld/tasklink/internal/service"
	"github.com/phrazzld/tasklink/internal/service/auth"
	"github.com/phrazzld/tasklink/internal/store"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{auth.ErrExpiredToken, http.StatusUnauthorized},
		{fmt.Errorf("lookup: %w", store.ErrLinkNotFound), http.StatusNotFound},
		{store.ErrDuplicate, http.StatusConflict},
		{fmt.Errorf("%w: task_id is blank", domain.ErrInvalidJob), http.StatusBadRequest},
		{domain.ErrInvalidTimestamp, http.StatusBadRequest},
		{fmt.Errorf("%w: glab exit 1", service.ErrTrackerSync), http.StatusBadGateway},
		{queue.ErrQueueClosed, http.StatusServiceUnavailable},
		{service.NewLinkServiceError("enqueue", "failed", errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err), tt.err.Error())
	}
}

func TestGetSafeErrorMessage_DoesNotLeak(t *testing.T) {
	err := service.NewLinkServiceError("get_link", "store operation failed",
		errors.New("pq: password authentication failed for user tasklink"))

	msg := GetSafeErrorMessage(err)
	assert.Equal(t, "An unexpected error occurred", msg)
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
	assert.Equal(t, "Link not found", GetSafeErrorMessage(store.ErrLinkNotFound))
}

func TestSanitizeValidationError(t *testing.T) {
	type request struct {
		TrackerProject string `validate:"required"`
		TaskURL        string `validate:"omitempty,url"`
	}
	v := validator.New()

	assert.Equal(t, "Invalid tracker_project: required field", SanitizeValidationError(v.Struct(request{})))
	assert.Equal(t, "Invalid task_url: invalid URL",
		SanitizeValidationError(v.Struct(request{TrackerProject: "p", TaskURL: "nope"})))
	assert.Equal(t, "Invalid request format", SanitizeValidationError(errors.New("json: cannot unmarshal")))
}
