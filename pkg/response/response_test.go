package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anoa.com/realmkeeper/pkg/apperror"
	"anoa.com/realmkeeper/pkg/ratelimiter"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respond(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	ResponseError(c, err)
	return rec
}

func TestResponseErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("realm not found: %w", apperror.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("nope: %w", apperror.ErrPermissionDenied), http.StatusForbidden},
		{apperror.Validation("bad value"), http.StatusBadRequest},
		{apperror.Conflict("transfer first"), http.StatusConflict},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.code, respond(tt.err).Code)
		})
	}
}

func TestResponseErrorHidesInternalDetails(t *testing.T) {
	rec := respond(fmt.Errorf("pq: connection refused"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apperror.ErrInternal.Error(), body["error"])
}

func TestResponseErrorSetsRetryAfter(t *testing.T) {
	rec := respond(&ratelimiter.RateLimitError{Message: "too many join attempts, please wait 42 seconds", RetryAfter: 42 * time.Second})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "please wait 42 seconds")
}
