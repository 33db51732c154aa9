package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	domainagg "github.com/yungbote/techform-backend/internal/domain/aggregates"
	"github.com/yungbote/techform-backend/internal/pkg/errors"
	"github.com/yungbote/techform-backend/internal/platform/apierr"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"api error passes through", apierr.BadRequest("invalid_request", errors.New("bad json")), http.StatusBadRequest, "invalid_request"},
		{"precondition", domainagg.NewError(domainagg.CodePreconditionFailed, "op", "missing parent", nil), http.StatusPreconditionFailed, "precondition_failed"},
		{"retryable", domainagg.NewError(domainagg.CodeRetryable, "op", "serialization", nil), http.StatusServiceUnavailable, "retryable"},
		{"invalid argument sentinel", errors.Wrap(errors.ErrInvalidArgument, "techId"), http.StatusBadRequest, "validation_failed"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			assert.Equal(t, tc.status, got.Status)
			assert.Equal(t, tc.code, got.Code)
		})
	}
}

func TestRespondFailureSetsRetryAfterOnlyWhenRetryable(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	RespondFailure(c, domainagg.NewError(domainagg.CodeRetryable, "op", "deadlock", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	RespondFailure(c, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))
}
