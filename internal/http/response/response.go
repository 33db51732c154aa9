package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/techform-backend/internal/domain/aggregates"
	"github.com/yungbote/techform-backend/internal/pkg/errors"
	"github.com/yungbote/techform-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
			Hint:    errors.FlattenHints(err),
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// RespondFailure maps service and aggregate errors onto HTTP statuses.
func RespondFailure(c *gin.Context, err error) {
	e := Classify(err)
	if e.Retryable() {
		c.Header("Retry-After", "1")
	}
	RespondError(c, e.Status, e.Code, e.Err)
}

// Classify picks the status and code a failed call is reported with.
func Classify(err error) *apierr.Error {
	var api *apierr.Error
	if errors.As(err, &api) {
		return api
	}
	switch {
	case domainagg.IsOptimisticLock(err):
		return apierr.Conflict("optimistic_lock_conflict", err)
	case domainagg.IsCode(err, domainagg.CodeNotFound), errors.Is(err, errors.ErrNotFound):
		return apierr.NotFound("not_found", err)
	case domainagg.IsCode(err, domainagg.CodeValidation), errors.Is(err, errors.ErrInvalidArgument):
		return apierr.BadRequest("validation_failed", err)
	case domainagg.IsCode(err, domainagg.CodeConflict):
		return apierr.Conflict("conflict", err)
	case domainagg.IsCode(err, domainagg.CodePreconditionFailed):
		return apierr.PreconditionFailed("precondition_failed", err)
	case domainagg.IsCode(err, domainagg.CodeRetryable):
		return apierr.Unavailable("retryable", err)
	}
	return apierr.Internal(err)
}
