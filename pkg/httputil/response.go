package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/validator"
)

// Response is the envelope every endpoint answers with. Exactly one of Result and
// Error is non-null.
type Response struct {
	Status bool        `json:"status"`
	Result interface{} `json:"result"`
	Error  *string     `json:"error"`
}

func RespondWithSuccess(c *gin.Context, result interface{}) {
	c.JSON(http.StatusOK, Response{Status: true, Result: result})
}

func RespondWithCreated(c *gin.Context, result interface{}) {
	c.JSON(http.StatusCreated, Response{Status: true, Result: result})
}

// RespondWithError renders err with the status from errors.HTTPStatus. Internal
// failures are logged and answered with a generic message.
func RespondWithError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)

	message := "internal server error"
	var appErr *errors.AppError
	if status != http.StatusInternalServerError && stderrors.As(err, &appErr) {
		message = appErr.Message
	} else {
		log.Error().
			Err(err).
			Str("request_id", c.GetString("request_id")).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
	}

	c.AbortWithStatusJSON(status, Response{Status: false, Error: &message})
}

// RespondWithBindError answers a request whose body or query failed binding.
func RespondWithBindError(c *gin.Context, err error) {
	RespondWithError(c, errors.Validation("invalid request: "+validator.Describe(err), err))
}

// RespondWithStatus aborts with a failure envelope for statuses outside the error
// taxonomy, such as 413 and 429.
func RespondWithStatus(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Status: false, Error: &message})
}
