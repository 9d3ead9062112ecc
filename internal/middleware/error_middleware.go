package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/JoelGresham/teamPoll/internal/transport/httpdto"
	poll_errors "github.com/JoelGresham/teamPoll/pkg/errors"
	"github.com/JoelGresham/teamPoll/pkg/logger"
)

// ErrorHandler renders the last error a handler attached with c.Error.
// Domain errors keep their message; anything else is logged and hidden.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if !poll_errors.IsDomain(err) && l != nil {
			l.WithContext(c.Request.Context()).Sugar().Errorf("request error: %s", err.Error())
		}
		c.JSON(poll_errors.HTTPStatus(err), httpdto.NewErrorResponse(poll_errors.Message(err), poll_errors.Code(err)))
	}
}
