package log

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// GinMiddleware tags each request with a request id (taken from
// X-Request-ID when the caller sent one), puts a request-scoped logger in the
// request context and logs the outcome. Server errors log at error level and
// client errors at warn.
//
// The actor is read back from the gin context after the handler ran:
// FieldSessionID (string), FieldUserID (int64) and FieldUsername (string).
func GinMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(headerRequestID, reqID)

		child := logger.With().
			Str(FieldRequestID, reqID).
			Str(FieldMethod, c.Request.Method).
			Str(FieldPath, c.Request.URL.Path).
			Logger()
		c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), child))

		c.Next()

		status := c.Writer.Status()
		var evt *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			evt = child.Error()
		case status >= http.StatusBadRequest:
			evt = child.Warn()
		default:
			evt = child.Info()
		}

		evt = evt.
			Int(FieldStatus, status).
			Float64(FieldLatency, float64(time.Since(start).Microseconds())/1000).
			Str(FieldClientIP, c.ClientIP())
		if sid := c.GetString(FieldSessionID); sid != "" {
			evt = evt.Str(FieldSessionID, sid)
		}
		if id := c.GetInt64(FieldUserID); id != 0 {
			evt = evt.Int64(FieldUserID, id)
		}
		if username := c.GetString(FieldUsername); username != "" {
			evt = evt.Str(FieldUsername, username)
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}

		evt.Msg("request completed")
	}
}
