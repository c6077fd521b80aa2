package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/chat-client/pkg/jwt"
	"github.com/weiawesome/chat-client/pkg/log"
	"github.com/weiawesome/chat-client/pkg/response"
)

const CSRFHeaderKey = "X-CSRF-Token"

// CSRF returns a Gin middleware that rotates the anti-forgery token on every
// response and rejects state-changing requests whose token is missing, stale
// or bound to another session. Must run after Session.
func CSRF(tokens *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := GetSessionID(c)

		// Issued before validation so that rejected requests rotate too.
		next, err := tokens.Issue(sid)
		if err != nil {
			l := log.Ctx(c.Request.Context())
			l.Error().Err(err).Msg("failed to issue csrf token")
			response.InternalError(c, "failed to issue csrf token")
			return
		}
		c.Header(CSRFHeaderKey, next)

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		if err := tokens.Validate(c.GetHeader(CSRFHeaderKey), sid); err != nil {
			l := log.Ctx(c.Request.Context())
			l.Warn().Err(err).Msg("rejected csrf token")
			response.UnprocessableEntity(c, "Invalid authenticity token")
			return
		}
		c.Next()
	}
}
