package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/weiawesome/chat-client/pkg/log"
	"github.com/weiawesome/chat-client/pkg/response"
)

const (
	SessionIDKey  = log.FieldSessionID
	UserIDKey     = log.FieldUserID
	UsernameKey   = log.FieldUsername
	SessionCookie = "_chat_session"
)

// SessionResolver maps a session id to the user logged in on it.
type SessionResolver interface {
	Resolve(sessionID string) (userID int64, username string, ok bool)
}

// Session returns a Gin middleware that gives every caller a session cookie
// and stores the session's user, if any, in the context.
func Session(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(SessionCookie)
		if err != nil || sid == "" {
			sid = uuid.NewString()
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     SessionCookie,
				Value:    sid,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		c.Set(SessionIDKey, sid)

		if id, username, ok := resolver.Resolve(sid); ok {
			c.Set(UserIDKey, id)
			c.Set(UsernameKey, username)
		}

		c.Next()
	}
}

// RequireAuth rejects callers whose session has no user.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserID(c) == 0 {
			response.Unauthorized(c, "Unauthorized")
			return
		}
		c.Next()
	}
}

// SetUser records a login or logout on the current request so that the
// request log carries the right actor.
func SetUser(c *gin.Context, id int64, username string) {
	c.Set(UserIDKey, id)
	c.Set(UsernameKey, username)
}

// GetSessionID extracts the session id from Gin context.
func GetSessionID(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}

// GetUserID extracts user ID from Gin context. Zero means anonymous.
func GetUserID(c *gin.Context) int64 {
	if id, exists := c.Get(UserIDKey); exists {
		if v, ok := id.(int64); ok {
			return v
		}
	}
	return 0
}

// GetUsername extracts username from Gin context.
func GetUsername(c *gin.Context) string {
	return c.GetString(UsernameKey)
}
