package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the object form of a failure: {"errors": [...]}.
type ErrorBody struct {
	Errors []string `json:"errors"`
}

// Success sends a 200 response carrying data as the whole body.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Empty sends a 200 response with no body.
func Empty(c *gin.Context) {
	c.Status(http.StatusOK)
}

// Messages sends messages as a bare JSON array, the shape model validation
// failures use.
func Messages(c *gin.Context, statusCode int, messages ...string) {
	c.AbortWithStatusJSON(statusCode, messages)
}

// Error sends an {"errors": [...]} response.
func Error(c *gin.Context, statusCode int, messages ...string) {
	c.AbortWithStatusJSON(statusCode, ErrorBody{Errors: messages})
}

// Unauthorized sends a 401 error response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// UnprocessableEntity sends a 422 response listing every validation message.
func UnprocessableEntity(c *gin.Context, messages ...string) {
	Messages(c, http.StatusUnprocessableEntity, messages...)
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// InternalError sends a 500 error response.
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}
