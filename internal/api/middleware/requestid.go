package middleware

import (
	"github.com/gin-gonic/gin"

	sharedid "github.com/GriffinCanCode/TermDeck/backend/internal/shared/id"
)

// RequestIDHeader is the header carrying the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// RequestID attaches a correlation ID to each request. A client-supplied
// ID is honored so the desktop shell can trace a call end to end.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = sharedid.NewRequestID().String()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
