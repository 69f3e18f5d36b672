package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/chestscan/internal/session"
)

type contextKey string

const userIDKey contextKey = "authUserID"

// UserID retrieves the authenticated user from context.
func UserID(ctx context.Context) (uint, bool) {
	if ctx == nil {
		return 0, false
	}
	if value, ok := ctx.Value(userIDKey).(uint); ok && value != 0 {
		return value, true
	}
	return 0, false
}

// SessionResolver is the subset of the session manager the gate needs.
type SessionResolver interface {
	Resolve(ctx context.Context, cookieValue string) (uint, error)
}

// RequireLogin gates protected routes. Requests without a live session are
// redirected to the login page instead of reaching the handler.
func RequireLogin(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(session.CookieName)
		if err != nil {
			redirectToLogin(c)
			return
		}

		userID, err := sessions.Resolve(c.Request.Context(), cookie)
		if err != nil {
			redirectToLogin(c)
			return
		}

		ctx := context.WithValue(c.Request.Context(), userIDKey, userID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func redirectToLogin(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/login")
	c.Abort()
}
