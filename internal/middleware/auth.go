package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"smartcity/internal/model"
	"smartcity/internal/service"

	"github.com/gin-gonic/gin"
)

const userKey = "middleware.user"

type authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// Authenticate loads the session user from the bearer header, falling back
// to the session cookie, and aborts the request when there is none.
func Authenticate(auth authenticator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.Authenticate(c.Request.Context(), tokenFrom(c, cookieName))
		if err != nil {
			c.AbortWithStatusJSON(authStatus(err), gin.H{"error": authMessage(err)})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// CurrentUser returns the user attached by Authenticate.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok && user != nil
}

func tokenFrom(c *gin.Context, cookieName string) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	if cookie, err := c.Cookie(cookieName); err == nil {
		return cookie
	}
	return ""
}

func authStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrAccountDisabled):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUnauthenticated),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrUserNotFound):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func authMessage(err error) string {
	if authStatus(err) == http.StatusInternalServerError {
		return "server error"
	}
	return err.Error()
}
