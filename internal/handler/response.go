package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"smartcity/internal/middleware"
	"smartcity/internal/model"
	"smartcity/internal/service"
	"smartcity/internal/voting"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondError writes err as {"error": ...} with the status of its kind.
// Errors of unknown kind are logged and reported as a bare server error.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidReference),
		errors.Is(err, voting.ErrDeadlinePassed),
		errors.Is(err, voting.ErrInvalidOption):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrAccountDisabled):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// sessionUser returns the authenticated user, answering 401 when the route
// was mounted without the session middleware.
func sessionUser(c *gin.Context) (*model.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": service.ErrUnauthenticated.Error()})
	}
	return user, ok
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// listField accepts either repeated form values or a single JSON array.
func listField(values []string) []string {
	if len(values) == 1 {
		raw := strings.TrimSpace(values[0])
		if strings.HasPrefix(raw, "[") {
			var out []string
			if err := json.Unmarshal([]byte(raw), &out); err == nil {
				return out
			}
		}
	}
	return values
}
