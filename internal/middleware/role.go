package middleware

import (
	"net/http"
	"slices"
	"strings"

	"smartcity/internal/model"
	"smartcity/internal/service"

	"github.com/gin-gonic/gin"
)

// RequireRoles lets the request through only when the session user holds
// one of roles. It must run after Authenticate.
func RequireRoles(roles ...model.Role) gin.HandlerFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	denied := "access restricted to: " + strings.Join(names, ", ")

	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": service.ErrUnauthenticated.Error()})
			return
		}

		role, err := model.ParseRole(string(user.Role))
		if err != nil || !slices.Contains(roles, role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": denied})
			return
		}
		c.Next()
	}
}
