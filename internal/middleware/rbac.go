package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/unimet-iinf/obs-admin-api/internal/models"
	appErrors "github.com/unimet-iinf/obs-admin-api/pkg/errors"
	"github.com/unimet-iinf/obs-admin-api/pkg/response"
)

// RequireRole gates a route on a role capability check. sin_asignar accounts
// authenticate fine but fail every capability, which is the pending-approval
// state.
func RequireRole(check func(models.Role) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if !check(claims.Role) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireDashboard admits lector and above.
func RequireDashboard() gin.HandlerFunc {
	return RequireRole(models.Role.CanAccessDashboard)
}

// RequireEdit admits coordinador and administrador.
func RequireEdit() gin.HandlerFunc {
	return RequireRole(models.Role.CanEdit)
}

// RequireAdmin admits administrador only.
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(models.Role.CanManageUsers)
}
