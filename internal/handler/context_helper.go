package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/unimet-iinf/obs-admin-api/internal/middleware"
	"github.com/unimet-iinf/obs-admin-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext projects the JWT claims into the profile shape the review
// services act on. Role and initials come from the token, not a DB round trip.
func actorFromContext(c *gin.Context) *models.Profile {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil
	}
	return &models.Profile{
		ID:       claims.UserID,
		Email:    claims.Email,
		Role:     claims.Role,
		Initials: claims.Initials,
	}
}
