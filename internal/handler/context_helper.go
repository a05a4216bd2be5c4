package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/blueridge-hs/registrar-api/internal/middleware"
	"github.com/blueridge-hs/registrar-api/internal/models"
)

// claimsFromContext returns the authenticated user's claims, or nil when
// the request passed through without the JWT middleware.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	v, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	if claims, ok := v.(*models.JWTClaims); ok {
		return claims
	}
	return nil
}
