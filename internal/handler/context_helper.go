package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dispatch-api/internal/middleware"
	"github.com/noah-isme/dispatch-api/internal/models"
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

// actorFromContext returns the acting identity, anonymous when no valid
// token was presented.
func actorFromContext(c *gin.Context) models.Actor {
	return claimsFromContext(c).Actor()
}
