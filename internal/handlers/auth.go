package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/straywatch/straywatch-api/internal/auth"
)

// RegisterAuthRoutes registers token verification. requireUser must already
// be applied to r, so reaching the handler means the token is valid.
//
// POST /auth/verify
func RegisterAuthRoutes(r gin.IRoutes) {
	r.POST("/auth/verify", func(c *gin.Context) {
		user, _ := auth.CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"valid": true, "user": user})
	})
}
