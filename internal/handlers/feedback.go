package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/straywatch/straywatch-api/internal/auth"
	"github.com/straywatch/straywatch-api/internal/identity"
	"github.com/straywatch/straywatch-api/internal/logging"
	"github.com/straywatch/straywatch-api/internal/models"
	"github.com/straywatch/straywatch-api/internal/notify"
	"github.com/straywatch/straywatch-api/internal/store"
)

const unknownEmail = "unknown@user.local"

// RegisterFeedbackRoutes registers feedback submission and review.
// requireUser must already be applied to r.
//
// POST /feedback - store a message; the e-mail notification is best-effort
// GET  /feedback - list stored feedback, admins only
func RegisterFeedbackRoutes(r gin.IRoutes, fs store.FeedbackStore, n notify.Notifier, isAdmin func(userID string) bool) {
	r.POST("/feedback", func(c *gin.Context) {
		user, _ := auth.CurrentUser(c)

		var req models.FeedbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		msg := strings.TrimSpace(req.Message)
		if msg == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
			return
		}

		name := identity.Some(req.Name).Or(user.Profile.Name.Or(identity.AnonymousName))
		email := identity.Some(req.Email).Or(identity.Some(user.Email).Or(unknownEmail))

		fb, err := fs.InsertFeedback(c.Request.Context(), models.Feedback{
			UserID:  user.ID,
			Name:    name,
			Email:   email,
			Message: msg,
		})
		if err != nil {
			logging.Error().Err(err).Str("request_id", logging.RequestID(c)).Msg("feedback insert failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save feedback"})
			return
		}

		if err := n.FeedbackReceived(c.Request.Context(), fb); err != nil {
			logging.Warn().Err(err).Str("request_id", logging.RequestID(c)).Str("feedback_id", fb.ID).Msg("feedback notification failed")
		}

		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.GET("/feedback", func(c *gin.Context) {
		user, _ := auth.CurrentUser(c)
		if !isAdmin(user.ID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		items, err := fs.ListFeedback(c.Request.Context())
		if err != nil {
			logging.Error().Err(err).Str("request_id", logging.RequestID(c)).Msg("list feedback failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}
		c.Header("Cache-Control", "private, no-store")
		c.JSON(http.StatusOK, items)
	})
}
