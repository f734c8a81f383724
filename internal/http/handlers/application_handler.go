package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gatewarden/gatewarden/internal/repo"
	"github.com/gatewarden/gatewarden/internal/services"
	"github.com/gatewarden/gatewarden/internal/utils"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Handlers bundles the admin API endpoints with their dependencies.
type Handlers struct {
	DB      *gorm.DB
	Configs *services.GuildConfigService
}

// New constructs the handler set.
func New(db *gorm.DB, configs *services.GuildConfigService) *Handlers {
	return &Handlers{DB: db, Configs: configs}
}

// ListApplications returns the most recent applications for a guild.
//
//	GET /guilds/:guild_id/applications?limit=50
func (h *Handlers) ListApplications(c *gin.Context) {
	guildID := strings.TrimSpace(c.Param("guild_id"))
	if guildID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "guild_id is required")
		return
	}
	limit := utils.AtoiDefault(c.Query("limit"), defaultListLimit)
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	apps, err := repo.ListApplications(c.Request.Context(), h.DB, guildID, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list applications")
		return
	}
	ok(c, http.StatusOK, gin.H{"applications": apps, "count": len(apps)})
}

// GetApplication returns one application with its answers and full action
// history.
//
//	GET /applications/:id
func (h *Handlers) GetApplication(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	ctx := c.Request.Context()

	app, err := repo.GetApplication(ctx, h.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "application not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load application")
		return
	}
	answers, err := repo.ListAnswers(ctx, h.DB, app.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load answers")
		return
	}
	actions, err := repo.ListReviewActions(ctx, h.DB, app.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load actions")
		return
	}
	ok(c, http.StatusOK, gin.H{
		"application": app,
		"answers":     answers,
		"actions":     actions,
	})
}

// PurgeApplication removes an application and everything hanging off it.
// Intended for data-removal requests; the action history goes with it.
//
//	DELETE /applications/:id
func (h *Handlers) PurgeApplication(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := repo.PurgeApplication(c.Request.Context(), h.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "application not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodePurgeFailed, "could not purge application")
		return
	}
	noContent(c)
}
