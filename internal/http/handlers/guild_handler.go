package handlers

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/gatewarden/gatewarden/internal/domain"
	"github.com/gatewarden/gatewarden/internal/repo"
)

const (
	maxQuestions     = 25
	maxPromptRunes   = 300
	maxTemplateRunes = 500
)

// guildConfigPatch is the PUT body for guild settings. Every field is a
// pointer so absent keys leave the stored value untouched.
type guildConfigPatch struct {
	ReviewChannelID        *string  `json:"review_channel_id"`
	GateChannelID          *string  `json:"gate_channel_id"`
	UnverifiedChannelID    *string  `json:"unverified_channel_id"`
	GeneralChannelID       *string  `json:"general_channel_id"`
	AcceptedRoleID         *string  `json:"accepted_role_id"`
	ReviewerRoleID         *string  `json:"reviewer_role_id"`
	ImageSearchURLTemplate *string  `json:"image_search_url_template"`
	AvatarScanEnabled      *bool    `json:"avatar_scan_enabled"`
	AvatarNSFWThreshold    *float64 `json:"avatar_nsfw_threshold"`
	AvatarEdgeThreshold    *float64 `json:"avatar_edge_threshold"`
	ReapplyCooldownHours   *int     `json:"reapply_cooldown_hours"`
	MinAccountAgeHours     *int     `json:"min_account_age_hours"`
	MinJoinAgeHours        *int     `json:"min_join_age_hours"`
}

// GetGuildConfig returns the stored settings for one guild.
//
//	GET /guilds/:guild_id/config
func (h *Handlers) GetGuildConfig(c *gin.Context) {
	guildID := strings.TrimSpace(c.Param("guild_id"))
	cfg, err := h.Configs.Get(c.Request.Context(), guildID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load guild config")
		return
	}
	if cfg == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "guild is not configured")
		return
	}
	ok(c, http.StatusOK, cfg)
}

// UpdateGuildConfig applies a partial settings update and returns the new
// state. The guild-config cache is invalidated by the service.
//
//	PUT /guilds/:guild_id/config
func (h *Handlers) UpdateGuildConfig(c *gin.Context) {
	guildID := strings.TrimSpace(c.Param("guild_id"))
	if guildID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "guild_id is required")
		return
	}

	var body guildConfigPatch
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	patch, err := body.toPatch()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	if len(patch) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no settings provided")
		return
	}

	ctx := c.Request.Context()
	if err := h.Configs.Upsert(ctx, guildID, patch); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, "could not update guild config")
		return
	}
	cfg, err := h.Configs.Get(ctx, guildID)
	if err != nil || cfg == nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not reload guild config")
		return
	}
	ok(c, http.StatusOK, cfg)
}

func (p guildConfigPatch) toPatch() (map[string]any, error) {
	patch := map[string]any{}
	setStr := func(col string, v *string) {
		if v != nil {
			patch[col] = strings.TrimSpace(*v)
		}
	}
	setStr("review_channel_id", p.ReviewChannelID)
	setStr("gate_channel_id", p.GateChannelID)
	setStr("unverified_channel_id", p.UnverifiedChannelID)
	setStr("general_channel_id", p.GeneralChannelID)
	setStr("accepted_role_id", p.AcceptedRoleID)
	setStr("reviewer_role_id", p.ReviewerRoleID)

	if p.ImageSearchURLTemplate != nil {
		t := strings.TrimSpace(*p.ImageSearchURLTemplate)
		if utf8.RuneCountInString(t) > maxTemplateRunes {
			return nil, errValidation("image_search_url_template is too long")
		}
		patch["image_search_url_template"] = t
	}
	if p.AvatarScanEnabled != nil {
		patch["avatar_scan_enabled"] = *p.AvatarScanEnabled
	}
	if p.AvatarNSFWThreshold != nil {
		if *p.AvatarNSFWThreshold < 0 || *p.AvatarNSFWThreshold > 1 {
			return nil, errValidation("avatar_nsfw_threshold must be in [0,1]")
		}
		patch["avatar_nsfw_threshold"] = *p.AvatarNSFWThreshold
	}
	if p.AvatarEdgeThreshold != nil {
		if *p.AvatarEdgeThreshold < 0 || *p.AvatarEdgeThreshold > 1 {
			return nil, errValidation("avatar_edge_threshold must be in [0,1]")
		}
		patch["avatar_edge_threshold"] = *p.AvatarEdgeThreshold
	}
	setNonNegative := func(col string, v *int) error {
		if v == nil {
			return nil
		}
		if *v < 0 {
			return errValidation(col + " must be >= 0")
		}
		patch[col] = *v
		return nil
	}
	if err := setNonNegative("reapply_cooldown_hours", p.ReapplyCooldownHours); err != nil {
		return nil, err
	}
	if err := setNonNegative("min_account_age_hours", p.MinAccountAgeHours); err != nil {
		return nil, err
	}
	if err := setNonNegative("min_join_age_hours", p.MinJoinAgeHours); err != nil {
		return nil, err
	}
	return patch, nil
}

// questionsBody is the PUT body for the intake catalog. Order in the slice
// is the catalog order; indexes are assigned server-side.
type questionsBody struct {
	Questions []struct {
		Prompt   string `json:"prompt"`
		Required *bool  `json:"required"`
	} `json:"questions"`
}

// ListQuestions returns the guild's ordered intake catalog.
//
//	GET /guilds/:guild_id/questions
func (h *Handlers) ListQuestions(c *gin.Context) {
	guildID := strings.TrimSpace(c.Param("guild_id"))
	questions, err := repo.ListQuestions(c.Request.Context(), h.DB, guildID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list questions")
		return
	}
	ok(c, http.StatusOK, gin.H{"questions": questions, "count": len(questions)})
}

// ReplaceQuestions swaps the guild's intake catalog wholesale. Existing
// drafts keep their answer snapshots; submission re-validates against the
// new catalog.
//
//	PUT /guilds/:guild_id/questions
func (h *Handlers) ReplaceQuestions(c *gin.Context) {
	guildID := strings.TrimSpace(c.Param("guild_id"))
	if guildID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "guild_id is required")
		return
	}

	var body questionsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if len(body.Questions) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "at least one question is required")
		return
	}
	if len(body.Questions) > maxQuestions {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "too many questions")
		return
	}

	questions := make([]domain.GuildQuestion, 0, len(body.Questions))
	for i, q := range body.Questions {
		prompt := strings.TrimSpace(q.Prompt)
		if prompt == "" {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "question prompts must not be blank")
			return
		}
		if utf8.RuneCountInString(prompt) > maxPromptRunes {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "question prompt is too long")
			return
		}
		required := true
		if q.Required != nil {
			required = *q.Required
		}
		questions = append(questions, domain.GuildQuestion{
			GuildID:  guildID,
			QIndex:   i,
			Prompt:   prompt,
			Required: required,
		})
	}

	if err := repo.ReplaceQuestions(c.Request.Context(), h.DB, guildID, questions); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, "could not replace questions")
		return
	}
	ok(c, http.StatusOK, gin.H{"questions": questions, "count": len(questions)})
}

// errValidation keeps validation messages as plain errors without pulling in
// a dedicated error type.
type errValidation string

func (e errValidation) Error() string { return string(e) }
