package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/gatewarden/gatewarden/internal/avatarscan"
	"github.com/gatewarden/gatewarden/internal/domain"
	"github.com/gatewarden/gatewarden/internal/repo"
	"github.com/gatewarden/gatewarden/internal/review"
)

// handleAvatarViewSrc gates the reverse-image link behind an explicit
// age confirmation. The flagged image may be explicit; nobody should land
// on it from a single misclick.
func (b *Bot) handleAvatarViewSrc(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, appID string) {
	if !b.isReviewer(ctx, i) {
		b.respondEphemeral(s, i, "You don't have permission to review applications.")
		return
	}
	b.respondEphemeralWithButtons(s, i,
		"⚠️ This opens a reverse image search for an avatar flagged as potentially explicit. Confirm to continue.",
		discordgo.Button{
			CustomID: review.AvatarConfirmCustomID(appID),
			Label:    "I AM 18+",
			Style:    discordgo.DangerButton,
		})
}

// handleAvatarConfirm reveals the search link and records the view in the
// action log.
func (b *Bot) handleAvatarConfirm(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, appID string) {
	if !b.isReviewer(ctx, i) {
		b.respondEphemeral(s, i, "You don't have permission to review applications.")
		return
	}

	scan, err := repo.GetAvatarScan(ctx, b.DB, appID)
	if err != nil {
		log.Error().Err(err).Str("app_id", appID).Msg("failed to load avatar scan")
		b.respondEphemeral(s, i, "Couldn't load the scan record. Please try again.")
		return
	}
	if scan == nil || scan.AvatarURL == "" {
		b.respondEphemeral(s, i, "No avatar scan is recorded for this application.")
		return
	}

	app, err := repo.GetApplication(ctx, b.DB, appID)
	if err != nil {
		b.respondEphemeral(s, i, "Application not found. It may have been removed.")
		return
	}

	template := ""
	if cfg, err := b.Configs.Get(ctx, app.GuildID); err == nil && cfg != nil {
		template = cfg.ImageSearchURLTemplate
	}
	link := avatarscan.ReverseSearchURL(template, scan.AvatarURL)

	meta := domain.ActionMeta{ViewedAt: time.Now().UTC().Format(time.RFC3339)}
	if err := b.Decisions.RecordAudit(ctx, appID, i.Member.User.ID, domain.ActionAvatarViewSrc, meta); err != nil {
		log.Warn().Err(err).Str("app_id", appID).Msg("failed to record source view")
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    "Reverse image search: " + link,
			Components: []discordgo.MessageComponent{},
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Warn().Err(err).Str("app_id", appID).Msg("failed to reveal search link")
	}
}
