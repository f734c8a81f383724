package bot

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/gatewarden/gatewarden/internal/avatarscan"
	"github.com/gatewarden/gatewarden/internal/platform"
	"github.com/gatewarden/gatewarden/internal/review"
	"github.com/gatewarden/gatewarden/internal/services"
)

// defaultOpTimeout bounds one interaction's full handling, side effects
// included. The initial acknowledgement always goes out first, so a slow
// effect degrades to a late follow-up rather than a failed interaction.
const defaultOpTimeout = 30 * time.Second

// Bot owns the gateway event handlers and fans interactions out to the
// intake and decision services.
type Bot struct {
	Session   *discordgo.Session
	DB        *gorm.DB
	Platform  platform.Client
	Configs   *services.GuildConfigService
	Intake    *services.IntakeService
	Decisions *services.DecisionService
	Effects   *services.EffectRunner
	Publisher *review.Publisher
	Scans     *avatarscan.Service
	Limiter   *Limiter

	// OpTimeout overrides defaultOpTimeout when positive.
	OpTimeout time.Duration
}

// Register attaches the gateway handlers to the session.
func (b *Bot) Register() {
	b.Session.AddHandler(b.onReady)
	b.Session.AddHandler(b.onInteraction)
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	log.Info().Str("bot_user", r.User.Username).Int("guilds", len(r.Guilds)).
		Msg("gateway session ready")
}

func (b *Bot) opTimeout() time.Duration {
	if b.OpTimeout > 0 {
		return b.OpTimeout
	}
	return defaultOpTimeout
}

// onInteraction routes component presses and modal submissions. A panic in
// a handler is contained to the one interaction and logged with a
// correlation id that is also shown to the user.
func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		return
	}

	corrID := uuid.NewString()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("correlation_id", corrID).
				Str("guild_id", i.GuildID).Msg("interaction handler panicked")
			b.respondEphemeral(s, i, "Something went wrong on our side. Reference: "+corrID)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), b.opTimeout())
	defer cancel()

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		b.routeComponent(ctx, s, i, i.MessageComponentData().CustomID)
	case discordgo.InteractionModalSubmit:
		b.routeModal(ctx, s, i, i.ModalSubmitData().CustomID)
	}
}

func (b *Bot) routeComponent(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, customID string) {
	if page, ok := ParseStart(customID); ok {
		b.handleStart(ctx, s, i, page)
		return
	}
	if customID == DoneCustomID() {
		b.handleDone(s, i)
		return
	}
	if action, appID, ok := review.ParseDecide(customID); ok {
		b.handleDecide(ctx, s, i, action, appID)
		return
	}
	if appID, ok := review.ParseAvatarViewSrc(customID); ok {
		b.handleAvatarViewSrc(ctx, s, i, appID)
		return
	}
	if appID, ok := review.ParseAvatarConfirm(customID); ok {
		b.handleAvatarConfirm(ctx, s, i, appID)
		return
	}
	log.Debug().Str("custom_id", customID).Msg("unrecognized component id")
}

func (b *Bot) routeModal(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, customID string) {
	if page, ok := ParsePageModal(customID); ok {
		b.handleIntakeModal(ctx, s, i, page)
		return
	}
	if appID, ok := review.ParseRejectModal(customID); ok {
		b.handleRejectModal(ctx, s, i, appID)
		return
	}
	log.Debug().Str("custom_id", customID).Msg("unrecognized modal id")
}

// respondEphemeral sends a plain ephemeral reply, tolerating the case where
// the interaction was already acknowledged.
func (b *Bot) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		if _, ferr := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		}); ferr != nil {
			log.Warn().Err(ferr).Msg("failed to deliver ephemeral reply")
		}
	}
}

func (b *Bot) respondEphemeralWithButtons(s *discordgo.Session, i *discordgo.InteractionCreate, content string, buttons ...discordgo.Button) {
	components := buttonRow(buttons...)
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Flags:      discordgo.MessageFlagsEphemeral,
			Components: components,
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to deliver ephemeral reply")
	}
}

// deferEphemeral acknowledges immediately so slow side effects cannot blow
// the interaction deadline; the actual text arrives as a follow-up.
func (b *Bot) deferEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to defer interaction")
		return false
	}
	return true
}

func (b *Bot) followupEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to deliver follow-up")
	}
}

// isReviewer reports whether the interacting member may act on decision
// cards: either Manage Server permission or the configured reviewer role.
func (b *Bot) isReviewer(ctx context.Context, i *discordgo.InteractionCreate) bool {
	if i.Member.Permissions&discordgo.PermissionManageServer != 0 {
		return true
	}
	cfg, err := b.Configs.Get(ctx, i.GuildID)
	if err != nil || cfg == nil || cfg.ReviewerRoleID == "" {
		return false
	}
	for _, roleID := range i.Member.Roles {
		if roleID == cfg.ReviewerRoleID {
			return true
		}
	}
	return false
}

func buttonRow(buttons ...discordgo.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return nil
	}
	row := discordgo.ActionsRow{}
	for _, btn := range buttons {
		row.Components = append(row.Components, btn)
	}
	return []discordgo.MessageComponent{row}
}

// questionList renders 0-based catalog indexes as a human list ("Q2, Q5").
func questionList(indexes []int) string {
	var parts []string
	for _, idx := range indexes {
		parts = append(parts, "Q"+strconv.Itoa(idx+1))
	}
	return strings.Join(parts, ", ")
}
