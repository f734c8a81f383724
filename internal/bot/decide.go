package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/gatewarden/gatewarden/internal/domain"
	"github.com/gatewarden/gatewarden/internal/repo"
	"github.com/gatewarden/gatewarden/internal/review"
	"github.com/gatewarden/gatewarden/internal/services"
)

const rejectReasonMaxLen = 500

// handleDecide runs one decision button press. Rejection detours through a
// reason modal; everything else is applied immediately.
func (b *Bot) handleDecide(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, action domain.DecisionAction, appID string) {
	if !b.isReviewer(ctx, i) {
		b.respondEphemeral(s, i, "You don't have permission to review applications.")
		return
	}

	if action == domain.ActionReject {
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: &discordgo.InteractionResponseData{
				CustomID: review.RejectModalCustomID(appID),
				Title:    "Reject application",
				Components: []discordgo.MessageComponent{
					discordgo.ActionsRow{Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    "reason",
							Label:       "Reason (sent to the applicant)",
							Style:       discordgo.TextInputParagraph,
							Required:    true,
							MaxLength:   rejectReasonMaxLen,
							Placeholder: "Why this application is being declined",
						},
					}},
				},
			},
		})
		if err != nil {
			log.Warn().Err(err).Str("app_id", appID).Msg("failed to open rejection modal")
		}
		return
	}

	if !b.deferEphemeral(s, i) {
		return
	}
	b.followupEphemeral(s, i, b.applyDecision(ctx, i, action, appID, ""))
}

// handleRejectModal applies a rejection with the typed reason.
func (b *Bot) handleRejectModal(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, appID string) {
	if !b.isReviewer(ctx, i) {
		b.respondEphemeral(s, i, "You don't have permission to review applications.")
		return
	}
	reason := modalValue(i.ModalSubmitData(), "reason")
	if !b.deferEphemeral(s, i) {
		return
	}
	b.followupEphemeral(s, i, b.applyDecision(ctx, i, domain.ActionReject, appID, reason))
}

// applyDecision runs the transition, its side effects, and the card refresh,
// and returns the reviewer-facing summary line.
func (b *Bot) applyDecision(ctx context.Context, i *discordgo.InteractionCreate, action domain.DecisionAction, appID, reason string) string {
	moderatorID := i.Member.User.ID

	res, err := b.Decisions.Transition(ctx, action, appID, moderatorID, reason)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrReasonRequired):
			return "Reason is required."
		case errors.Is(err, services.ErrApplicationNotFound):
			return "Application not found. It may have been removed."
		default:
			log.Error().Err(err).Str("app_id", appID).Str("action", string(action)).
				Msg("decision transition failed")
			return "Couldn't apply the decision. Please try again."
		}
	}

	var msg string
	switch res.Kind {
	case services.OutcomeAlready:
		msg = "Already " + statusPhrase(res.Status) + "."
	case services.OutcomeTerminal:
		msg = fmt.Sprintf("Already resolved (%s).", res.Status)
	case services.OutcomeInvalid:
		msg = fmt.Sprintf("Application is not ready for %s (current status: %s).", actionPhrase(action), res.Status)
	case services.OutcomeChanged:
		msg = b.runEffects(ctx, action, appID, moderatorID, reason, res.ActionID)
	}

	// Refresh on every outcome so a stale card heals itself after a
	// duplicate or late press.
	if err := b.Publisher.Publish(ctx, appID); err != nil &&
		!errors.Is(err, services.ErrReviewChannelNotConfigured) {
		log.Warn().Err(err).Str("app_id", appID).Msg("card refresh failed after decision")
	}
	return msg
}

func (b *Bot) runEffects(ctx context.Context, action domain.DecisionAction, appID, moderatorID, reason string, actionID int64) string {
	app, err := repo.GetApplication(ctx, b.DB, appID)
	if err != nil {
		log.Error().Err(err).Str("app_id", appID).Msg("application vanished after transition")
		return "Decision recorded, but follow-up effects could not run."
	}
	cfg, err := b.Configs.Get(ctx, app.GuildID)
	if err != nil {
		log.Warn().Err(err).Str("guild_id", app.GuildID).Msg("guild config unavailable for effects")
	}

	switch action {
	case domain.ActionApprove:
		meta := b.Effects.Approve(ctx, app.GuildID, app.UserID, cfg)
		b.attachMeta(ctx, actionID, meta)
		return "Application approved." + effectNotes(meta)

	case domain.ActionReject:
		meta := b.Effects.Reject(ctx, app.GuildID, app.UserID, reason)
		b.attachMeta(ctx, actionID, meta)
		return "Application rejected." + effectNotes(meta)

	case domain.ActionNeedInfo:
		if cfg == nil || cfg.ReviewChannelID == "" {
			b.attachMeta(ctx, actionID, domain.ActionMeta{ThreadError: "create_failed"})
			return "Marked as needing info, but no follow-up thread could be created (no review channel configured)."
		}
		outcome, err := b.Effects.NeedInfo(ctx, app.GuildID, app.UserID, appID, cfg.ReviewChannelID)
		if err != nil {
			b.attachMeta(ctx, actionID, domain.ActionMeta{ThreadError: "create_failed"})
			return "Marked as needing info, but creating the follow-up thread failed."
		}
		b.attachMeta(ctx, actionID, domain.ActionMeta{ThreadID: outcome.ThreadID, ThreadURL: outcome.ThreadURL})
		if outcome.Created {
			return "Marked as needing info. Follow-up thread: " + outcome.ThreadURL
		}
		return "Marked as needing info. Reusing the open thread: " + outcome.ThreadURL

	case domain.ActionKick:
		meta := b.Effects.Kick(ctx, app.GuildID, app.UserID, reason)
		b.attachMeta(ctx, actionID, meta)
		if meta.KickSucceeded != nil && *meta.KickSucceeded {
			return "Applicant kicked." + effectNotes(meta)
		}
		return "Kick recorded, but removing the member failed. Check role hierarchy and permissions."
	}
	return "Decision recorded."
}

func (b *Bot) attachMeta(ctx context.Context, actionID int64, meta domain.ActionMeta) {
	if err := b.Decisions.AttachMeta(ctx, actionID, meta); err != nil {
		log.Warn().Err(err).Int64("action_id", actionID).Msg("failed to attach action metadata")
	}
}

// effectNotes appends reviewer-visible caveats for failed best-effort
// effects.
func effectNotes(meta domain.ActionMeta) string {
	var notes []string
	if meta.DMDelivered != nil && !*meta.DMDelivered {
		notes = append(notes, "the applicant could not be DMed")
	}
	if meta.RoleApplied != nil && !*meta.RoleApplied {
		notes = append(notes, "the role was not applied")
	}
	if len(notes) == 0 {
		return ""
	}
	return " Note: " + strings.Join(notes, "; ") + "."
}

func statusPhrase(s domain.Status) string {
	switch s {
	case domain.StatusApproved:
		return "approved"
	case domain.StatusRejected:
		return "rejected"
	case domain.StatusKicked:
		return "kicked"
	case domain.StatusNeedsInfo:
		return "marked as needing info"
	}
	return string(s)
}

func actionPhrase(a domain.DecisionAction) string {
	switch a {
	case domain.ActionApprove:
		return "approval"
	case domain.ActionReject:
		return "rejection"
	case domain.ActionNeedInfo:
		return "a follow-up request"
	case domain.ActionKick:
		return "removal"
	}
	return string(a)
}

// modalValue finds one text input's value by custom id.
func modalValue(data discordgo.ModalSubmitInteractionData, customID string) string {
	for _, component := range data.Components {
		row, ok := component.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok && input.CustomID == customID {
				return input.Value
			}
		}
	}
	return ""
}
