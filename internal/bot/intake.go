package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/gatewarden/gatewarden/internal/avatarscan"
	"github.com/gatewarden/gatewarden/internal/pager"
	"github.com/gatewarden/gatewarden/internal/services"
)

// handleStart opens the intake modal for one page, creating or resuming the
// user's draft.
func (b *Bot) handleStart(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, page int) {
	userID := i.Member.User.ID
	if b.Limiter != nil && !b.Limiter.Allow(userID) {
		b.respondEphemeral(s, i, "You're going a little fast. Give it a few seconds and try again.")
		return
	}

	res, err := b.Intake.Start(ctx, i.GuildID, userID, page)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoQuestions):
			b.respondEphemeral(s, i, "This server hasn't set up its application form yet. Check back later.")
		case errors.Is(err, services.ErrActiveApplication):
			b.respondEphemeral(s, i, "You already have an application under review. A moderator will get back to you.")
		case errors.Is(err, services.ErrPageUnavailable):
			b.respondEphemeral(s, i, "That page no longer exists. Press Apply to start from the beginning.")
		default:
			log.Error().Err(err).Str("guild_id", i.GuildID).Str("user_id", userID).Msg("intake start failed")
			b.respondEphemeral(s, i, "Couldn't open the application form. Please try again.")
		}
		return
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   PageModalCustomID(res.Form.PageIndex),
			Title:      fmt.Sprintf("Application — Page %d of %d", res.Form.PageIndex+1, res.PageCount),
			Components: modalRows(res.Form),
		},
	})
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to open intake modal")
	}
}

// handleIntakeModal persists one submitted page and steers the user to
// whatever comes next: the following page, a page to fix, or confirmation.
func (b *Bot) handleIntakeModal(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, page int) {
	userID := i.Member.User.ID
	answers := collectAnswers(i.ModalSubmitData())

	res, err := b.Intake.SaveAndAdvance(ctx, i.GuildID, userID, page, answers)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoDraft):
			b.respondEphemeral(s, i, "There's no application in progress. It may already be submitted.")
		case errors.Is(err, services.ErrPageUnavailable), errors.Is(err, services.ErrNoQuestions):
			b.respondEphemeral(s, i, "The form changed while you were filling it in. Press Apply to start over.")
		default:
			log.Error().Err(err).Str("guild_id", i.GuildID).Str("user_id", userID).Msg("intake save failed")
			b.respondEphemeral(s, i, "Couldn't save your answers. Please try again.")
		}
		return
	}

	switch res.Kind {
	case services.SaveMissing:
		b.respondEphemeralWithButtons(s, i,
			fmt.Sprintf("Some required questions are still blank: %s. Nothing was saved.", questionList(res.Missing)),
			discordgo.Button{
				CustomID: StartCustomID(page),
				Label:    fmt.Sprintf("Back to page %d", page+1),
				Style:    discordgo.PrimaryButton,
			})
	case services.SaveProgress:
		b.respondEphemeralWithButtons(s, i,
			fmt.Sprintf("Page %d of %d saved.", page+1, res.PageCount),
			discordgo.Button{
				CustomID: StartCustomID(page + 1),
				Label:    fmt.Sprintf("Continue to page %d", page+2),
				Style:    discordgo.PrimaryButton,
			})
	case services.SaveFixPage:
		b.respondEphemeralWithButtons(s, i,
			fmt.Sprintf("Almost there — required answers are missing: %s.", questionList(res.Missing)),
			discordgo.Button{
				CustomID: StartCustomID(res.FixPage),
				Label:    fmt.Sprintf("Fix page %d", res.FixPage+1),
				Style:    discordgo.PrimaryButton,
			})
	case services.SaveSubmitted:
		b.respondEphemeralWithButtons(s, i,
			"✅ Your application has been submitted. A moderator will review it soon.",
			discordgo.Button{
				CustomID: DoneCustomID(),
				Label:    "Done",
				Style:    discordgo.SecondaryButton,
			})
		b.afterSubmit(ctx, i.GuildID, userID, res.ApplicationID)
	}
}

// handleDone collapses the confirmation message.
func (b *Bot) handleDone(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    "All set — your application is in the review queue.",
			Components: []discordgo.MessageComponent{},
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Debug().Err(err).Msg("failed to collapse confirmation")
	}
}

// afterSubmit runs the post-submission pipeline: optional avatar scan, then
// card publication. Both are best effort; the submission itself already
// stands.
func (b *Bot) afterSubmit(ctx context.Context, guildID, userID, appID string) {
	cfg, err := b.Configs.Get(ctx, guildID)
	if err != nil {
		log.Warn().Err(err).Str("guild_id", guildID).Msg("guild config unavailable after submit")
	}

	if cfg != nil && cfg.AvatarScanEnabled && b.Scans != nil {
		if user, err := b.Platform.FetchUser(ctx, userID); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("avatar lookup failed, skipping scan")
		} else if user.AvatarURL != "" {
			_, err := b.Scans.ScanApplication(ctx, appID, user.AvatarURL, avatarscan.Options{
				NSFWThreshold: cfg.AvatarNSFWThreshold,
				EdgeThreshold: cfg.AvatarEdgeThreshold,
			})
			if err != nil {
				log.Warn().Err(err).Str("app_id", appID).Msg("avatar scan failed")
			}
		}
	}

	if err := b.Publisher.Publish(ctx, appID); err != nil {
		if errors.Is(err, services.ErrReviewChannelNotConfigured) {
			log.Warn().Str("guild_id", guildID).Msg("no review channel configured, card not published")
			return
		}
		log.Error().Err(err).Str("app_id", appID).Msg("failed to publish decision card")
	}
}

// modalRows converts a page form into modal component rows. Answers use
// paragraph inputs so multi-line responses survive.
func modalRows(form pager.Form) []discordgo.MessageComponent {
	rows := make([]discordgo.MessageComponent, 0, len(form.Inputs))
	for _, in := range form.Inputs {
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    QuestionCustomID(in.QIndex),
				Label:       in.Label,
				Style:       discordgo.TextInputParagraph,
				Placeholder: in.Placeholder,
				Value:       in.Value,
				Required:    in.Required,
				MaxLength:   in.MaxLen,
			},
		}})
	}
	return rows
}

// collectAnswers extracts the typed values keyed by catalog index.
func collectAnswers(data discordgo.ModalSubmitInteractionData) map[int]string {
	answers := make(map[int]string)
	for _, component := range data.Components {
		row, ok := component.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			input, ok := inner.(*discordgo.TextInput)
			if !ok {
				continue
			}
			if qIndex, ok := ParseQuestion(input.CustomID); ok {
				answers[qIndex] = input.Value
			}
		}
	}
	return answers
}
