package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const gateEmbedTitle = "Server Applications"

// EnsureGateMessage reconciles the pinned entry message in the guild's gate
// channel: it edits the bot's existing pinned message when one is found and
// otherwise posts and pins a fresh one. Safe to run on every startup.
func (b *Bot) EnsureGateMessage(ctx context.Context, guildID string) error {
	cfg, err := b.Configs.Get(ctx, guildID)
	if err != nil {
		return fmt.Errorf("load guild config: %w", err)
	}
	if cfg == nil || cfg.GateChannelID == "" {
		log.Debug().Str("guild_id", guildID).Msg("no gate channel configured")
		return nil
	}

	embed := &discordgo.MessageEmbed{
		Title: gateEmbedTitle,
		Description: "Welcome! To join the rest of the server, press **Apply** below " +
			"and answer a few questions. A moderator will review your application.",
		Color: 0x5865f2,
	}
	components := buttonRow(discordgo.Button{
		CustomID: StartCustomID(0),
		Label:    "Apply",
		Style:    discordgo.PrimaryButton,
	})

	botUserID := ""
	if b.Session != nil && b.Session.State != nil && b.Session.State.User != nil {
		botUserID = b.Session.State.User.ID
	}

	pinned, err := b.Platform.PinnedMessages(ctx, cfg.GateChannelID)
	if err != nil {
		return fmt.Errorf("list pinned messages: %w", err)
	}
	for _, msg := range pinned {
		if msg.AuthorID == botUserID && msg.EmbedTitle == gateEmbedTitle {
			if err := b.Platform.EditMessage(ctx, cfg.GateChannelID, msg.ID, embed, components); err != nil {
				return fmt.Errorf("refresh gate message: %w", err)
			}
			return nil
		}
	}

	messageID, err := b.Platform.SendMessage(ctx, cfg.GateChannelID, embed, components)
	if err != nil {
		return fmt.Errorf("post gate message: %w", err)
	}
	if err := b.Platform.PinMessage(ctx, cfg.GateChannelID, messageID); err != nil {
		log.Warn().Err(err).Str("guild_id", guildID).Msg("posted gate message but pinning failed")
	}
	log.Info().Str("guild_id", guildID).Str("message_id", messageID).Msg("gate message published")
	return nil
}

// EnsureGateMessages runs the reconciliation for every guild the session is
// currently in.
func (b *Bot) EnsureGateMessages(ctx context.Context) {
	if b.Session == nil || b.Session.State == nil {
		return
	}
	for _, guild := range b.Session.State.Guilds {
		if err := b.EnsureGateMessage(ctx, guild.ID); err != nil {
			log.Warn().Err(err).Str("guild_id", guild.ID).Msg("gate message reconciliation failed")
		}
	}
}
