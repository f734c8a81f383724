// Package platform abstracts the chat-platform operations the gatekeeper
// consumes: direct messages, role grants, member removal, thread creation,
// and message publishing. The core services depend only on the Client
// interface; the discordgo adapter lives in discord.go.
package platform

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
)

// ErrUnknownMessage is returned by EditMessage when the referenced message
// no longer exists upstream, so the caller should create a fresh one.
var ErrUnknownMessage = errors.New("message no longer exists")

// User is the subset of profile data the card renderer needs.
type User struct {
	ID            string
	Username      string
	Discriminator string
	AvatarURL     string
}

// Tag renders the display handle, omitting legacy zero discriminators.
func (u User) Tag() string {
	if u.Discriminator != "" && u.Discriminator != "0" {
		return u.Username + "#" + u.Discriminator
	}
	return u.Username
}

// PinnedMessage is the subset of a pinned message used to reconcile the
// gate-entry message.
type PinnedMessage struct {
	ID         string
	AuthorID   string
	EmbedTitle string
}

// Client is the chat-platform capability surface. Every call takes a
// context and must complete within its deadline; implementations never hold
// database locks.
type Client interface {
	// FetchUser resolves a user profile by id.
	FetchUser(ctx context.Context, userID string) (User, error)

	// GuildName returns the display name of a guild.
	GuildName(ctx context.Context, guildID string) (string, error)

	// MemberExists reports whether the user is currently a guild member.
	MemberExists(ctx context.Context, guildID, userID string) (bool, error)

	// MemberHasRole reports whether the member currently holds the role.
	MemberHasRole(ctx context.Context, guildID, userID, roleID string) (bool, error)

	// GrantRole adds a role to a member with an audit reason.
	GrantRole(ctx context.Context, guildID, userID, roleID, reason string) error

	// SendDM delivers a direct message. Fails when the recipient blocks
	// DMs; callers treat that as a recorded, non-fatal outcome.
	SendDM(ctx context.Context, userID, content string) error

	// KickMember removes a member with an optional audit reason.
	KickMember(ctx context.Context, guildID, userID, reason string) error

	// CreateThread opens a public thread under a parent channel and
	// returns the new thread id.
	CreateThread(ctx context.Context, channelID, name string) (string, error)

	// SendMessage posts an embed with components and returns the
	// message id.
	SendMessage(ctx context.Context, channelID string, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) (string, error)

	// EditMessage replaces an existing message's embed and components.
	// Returns ErrUnknownMessage when the message was deleted upstream.
	EditMessage(ctx context.Context, channelID, messageID string, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) error

	// PinnedMessages lists the channel's pinned messages.
	PinnedMessages(ctx context.Context, channelID string) ([]PinnedMessage, error)

	// PinMessage pins a message in its channel.
	PinMessage(ctx context.Context, channelID, messageID string) error
}
