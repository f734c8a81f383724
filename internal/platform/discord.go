package platform

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
)

// Discord adapts a discordgo session to the Client interface. All REST
// calls propagate the caller's context so external stalls stay bounded.
type Discord struct {
	Session *discordgo.Session
}

// NewDiscord wraps an open discordgo session.
func NewDiscord(s *discordgo.Session) *Discord {
	return &Discord{Session: s}
}

var _ Client = (*Discord)(nil)

// FetchUser resolves a user profile by id.
func (d *Discord) FetchUser(ctx context.Context, userID string) (User, error) {
	u, err := d.Session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return User{}, err
	}
	return User{
		ID:            u.ID,
		Username:      u.Username,
		Discriminator: u.Discriminator,
		AvatarURL:     u.AvatarURL("256"),
	}, nil
}

// GuildName returns the guild's display name, preferring the session state
// cache over a REST round trip.
func (d *Discord) GuildName(ctx context.Context, guildID string) (string, error) {
	if g, err := d.Session.State.Guild(guildID); err == nil && g.Name != "" {
		return g.Name, nil
	}
	g, err := d.Session.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return g.Name, nil
}

// MemberExists reports whether the user is currently a guild member.
func (d *Discord) MemberExists(ctx context.Context, guildID, userID string) (bool, error) {
	_, err := d.Session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if isUnknownEntity(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MemberHasRole reports whether the member currently holds the role.
func (d *Discord) MemberHasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	m, err := d.Session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return false, err
	}
	for _, r := range m.Roles {
		if r == roleID {
			return true, nil
		}
	}
	return false, nil
}

// GrantRole adds a role to a member with an audit reason.
func (d *Discord) GrantRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	opts := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	if reason != "" {
		opts = append(opts, discordgo.WithAuditLogReason(reason))
	}
	return d.Session.GuildMemberRoleAdd(guildID, userID, roleID, opts...)
}

// SendDM opens (or reuses) the DM channel and delivers the message.
func (d *Discord) SendDM(ctx context.Context, userID, content string) error {
	ch, err := d.Session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	_, err = d.Session.ChannelMessageSend(ch.ID, content, discordgo.WithContext(ctx))
	return err
}

// KickMember removes a member with an optional audit reason.
func (d *Discord) KickMember(ctx context.Context, guildID, userID, reason string) error {
	return d.Session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
}

// CreateThread opens a public thread with a one-day auto-archive.
func (d *Discord) CreateThread(ctx context.Context, channelID, name string) (string, error) {
	th, err := d.Session.ThreadStart(channelID, name, discordgo.ChannelTypeGuildPublicThread, 1440, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return th.ID, nil
}

// SendMessage posts an embed with components and returns the message id.
func (d *Discord) SendMessage(ctx context.Context, channelID string, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) (string, error) {
	msg, err := d.Session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// EditMessage replaces an existing message's embed and components. A message
// deleted upstream maps to ErrUnknownMessage.
func (d *Discord) EditMessage(ctx context.Context, channelID, messageID string, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) error {
	_, err := d.Session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    channelID,
		ID:         messageID,
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	}, discordgo.WithContext(ctx))
	if isUnknownEntity(err) {
		return ErrUnknownMessage
	}
	return err
}

// PinnedMessages lists the channel's pinned messages.
func (d *Discord) PinnedMessages(ctx context.Context, channelID string) ([]PinnedMessage, error) {
	msgs, err := d.Session.ChannelMessagesPinned(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	out := make([]PinnedMessage, 0, len(msgs))
	for _, m := range msgs {
		pm := PinnedMessage{ID: m.ID}
		if m.Author != nil {
			pm.AuthorID = m.Author.ID
		}
		if len(m.Embeds) > 0 {
			pm.EmbedTitle = m.Embeds[0].Title
		}
		out = append(out, pm)
	}
	return out, nil
}

// PinMessage pins a message in its channel.
func (d *Discord) PinMessage(ctx context.Context, channelID, messageID string) error {
	return d.Session.ChannelMessagePin(channelID, messageID, discordgo.WithContext(ctx))
}

// isUnknownEntity reports whether err is a REST error for a deleted or
// unknown message/member/channel.
func isUnknownEntity(err error) bool {
	if err == nil {
		return false
	}
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) || rest.Message == nil {
		return false
	}
	switch rest.Message.Code {
	case discordgo.ErrCodeUnknownMessage,
		discordgo.ErrCodeUnknownMember,
		discordgo.ErrCodeUnknownUser,
		discordgo.ErrCodeUnknownChannel:
		return true
	}
	return false
}
