// Package services – EffectRunner
//
// This file orchestrates the externally visible consequences of each
// decision: direct messages, role grants, thread creation, and member
// removal. Flows run only after a committed transition, are independently
// failure-tolerant, and report what landed via ActionMeta — they never undo
// the recorded decision.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/gatewarden/gatewarden/internal/domain"
	"github.com/gatewarden/gatewarden/internal/platform"
	"github.com/gatewarden/gatewarden/internal/repo"
)

// NeedInfoOutcome reports the thread used for a needs_info follow-up.
type NeedInfoOutcome struct {
	ThreadID  string
	ThreadURL string
	// Created is false when an open bridge was reused.
	Created bool
}

// EffectRunner executes decision side effects against the chat platform.
type EffectRunner struct {
	// DB is used for thread-bridge bookkeeping only.
	DB *gorm.DB
	// Platform is the external chat client.
	Platform platform.Client
	// CallTimeout bounds each individual external call.
	CallTimeout time.Duration
}

func (r *EffectRunner) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := r.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// Approve grants the configured acceptance role (skipping the grant when
// already held) and notifies the applicant. Permission failures are logged
// and reported through the returned metadata, never as errors.
func (r *EffectRunner) Approve(ctx context.Context, guildID, userID string, cfg *domain.GuildConfig) domain.ActionMeta {
	meta := domain.ActionMeta{RoleApplied: domain.Bool(false), DMDelivered: domain.Bool(false)}

	cctx, cancel := r.callCtx(ctx)
	exists, err := r.Platform.MemberExists(cctx, guildID, userID)
	cancel()
	if err != nil || !exists {
		log.Warn().Err(err).Str("guild_id", guildID).Str("user_id", userID).
			Msg("member unavailable for approval effects")
		return meta
	}

	if cfg != nil && cfg.AcceptedRoleID != "" {
		cctx, cancel := r.callCtx(ctx)
		held, err := r.Platform.MemberHasRole(cctx, guildID, userID, cfg.AcceptedRoleID)
		cancel()
		switch {
		case err != nil:
			log.Warn().Err(err).Str("guild_id", guildID).Str("user_id", userID).
				Msg("failed to read member roles")
		case held:
			meta.RoleApplied = domain.Bool(true)
		default:
			cctx, cancel := r.callCtx(ctx)
			err := r.Platform.GrantRole(cctx, guildID, userID, cfg.AcceptedRoleID, "application approved")
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("guild_id", guildID).Str("user_id", userID).
					Str("role_id", cfg.AcceptedRoleID).Msg("failed to grant acceptance role")
			} else {
				meta.RoleApplied = domain.Bool(true)
			}
		}
	} else {
		log.Warn().Str("guild_id", guildID).Msg("no acceptance role configured")
	}

	name := r.guildName(ctx, guildID)
	cctx, cancel = r.callCtx(ctx)
	err = r.Platform.SendDM(cctx, userID, fmt.Sprintf("Hi — welcome to %s! Your application has been approved.", name))
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to DM applicant after approval")
	} else {
		meta.DMDelivered = domain.Bool(true)
	}
	return meta
}

// Reject notifies the applicant with the recorded reason.
func (r *EffectRunner) Reject(ctx context.Context, guildID, userID, reason string) domain.ActionMeta {
	meta := domain.ActionMeta{DMDelivered: domain.Bool(false)}
	name := r.guildName(ctx, guildID)
	content := fmt.Sprintf(
		"Hi — thanks for applying to %s. We're not able to approve this application.\nReason: %s.",
		name, reason,
	)
	cctx, cancel := r.callCtx(ctx)
	err := r.Platform.SendDM(cctx, userID, content)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to DM applicant about rejection")
	} else {
		meta.DMDelivered = domain.Bool(true)
	}
	return meta
}

// NeedInfo reuses the open follow-up thread for (guild, user) when one
// exists; otherwise it creates a thread under the review channel and records
// the bridge as open. Unlike the other flows, a creation failure propagates:
// without a destination there is nothing useful to show — but the committed
// transition stands, and the caller tags the action with a thread error.
func (r *EffectRunner) NeedInfo(ctx context.Context, guildID, userID, appID, reviewChannelID string) (NeedInfoOutcome, error) {
	existing, err := repo.FindOpenBridge(ctx, r.DB, guildID, userID)
	if err != nil {
		return NeedInfoOutcome{}, err
	}
	if existing != nil {
		return NeedInfoOutcome{
			ThreadID:  existing.ThreadID,
			ThreadURL: threadURL(guildID, reviewChannelID, existing.ThreadID),
		}, nil
	}

	cctx, cancel := r.callCtx(ctx)
	threadID, err := r.Platform.CreateThread(cctx, reviewChannelID, "need-info-"+appID)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("guild_id", guildID).Str("channel_id", reviewChannelID).
			Msg("failed to create need-info thread")
		return NeedInfoOutcome{}, err
	}
	if _, err := repo.InsertBridge(ctx, r.DB, guildID, userID, threadID); err != nil {
		return NeedInfoOutcome{}, err
	}
	return NeedInfoOutcome{
		ThreadID:  threadID,
		ThreadURL: threadURL(guildID, reviewChannelID, threadID),
		Created:   true,
	}, nil
}

// Kick notifies the applicant first (best effort), then attempts removal.
// The two outcomes are recorded independently: a failed removal does not
// erase a delivered notification, nor the other way around.
func (r *EffectRunner) Kick(ctx context.Context, guildID, userID, reason string) domain.ActionMeta {
	meta := domain.ActionMeta{DMDelivered: domain.Bool(false), KickSucceeded: domain.Bool(false)}

	cctx, cancel := r.callCtx(ctx)
	exists, err := r.Platform.MemberExists(cctx, guildID, userID)
	cancel()
	if err != nil || !exists {
		log.Warn().Err(err).Str("guild_id", guildID).Str("user_id", userID).
			Msg("member unavailable for kick effects")
		return meta
	}

	name := r.guildName(ctx, guildID)
	content := fmt.Sprintf("Hi — your application with %s was reviewed and we need to remove you from the server.", name)
	if reason != "" {
		content += fmt.Sprintf("\nReason: %s.", reason)
	}
	cctx, cancel = r.callCtx(ctx)
	err = r.Platform.SendDM(cctx, userID, content)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to DM applicant before kick")
	} else {
		meta.DMDelivered = domain.Bool(true)
	}

	cctx, cancel = r.callCtx(ctx)
	err = r.Platform.KickMember(cctx, guildID, userID, reason)
	cancel()
	if err != nil {
		meta.Error = err.Error()
		log.Warn().Err(err).Str("guild_id", guildID).Str("user_id", userID).Msg("failed to kick member")
	} else {
		meta.KickSucceeded = domain.Bool(true)
	}
	return meta
}

func (r *EffectRunner) guildName(ctx context.Context, guildID string) string {
	cctx, cancel := r.callCtx(ctx)
	defer cancel()
	name, err := r.Platform.GuildName(cctx, guildID)
	if err != nil || name == "" {
		return "the server"
	}
	return name
}

// threadURL builds the canonical deep link for a thread.
func threadURL(guildID, channelID, threadID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, threadID)
}
