package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/gatewarden/gatewarden/internal/domain"
	"github.com/gatewarden/gatewarden/internal/platform"
	"github.com/gatewarden/gatewarden/internal/repo"
	"github.com/gatewarden/gatewarden/internal/services"
)

// Publisher keeps the decision card for an application in sync with the
// database. It always edits the previously published message when one still
// exists and falls back to posting a fresh card when the old message is gone.
type Publisher struct {
	DB       *gorm.DB
	Platform platform.Client
	Configs  *services.GuildConfigService
}

// NewPublisher constructs a Publisher.
func NewPublisher(db *gorm.DB, client platform.Client, configs *services.GuildConfigService) *Publisher {
	return &Publisher{DB: db, Platform: client, Configs: configs}
}

// Publish re-renders the card for the application and reconciles it with the
// review channel. Returns services.ErrReviewChannelNotConfigured when the
// guild has no review channel set.
func (p *Publisher) Publish(ctx context.Context, appID string) error {
	app, err := repo.GetApplication(ctx, p.DB, appID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return services.ErrApplicationNotFound
		}
		return fmt.Errorf("load application: %w", err)
	}

	cfg, err := p.Configs.Get(ctx, app.GuildID)
	if err != nil {
		return fmt.Errorf("load guild config: %w", err)
	}
	if cfg == nil || cfg.ReviewChannelID == "" {
		return services.ErrReviewChannelNotConfigured
	}

	data, err := p.loadCardData(ctx, app)
	if err != nil {
		return err
	}
	card := Render(data)

	mapping, err := repo.GetReviewCard(ctx, p.DB, app.ID)
	if err != nil {
		return fmt.Errorf("load card mapping: %w", err)
	}
	if mapping != nil {
		err = p.Platform.EditMessage(ctx, mapping.ChannelID, mapping.MessageID, card.Embed, card.Components)
		if err == nil {
			return nil
		}
		if !errors.Is(err, platform.ErrUnknownMessage) {
			return fmt.Errorf("edit card: %w", err)
		}
		log.Warn().Str("app_id", app.ID).Str("message_id", mapping.MessageID).
			Msg("card message is gone, reposting")
	}

	messageID, err := p.Platform.SendMessage(ctx, cfg.ReviewChannelID, card.Embed, card.Components)
	if err != nil {
		return fmt.Errorf("post card: %w", err)
	}
	if err := repo.UpsertReviewCard(ctx, p.DB, app.ID, cfg.ReviewChannelID, messageID); err != nil {
		return fmt.Errorf("save card mapping: %w", err)
	}
	return nil
}

func (p *Publisher) loadCardData(ctx context.Context, app *domain.Application) (CardData, error) {
	answers, err := repo.ListAnswers(ctx, p.DB, app.ID)
	if err != nil {
		return CardData{}, fmt.Errorf("load answers: %w", err)
	}
	lastRow, err := repo.LatestReviewAction(ctx, p.DB, app.ID)
	if err != nil {
		return CardData{}, fmt.Errorf("load last action: %w", err)
	}
	bridge, err := repo.FindOpenBridge(ctx, p.DB, app.GuildID, app.UserID)
	if err != nil {
		return CardData{}, fmt.Errorf("load bridge: %w", err)
	}
	scan, err := repo.GetAvatarScan(ctx, p.DB, app.ID)
	if err != nil {
		return CardData{}, fmt.Errorf("load avatar scan: %w", err)
	}

	data := CardData{App: *app, Answers: answers, Scan: scan}
	if bridge != nil {
		data.OpenThreadID = bridge.ThreadID
	}

	// Display lookups are best effort; a deleted account must not block the
	// card from rendering.
	data.UserTag = "user " + app.UserID
	if user, err := p.Platform.FetchUser(ctx, app.UserID); err == nil {
		data.UserTag = user.Tag()
		data.AvatarURL = user.AvatarURL
	} else {
		log.Debug().Err(err).Str("user_id", app.UserID).Msg("applicant lookup failed")
	}

	if lastRow != nil {
		view := &ActionView{
			Action:      lastRow.Action,
			ModeratorID: lastRow.ModeratorID,
			Reason:      lastRow.Reason,
			CreatedAt:   lastRow.CreatedAt,
			Meta:        lastRow.Meta.Data(),
		}
		if mod, err := p.Platform.FetchUser(ctx, lastRow.ModeratorID); err == nil {
			view.ModeratorTag = mod.Tag()
		}
		data.LastAction = view
	}

	data.Flags = DeriveFlags(data.LastAction, data.OpenThreadID)
	return data, nil
}
