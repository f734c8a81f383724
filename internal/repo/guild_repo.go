// Package repo – guild configuration, question catalog, thread bridges,
// card mappings, and avatar scans.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gatewarden/gatewarden/internal/domain"
)

// GetGuildConfig fetches a guild's configuration, or ErrNotFound.
func GetGuildConfig(ctx context.Context, db *gorm.DB, guildID string) (*domain.GuildConfig, error) {
	var cfg domain.GuildConfig
	if err := db.WithContext(ctx).Where("guild_id = ?", guildID).First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpsertGuildConfig applies a partial patch to a guild's configuration,
// creating the row with defaults when absent. Patch keys are column names.
func UpsertGuildConfig(ctx context.Context, db *gorm.DB, guildID string, patch map[string]any) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cfg domain.GuildConfig
		err := tx.Where("guild_id = ?", guildID).First(&cfg).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cfg = domain.GuildConfig{GuildID: guildID, CreatedAt: time.Now().UTC()}
			if err := tx.Create(&cfg).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		if len(patch) == 0 {
			return nil
		}
		patch["updated_at"] = time.Now().UTC()
		return tx.Model(&domain.GuildConfig{}).
			Where("guild_id = ?", guildID).
			Updates(patch).Error
	})
}

// ListQuestions returns a guild's intake catalog ordered by question index.
func ListQuestions(ctx context.Context, db *gorm.DB, guildID string) ([]domain.GuildQuestion, error) {
	var out []domain.GuildQuestion
	err := db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("q_index asc").
		Find(&out).Error
	return out, err
}

// ReplaceQuestions swaps a guild's entire catalog in one transaction.
// Indices are renumbered from zero in the given order.
func ReplaceQuestions(ctx context.Context, db *gorm.DB, guildID string, questions []domain.GuildQuestion) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("guild_id = ?", guildID).Delete(&domain.GuildQuestion{}).Error; err != nil {
			return err
		}
		for i := range questions {
			questions[i].GuildID = guildID
			questions[i].QIndex = i
			if err := tx.Create(&questions[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindOpenBridge returns the latest open thread bridge for (guild, user),
// or nil when none is open.
func FindOpenBridge(ctx context.Context, db *gorm.DB, guildID, userID string) (*domain.ThreadBridge, error) {
	var tb domain.ThreadBridge
	err := db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ? AND state = ?", guildID, userID, "open").
		Order("id desc").
		First(&tb).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tb, nil
}

// InsertBridge records a newly opened thread for (guild, user).
func InsertBridge(ctx context.Context, db *gorm.DB, guildID, userID, threadID string) (*domain.ThreadBridge, error) {
	tb := &domain.ThreadBridge{
		GuildID:   guildID,
		UserID:    userID,
		ThreadID:  threadID,
		State:     "open",
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(tb).Error; err != nil {
		return nil, err
	}
	return tb, nil
}

// CloseBridge marks a bridge closed. Returns ErrNotFound for unknown ids.
func CloseBridge(ctx context.Context, db *gorm.DB, bridgeID int64) error {
	res := db.WithContext(ctx).
		Model(&domain.ThreadBridge{}).
		Where("id = ?", bridgeID).
		Updates(map[string]any{"state": "closed", "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetReviewCard returns the card mapping for an application, or nil.
func GetReviewCard(ctx context.Context, db *gorm.DB, appID string) (*domain.ReviewCard, error) {
	var rc domain.ReviewCard
	err := db.WithContext(ctx).Where("app_id = ?", appID).First(&rc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

// UpsertReviewCard records (or moves) the live card message of an
// application, guaranteeing at most one mapping per application.
func UpsertReviewCard(ctx context.Context, db *gorm.DB, appID, channelID, messageID string) error {
	rc := domain.ReviewCard{
		AppID:     appID,
		ChannelID: channelID,
		MessageID: messageID,
		UpdatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "app_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"channel_id", "message_id", "updated_at"}),
		}).
		Create(&rc).Error
}

// UpsertAvatarScan writes the scan result for an application, overwriting a
// previous one in place.
func UpsertAvatarScan(ctx context.Context, db *gorm.DB, scan domain.AvatarScan) error {
	scan.ScannedAt = time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "app_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"avatar_url", "nsfw_score", "skin_edge_score", "flagged", "reason", "scanned_at",
			}),
		}).
		Create(&scan).Error
}

// GetAvatarScan returns the stored scan for an application, or nil.
func GetAvatarScan(ctx context.Context, db *gorm.DB, appID string) (*domain.AvatarScan, error) {
	var scan domain.AvatarScan
	err := db.WithContext(ctx).Where("app_id = ?", appID).First(&scan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &scan, nil
}
