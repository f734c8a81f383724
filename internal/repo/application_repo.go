// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Application aggregate: drafts, answers, and submission.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a row is not found, functions return ErrNotFound
//     (alias of gorm.ErrRecordNotFound).
//   - GetOrCreateDraft returns ErrActiveApplication when an unresolved
//     submitted/needs_info application already exists for the pair.
//   - SubmitDraft returns ErrNoDraft when the conditional update matched no
//     row, i.e. a concurrent submit already won.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gatewarden/gatewarden/internal/domain"
)

// AnswerMaxLen caps stored answer text, in runes. Values longer than this
// are truncated on write.
const AnswerMaxLen = 1000

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrActiveApplication indicates an unresolved submitted/needs_info
// application already exists for the (guild, user) pair, so a new draft
// must not be created.
var ErrActiveApplication = errors.New("active application already submitted")

// ErrNoDraft indicates a submit attempt matched no draft row: either the
// application does not exist or another submit already flipped it.
var ErrNoDraft = errors.New("no draft to submit")

// GetOrCreateDraft returns the existing draft for (guildID, userID), or
// creates one. The lookup-then-insert runs inside a transaction so two
// concurrent first interactions cannot produce two drafts.
//
// If the pair already has an active (submitted or needs_info) application,
// it returns ErrActiveApplication.
func GetOrCreateDraft(ctx context.Context, db *gorm.DB, guildID, userID string) (*domain.Application, error) {
	var app domain.Application
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("guild_id = ? AND user_id = ? AND status = ?", guildID, userID, domain.StatusDraft).
			First(&app).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var active int64
		if err := tx.Model(&domain.Application{}).
			Where("guild_id = ? AND user_id = ? AND status IN ?", guildID, userID,
				[]domain.Status{domain.StatusSubmitted, domain.StatusNeedsInfo}).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrActiveApplication
		}

		app = domain.Application{
			ID:        uuid.NewString(),
			GuildID:   guildID,
			UserID:    userID,
			Status:    domain.StatusDraft,
			CreatedAt: time.Now().UTC(),
		}
		return tx.Create(&app).Error
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// GetApplication fetches a single application by ID, or ErrNotFound.
func GetApplication(ctx context.Context, db *gorm.DB, id string) (*domain.Application, error) {
	var app domain.Application
	if err := db.WithContext(ctx).Where("id = ?", id).First(&app).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

// GetDraft fetches the current draft for (guildID, userID), or ErrNotFound.
func GetDraft(ctx context.Context, db *gorm.DB, guildID, userID string) (*domain.Application, error) {
	var app domain.Application
	err := db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ? AND status = ?", guildID, userID, domain.StatusDraft).
		First(&app).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// ListAnswers returns all answers of an application ordered by question
// index. An application without answers yields an empty slice.
func ListAnswers(ctx context.Context, db *gorm.DB, appID string) ([]domain.AnswerRecord, error) {
	var out []domain.AnswerRecord
	err := db.WithContext(ctx).
		Where("app_id = ?", appID).
		Order("q_index asc").
		Find(&out).Error
	return out, err
}

// ListApplications returns a guild's applications, most recent first.
func ListApplications(ctx context.Context, db *gorm.DB, guildID string, limit int) ([]domain.Application, error) {
	var out []domain.Application
	q := db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// UpsertAnswer writes one answer for (appID, qIndex), snapshotting the
// prompt text and truncating the answer to AnswerMaxLen runes. A conflicting
// row is overwritten in place and its timestamp refreshed.
func UpsertAnswer(ctx context.Context, db *gorm.DB, appID string, qIndex int, prompt, answer string) error {
	rec := domain.AnswerRecord{
		AppID:     appID,
		QIndex:    qIndex,
		Question:  prompt,
		Answer:    truncateRunes(answer, AnswerMaxLen),
		WrittenAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "app_id"}, {Name: "q_index"}},
			DoUpdates: clause.AssignmentColumns([]string{"question", "answer", "written_at"}),
		}).
		Create(&rec).Error
}

// SubmitDraft flips a draft to submitted, stamping submitted_at. The update
// is conditional on status still being draft, so a race between two submit
// attempts succeeds exactly once; the loser gets ErrNoDraft and must treat
// the application as already submitted.
func SubmitDraft(ctx context.Context, db *gorm.DB, appID string) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Application{}).
		Where("id = ? AND status = ?", appID, domain.StatusDraft).
		Updates(map[string]any{
			"status":       domain.StatusSubmitted,
			"submitted_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoDraft
	}
	return nil
}

// PurgeApplication deletes one application and every dependent row
// (answers, review actions, avatar scan, card mapping) plus the pair's
// thread bridges, in a single transaction. Administrative reset only; the
// state machine never calls this.
func PurgeApplication(ctx context.Context, db *gorm.DB, appID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var app domain.Application
		if err := tx.Where("id = ?", appID).First(&app).Error; err != nil {
			return err
		}
		if err := tx.Where("app_id = ?", appID).Delete(&domain.AnswerRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("app_id = ?", appID).Delete(&domain.ReviewAction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("app_id = ?", appID).Delete(&domain.AvatarScan{}).Error; err != nil {
			return err
		}
		if err := tx.Where("app_id = ?", appID).Delete(&domain.ReviewCard{}).Error; err != nil {
			return err
		}
		if err := tx.Where("guild_id = ? AND user_id = ?", app.GuildID, app.UserID).
			Delete(&domain.ThreadBridge{}).Error; err != nil {
			return err
		}
		return tx.Delete(&app).Error
	})
}

// truncateRunes caps s at max runes without splitting a multi-byte rune.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
