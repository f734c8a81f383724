// Package repo – review actions.
//
// ReviewAction rows are append-only. Insertion happens inside the decision
// transaction; UpdateActionMeta is the single chokepoint for attaching
// side-effect outcomes afterwards.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gatewarden/gatewarden/internal/domain"
)

// InsertReviewAction appends one review action row and returns it with its
// generated id populated.
func InsertReviewAction(ctx context.Context, db *gorm.DB, appID, moderatorID string, action domain.DecisionAction, reason *string) (*domain.ReviewAction, error) {
	ra := &domain.ReviewAction{
		AppID:       appID,
		ModeratorID: moderatorID,
		Action:      action,
		Reason:      reason,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(ra).Error; err != nil {
		return nil, err
	}
	return ra, nil
}

// LatestReviewAction returns the most recent action for an application, or
// nil when none has been recorded yet.
func LatestReviewAction(ctx context.Context, db *gorm.DB, appID string) (*domain.ReviewAction, error) {
	var ra domain.ReviewAction
	err := db.WithContext(ctx).
		Where("app_id = ?", appID).
		Order("id desc").
		First(&ra).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ra, nil
}

// LatestActionOfKind returns the most recent action of one kind for an
// application, or nil.
func LatestActionOfKind(ctx context.Context, db *gorm.DB, appID string, action domain.DecisionAction) (*domain.ReviewAction, error) {
	var ra domain.ReviewAction
	err := db.WithContext(ctx).
		Where("app_id = ? AND action = ?", appID, action).
		Order("id desc").
		First(&ra).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ra, nil
}

// ListReviewActions returns the full action history for an application in
// chronological order.
func ListReviewActions(ctx context.Context, db *gorm.DB, appID string) ([]domain.ReviewAction, error) {
	var actions []domain.ReviewAction
	err := db.WithContext(ctx).
		Where("app_id = ?", appID).
		Order("id asc").
		Find(&actions).Error
	return actions, err
}

// UpdateActionMeta attaches (or amends) the side-effect outcome of one
// review action. Returns ErrNotFound when the row does not exist.
func UpdateActionMeta(ctx context.Context, db *gorm.DB, actionID int64, meta domain.ActionMeta) error {
	res := db.WithContext(ctx).
		Model(&domain.ReviewAction{}).
		Where("id = ?", actionID).
		Update("meta", datatypes.NewJSONType(meta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountReviewActions returns the number of recorded actions for an
// application. Used by tests asserting idempotency did not append rows.
func CountReviewActions(ctx context.Context, db *gorm.DB, appID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ReviewAction{}).
		Where("app_id = ?", appID).
		Count(&n).Error
	return n, err
}
