// Package services – DecisionService
//
// This file implements the moderator decision state machine. Every
// transition runs as one atomic read-classify-write transaction and is safe
// to repeat: a duplicate press reports what already happened instead of
// appending a second ReviewAction or clobbering a resolved outcome.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/gatewarden/gatewarden/internal/domain"
	"github.com/gatewarden/gatewarden/internal/repo"
)

// OutcomeKind classifies one transition attempt.
type OutcomeKind int

const (
	// OutcomeChanged means the transition was applied and a ReviewAction
	// row was inserted.
	OutcomeChanged OutcomeKind = iota
	// OutcomeAlready means the application already carries the target
	// status; the attempt is an idempotent no-op.
	OutcomeAlready
	// OutcomeTerminal means a different terminal status was reached
	// first; the attempt is rejected with that status.
	OutcomeTerminal
	// OutcomeInvalid means the current status is not eligible for the
	// attempted transition (e.g. deciding on a draft).
	OutcomeInvalid
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeChanged:
		return "changed"
	case OutcomeAlready:
		return "already"
	case OutcomeTerminal:
		return "terminal"
	case OutcomeInvalid:
		return "invalid"
	}
	return "unknown"
}

// TransitionResult reports what a transition attempt did. For
// OutcomeChanged, ActionID identifies the inserted ReviewAction for later
// metadata attachment; for every other kind Status carries the status that
// blocked (or satisfied) the attempt.
type TransitionResult struct {
	Kind     OutcomeKind
	Status   domain.Status
	ActionID int64
}

// DecisionService applies guarded, idempotent decision transitions.
type DecisionService struct {
	// DB is the GORM handle; each transition opens its own transaction.
	DB *gorm.DB
}

// Transition attempts one decision on an application.
//
// Eligibility:
//   - approve: from submitted or needs_info; clears any resolution reason.
//   - reject: from submitted or needs_info; requires a non-blank reason.
//   - need_info: from submitted only; clears resolver and resolution fields
//     so a later decision is unambiguous. A repeat from needs_info lands in
//     OutcomeAlready rather than re-entering.
//   - kick: from submitted or needs_info; never from draft.
//
// Errors are reserved for infrastructure failures, ErrApplicationNotFound,
// and ErrReasonRequired; expected conflicts come back as classified
// outcomes.
func (s *DecisionService) Transition(ctx context.Context, action domain.DecisionAction, appID, moderatorID string, reason string) (TransitionResult, error) {
	reason = strings.TrimSpace(reason)
	if action == domain.ActionReject && reason == "" {
		return TransitionResult{}, ErrReasonRequired
	}

	var res TransitionResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var app domain.Application
		if err := tx.Where("id = ?", appID).First(&app).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrApplicationNotFound
			}
			return err
		}

		target := action.TargetStatus()
		if app.Status == target {
			res = TransitionResult{Kind: OutcomeAlready, Status: app.Status}
			return nil
		}
		if app.Status.Terminal() {
			res = TransitionResult{Kind: OutcomeTerminal, Status: app.Status}
			return nil
		}
		if !eligible(action, app.Status) {
			res = TransitionResult{Kind: OutcomeInvalid, Status: app.Status}
			return nil
		}

		var reasonPtr *string
		if reason != "" {
			reasonPtr = &reason
		}
		ra, err := repo.InsertReviewAction(ctx, tx, appID, moderatorID, action, reasonPtr)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":     target,
			"updated_at": now,
		}
		if action == domain.ActionNeedInfo {
			// Back to an undecided state: no resolver, no reason.
			updates["resolver_id"] = nil
			updates["resolution_reason"] = nil
			updates["resolved_at"] = nil
		} else {
			updates["resolver_id"] = moderatorID
			updates["resolved_at"] = now
			if reasonPtr != nil {
				updates["resolution_reason"] = reason
			} else {
				updates["resolution_reason"] = nil
			}
		}
		if err := tx.Model(&domain.Application{}).Where("id = ?", appID).Updates(updates).Error; err != nil {
			return err
		}
		res = TransitionResult{Kind: OutcomeChanged, Status: target, ActionID: ra.ID}
		return nil
	})
	if err != nil {
		return TransitionResult{}, err
	}
	decisionsTotal.WithLabelValues(string(action), res.Kind.String()).Inc()
	return res, nil
}

// AttachMeta records the side-effect outcome on a previously inserted
// ReviewAction. It runs outside the transition transaction on purpose: the
// decision stays durable even when its consequences partially fail.
func (s *DecisionService) AttachMeta(ctx context.Context, actionID int64, meta domain.ActionMeta) error {
	return repo.UpdateActionMeta(ctx, s.DB, actionID, meta)
}

// RecordAudit appends an auxiliary (non-transition) action such as
// avatar_viewsrc, with its metadata set immediately.
func (s *DecisionService) RecordAudit(ctx context.Context, appID, moderatorID string, action domain.DecisionAction, meta domain.ActionMeta) error {
	ra, err := repo.InsertReviewAction(ctx, s.DB, appID, moderatorID, action, nil)
	if err != nil {
		return err
	}
	if meta.IsZero() {
		return nil
	}
	return repo.UpdateActionMeta(ctx, s.DB, ra.ID, meta)
}

// eligible reports whether an action may fire from a status. Terminal and
// already-at-target statuses are classified before this is consulted.
func eligible(action domain.DecisionAction, from domain.Status) bool {
	switch action {
	case domain.ActionApprove, domain.ActionReject, domain.ActionKick:
		return from == domain.StatusSubmitted || from == domain.StatusNeedsInfo
	case domain.ActionNeedInfo:
		return from == domain.StatusSubmitted
	}
	return false
}
