// Package services – IntakeService
//
// This file implements the intake engine: obtaining or resuming a draft,
// validating and persisting page answers, and the final draft -> submitted
// flip. Submission is a conditional update, so two racing submit attempts
// succeed exactly once; the loser observes ErrNoDraft and must treat the
// application as already submitted.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/gatewarden/gatewarden/internal/domain"
	"github.com/gatewarden/gatewarden/internal/pager"
	"github.com/gatewarden/gatewarden/internal/repo"
)

// SaveKind classifies the outcome of SaveAndAdvance.
type SaveKind int

const (
	// SaveMissing means required answers on the submitted page were blank;
	// nothing was persisted.
	SaveMissing SaveKind = iota
	// SaveProgress means the page was stored and more pages remain.
	SaveProgress
	// SaveFixPage means all pages were visited but a required answer is
	// still missing somewhere in the catalog; FixPage points at it.
	SaveFixPage
	// SaveSubmitted means the application left draft state.
	SaveSubmitted
)

// StartResult is the outcome of starting or resuming intake.
type StartResult struct {
	ApplicationID string
	Form          pager.Form
	PageCount     int
}

// SaveResult is the classified outcome of one page save.
type SaveResult struct {
	Kind          SaveKind
	ApplicationID string
	PageCount     int
	// Missing holds the 0-based question indexes that still need answers,
	// for SaveMissing and SaveFixPage.
	Missing []int
	// FixPage is the page containing the first missing required answer,
	// for SaveFixPage.
	FixPage int
}

// IntakeService orchestrates page navigation, answer persistence, and
// submission for one guild's intake catalog.
type IntakeService struct {
	// DB is the GORM handle used for all intake operations.
	DB *gorm.DB
	// PageSize overrides the questions-per-page default when positive.
	PageSize int
}

func (s *IntakeService) pageSize() int {
	if s.PageSize > 0 {
		return s.PageSize
	}
	return pager.DefaultPageSize
}

// Start obtains or resumes the user's draft and returns the form for the
// requested page, pre-filled with previously saved answers.
//
// Errors:
//   - ErrNoQuestions when the guild has no catalog.
//   - ErrPageUnavailable when pageIndex is outside the pagination.
//   - ErrActiveApplication when an unresolved application already exists
//     (distinct from having a draft, which simply resumes it).
func (s *IntakeService) Start(ctx context.Context, guildID, userID string, pageIndex int) (*StartResult, error) {
	questions, err := repo.ListQuestions(ctx, s.DB, guildID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	pages := pager.Paginate(questions, s.pageSize())
	if pageIndex < 0 || pageIndex >= len(pages) {
		return nil, ErrPageUnavailable
	}

	app, err := repo.GetOrCreateDraft(ctx, s.DB, guildID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrActiveApplication) {
			return nil, ErrActiveApplication
		}
		return nil, err
	}

	answers, err := repo.ListAnswers(ctx, s.DB, app.ID)
	if err != nil {
		return nil, err
	}
	form := pager.BuildForm(pages[pageIndex], len(pages), answerMap(answers))
	return &StartResult{ApplicationID: app.ID, Form: form, PageCount: len(pages)}, nil
}

// SaveAndAdvance validates and persists one page of answers for the user's
// current draft, then classifies what happens next: more pages, a page to
// fix, or submission.
//
// Required questions on the page must have a non-blank (post-trim) answer;
// otherwise nothing is persisted and SaveMissing names the offenders. On the
// last page every required question across the full catalog is re-validated,
// guarding against questions added while earlier pages were being filled.
//
// Errors:
//   - ErrNoQuestions / ErrPageUnavailable as in Start.
//   - ErrNoDraft when no draft exists (including the lost submit race).
func (s *IntakeService) SaveAndAdvance(ctx context.Context, guildID, userID string, pageIndex int, answers map[int]string) (*SaveResult, error) {
	questions, err := repo.ListQuestions(ctx, s.DB, guildID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	pages := pager.Paginate(questions, s.pageSize())
	if pageIndex < 0 || pageIndex >= len(pages) {
		return nil, ErrPageUnavailable
	}
	page := pages[pageIndex]

	draft, err := repo.GetDraft(ctx, s.DB, guildID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoDraft
		}
		return nil, err
	}

	var missing []int
	for _, q := range page.Questions {
		if q.Required && strings.TrimSpace(answers[q.QIndex]) == "" {
			missing = append(missing, q.QIndex)
		}
	}
	if len(missing) > 0 {
		return &SaveResult{Kind: SaveMissing, ApplicationID: draft.ID, PageCount: len(pages), Missing: missing}, nil
	}

	// Persist the whole page atomically; a failure mid-page leaves no
	// partial write behind.
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, q := range page.Questions {
			if err := repo.UpsertAnswer(ctx, tx, draft.ID, q.QIndex, q.Prompt, answers[q.QIndex]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if pageIndex < len(pages)-1 {
		return &SaveResult{Kind: SaveProgress, ApplicationID: draft.ID, PageCount: len(pages)}, nil
	}

	// Last page: re-validate the entire catalog before submitting.
	stored, err := repo.ListAnswers(ctx, s.DB, draft.ID)
	if err != nil {
		return nil, err
	}
	byIndex := answerMap(stored)
	var stillMissing []int
	for _, q := range questions {
		if q.Required && strings.TrimSpace(byIndex[q.QIndex]) == "" {
			stillMissing = append(stillMissing, q.QIndex)
		}
	}
	if len(stillMissing) > 0 {
		fix := pager.PageOf(pages, stillMissing[0])
		if fix < 0 {
			fix = 0
		}
		return &SaveResult{Kind: SaveFixPage, ApplicationID: draft.ID, PageCount: len(pages), Missing: stillMissing, FixPage: fix}, nil
	}

	if err := repo.SubmitDraft(ctx, s.DB, draft.ID); err != nil {
		if errors.Is(err, repo.ErrNoDraft) {
			return nil, ErrNoDraft
		}
		return nil, err
	}
	submissionsTotal.Inc()
	return &SaveResult{Kind: SaveSubmitted, ApplicationID: draft.ID, PageCount: len(pages)}, nil
}

func answerMap(records []domain.AnswerRecord) map[int]string {
	m := make(map[int]string, len(records))
	for _, r := range records {
		m[r.QIndex] = r.Answer
	}
	return m
}
