package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gatewarden/gatewarden/internal/domain"
	"github.com/gatewarden/gatewarden/internal/repo"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("services_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedQuestions(t *testing.T, db *gorm.DB, guildID string, prompts ...string) {
	t.Helper()
	qs := make([]domain.GuildQuestion, len(prompts))
	for i, p := range prompts {
		qs[i] = domain.GuildQuestion{Prompt: p, Required: true}
	}
	if err := repo.ReplaceQuestions(context.Background(), db, guildID, qs); err != nil {
		t.Fatalf("seed questions: %v", err)
	}
}

func TestIntakeStart_NoCatalog(t *testing.T) {
	db := newServiceDB(t)
	svc := &IntakeService{DB: db}

	if _, err := svc.Start(context.Background(), "g1", "u1", 0); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}

func TestIntakeStart_ResumesDraftWithSavedAnswers(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	seedQuestions(t, db, "g1", "Q1", "Q2", "Q3", "Q4", "Q5", "Q6", "Q7")
	svc := &IntakeService{DB: db, PageSize: 5}

	res, err := svc.Start(ctx, "g1", "u1", 0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res.PageCount != 2 || len(res.Form.Inputs) != 5 || res.Form.PageIndex != 0 {
		t.Fatalf("unexpected start result: %+v", res)
	}

	save, err := svc.SaveAndAdvance(ctx, "g1", "u1", 0, map[int]string{
		0: "a0", 1: "a1", 2: "a2", 3: "a3", 4: "a4",
	})
	if err != nil {
		t.Fatalf("SaveAndAdvance: %v", err)
	}
	if save.Kind != SaveProgress {
		t.Fatalf("expected SaveProgress, got %v", save.Kind)
	}

	// Re-opening page 0 pre-fills the saved answers on the same draft.
	again, err := svc.Start(ctx, "g1", "u1", 0)
	if err != nil {
		t.Fatalf("Start (resume): %v", err)
	}
	if again.ApplicationID != res.ApplicationID {
		t.Fatalf("expected resumed draft, got %s then %s", res.ApplicationID, again.ApplicationID)
	}
	if again.Form.Inputs[2].Value != "a2" {
		t.Fatalf("expected pre-filled value, got %q", again.Form.Inputs[2].Value)
	}

	if _, err := svc.Start(ctx, "g1", "u1", 2); !errors.Is(err, ErrPageUnavailable) {
		t.Fatalf("expected ErrPageUnavailable, got %v", err)
	}
}

func TestIntakeStart_ActiveApplicationBlocks(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	seedQuestions(t, db, "g1", "Q1")
	svc := &IntakeService{DB: db}

	if _, err := svc.Start(ctx, "g1", "u1", 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	save, err := svc.SaveAndAdvance(ctx, "g1", "u1", 0, map[int]string{0: "done"})
	if err != nil || save.Kind != SaveSubmitted {
		t.Fatalf("expected submission, got %+v / %v", save, err)
	}

	if _, err := svc.Start(ctx, "g1", "u1", 0); !errors.Is(err, ErrActiveApplication) {
		t.Fatalf("expected ErrActiveApplication, got %v", err)
	}
}

func TestSaveAndAdvance_MissingRequiredPersistsNothing(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	seedQuestions(t, db, "g1", "Q1", "Q2")
	svc := &IntakeService{DB: db}

	start, err := svc.Start(ctx, "g1", "u1", 0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	save, err := svc.SaveAndAdvance(ctx, "g1", "u1", 0, map[int]string{0: "filled", 1: "   "})
	if err != nil {
		t.Fatalf("SaveAndAdvance: %v", err)
	}
	if save.Kind != SaveMissing || len(save.Missing) != 1 || save.Missing[0] != 1 {
		t.Fatalf("expected SaveMissing for question 1, got %+v", save)
	}

	answers, err := repo.ListAnswers(ctx, db, start.ApplicationID)
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(answers) != 0 {
		t.Fatalf("a rejected page must persist nothing, got %+v", answers)
	}
}

func TestSaveAndAdvance_LastPageRevalidatesWholeCatalog(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	seedQuestions(t, db, "g1", "Q1", "Q2", "Q3", "Q4", "Q5", "Q6")
	svc := &IntakeService{DB: db, PageSize: 5}

	if _, err := svc.Start(ctx, "g1", "u1", 0); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Skip straight to the last page; page 0 was never saved.
	save, err := svc.SaveAndAdvance(ctx, "g1", "u1", 1, map[int]string{5: "last answer"})
	if err != nil {
		t.Fatalf("SaveAndAdvance: %v", err)
	}
	if save.Kind != SaveFixPage {
		t.Fatalf("expected SaveFixPage, got %v", save.Kind)
	}
	if save.FixPage != 0 || len(save.Missing) != 5 {
		t.Fatalf("expected fix page 0 with 5 missing, got %+v", save)
	}

	// Filling page 0 completes the catalog and submits.
	save, err = svc.SaveAndAdvance(ctx, "g1", "u1", 0, map[int]string{
		0: "a", 1: "b", 2: "c", 3: "d", 4: "e",
	})
	if err != nil || save.Kind != SaveProgress {
		t.Fatalf("expected SaveProgress, got %+v / %v", save, err)
	}
	save, err = svc.SaveAndAdvance(ctx, "g1", "u1", 1, map[int]string{5: "last answer"})
	if err != nil {
		t.Fatalf("SaveAndAdvance (final): %v", err)
	}
	if save.Kind != SaveSubmitted {
		t.Fatalf("expected SaveSubmitted, got %v", save.Kind)
	}

	app, err := repo.GetApplication(ctx, db, save.ApplicationID)
	if err != nil {
		t.Fatalf("GetApplication: %v", err)
	}
	if app.Status != domain.StatusSubmitted || app.SubmittedAt == nil {
		t.Fatalf("expected submitted application, got %+v", app)
	}
}

func TestSaveAndAdvance_NoDraft(t *testing.T) {
	db := newServiceDB(t)
	seedQuestions(t, db, "g1", "Q1")
	svc := &IntakeService{DB: db}

	if _, err := svc.SaveAndAdvance(context.Background(), "g1", "u1", 0, map[int]string{0: "x"}); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("expected ErrNoDraft, got %v", err)
	}
}
