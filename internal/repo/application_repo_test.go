package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gatewarden/gatewarden/internal/domain"
)

func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestGetOrCreateDraft_CreatesOnce(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	first, err := GetOrCreateDraft(ctx, db, "g1", "u1")
	if err != nil {
		t.Fatalf("GetOrCreateDraft: %v", err)
	}
	if first.ID == "" || first.Status != domain.StatusDraft {
		t.Fatalf("unexpected draft: %+v", first)
	}

	second, err := GetOrCreateDraft(ctx, db, "g1", "u1")
	if err != nil {
		t.Fatalf("GetOrCreateDraft (repeat): %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same draft, got %s and %s", first.ID, second.ID)
	}

	// A different pair gets its own draft.
	other, err := GetOrCreateDraft(ctx, db, "g1", "u2")
	if err != nil {
		t.Fatalf("GetOrCreateDraft (other user): %v", err)
	}
	if other.ID == first.ID {
		t.Fatalf("drafts must be per (guild, user)")
	}
}

func TestGetOrCreateDraft_ActiveApplicationBlocks(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	draft, err := GetOrCreateDraft(ctx, db, "g1", "u1")
	if err != nil {
		t.Fatalf("GetOrCreateDraft: %v", err)
	}
	if err := SubmitDraft(ctx, db, draft.ID); err != nil {
		t.Fatalf("SubmitDraft: %v", err)
	}

	if _, err := GetOrCreateDraft(ctx, db, "g1", "u1"); !errors.Is(err, ErrActiveApplication) {
		t.Fatalf("expected ErrActiveApplication, got %v", err)
	}

	// needs_info also counts as active.
	if err := db.Model(&domain.Application{}).Where("id = ?", draft.ID).
		Update("status", domain.StatusNeedsInfo).Error; err != nil {
		t.Fatalf("update status: %v", err)
	}
	if _, err := GetOrCreateDraft(ctx, db, "g1", "u1"); !errors.Is(err, ErrActiveApplication) {
		t.Fatalf("expected ErrActiveApplication for needs_info, got %v", err)
	}

	// A resolved application no longer blocks a fresh draft.
	if err := db.Model(&domain.Application{}).Where("id = ?", draft.ID).
		Update("status", domain.StatusRejected).Error; err != nil {
		t.Fatalf("update status: %v", err)
	}
	fresh, err := GetOrCreateDraft(ctx, db, "g1", "u1")
	if err != nil {
		t.Fatalf("GetOrCreateDraft after resolve: %v", err)
	}
	if fresh.ID == draft.ID {
		t.Fatalf("expected a new draft after resolution")
	}
}

func TestUpsertAnswer_OverwritesAndTruncates(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	draft, err := GetOrCreateDraft(ctx, db, "g1", "u1")
	if err != nil {
		t.Fatalf("GetOrCreateDraft: %v", err)
	}

	if err := UpsertAnswer(ctx, db, draft.ID, 0, "Why join?", "first pass"); err != nil {
		t.Fatalf("UpsertAnswer: %v", err)
	}
	if err := UpsertAnswer(ctx, db, draft.ID, 0, "Why join?", "second pass"); err != nil {
		t.Fatalf("UpsertAnswer (overwrite): %v", err)
	}

	long := strings.Repeat("é", AnswerMaxLen+50) // multi-byte runes
	if err := UpsertAnswer(ctx, db, draft.ID, 1, "Tell us more", long); err != nil {
		t.Fatalf("UpsertAnswer (long): %v", err)
	}

	answers, err := ListAnswers(ctx, db, draft.ID)
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(answers))
	}
	if answers[0].Answer != "second pass" {
		t.Fatalf("expected overwrite in place, got %q", answers[0].Answer)
	}
	if got := len([]rune(answers[1].Answer)); got != AnswerMaxLen {
		t.Fatalf("expected truncation to %d runes, got %d", AnswerMaxLen, got)
	}
}

func TestSubmitDraft_SecondAttemptLoses(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	draft, err := GetOrCreateDraft(ctx, db, "g1", "u1")
	if err != nil {
		t.Fatalf("GetOrCreateDraft: %v", err)
	}

	if err := SubmitDraft(ctx, db, draft.ID); err != nil {
		t.Fatalf("SubmitDraft: %v", err)
	}
	if err := SubmitDraft(ctx, db, draft.ID); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("expected ErrNoDraft on second submit, got %v", err)
	}

	app, err := GetApplication(ctx, db, draft.ID)
	if err != nil {
		t.Fatalf("GetApplication: %v", err)
	}
	if app.Status != domain.StatusSubmitted || app.SubmittedAt == nil {
		t.Fatalf("expected submitted with timestamp, got %+v", app)
	}

	if err := SubmitDraft(ctx, db, "no-such-app"); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("expected ErrNoDraft for unknown id, got %v", err)
	}
}

func TestListApplications_OrderAndLimit(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		app := domain.Application{
			ID: fmt.Sprintf("app-%d", i), GuildID: "g1", UserID: fmt.Sprintf("u%d", i),
			Status: domain.StatusSubmitted, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(&app).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	apps, err := ListApplications(ctx, db, "g1", 2)
	if err != nil {
		t.Fatalf("ListApplications: %v", err)
	}
	if len(apps) != 2 || apps[0].ID != "app-2" || apps[1].ID != "app-1" {
		t.Fatalf("expected newest first with limit, got %+v", apps)
	}

	none, err := ListApplications(ctx, db, "g-other", 10)
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty slice for unknown guild, got %v / %v", none, err)
	}
}

func TestPurgeApplication_CascadesEverything(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	draft, err := GetOrCreateDraft(ctx, db, "g1", "u1")
	if err != nil {
		t.Fatalf("GetOrCreateDraft: %v", err)
	}
	if err := UpsertAnswer(ctx, db, draft.ID, 0, "Q", "A"); err != nil {
		t.Fatalf("UpsertAnswer: %v", err)
	}
	if _, err := InsertReviewAction(ctx, db, draft.ID, "m1", domain.ActionApprove, nil); err != nil {
		t.Fatalf("InsertReviewAction: %v", err)
	}
	if err := UpsertReviewCard(ctx, db, draft.ID, "c1", "m1"); err != nil {
		t.Fatalf("UpsertReviewCard: %v", err)
	}
	if err := UpsertAvatarScan(ctx, db, domain.AvatarScan{AppID: draft.ID, AvatarURL: "https://x/a.png"}); err != nil {
		t.Fatalf("UpsertAvatarScan: %v", err)
	}
	if _, err := InsertBridge(ctx, db, "g1", "u1", "t1"); err != nil {
		t.Fatalf("InsertBridge: %v", err)
	}

	if err := PurgeApplication(ctx, db, draft.ID); err != nil {
		t.Fatalf("PurgeApplication: %v", err)
	}

	if _, err := GetApplication(ctx, db, draft.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected application gone, got %v", err)
	}
	answers, _ := ListAnswers(ctx, db, draft.ID)
	if len(answers) != 0 {
		t.Fatalf("expected answers purged")
	}
	if n, _ := CountReviewActions(ctx, db, draft.ID); n != 0 {
		t.Fatalf("expected actions purged, got %d", n)
	}
	if card, _ := GetReviewCard(ctx, db, draft.ID); card != nil {
		t.Fatalf("expected card mapping purged")
	}
	if scan, _ := GetAvatarScan(ctx, db, draft.ID); scan != nil {
		t.Fatalf("expected scan purged")
	}
	if bridge, _ := FindOpenBridge(ctx, db, "g1", "u1"); bridge != nil {
		t.Fatalf("expected bridges purged")
	}

	if err := PurgeApplication(ctx, db, draft.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound purging twice, got %v", err)
	}
}

func Test_truncateRunes(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "hé"},
		{"anything", 0, ""},
	}
	for _, c := range cases {
		if got := truncateRunes(c.in, c.max); got != c.want {
			t.Fatalf("truncateRunes(%q, %d) = %q, want %q", c.in, c.max, got, c.want)
		}
	}
}
