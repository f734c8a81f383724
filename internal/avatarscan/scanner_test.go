package avatarscan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gatewarden/gatewarden/internal/repo"
)

type stubScanner struct {
	res Result
	err error
}

func (s stubScanner) Scan(ctx context.Context, avatarURL string, opts Options) (Result, error) {
	return s.res, s.err
}

func newScanDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("scan_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestScanApplication_PersistsResult(t *testing.T) {
	ctx := context.Background()
	db := newScanDB(t)
	score := 0.75
	svc := &Service{DB: db, Scanner: stubScanner{res: Result{
		NSFWScore: &score, SkinEdgeScore: 0.12, Flagged: true, Reason: ReasonNSFW,
	}}}

	res, err := svc.ScanApplication(ctx, "app-1", "https://cdn.example/a.png", Options{NSFWThreshold: 0.6})
	if err != nil {
		t.Fatalf("ScanApplication: %v", err)
	}
	if !res.Flagged || res.Reason != ReasonNSFW {
		t.Fatalf("unexpected result: %+v", res)
	}

	row, err := repo.GetAvatarScan(ctx, db, "app-1")
	if err != nil || row == nil {
		t.Fatalf("stored scan missing: %v %v", row, err)
	}
	if row.AvatarURL != "https://cdn.example/a.png" || !row.Flagged || row.Reason != ReasonNSFW {
		t.Fatalf("unexpected stored row: %+v", row)
	}
	if row.NSFWScore == nil || *row.NSFWScore != 0.75 || row.SkinEdgeScore != 0.12 {
		t.Fatalf("scores not preserved: %+v", row)
	}
	if row.ScannedAt.IsZero() {
		t.Fatal("ScannedAt not stamped")
	}
}

func TestScanApplication_FailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	db := newScanDB(t)
	svc := &Service{DB: db, Scanner: stubScanner{err: errors.New("fetch failed")}}

	if _, err := svc.ScanApplication(ctx, "app-1", "https://cdn.example/a.png", Options{}); err == nil {
		t.Fatal("expected error")
	}
	row, err := repo.GetAvatarScan(ctx, db, "app-1")
	if err != nil {
		t.Fatalf("GetAvatarScan: %v", err)
	}
	if row != nil {
		t.Fatalf("failed scan must not persist, got %+v", row)
	}
}

func TestScanApplication_EmptyURL(t *testing.T) {
	svc := &Service{DB: newScanDB(t), Scanner: stubScanner{}}
	if _, err := svc.ScanApplication(context.Background(), "app-1", "", Options{}); err == nil {
		t.Fatal("expected error for empty avatar url")
	}
}
