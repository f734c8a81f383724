// Package avatarscan classifies applicant avatars for moderator awareness.
// Results are advisory only: a flag adds a risk section and a source button
// to the decision card, it never blocks or auto-rejects an application.
package avatarscan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/gatewarden/gatewarden/internal/domain"
	"github.com/gatewarden/gatewarden/internal/repo"
)

// Flag reasons stored on a scan result.
const (
	ReasonNone     = "none"
	ReasonNSFW     = "nsfw"
	ReasonSkinEdge = "skin_edge"
	ReasonBoth     = "both"
)

// Options are the per-guild thresholds a scan is judged against.
type Options struct {
	// NSFWThreshold flags when a classifier score meets or exceeds it.
	NSFWThreshold float64
	// EdgeThreshold flags when the border skin-tone ratio meets or
	// exceeds it.
	EdgeThreshold float64
}

// Result is the outcome of one scan.
type Result struct {
	// NSFWScore is nil when no classifier contributed to the scan.
	NSFWScore     *float64
	SkinEdgeScore float64
	Flagged       bool
	Reason        string
}

// Scanner evaluates one avatar image by URL.
type Scanner interface {
	Scan(ctx context.Context, avatarURL string, opts Options) (Result, error)
}

// Service runs scans and persists their results.
type Service struct {
	DB      *gorm.DB
	Scanner Scanner
}

// ScanApplication scans the avatar and upserts the stored result for the
// application. A scan failure is returned after recording nothing; callers
// treat it as best effort.
func (s *Service) ScanApplication(ctx context.Context, appID, avatarURL string, opts Options) (Result, error) {
	if avatarURL == "" {
		return Result{}, errors.New("avatarscan: empty avatar url")
	}
	res, err := s.Scanner.Scan(ctx, avatarURL, opts)
	if err != nil {
		return Result{}, fmt.Errorf("scan avatar: %w", err)
	}
	row := domain.AvatarScan{
		AppID:         appID,
		AvatarURL:     avatarURL,
		NSFWScore:     res.NSFWScore,
		SkinEdgeScore: res.SkinEdgeScore,
		Flagged:       res.Flagged,
		Reason:        res.Reason,
		ScannedAt:     time.Now().UTC(),
	}
	if err := repo.UpsertAvatarScan(ctx, s.DB, row); err != nil {
		return Result{}, fmt.Errorf("store scan: %w", err)
	}
	return res, nil
}

// classify folds the two signals into the stored flag and reason.
func classify(nsfwScore *float64, edgeScore float64, opts Options) (bool, string) {
	nsfw := nsfwScore != nil && opts.NSFWThreshold > 0 && *nsfwScore >= opts.NSFWThreshold
	edge := opts.EdgeThreshold > 0 && edgeScore >= opts.EdgeThreshold
	switch {
	case nsfw && edge:
		return true, ReasonBoth
	case nsfw:
		return true, ReasonNSFW
	case edge:
		return true, ReasonSkinEdge
	}
	return false, ReasonNone
}
