package avatarscan

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	// Avatar CDNs serve these three formats; register the decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

const (
	// borderBandRatio is the fraction of each dimension treated as the
	// image border for the skin-edge measure.
	borderBandRatio = 0.08

	maxImageBytes    = 8 << 20
	defaultFetchTime = 10 * time.Second
)

// HeuristicScanner measures how much of the image border is skin-toned.
// Cropped explicit images tend to run skin up to the frame edge, while
// ordinary portraits keep a background band around the subject. It needs no
// external model and produces no NSFW score.
type HeuristicScanner struct {
	// HTTPClient is used for the avatar fetch; a bounded default is used
	// when nil.
	HTTPClient *http.Client
}

var _ Scanner = (*HeuristicScanner)(nil)

// Scan fetches and decodes the avatar, then scores its border band.
func (h *HeuristicScanner) Scan(ctx context.Context, avatarURL string, opts Options) (Result, error) {
	img, err := h.fetch(ctx, avatarURL)
	if err != nil {
		return Result{}, err
	}
	score := SkinEdgeScore(img)
	flagged, reason := classify(nil, score, opts)
	return Result{SkinEdgeScore: score, Flagged: flagged, Reason: reason}, nil
}

func (h *HeuristicScanner) fetch(ctx context.Context, avatarURL string) (image.Image, error) {
	client := h.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTime}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, avatarURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build avatar request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch avatar: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch avatar: unexpected status %d", resp.StatusCode)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("decode avatar: %w", err)
	}
	return img, nil
}

// SkinEdgeScore returns the fraction of pixels in the image's border band
// that match a broad skin-tone rule. Exported for direct testing against
// synthetic images.
func SkinEdgeScore(img image.Image) float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return 0
	}
	band := int(float64(min(w, h)) * borderBandRatio)
	if band < 1 {
		band = 1
	}

	var total, skin int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		inYBand := y < bounds.Min.Y+band || y >= bounds.Max.Y-band
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if !inYBand && x >= bounds.Min.X+band && x < bounds.Max.X-band {
				// Interior pixels are skipped row-wise once past the
				// left band.
				x = bounds.Max.X - band - 1
				continue
			}
			total++
			if isSkinTone(img.At(x, y).RGBA()) {
				skin++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(skin) / float64(total)
}

// isSkinTone applies a classic RGB skin rule with a near-white exclusion.
// Inputs are 16-bit premultiplied channel values from color.Color.RGBA.
func isSkinTone(r16, g16, b16, _ uint32) bool {
	r := int(r16 >> 8)
	g := int(g16 >> 8)
	b := int(b16 >> 8)

	if r <= 95 || g <= 40 || b <= 20 {
		return false
	}
	if max(r, g, b)-min(r, g, b) <= 15 {
		return false
	}
	if abs(r-g) <= 15 || r <= g || r <= b {
		return false
	}
	// Near-white pixels pass the channel rules but are background, not skin.
	if r > 240 && g > 225 && b > 215 {
		return false
	}
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
