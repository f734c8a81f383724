package avatarscan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// ClassifierScanner asks an external model service for an NSFW score and
// combines it with the local skin-edge heuristic. When the service is down
// the heuristic result stands alone, so scanning degrades instead of failing.
type ClassifierScanner struct {
	// Endpoint accepts POST {"url": "..."} and returns
	// {"nsfw_score": 0.0..1.0}.
	Endpoint   string
	HTTPClient *http.Client
	Heuristic  *HeuristicScanner
}

var _ Scanner = (*ClassifierScanner)(nil)

// NewClassifierScanner constructs a scanner backed by the given model
// service endpoint.
func NewClassifierScanner(endpoint string) *ClassifierScanner {
	return &ClassifierScanner{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: defaultFetchTime},
		Heuristic:  &HeuristicScanner{},
	}
}

// Scan runs both signals and folds them into one result.
func (c *ClassifierScanner) Scan(ctx context.Context, avatarURL string, opts Options) (Result, error) {
	base, err := c.Heuristic.Scan(ctx, avatarURL, opts)
	if err != nil {
		return Result{}, err
	}

	score, err := c.classify(ctx, avatarURL)
	if err != nil {
		log.Warn().Err(err).Str("endpoint", c.Endpoint).
			Msg("nsfw classifier unavailable, using heuristic only")
		return base, nil
	}

	flagged, reason := classify(&score, base.SkinEdgeScore, opts)
	return Result{
		NSFWScore:     &score,
		SkinEdgeScore: base.SkinEdgeScore,
		Flagged:       flagged,
		Reason:        reason,
	}, nil
}

func (c *ClassifierScanner) classify(ctx context.Context, avatarURL string) (float64, error) {
	payload, err := json.Marshal(map[string]string{"url": avatarURL})
	if err != nil {
		return 0, fmt.Errorf("encode classifier request: %w", err)
	}

	// The classifier gets a tighter deadline than the caller so a slow
	// model cannot stall card publication.
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTime}
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("call classifier: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var body struct {
		NSFWScore float64 `json:"nsfw_score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode classifier response: %w", err)
	}
	if body.NSFWScore < 0 || body.NSFWScore > 1 {
		return 0, fmt.Errorf("classifier score %f out of range", body.NSFWScore)
	}
	return body.NSFWScore, nil
}
