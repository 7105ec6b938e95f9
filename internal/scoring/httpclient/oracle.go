// Package httpclient talks to the scoring engine over its internal HTTP API.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/octorank/octorank/internal/domain"
	"github.com/octorank/octorank/internal/scoring"
)

const op = "scoring.Score"

// Oracle is an HTTP client for the scoring engine.
type Oracle struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// New creates a scoring oracle client against the engine at baseURL.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Oracle {
	return &Oracle{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

var _ scoring.Oracle = (*Oracle)(nil)

// Score fetches the score breakdown for a username from the engine.
func (o *Oracle) Score(ctx context.Context, params scoring.ScoreParams) (*domain.ScoreResult, error) {
	endpoint := fmt.Sprintf("%s/api/score?username=%s", o.baseURL, url.QueryEscape(params.Username))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to build score request")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, domain.Upstream(err, op, "scoring engine unreachable")
	}
	defer resp.Body.Close()

	o.logger.Debug("scoring engine responded",
		slog.String("username", params.Username),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &domain.Error{
			Code:    domain.ENOTFOUND,
			Op:      op,
			Message: fmt.Sprintf("GitHub user %q not found", params.Username),
		}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, domain.Upstream(
			fmt.Errorf("status %d: %s", resp.StatusCode, body), op, "scoring engine error")
	}

	var result domain.ScoreResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, domain.Upstream(err, op, "scoring engine response malformed")
	}
	return &result, nil
}
