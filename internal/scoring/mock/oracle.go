package mock

import (
	"context"

	"github.com/octorank/octorank/internal/domain"
	"github.com/octorank/octorank/internal/scoring"
)

// Oracle is a mock scoring oracle for testing and development.
type Oracle struct {
	// Configurable responses for testing
	ScoreResponse *domain.ScoreResult
	ScoreError    error

	// Call tracking for testing
	ScoreCalls int
	LastParams scoring.ScoreParams
}

// New creates a new mock scoring oracle.
func New() *Oracle {
	return &Oracle{}
}

var _ scoring.Oracle = (*Oracle)(nil)

// Score returns the configured response, or a canned breakdown when none
// is set.
func (o *Oracle) Score(_ context.Context, params scoring.ScoreParams) (*domain.ScoreResult, error) {
	o.ScoreCalls++
	o.LastParams = params

	if o.ScoreError != nil {
		return nil, o.ScoreError
	}
	if o.ScoreResponse != nil {
		return o.ScoreResponse, nil
	}

	return &domain.ScoreResult{
		Username:               params.Username,
		Rating:                 "A",
		FinalScore:             87.5,
		ContributionScore:      90.0,
		RepositorySignificance: 82.1,
		CodeQuality:            88.4,
		CommunityEngagement:    89.3,
	}, nil
}
