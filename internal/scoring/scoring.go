package scoring

import (
	"context"

	"github.com/google/uuid"

	"github.com/octorank/octorank/internal/domain"
)

// Oracle computes developer scores for GitHub usernames.
type Oracle interface {
	// Score fetches the full score breakdown for a username.
	Score(ctx context.Context, params ScoreParams) (*domain.ScoreResult, error)
}

// ScoreParams contains parameters for a score request.
type ScoreParams struct {
	Username string    // GitHub username to score
	UserID   uuid.UUID // Requesting user, for tracking
}
