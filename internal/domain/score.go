package domain

// ScoreResult is the scoring oracle's assessment of a code-hosting identity.
// The score computation itself is a remote collaborator; this service only
// gates access to it and relays the result.
type ScoreResult struct {
	Username               string  `json:"username"`
	Rating                 string  `json:"rating"`
	FinalScore             float64 `json:"final_score"`
	ContributionScore      float64 `json:"contribution_score"`
	RepositorySignificance float64 `json:"repository_significance"`
	CodeQuality            float64 `json:"code_quality"`
	CommunityEngagement    float64 `json:"community_engagement"`
}
