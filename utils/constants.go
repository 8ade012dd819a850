package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for admin access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Analysis defaults
const (
	// DefaultAnalysisPeriodDays is the look-back window for recommendations and metric refreshes
	DefaultAnalysisPeriodDays = 30

	// DefaultTopPostsLimit caps the number of ranked posts fed to the pattern engine
	DefaultTopPostsLimit = 50

	// DefaultRecommendationPostsLimit caps the posts analyzed per recommendation snapshot
	DefaultRecommendationPostsLimit = 20

	// DefaultRecommendationFreshnessDays is how long a snapshot suppresses the weekly regeneration
	DefaultRecommendationFreshnessDays = 7

	// MinPostsForNarrative is the smallest sample the narrative analyzer accepts
	MinPostsForNarrative = 3
)
