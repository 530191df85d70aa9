package store

import (
	"math"
	"strings"
	"time"
)

const (
	DefaultRating = 1200
	KFactor       = 24
)

const (
	OutcomeWin  = "win"
	OutcomeLoss = "loss"
	OutcomeDraw = "draw"
)

// ApplyResult folds one finished game into profile and returns the rating
// change. A nil profile starts at DefaultRating.
func ApplyResult(profile *Profile, player, mode string, opponentRating int, outcome string, endedAt time.Time) (*Profile, int) {
	if profile == nil {
		profile = &Profile{
			Player:    player,
			Rating:    DefaultRating,
			CreatedAt: endedAt,
		}
	}
	prev := profile.Rating

	profile.GamesPlayed++
	profile.LastMode = mode
	profile.LastPlayedAt = endedAt
	profile.UpdatedAt = endedAt

	var score float64
	kind := strings.ToLower(strings.TrimSpace(outcome))
	switch kind {
	case OutcomeWin:
		profile.Wins++
		score = 1
	case OutcomeLoss:
		profile.Losses++
		score = 0
	default:
		kind = OutcomeDraw
		profile.Draws++
		score = 0.5
	}

	if profile.StreakType == kind {
		profile.Streak++
	} else {
		profile.Streak = 1
		profile.StreakType = kind
	}

	expected := Expected(profile.Rating, opponentRating)
	profile.Rating = int(math.Round(float64(profile.Rating) + KFactor*(score-expected)))
	return profile, profile.Rating - prev
}

// Expected is the Elo expected score of a against b.
func Expected(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}
