package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDuplicateGame = errors.New("game already archived")
	ErrNilPayload    = errors.New("nil payload")
)

// Game is an archived finished game. Outcome is seen from the human side.
type Game struct {
	ID             int64
	SessionUUID    string
	Player         string
	Mode           string
	Tier           string
	HumanColor     string
	Opponent       string
	OpponentRating int
	TimeControl    string
	Result         string
	Outcome        string
	Method         string
	MovesUCI       []string
	MovesSAN       []string
	PGN            string
	StartedAt      time.Time
	EndedAt        time.Time
	Duration       time.Duration
}

type Profile struct {
	Player       string
	Rating       int
	GamesPlayed  int
	Wins         int
	Losses       int
	Draws        int
	Streak       int
	StreakType   string
	LastMode     string
	LastPlayedAt time.Time
	UpdatedAt    time.Time
	CreatedAt    time.Time
}

// Repository archives games and keeps player profiles. Lookups that find
// nothing return nil, nil.
type Repository interface {
	InsertGame(ctx context.Context, game *Game) (int64, error)
	GetRecentGames(ctx context.Context, player string, limit int) ([]*Game, error)
	GetGame(ctx context.Context, id int64) (*Game, error)
	GetGameBySession(ctx context.Context, sessionUUID string) (*Game, error)
	GetProfile(ctx context.Context, player string) (*Profile, error)
	UpsertProfile(ctx context.Context, profile *Profile) error
	// UpdateProfile applies fn to the player's profile while holding it
	// locked. fn sees nil when the player has no profile yet.
	UpdateProfile(ctx context.Context, player string, fn func(*Profile) *Profile) (*Profile, error)
	Leaderboard(ctx context.Context, limit int) ([]*Profile, error)
	Close() error
}

const (
	defaultRecentLimit      = 10
	defaultLeaderboardLimit = 10
	maxLimit                = 50
)

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
