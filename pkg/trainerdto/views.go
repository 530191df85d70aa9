package trainerdto

import "time"

type Suggestion struct {
	UCI     string   `json:"uci"`
	SAN     string   `json:"san"`
	Score   int      `json:"score"`
	Reasons []string `json:"reasons,omitempty"`
}

type HintResponse struct {
	Line        string       `json:"line"`
	Suggestions []Suggestion `json:"suggestions"`
}

type Profile struct {
	Player       string    `json:"player"`
	Rating       int       `json:"rating"`
	GamesPlayed  int       `json:"gamesPlayed"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	Draws        int       `json:"draws"`
	Streak       int       `json:"streak"`
	StreakType   string    `json:"streakType,omitempty"`
	LastMode     string    `json:"lastMode,omitempty"`
	LastPlayedAt time.Time `json:"lastPlayedAt,omitempty"`
}

type GameSummary struct {
	ID          int64     `json:"id"`
	Mode        string    `json:"mode"`
	Opponent    string    `json:"opponent"`
	Outcome     string    `json:"outcome"`
	Method      string    `json:"method,omitempty"`
	Result      string    `json:"result"`
	Moves       int       `json:"moves"`
	PGN         string    `json:"pgn"`
	EndedAt     time.Time `json:"endedAt"`
	DurationSec int64     `json:"durationSec"`
}

type ProfileResponse struct {
	Profile *Profile      `json:"profile"`
	Recent  []GameSummary `json:"recent"`
}

type LeaderboardResponse struct {
	Entries []Profile `json:"entries"`
}

type ProgressResponse struct {
	Progress map[string]float64 `json:"progress"`
}
