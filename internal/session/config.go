package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-trainer/internal/chatcoach"
	"github.com/park285/cheese-trainer/internal/clock"
	"github.com/park285/cheese-trainer/internal/evaluator"
	"github.com/park285/cheese-trainer/internal/msgcat"
	"github.com/park285/cheese-trainer/internal/opponent"
	"github.com/park285/cheese-trainer/internal/rules"
)

// Mode selects the opponent family.
type Mode string

const (
	Classic     Mode = "classic"
	Multiplayer Mode = "multiplayer"
	CoachMode   Mode = "coach"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Classic, "":
		return Classic, nil
	case Multiplayer:
		return Multiplayer, nil
	case CoachMode:
		return CoachMode, nil
	default:
		return "", fmt.Errorf("unknown game mode %q", s)
	}
}

// Config is fixed for the duration of a game.
type Config struct {
	Mode        Mode              `json:"mode"`
	Tier        evaluator.Tier    `json:"tier"`
	HumanColor  rules.Color       `json:"humanColor"`
	TimeControl clock.TimeControl `json:"timeControl"`
	ThinkDelay  time.Duration     `json:"-"`
}

// DefaultConfig is a classic 10+5 game as White against the intermediate tier.
func DefaultConfig() Config {
	return Config{
		Mode:        Classic,
		Tier:        evaluator.Intermediate,
		HumanColor:  rules.White,
		TimeControl: clock.DefaultTimeControl,
		ThinkDelay:  opponent.EngineDelay,
	}
}

func (c Config) normalized() Config {
	if c.Mode == "" {
		c.Mode = Classic
	}
	if c.Tier == "" {
		c.Tier = evaluator.Intermediate
	}
	if c.HumanColor != rules.Black {
		c.HumanColor = rules.White
	}
	if c.TimeControl.Minutes <= 0 {
		c.TimeControl = clock.DefaultTimeControl
	}
	if c.TimeControl.Increment < 0 {
		c.TimeControl.Increment = 0
	}
	if c.ThinkDelay < 0 {
		c.ThinkDelay = 0
	}
	return c
}

// ProviderFactory builds the opponent for a new game.
type ProviderFactory func(cfg Config) opponent.Provider

// DefaultProviders maps modes to the stock providers. coach may be nil, in
// which case coach games fall back to evaluator moves.
func DefaultProviders(eval *evaluator.Evaluator, coach *chatcoach.Coach, cat *msgcat.Catalog) ProviderFactory {
	if eval == nil {
		eval = evaluator.NewRandom()
	}
	if coach == nil {
		coach = chatcoach.NewCoach(nil, cat, nil)
	}
	return func(cfg Config) opponent.Provider {
		switch cfg.Mode {
		case Multiplayer:
			return opponent.NewSimulated(eval, opponent.NewMatch(eval, time.Now()))
		case CoachMode:
			return opponent.NewCoach(coach, eval, cat, cfg.ThinkDelay)
		default:
			return opponent.NewEngine(eval, cfg.Tier, cfg.ThinkDelay)
		}
	}
}
