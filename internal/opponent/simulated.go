package opponent

import (
	"context"
	"strconv"
	"strings"
	"time"

	petname "github.com/dustinkirkland/golang-petname"

	"github.com/park285/cheese-trainer/internal/evaluator"
)

const (
	minMatchRating  = 800
	matchRatingSpan = 1500
)

// Match is the matchmaking profile of a simulated opponent.
type Match struct {
	GameID string `json:"gameId"`
	Name   string `json:"name"`
	Rating int    `json:"rating"`
}

// NewMatch rolls a fresh opponent profile.
func NewMatch(eval *evaluator.Evaluator, now time.Time) Match {
	if eval == nil {
		eval = evaluator.NewRandom()
	}
	return Match{
		GameID: "MP" + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)),
		Name:   petname.Generate(2, "-"),
		Rating: minMatchRating + eval.Intn(matchRatingSpan),
	}
}

// Simulated stands in for a human opponent: random legal moves after a
// fixed pause, and it takes any draw offered.
type Simulated struct {
	eval  *evaluator.Evaluator
	match Match
	delay time.Duration
}

func NewSimulated(eval *evaluator.Evaluator, match Match) *Simulated {
	if eval == nil {
		eval = evaluator.NewRandom()
	}
	return &Simulated{eval: eval, match: match, delay: SimulatedDelay}
}

func (s *Simulated) Name() string         { return s.match.Name }
func (s *Simulated) Rating() int          { return s.match.Rating }
func (s *Simulated) Delay() time.Duration { return s.delay }
func (s *Simulated) Match() Match         { return s.match }
func (s *Simulated) AcceptsDraw() bool    { return true }

func (s *Simulated) Propose(_ context.Context, req Request) (Proposal, error) {
	m, err := s.eval.SelectMove(req.Position, req.Legal, evaluator.Beginner)
	if err != nil {
		return Proposal{}, err
	}
	return Proposal{Move: m.UCI}, nil
}
