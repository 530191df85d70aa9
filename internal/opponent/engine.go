package opponent

import (
	"context"
	"time"

	"github.com/park285/cheese-trainer/internal/evaluator"
)

var tierRatings = map[evaluator.Tier]int{
	evaluator.Beginner:     800,
	evaluator.Intermediate: 1200,
	evaluator.Advanced:     1600,
}

// TierRating is the nominal Elo used for profile updates.
func TierRating(t evaluator.Tier) int {
	if r, ok := tierRatings[t]; ok {
		return r
	}
	return 1200
}

// Engine plays evaluator moves at a fixed tier.
type Engine struct {
	eval  *evaluator.Evaluator
	tier  evaluator.Tier
	delay time.Duration
}

func NewEngine(eval *evaluator.Evaluator, tier evaluator.Tier, delay time.Duration) *Engine {
	if eval == nil {
		eval = evaluator.NewRandom()
	}
	if delay < 0 {
		delay = EngineDelay
	}
	return &Engine{eval: eval, tier: tier, delay: delay}
}

func (e *Engine) Name() string         { return "AI" }
func (e *Engine) Rating() int          { return TierRating(e.tier) }
func (e *Engine) Delay() time.Duration { return e.delay }
func (e *Engine) Tier() evaluator.Tier { return e.tier }

func (e *Engine) Propose(_ context.Context, req Request) (Proposal, error) {
	m, err := e.eval.SelectMove(req.Position, req.Legal, e.tier)
	if err != nil {
		return Proposal{}, err
	}
	return Proposal{Move: m.UCI}, nil
}

// AcceptsDraw is a coin flip.
func (e *Engine) AcceptsDraw() bool { return e.eval.Chance(0.5) }
