package evaluator

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-trainer/internal/rules"
)

var ErrNoLegalMoves = errors.New("evaluator called without legal moves")

// Tier selects how the evaluator picks among legal moves.
type Tier string

const (
	Beginner     Tier = "beginner"
	Intermediate Tier = "intermediate"
	Advanced     Tier = "advanced"
)

// ParseTier accepts tier names case-insensitively.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case Beginner:
		return Beginner, nil
	case Intermediate, "":
		return Intermediate, nil
	case Advanced:
		return Advanced, nil
	default:
		return "", fmt.Errorf("unknown difficulty tier %q", s)
	}
}

// greedyProbability is the chance the advanced tier plays its best capture.
const greedyProbability = 0.7

var pieceValues = map[rules.PieceKind]int{
	rules.Pawn:   1,
	rules.Knight: 3,
	rules.Bishop: 3,
	rules.Rook:   5,
	rules.Queen:  9,
	rules.King:   0,
}

// CaptureValue is the material value of the piece a move removes.
func CaptureValue(m rules.Move) int {
	return pieceValues[m.Captured]
}

// Evaluator picks moves for the non-human side. The only state it keeps is
// its random source.
type Evaluator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New returns an evaluator whose choices are reproducible for a given seed.
func New(seed int64) *Evaluator {
	return &Evaluator{rnd: rand.New(rand.NewSource(seed))}
}

// NewRandom seeds from the wall clock.
func NewRandom() *Evaluator {
	return New(time.Now().UnixNano())
}

func (e *Evaluator) intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rnd.Intn(n)
}

// Intn exposes the shared source for callers that need other random draws.
func (e *Evaluator) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return e.intn(n)
}

func (e *Evaluator) float() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rnd.Float64()
}

// Chance returns true with probability p.
func (e *Evaluator) Chance(p float64) bool {
	return e.float() < p
}

// Pick returns a uniformly random element of legal.
func (e *Evaluator) Pick(legal []rules.Move) (rules.Move, error) {
	if len(legal) == 0 {
		return rules.Move{}, ErrNoLegalMoves
	}
	return legal[e.intn(len(legal))], nil
}

// SelectMove chooses one of legal according to tier.
func (e *Evaluator) SelectMove(pos *rules.Position, legal []rules.Move, tier Tier) (rules.Move, error) {
	if len(legal) == 0 {
		return rules.Move{}, ErrNoLegalMoves
	}
	switch tier {
	case Beginner:
		return e.Pick(legal)
	case Advanced:
		return e.selectGreedy(legal)
	default:
		return e.selectForcing(legal)
	}
}

// selectForcing prefers checks, then captures, then anything.
func (e *Evaluator) selectForcing(legal []rules.Move) (rules.Move, error) {
	var checks, captures []rules.Move
	for _, m := range legal {
		if m.GivesCheck {
			checks = append(checks, m)
		}
		if m.IsCapture() {
			captures = append(captures, m)
		}
	}
	switch {
	case len(checks) > 0:
		return e.Pick(checks)
	case len(captures) > 0:
		return e.Pick(captures)
	default:
		return e.Pick(legal)
	}
}

func (e *Evaluator) selectGreedy(legal []rules.Move) (rules.Move, error) {
	ranked := make([]rules.Move, len(legal))
	copy(ranked, legal)
	sort.SliceStable(ranked, func(i, j int) bool {
		return CaptureValue(ranked[i]) > CaptureValue(ranked[j])
	})
	if e.Chance(greedyProbability) {
		return ranked[0], nil
	}
	return e.Pick(legal)
}
