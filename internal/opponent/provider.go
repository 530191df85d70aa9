package opponent

import (
	"context"
	"time"

	"github.com/park285/cheese-trainer/internal/chatcoach"
	"github.com/park285/cheese-trainer/internal/rules"
)

const (
	EngineDelay    = time.Second
	SimulatedDelay = 1500 * time.Millisecond

	CoachRating = 1500
)

// Request describes the position the opponent must answer.
type Request struct {
	FEN      string
	History  []string
	Legal    []rules.Move
	Position *rules.Position
	Color    rules.Color

	// Coach mode only.
	Opening    string
	Transcript []chatcoach.Message
}

// Note is a transcript line produced while proposing.
type Note struct {
	Role    string
	Content string
}

// Proposal is a move in UCI form plus any transcript notes. The session
// validates Move against the legal list.
type Proposal struct {
	Move  string
	Notes []Note
}

// Provider answers the human's moves.
type Provider interface {
	Name() string
	Rating() int
	Delay() time.Duration
	Propose(ctx context.Context, req Request) (Proposal, error)
	AcceptsDraw() bool
}

// Resetter is implemented by providers that keep per-game state.
type Resetter interface {
	Reset()
}

// Played is implemented by providers that want to know which of their
// proposals were applied.
type Played interface {
	Played(uci string) []Note
}
