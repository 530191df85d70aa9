package opponent

import (
	"context"
	"sync"
	"time"

	"github.com/park285/cheese-trainer/internal/chatcoach"
	"github.com/park285/cheese-trainer/internal/evaluator"
	"github.com/park285/cheese-trainer/internal/msgcat"
)

// MaxAutoMoves is how many coach moves count as the guided opening phase.
const MaxAutoMoves = 10

// Coach mines chat replies for moves.
type Coach struct {
	coach *chatcoach.Coach
	eval  *evaluator.Evaluator
	cat   *msgcat.Catalog
	delay time.Duration

	mu        sync.Mutex
	autoMoves int
}

func NewCoach(coach *chatcoach.Coach, eval *evaluator.Evaluator, cat *msgcat.Catalog, delay time.Duration) *Coach {
	if eval == nil {
		eval = evaluator.NewRandom()
	}
	if cat == nil {
		cat = msgcat.Default()
	}
	if delay < 0 {
		delay = EngineDelay
	}
	return &Coach{coach: coach, eval: eval, cat: cat, delay: delay}
}

func (c *Coach) Name() string         { return "AI" }
func (c *Coach) Rating() int          { return CoachRating }
func (c *Coach) Delay() time.Duration { return c.delay }
func (c *Coach) AcceptsDraw() bool    { return c.eval.Chance(0.5) }

// Propose asks the coach about the human's last move. A failed request or a
// reply without a move yields notes and an empty Move.
func (c *Coach) Propose(ctx context.Context, req Request) (Proposal, error) {
	last := ""
	if n := len(req.History); n > 0 {
		last = req.History[n-1]
	}
	prompt := c.coach.MovePrompt(last)
	gc := chatcoach.GameContext{FEN: req.FEN, Opening: req.Opening, Moves: req.History}
	reply, err := c.coach.Ask(ctx, gc, req.Transcript, prompt)

	p := Proposal{Notes: []Note{
		{Role: chatcoach.RoleUser, Content: prompt},
		{Role: reply.Message.Role, Content: reply.Message.Content},
	}}
	if err != nil {
		return p, nil
	}
	p.Move = reply.Move
	return p, nil
}

// Played records an applied coach move and returns the transcript line.
func (c *Coach) Played(uci string) []Note {
	c.mu.Lock()
	defer c.mu.Unlock()
	text := c.cat.Text("note.opponent_played", map[string]string{"Opponent": c.Name(), "Move": uci})
	if c.autoMoves < MaxAutoMoves {
		c.autoMoves++
		if c.autoMoves == MaxAutoMoves {
			text += " " + c.cat.Text("note.auto_moves_done", nil)
		}
	}
	return []Note{{Role: chatcoach.RoleSystem, Content: text}}
}

// AutoMoves is the number of coach moves played in the guided phase.
func (c *Coach) AutoMoves() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoMoves
}

func (c *Coach) Reset() {
	c.mu.Lock()
	c.autoMoves = 0
	c.mu.Unlock()
}

// Chat forwards a free-form question to the coach.
func (c *Coach) Chat(ctx context.Context, gc chatcoach.GameContext, history []chatcoach.Message, text string) (chatcoach.Reply, error) {
	return c.coach.Ask(ctx, gc, history, text)
}
