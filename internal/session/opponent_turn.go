package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/internal/chatcoach"
	"github.com/park285/cheese-trainer/internal/evaluator"
	"github.com/park285/cheese-trainer/internal/opponent"
	"github.com/park285/cheese-trainer/internal/rules"
)

// scheduleOpponentLocked arms the deferred opponent move for the current
// generation.
func (s *Session) scheduleOpponentLocked() {
	s.gen++
	gen := s.gen
	s.thinking = true
	delay := s.provider.Delay()
	if delay < 0 {
		delay = 0
	}
	s.pending = time.AfterFunc(delay, func() { s.runOpponent(gen) })
}

func (s *Session) opponentDueLocked(gen uint64) bool {
	return s.phase == Playing && s.gen == gen && s.pos.Turn() != s.cfg.HumanColor
}

// runOpponent asks the provider outside the lock, then re-validates before
// touching the board.
func (s *Session) runOpponent(gen uint64) {
	s.mu.Lock()
	if !s.opponentDueLocked(gen) {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	ctx, cancel := context.WithCancel(s.ctx)
	s.inflight = cancel
	provider := s.provider
	req := opponent.Request{
		FEN:        s.pos.FEN(),
		History:    s.pos.History(),
		Legal:      s.pos.LegalMoves(),
		Position:   s.pos.Clone(),
		Color:      s.pos.Turn(),
		Opening:    s.focus,
		Transcript: s.transcript.Messages(),
	}
	s.mu.Unlock()

	prop, err := provider.Propose(ctx, req)
	cancel()

	s.mu.Lock()
	if !s.opponentDueLocked(gen) {
		s.mu.Unlock()
		return
	}
	s.inflight = nil
	s.thinking = false
	s.applyProposalLocked(prop, err)
	s.unlockAndNotify()
}

func (s *Session) applyProposalLocked(prop opponent.Proposal, err error) {
	for _, n := range prop.Notes {
		s.transcript.Append(n.Role, n.Content)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("opponent_propose_failed", zap.Error(err))
	}

	mover := s.pos.Turn()
	if prop.Move != "" {
		if m, ok := s.pos.ApplyUCI(prop.Move); ok {
			s.playedLocked(m)
			s.acceptLocked(m, mover)
			return
		}
		s.note(chatcoach.RoleSystem, "note.opponent_invalid", map[string]string{"Opponent": s.opponentName(), "Move": prop.Move})
		s.log.Info("opponent_move_rejected", zap.String("uci", prop.Move))
	}

	legal := s.pos.LegalMoves()
	fb, ferr := s.deps.Fallback.SelectMove(s.pos, legal, evaluator.Beginner)
	if ferr != nil {
		// the game-over check after the previous move makes this unreachable
		s.log.DPanic("fallback_without_moves", zap.Error(ferr), zap.String("fen", s.pos.FEN()))
		s.touchLocked()
		return
	}
	m, ok := s.pos.Apply(fb.From, fb.To, fb.Promotion)
	if !ok {
		s.log.DPanic("fallback_move_rejected", zap.String("uci", fb.UCI))
		s.touchLocked()
		return
	}
	if prop.Move != "" || err != nil || s.cfg.Mode == CoachMode {
		s.note(chatcoach.RoleSystem, "note.fallback_move", map[string]string{"Opponent": s.opponentName(), "Move": m.UCI})
	}
	s.acceptLocked(m, mover)
}

func (s *Session) playedLocked(m rules.Move) {
	p, ok := s.provider.(opponent.Played)
	if !ok {
		return
	}
	for _, n := range p.Played(m.UCI) {
		s.transcript.Append(n.Role, n.Content)
	}
}
