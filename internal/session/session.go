package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/internal/chatcoach"
	"github.com/park285/cheese-trainer/internal/clock"
	"github.com/park285/cheese-trainer/internal/evaluator"
	"github.com/park285/cheese-trainer/internal/msgcat"
	"github.com/park285/cheese-trainer/internal/opponent"
	"github.com/park285/cheese-trainer/internal/rules"
)

type matcher interface {
	Match() opponent.Match
}

// Deps are the collaborators a session needs. Zero values get defaults.
type Deps struct {
	Providers    ProviderFactory
	Fallback     *evaluator.Evaluator
	Catalog      *msgcat.Catalog
	Logger       *zap.Logger
	TickInterval time.Duration
	Now          func() time.Time
}

// Session is one human-versus-opponent game. All handlers serialize on mu,
// so ticks, moves and opponent replies never interleave. Observers run
// outside the lock.
type Session struct {
	id   string
	deps Deps
	log  *zap.Logger
	cat  *msgcat.Catalog

	mu         sync.Mutex
	phase      Phase
	cfg        Config
	pos        *rules.Position
	clk        clock.Clock
	ticker     *clock.Ticker
	provider   opponent.Provider
	transcript *chatcoach.Transcript
	focus      string
	lastMove   *rules.Move

	result  string
	outcome Outcome
	method  string

	// game identifies the current Playing stretch; gen invalidates deferred
	// opponent work.
	game     uint64
	gen      uint64
	pending  *time.Timer
	thinking bool
	ctx      context.Context
	cancel   context.CancelFunc
	inflight context.CancelFunc

	version   uint64
	dirty     bool
	finished  bool
	startedAt time.Time
	endedAt   time.Time
	updatedAt time.Time

	published    uint64 // snapshots built for observers or finishers
	nextObserver int
	observers    map[int]func(Snapshot)
	finishers    []func(Snapshot)
}

// New returns a session in Setup with the default config.
func New(id string, deps Deps) *Session {
	if deps.Catalog == nil {
		deps.Catalog = msgcat.Default()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Fallback == nil {
		deps.Fallback = evaluator.NewRandom()
	}
	if deps.Providers == nil {
		deps.Providers = DefaultProviders(deps.Fallback, nil, deps.Catalog)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	cfg := DefaultConfig()
	s := &Session{
		id:         id,
		deps:       deps,
		log:        deps.Logger.With(zap.String("session_id", id)),
		cat:        deps.Catalog,
		phase:      Setup,
		cfg:        cfg,
		pos:        rules.NewPosition(),
		clk:        clock.New(cfg.TimeControl),
		ticker:     clock.NewTicker(deps.TickInterval),
		transcript: chatcoach.NewTranscript(0),
		observers:  make(map[int]func(Snapshot)),
	}
	s.updatedAt = deps.Now()
	return s
}

func (s *Session) ID() string { return s.id }

// Snapshot returns the current read model.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Position returns a copy of the current position.
func (s *Session) Position() *rules.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos.Clone()
}

// LastActivity is the time of the last state change.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// OnChange registers fn for every state change and returns a function that
// removes it.
func (s *Session) OnChange(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// OnFinish registers fn for games reaching Ended.
func (s *Session) OnFinish(fn func(Snapshot)) {
	s.mu.Lock()
	s.finishers = append(s.finishers, fn)
	s.mu.Unlock()
}

func (s *Session) touchLocked() {
	s.dirty = true
	s.version++
	s.updatedAt = s.deps.Now()
}

// unlockAndNotify releases mu and delivers pending notifications.
func (s *Session) unlockAndNotify() {
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	finished := s.finished
	s.dirty, s.finished = false, false
	if len(s.observers) == 0 && (!finished || len(s.finishers) == 0) {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	s.published++
	observers := make([]func(Snapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	var finishers []func(Snapshot)
	if finished {
		finishers = append(finishers, s.finishers...)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
	for _, fn := range finishers {
		fn(snap)
	}
}

func (s *Session) opponentName() string {
	if s.provider == nil {
		return "AI"
	}
	return s.provider.Name()
}

func (s *Session) note(role, key string, data any) {
	s.transcript.Append(role, s.cat.Text(key, data))
}

func (s *Session) opponentData() map[string]string {
	return map[string]string{"Opponent": s.opponentName()}
}

// StartGame moves Setup to Playing with cfg. It returns false outside Setup.
func (s *Session) StartGame(cfg Config) bool {
	s.mu.Lock()
	if s.phase != Setup {
		s.mu.Unlock()
		return false
	}
	s.cfg = cfg.normalized()
	s.provider = s.deps.Providers(s.cfg)
	s.pos = rules.NewPosition()
	s.clk = clock.New(s.cfg.TimeControl)
	s.lastMove = nil
	s.result, s.outcome, s.method = "", NoOutcome, ""
	s.phase = Playing
	s.game++
	s.gen++
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.startedAt = s.deps.Now()
	s.endedAt = time.Time{}
	if s.cfg.Mode == CoachMode && s.transcript.Len() == 0 {
		s.note(chatcoach.RoleSystem, "chat.welcome", nil)
	}
	if m, ok := s.provider.(matcher); ok {
		match := m.Match()
		s.note(chatcoach.RoleSystem, "note.matched", map[string]any{
			"Opponent": match.Name, "Rating": match.Rating, "GameID": match.GameID,
		})
	}

	game := s.game
	s.ticker.Start(func() { s.onTick(game) })
	if s.pos.Turn() != s.cfg.HumanColor {
		s.scheduleOpponentLocked()
	}
	s.log.Info("game_started",
		zap.String("mode", string(s.cfg.Mode)),
		zap.String("tier", string(s.cfg.Tier)),
		zap.String("human_color", string(s.cfg.HumanColor)),
		zap.String("time_control", s.cfg.TimeControl.String()),
	)
	s.touchLocked()
	s.unlockAndNotify()
	return true
}

// AttemptMove plays the human's move. It returns false, with no state
// change, unless the game is live, it is the human's turn and the move is
// legal.
func (s *Session) AttemptMove(from, to rules.Square, promotion rules.PieceKind) bool {
	s.mu.Lock()
	if s.phase != Playing || s.pos.Turn() != s.cfg.HumanColor {
		s.mu.Unlock()
		return false
	}
	m, ok := s.pos.Apply(from, to, promotion)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.acceptLocked(m, s.cfg.HumanColor)
	s.unlockAndNotify()
	return true
}

// AttemptUCI is AttemptMove for coordinate notation.
func (s *Session) AttemptUCI(uci string) bool {
	from, to, promo, err := rules.ParseUCI(uci)
	if err != nil {
		return false
	}
	return s.AttemptMove(from, to, promo)
}

// acceptLocked runs after a move is on the board: increment, terminal check,
// then the opponent's turn if the game goes on.
func (s *Session) acceptLocked(m rules.Move, mover rules.Color) {
	s.lastMove = &m
	s.clk.Credit(mover)
	s.touchLocked()
	if s.finishIfTerminalLocked(mover) {
		return
	}
	if s.pos.Turn() != s.cfg.HumanColor {
		s.scheduleOpponentLocked()
	}
}

func (s *Session) finishIfTerminalLocked(mover rules.Color) bool {
	status := s.pos.Status()
	switch status {
	case rules.Ongoing:
		return false
	case rules.Checkmate:
		winner := "White"
		if mover == rules.Black {
			winner = "Black"
		}
		outcome := Loss
		if mover == s.cfg.HumanColor {
			outcome = Win
		}
		s.finishLocked(s.cat.Text("result.checkmate", map[string]string{"Winner": winner}), outcome, string(status))
	case rules.Stalemate:
		s.finishLocked(s.cat.Text("result.stalemate", nil), Draw, string(status))
	case rules.ThreefoldRepetition:
		s.finishLocked(s.cat.Text("result.threefold", nil), Draw, string(status))
	case rules.InsufficientMaterial:
		s.finishLocked(s.cat.Text("result.insufficient", nil), Draw, string(status))
	case rules.FiftyMoveRule:
		s.finishLocked(s.cat.Text("result.fifty_move", nil), Draw, string(status))
	}
	return true
}

// finishLocked is the only way out of Playing besides NewGame.
func (s *Session) finishLocked(result string, outcome Outcome, method string) {
	s.haltLocked()
	s.phase = Ended
	s.result, s.outcome, s.method = result, outcome, method
	s.endedAt = s.deps.Now()
	s.finished = true
	s.touchLocked()
	s.log.Info("game_finished",
		zap.String("outcome", string(outcome)),
		zap.String("method", method),
		zap.Int("plies", s.pos.Ply()),
	)
}

// haltLocked stops the tick and voids all deferred opponent work.
func (s *Session) haltLocked() {
	s.ticker.Stop()
	s.cancelPendingLocked()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) cancelPendingLocked() {
	s.gen++
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
	s.thinking = false
}

// Resign ends the game as a loss.
func (s *Session) Resign() bool {
	s.mu.Lock()
	if s.phase != Playing {
		s.mu.Unlock()
		return false
	}
	s.finishLocked(s.cat.Text("result.resigned", s.opponentData()), Loss, MethodResignation)
	s.unlockAndNotify()
	return true
}

// OfferDraw asks the opponent for a draw. A declined offer leaves a
// transcript note and the game running.
func (s *Session) OfferDraw() bool {
	s.mu.Lock()
	if s.phase != Playing {
		s.mu.Unlock()
		return false
	}
	accepted := s.provider.AcceptsDraw()
	if accepted {
		s.finishLocked(s.cat.Text("result.draw_accepted", nil), Draw, MethodAgreement)
	} else {
		s.note(chatcoach.RoleSystem, "note.draw_declined", s.opponentData())
		s.touchLocked()
	}
	s.unlockAndNotify()
	return accepted
}

// NewGame returns to Setup from any phase, keeping the config.
func (s *Session) NewGame() {
	s.mu.Lock()
	s.haltLocked()
	s.phase = Setup
	s.pos = rules.NewPosition()
	s.clk = clock.New(s.cfg.TimeControl)
	s.lastMove = nil
	s.result, s.outcome, s.method = "", NoOutcome, ""
	s.startedAt, s.endedAt = time.Time{}, time.Time{}
	if r, ok := s.provider.(opponent.Resetter); ok {
		r.Reset()
	}
	s.provider = nil
	s.transcript.Reset()
	s.touchLocked()
	s.unlockAndNotify()
}

// UndoLastRound takes back the human's last move and the reply to it, so
// the human is to move again. With the reply still pending only the human's
// move is taken back.
func (s *Session) UndoLastRound() bool {
	s.mu.Lock()
	if s.phase != Playing || s.cfg.Mode == Multiplayer {
		s.mu.Unlock()
		return false
	}
	plies := 2
	if s.pos.Turn() != s.cfg.HumanColor {
		plies = 1
	}
	if s.pos.Ply() < plies {
		s.mu.Unlock()
		return false
	}
	s.cancelPendingLocked()
	for i := 0; i < plies; i++ {
		s.pos.Undo()
	}
	s.lastMove = nil
	if uci := s.pos.UCIHistory(); len(uci) > 0 {
		if m, ok := s.replayLastLocked(); ok {
			s.lastMove = &m
		}
	}
	s.note(chatcoach.RoleSystem, "note.undo", map[string]int{"Plies": plies})
	s.touchLocked()
	s.unlockAndNotify()
	return true
}

// replayLastLocked rebuilds the Move for the last applied ply.
func (s *Session) replayLastLocked() (rules.Move, bool) {
	probe := s.pos.Clone()
	uci := probe.UCIHistory()
	last := uci[len(uci)-1]
	if !probe.Undo() {
		return rules.Move{}, false
	}
	return probe.ApplyUCI(last)
}

// Close halts background work for a session that is being discarded.
func (s *Session) Close() {
	s.mu.Lock()
	s.haltLocked()
	s.mu.Unlock()
	s.ticker.Wait()
}

func (s *Session) onTick(game uint64) {
	s.mu.Lock()
	if s.phase != Playing || s.game != game || !s.ticker.Running() {
		s.mu.Unlock()
		return
	}
	side := s.pos.Turn()
	if _, expired := s.clk.Tick(side); expired {
		if side == s.cfg.HumanColor {
			s.finishLocked(s.cat.Text("result.timeout_human", s.opponentData()), Loss, MethodTimeout)
		} else {
			s.finishLocked(s.cat.Text("result.timeout_opponent", s.opponentData()), Win, MethodTimeout)
		}
	} else {
		s.touchLocked()
	}
	s.unlockAndNotify()
}

// Chat sends free text to the coach. It returns false outside coach mode.
// "learn X" or "teach X" also sets the opening focus.
func (s *Session) Chat(ctx context.Context, text string) (chatcoach.Reply, bool) {
	s.mu.Lock()
	coach, ok := s.provider.(*opponent.Coach)
	if !ok || s.cfg.Mode != CoachMode {
		s.mu.Unlock()
		return chatcoach.Reply{}, false
	}
	history := s.transcript.Messages()
	s.transcript.Append(chatcoach.RoleUser, text)
	if name, found := chatcoach.FocusOpening(text); found {
		s.focus = name
		s.note(chatcoach.RoleSystem, "chat.focus", map[string]string{"Opening": name})
	}
	gc := chatcoach.GameContext{FEN: s.pos.FEN(), Opening: s.focus, Moves: s.pos.History()}
	game := s.game
	s.touchLocked()
	s.unlockAndNotify()

	reply, err := coach.Chat(ctx, gc, history, text)
	if err != nil {
		s.log.Warn("coach_chat_failed", zap.Error(err))
	}

	s.mu.Lock()
	if s.game == game {
		s.transcript.Append(reply.Message.Role, reply.Message.Content)
		s.touchLocked()
	}
	s.unlockAndNotify()
	return reply, true
}
