package rules

import (
	"fmt"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

// Position is a game in progress. It keeps the starting FEN and the applied
// UCI moves so any prefix can be rebuilt exactly.
type Position struct {
	startFEN string
	game     *nchess.Game
	uci      []string
	san      []string
}

// NewPosition returns the standard starting position.
func NewPosition() *Position {
	return &Position{game: nchess.NewGame()}
}

// NewPositionFromFEN starts from an arbitrary position. An empty string
// means the standard start.
func NewPositionFromFEN(fen string) (*Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return NewPosition(), nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return &Position{startFEN: fen, game: nchess.NewGame(opt)}, nil
}

// ReplayPosition rebuilds a position from a start FEN and a UCI move list.
func ReplayPosition(fen string, moves []string) (*Position, error) {
	p, err := NewPositionFromFEN(fen)
	if err != nil {
		return nil, err
	}
	for _, mv := range moves {
		if _, ok := p.ApplyUCI(mv); !ok {
			return nil, fmt.Errorf("replay move %s: illegal", mv)
		}
	}
	return p, nil
}

func (p *Position) freshGame() *nchess.Game {
	if p.startFEN == "" {
		return nchess.NewGame()
	}
	opt, err := nchess.FEN(p.startFEN)
	if err != nil {
		// startFEN was validated on construction
		return nchess.NewGame()
	}
	return nchess.NewGame(opt)
}

// StartingFEN returns the FEN the position was created from.
func (p *Position) StartingFEN() string {
	if p.startFEN == "" {
		return StartFEN
	}
	return p.startFEN
}

// LegalMoves lists every legal move for the side to move. A finished
// position has none.
func (p *Position) LegalMoves() []Move {
	if p.IsGameOver() {
		return nil
	}
	pos := p.game.Position()
	valid := p.game.ValidMoves()
	out := make([]Move, 0, len(valid))
	for i := range valid {
		out = append(out, describe(pos, valid[i]))
	}
	return out
}

// LegalMovesFrom narrows LegalMoves to one origin square.
func (p *Position) LegalMovesFrom(from Square) []Move {
	all := p.LegalMoves()
	out := all[:0]
	for _, m := range all {
		if m.From == from {
			out = append(out, m)
		}
	}
	return out
}

func describe(pos *nchess.Position, mv nchess.Move) Move {
	board := pos.Board()
	m := Move{
		From:      squareFrom(mv.S1()),
		To:        squareFrom(mv.S2()),
		Promotion: kindFrom(mv.Promo()),
		raw:       mv,
	}
	if piece := board.Piece(mv.S1()); piece != nchess.NoPiece {
		m.Piece = kindFrom(piece.Type())
	}
	if piece := board.Piece(mv.S2()); piece != nchess.NoPiece {
		m.Captured = kindFrom(piece.Type())
	} else if mv.HasTag(nchess.EnPassant) {
		m.Captured = Pawn
	}
	m.UCI = nchess.UCINotation{}.Encode(pos, &mv)
	m.Notation = nchess.AlgebraicNotation{}.Encode(pos, &mv)
	m.GivesCheck = mv.HasTag(nchess.Check) || strings.ContainsAny(m.Notation, "+#")
	return m
}

// Apply plays the legal move matching from/to/promotion. It returns false and
// leaves the position untouched when no legal move matches.
func (p *Position) Apply(from, to Square, promotion PieceKind) (Move, bool) {
	for _, m := range p.LegalMoves() {
		if !m.Matches(from, to, promotion) {
			continue
		}
		raw := m.raw
		if err := p.game.Move(&raw, nil); err != nil {
			return Move{}, false
		}
		p.uci = append(p.uci, m.UCI)
		p.san = append(p.san, m.Notation)
		return m, true
	}
	return Move{}, false
}

// ApplyUCI parses a coordinate move such as "e2e4" or "a7a8q" and applies it.
func (p *Position) ApplyUCI(s string) (Move, bool) {
	from, to, promo, err := ParseUCI(s)
	if err != nil {
		return Move{}, false
	}
	return p.Apply(from, to, promo)
}

// ParseUCI splits a coordinate move into its parts.
func ParseUCI(s string) (Square, Square, PieceKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return Square{}, Square{}, NoKind, fmt.Errorf("invalid uci move %q", s)
	}
	from, err := ParseSquare(s[0:2])
	if err != nil {
		return Square{}, Square{}, NoKind, err
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return Square{}, Square{}, NoKind, err
	}
	promo, ok := ParsePromotion(s[4:])
	if !ok {
		return Square{}, Square{}, NoKind, fmt.Errorf("invalid promotion in %q", s)
	}
	return from, to, promo, nil
}

// Undo reverts exactly the last applied move.
func (p *Position) Undo() bool {
	n := len(p.uci)
	if n == 0 {
		return false
	}
	game := p.freshGame()
	notation := nchess.UCINotation{}
	for _, mv := range p.uci[:n-1] {
		move, err := notation.Decode(game.Position(), mv)
		if err != nil {
			return false
		}
		if err := game.Move(move, nil); err != nil {
			return false
		}
	}
	p.game = game
	p.uci = p.uci[:n-1]
	p.san = p.san[:n-1]
	return true
}

// Clone returns an independent copy.
func (p *Position) Clone() *Position {
	c, err := ReplayPosition(p.startFEN, p.uci)
	if err != nil {
		return &Position{startFEN: p.startFEN, game: p.game.Clone(), uci: append([]string(nil), p.uci...), san: append([]string(nil), p.san...)}
	}
	return c
}

// Status classifies the position. Threefold repetition and the fifty-move
// rule end the game as soon as they can be claimed.
func (p *Position) Status() Status {
	if p.game.Outcome() != nchess.NoOutcome {
		switch p.game.Method() {
		case nchess.Checkmate:
			return Checkmate
		case nchess.Stalemate:
			return Stalemate
		case nchess.InsufficientMaterial:
			return InsufficientMaterial
		case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
			return ThreefoldRepetition
		case nchess.FiftyMoveRule, nchess.SeventyFiveMoveRule:
			return FiftyMoveRule
		}
	}
	for _, method := range p.game.EligibleDraws() {
		switch method {
		case nchess.ThreefoldRepetition:
			return ThreefoldRepetition
		case nchess.FiftyMoveRule:
			return FiftyMoveRule
		}
	}
	return Ongoing
}

// IsGameOver reports any terminal status.
func (p *Position) IsGameOver() bool { return p.Status() != Ongoing }

func (p *Position) IsCheckmate() bool { return p.Status() == Checkmate }

func (p *Position) IsStalemate() bool { return p.Status() == Stalemate }

func (p *Position) IsDraw() bool { return p.Status().IsDraw() }

func (p *Position) IsThreefoldRepetition() bool { return p.Status() == ThreefoldRepetition }

func (p *Position) IsInsufficientMaterial() bool { return p.Status() == InsufficientMaterial }

func (p *Position) IsFiftyMoveRule() bool { return p.Status() == FiftyMoveRule }

// Turn returns the side to move.
func (p *Position) Turn() Color { return colorFrom(p.game.Position().Turn()) }

// FEN serializes the current position.
func (p *Position) FEN() string { return p.game.FEN() }

// Ply counts the moves applied since the starting FEN.
func (p *Position) Ply() int { return len(p.uci) }

// History returns the applied moves in SAN.
func (p *Position) History() []string { return append([]string(nil), p.san...) }

// UCIHistory returns the applied moves in coordinate notation.
func (p *Position) UCIHistory() []string { return append([]string(nil), p.uci...) }

// PieceAt reports the piece standing on sq.
func (p *Position) PieceAt(sq Square) (Piece, bool) {
	if !sq.Valid() {
		return Piece{}, false
	}
	piece := p.game.Position().Board().Piece(sq.native())
	if piece == nchess.NoPiece {
		return Piece{}, false
	}
	return Piece{Kind: kindFrom(piece.Type()), Color: colorFrom(piece.Color())}, true
}

// Board returns the 64 squares indexed by Square.Index.
func (p *Position) Board() [64]Piece {
	var out [64]Piece
	for i := 0; i < 64; i++ {
		if piece, ok := p.PieceAt(SquareFromIndex(i)); ok {
			out[i] = piece
		}
	}
	return out
}

// RepliesGiveCheck reports whether any legal answer to m checks the mover.
func (p *Position) RepliesGiveCheck(m Move) bool {
	raw := m.raw
	next := p.game.Position().Update(&raw)
	if next == nil {
		return false
	}
	for _, reply := range next.ValidMoves() {
		if reply.HasTag(nchess.Check) {
			return true
		}
	}
	return false
}

// Opening names the ECO opening reached so far, if any.
func (p *Position) Opening() (code, title string) {
	if len(p.uci) == 0 || p.startFEN != "" {
		return "", ""
	}
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	if ecoBook == nil {
		return "", ""
	}
	if eco := ecoBook.Find(p.game.Moves()); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}

// PGN renders the game with the given tag pairs.
func (p *Position) PGN(tags map[string]string) string {
	g := p.game.Clone()
	for k, v := range tags {
		if strings.TrimSpace(v) == "" {
			continue
		}
		g.AddTagPair(k, v)
	}
	if p.startFEN != "" {
		g.AddTagPair("FEN", p.startFEN)
		g.AddTagPair("SetUp", "1")
	}
	return g.String()
}
