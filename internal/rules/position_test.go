package rules

import (
	"strings"
	"testing"
)

func mustSquare(t *testing.T, s string) Square {
	t.Helper()
	sq, err := ParseSquare(s)
	if err != nil {
		t.Fatalf("ParseSquare(%q): %v", s, err)
	}
	return sq
}

func playAll(t *testing.T, p *Position, moves ...string) {
	t.Helper()
	for _, mv := range moves {
		if _, ok := p.ApplyUCI(mv); !ok {
			t.Fatalf("ApplyUCI(%s) rejected", mv)
		}
	}
}

func TestStartingPositionMoves(t *testing.T) {
	p := NewPosition()
	if got := len(p.LegalMoves()); got != 20 {
		t.Fatalf("legal moves = %d, want 20", got)
	}
	if p.Turn() != White {
		t.Fatalf("turn = %s", p.Turn())
	}
	knight := p.LegalMovesFrom(mustSquare(t, "g1"))
	if len(knight) != 2 {
		t.Fatalf("g1 moves = %d, want 2", len(knight))
	}
	for _, m := range knight {
		if m.Piece != Knight {
			t.Fatalf("g1 move piece = %q", m.Piece)
		}
	}
}

func TestApplyAndReject(t *testing.T) {
	p := NewPosition()
	if _, ok := p.Apply(mustSquare(t, "e2"), mustSquare(t, "e5"), NoKind); ok {
		t.Fatalf("e2e5 accepted")
	}
	if p.Ply() != 0 {
		t.Fatalf("rejected move changed ply")
	}
	m, ok := p.Apply(mustSquare(t, "e2"), mustSquare(t, "e4"), NoKind)
	if !ok {
		t.Fatalf("e2e4 rejected")
	}
	if m.Notation != "e4" || m.UCI != "e2e4" {
		t.Fatalf("unexpected move %+v", m)
	}
	if p.Turn() != Black {
		t.Fatalf("turn did not flip")
	}
	if h := p.History(); len(h) != 1 || h[0] != "e4" {
		t.Fatalf("history = %v", h)
	}
}

func TestUndoRevertsOnePly(t *testing.T) {
	p := NewPosition()
	playAll(t, p, "e2e4", "e7e5", "g1f3")
	before := p.UCIHistory()
	if !p.Undo() {
		t.Fatalf("undo failed")
	}
	if p.Ply() != 2 || p.Turn() != White {
		t.Fatalf("after undo ply=%d turn=%s", p.Ply(), p.Turn())
	}
	if got := p.UCIHistory(); strings.Join(got, " ") != strings.Join(before[:2], " ") {
		t.Fatalf("history after undo = %v", got)
	}
	if _, ok := p.ApplyUCI("g1f3"); !ok {
		t.Fatalf("replay after undo rejected")
	}
	empty := NewPosition()
	if empty.Undo() {
		t.Fatalf("undo on empty history succeeded")
	}
}

func TestCheckmateDetection(t *testing.T) {
	p := NewPosition()
	playAll(t, p, "f2f3", "e7e5", "g2g4")
	var mate Move
	for _, m := range p.LegalMoves() {
		if m.UCI == "d8h4" {
			mate = m
		}
	}
	if !mate.GivesCheck {
		t.Fatalf("d8h4 not flagged as check: %+v", mate)
	}
	playAll(t, p, "d8h4")
	if !p.IsCheckmate() || !p.IsGameOver() {
		t.Fatalf("expected checkmate, status=%s", p.Status())
	}
	if len(p.LegalMoves()) != 0 {
		t.Fatalf("legal moves after mate")
	}
}

func TestStalemateAndInsufficientMaterial(t *testing.T) {
	p, err := NewPositionFromFEN("7k/8/6K1/8/8/8/5Q2/8 w - - 0 1")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	playAll(t, p, "f2f7")
	if !p.IsStalemate() || !p.IsDraw() {
		t.Fatalf("expected stalemate, status=%s", p.Status())
	}

	bare, err := NewPositionFromFEN("8/8/8/8/8/8/1p6/K6k w - - 0 1")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	playAll(t, bare, "a1b2")
	if !bare.IsInsufficientMaterial() {
		t.Fatalf("expected insufficient material, status=%s", bare.Status())
	}
}

func TestThreefoldRepetition(t *testing.T) {
	p := NewPosition()
	playAll(t, p, "g1f3", "g8f6", "f3g1", "f6g8", "g1f3", "g8f6", "f3g1", "f6g8")
	if !p.IsThreefoldRepetition() {
		t.Fatalf("expected threefold repetition, status=%s", p.Status())
	}
	if p.LegalMoves() != nil {
		t.Fatalf("legal moves offered after repetition")
	}
}

func TestCaptureAndPromotionMetadata(t *testing.T) {
	p := NewPosition()
	playAll(t, p, "e2e4", "a7a6", "e4e5", "d7d5")
	var ep Move
	for _, m := range p.LegalMovesFrom(mustSquare(t, "e5")) {
		if m.To == mustSquare(t, "d6") {
			ep = m
		}
	}
	if ep.Captured != Pawn {
		t.Fatalf("en passant capture not reported: %+v", ep)
	}

	promo, err := NewPositionFromFEN("8/P7/8/8/8/8/8/k6K w - - 0 1")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	if got := len(promo.LegalMovesFrom(mustSquare(t, "a7"))); got != 4 {
		t.Fatalf("promotion choices = %d, want 4", got)
	}
	m, ok := promo.ApplyUCI("a7a8q")
	if !ok || m.Promotion != Queen {
		t.Fatalf("promotion apply: ok=%v move=%+v", ok, m)
	}
}

func TestSquareIndexRoundTrip(t *testing.T) {
	for i := 0; i < 64; i++ {
		if got := SquareFromIndex(i).Index(); got != i {
			t.Fatalf("index %d round trip = %d", i, got)
		}
	}
	if mustSquare(t, "a8").Index() != 0 || mustSquare(t, "h1").Index() != 63 {
		t.Fatalf("corner indexes wrong")
	}
	board := NewPosition().Board()
	if board[mustSquare(t, "e1").Index()] != (Piece{Kind: King, Color: White}) {
		t.Fatalf("e1 is not the white king")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	p := NewPosition()
	playAll(t, p, "d2d4")
	c := p.Clone()
	playAll(t, c, "d7d5")
	if p.Ply() != 1 || c.Ply() != 2 {
		t.Fatalf("clone shares state: %d %d", p.Ply(), c.Ply())
	}
}
