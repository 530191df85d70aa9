package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Opposite returns the other side.
func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

// ParseColor accepts "white"/"w" and "black"/"b".
func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, true
	case "black", "b":
		return Black, true
	default:
		return "", false
	}
}

func colorFrom(c nchess.Color) Color {
	if c == nchess.Black {
		return Black
	}
	return White
}

// PieceKind is a piece type independent of color.
type PieceKind string

const (
	NoKind PieceKind = ""
	Pawn   PieceKind = "p"
	Knight PieceKind = "n"
	Bishop PieceKind = "b"
	Rook   PieceKind = "r"
	Queen  PieceKind = "q"
	King   PieceKind = "k"
)

// ParsePromotion maps a UCI promotion suffix to a piece kind.
func ParsePromotion(s string) (PieceKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return NoKind, true
	case "q":
		return Queen, true
	case "r":
		return Rook, true
	case "b":
		return Bishop, true
	case "n":
		return Knight, true
	default:
		return NoKind, false
	}
}

func kindFrom(pt nchess.PieceType) PieceKind {
	switch pt {
	case nchess.Pawn:
		return Pawn
	case nchess.Knight:
		return Knight
	case nchess.Bishop:
		return Bishop
	case nchess.Rook:
		return Rook
	case nchess.Queen:
		return Queen
	case nchess.King:
		return King
	default:
		return NoKind
	}
}

// Square is a board coordinate. File and Rank are zero based (a1 = {0,0}).
type Square struct {
	File int
	Rank int
}

// ParseSquare parses coordinates like "e4".
func ParseSquare(s string) (Square, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return Square{}, fmt.Errorf("invalid square %q", s)
	}
	f := int(s[0] - 'a')
	r := int(s[1] - '1')
	if f < 0 || f > 7 || r < 0 || r > 7 {
		return Square{}, fmt.Errorf("invalid square %q", s)
	}
	return Square{File: f, Rank: r}, nil
}

func (s Square) String() string {
	return fmt.Sprintf("%c%c", 'a'+byte(s.File), '1'+byte(s.Rank))
}

// Valid reports whether the square lies on the board.
func (s Square) Valid() bool {
	return s.File >= 0 && s.File < 8 && s.Rank >= 0 && s.Rank < 8
}

// Index maps the square to a rank-major 8x8 array index with a8 at 0 and h1 at 63.
func (s Square) Index() int {
	return (7-s.Rank)*8 + s.File
}

// SquareFromIndex is the inverse of Index.
func SquareFromIndex(i int) Square {
	return Square{File: i % 8, Rank: 7 - i/8}
}

func squareFrom(sq nchess.Square) Square {
	return Square{File: int(sq.File()), Rank: int(sq.Rank())}
}

func (s Square) native() nchess.Square {
	return nchess.NewSquare(nchess.File(s.File), nchess.Rank(s.Rank))
}

// Move is a legal move as reported by a Position. Callers select among
// moves; they never build one by hand.
type Move struct {
	From       Square
	To         Square
	Piece      PieceKind
	Promotion  PieceKind
	Captured   PieceKind
	GivesCheck bool
	Notation   string
	UCI        string

	raw nchess.Move
}

// IsCapture reports whether the move removes an opposing piece.
func (m Move) IsCapture() bool { return m.Captured != NoKind }

// Matches compares the move against a from/to/promotion triple.
func (m Move) Matches(from, to Square, promotion PieceKind) bool {
	return m.From == from && m.To == to && m.Promotion == promotion
}

// Piece is a colored piece on a square, used by board renderers.
type Piece struct {
	Kind  PieceKind
	Color Color
}

// Status is the terminal classification of a position.
type Status string

const (
	Ongoing              Status = "ongoing"
	Checkmate            Status = "checkmate"
	Stalemate            Status = "stalemate"
	ThreefoldRepetition  Status = "threefold_repetition"
	InsufficientMaterial Status = "insufficient_material"
	FiftyMoveRule        Status = "fifty_move_rule"
)

// IsDraw reports whether the status ends the game without a winner.
func (s Status) IsDraw() bool {
	switch s {
	case Stalemate, ThreefoldRepetition, InsufficientMaterial, FiftyMoveRule:
		return true
	default:
		return false
	}
}
