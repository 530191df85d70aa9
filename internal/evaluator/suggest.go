package evaluator

import (
	"sort"

	"github.com/park285/cheese-trainer/internal/rules"
)

const (
	DefaultSuggestions = 5

	centerBonus      = 1
	developmentBonus = 1
	promotionBonus   = 8
	exposedPenalty   = -3
	developmentPlies = 10
)

var centerSquares = map[string]struct{}{"d4": {}, "e4": {}, "d5": {}, "e5": {}}

var homeSquares = map[rules.Color]map[rules.PieceKind][]string{
	rules.White: {rules.Knight: {"b1", "g1"}, rules.Bishop: {"c1", "f1"}},
	rules.Black: {rules.Knight: {"b8", "g8"}, rules.Bishop: {"c8", "f8"}},
}

// Suggestion is a scored candidate with the terms that produced its score.
type Suggestion struct {
	Move    rules.Move
	Score   int
	Reasons []string
}

// Suggest ranks legal with the extended scorer and returns at most limit
// entries. It never plays a move.
func Suggest(pos *rules.Position, legal []rules.Move, limit int) []Suggestion {
	if limit <= 0 {
		limit = DefaultSuggestions
	}
	out := make([]Suggestion, 0, len(legal))
	for _, m := range legal {
		out = append(out, score(pos, m))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func score(pos *rules.Position, m rules.Move) Suggestion {
	s := Suggestion{Move: m}
	if v := CaptureValue(m); v > 0 {
		s.Score += v
		s.Reasons = append(s.Reasons, "capture")
	}
	if _, ok := centerSquares[m.To.String()]; ok {
		s.Score += centerBonus
		s.Reasons = append(s.Reasons, "center")
	}
	if pos != nil && pos.Ply() < developmentPlies && firstDevelopment(pos, m) {
		s.Score += developmentBonus
		s.Reasons = append(s.Reasons, "development")
	}
	if m.Promotion != rules.NoKind {
		s.Score += promotionBonus
		s.Reasons = append(s.Reasons, "promotion")
	}
	if pos != nil && pos.RepliesGiveCheck(m) {
		s.Score += exposedPenalty
		s.Reasons = append(s.Reasons, "allows_check")
	}
	return s
}

// firstDevelopment reports a knight or bishop leaving its home square when
// no earlier move touched that square.
func firstDevelopment(pos *rules.Position, m rules.Move) bool {
	if m.Piece != rules.Knight && m.Piece != rules.Bishop {
		return false
	}
	home := false
	for _, sq := range homeSquares[pos.Turn()][m.Piece] {
		if sq == m.From.String() {
			home = true
			break
		}
	}
	if !home {
		return false
	}
	from := m.From.String()
	for _, uci := range pos.UCIHistory() {
		if len(uci) >= 4 && (uci[0:2] == from || uci[2:4] == from) {
			return false
		}
	}
	return true
}
