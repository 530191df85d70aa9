package evaluator

import (
	"errors"
	"math"
	"testing"

	"github.com/park285/cheese-trainer/internal/rules"
)

func positionAfter(t *testing.T, fen string, moves ...string) *rules.Position {
	t.Helper()
	p, err := rules.ReplayPosition(fen, moves)
	if err != nil {
		t.Fatalf("ReplayPosition: %v", err)
	}
	return p
}

func contains(list []rules.Move, m rules.Move) bool {
	for _, x := range list {
		if x.UCI == m.UCI {
			return true
		}
	}
	return false
}

func TestBeginnerReturnsLegalMove(t *testing.T) {
	e := New(1)
	p := rules.NewPosition()
	legal := p.LegalMoves()
	for i := 0; i < 200; i++ {
		m, err := e.SelectMove(p, legal, Beginner)
		if err != nil {
			t.Fatalf("SelectMove: %v", err)
		}
		if !contains(legal, m) {
			t.Fatalf("move %s not in legal list", m.UCI)
		}
	}
}

func TestIntermediatePrefersChecks(t *testing.T) {
	e := New(7)
	p := positionAfter(t, "", "e2e4", "f7f6")
	legal := p.LegalMoves()
	for i := 0; i < 100; i++ {
		m, err := e.SelectMove(p, legal, Intermediate)
		if err != nil {
			t.Fatalf("SelectMove: %v", err)
		}
		if !m.GivesCheck {
			t.Fatalf("intermediate chose non-check %s", m.UCI)
		}
	}
}

func TestIntermediatePrefersCapturesWithoutChecks(t *testing.T) {
	e := New(11)
	p := positionAfter(t, "", "d2d4", "e7e5")
	legal := p.LegalMoves()
	for _, m := range legal {
		if m.GivesCheck {
			t.Fatalf("fixture has a check: %s", m.UCI)
		}
	}
	for i := 0; i < 100; i++ {
		m, err := e.SelectMove(p, legal, Intermediate)
		if err != nil {
			t.Fatalf("SelectMove: %v", err)
		}
		if !m.IsCapture() {
			t.Fatalf("intermediate chose quiet move %s", m.UCI)
		}
	}
}

func TestAdvancedGreedyRate(t *testing.T) {
	e := New(42)
	p := positionAfter(t, "4k3/8/8/3q4/4P3/8/8/4K3 w - - 0 1")
	legal := p.LegalMoves()
	if len(legal) < 2 {
		t.Fatalf("fixture too small: %d moves", len(legal))
	}
	const trials = 2000
	best := 0
	for i := 0; i < trials; i++ {
		m, err := e.SelectMove(p, legal, Advanced)
		if err != nil {
			t.Fatalf("SelectMove: %v", err)
		}
		if !contains(legal, m) {
			t.Fatalf("move %s not legal", m.UCI)
		}
		if m.UCI == "e4d5" {
			best++
		}
	}
	// greedy share plus the uniform fallback landing on the same move
	want := greedyProbability + (1-greedyProbability)/float64(len(legal))
	got := float64(best) / trials
	if math.Abs(got-want) > 0.05 {
		t.Fatalf("best capture rate = %.3f, want %.3f", got, want)
	}
}

func TestEmptyLegalMoves(t *testing.T) {
	e := New(1)
	for _, tier := range []Tier{Beginner, Intermediate, Advanced} {
		if _, err := e.SelectMove(nil, nil, tier); !errors.Is(err, ErrNoLegalMoves) {
			t.Fatalf("tier %s: err = %v", tier, err)
		}
	}
}

func TestSeededEvaluatorsAgree(t *testing.T) {
	a, b := New(99), New(99)
	p := rules.NewPosition()
	legal := p.LegalMoves()
	for i := 0; i < 50; i++ {
		ma, _ := a.SelectMove(p, legal, Beginner)
		mb, _ := b.SelectMove(p, legal, Beginner)
		if ma.UCI != mb.UCI {
			t.Fatalf("seeded evaluators diverged at %d: %s vs %s", i, ma.UCI, mb.UCI)
		}
	}
}

func TestParseTier(t *testing.T) {
	if tier, err := ParseTier(" ADVANCED "); err != nil || tier != Advanced {
		t.Fatalf("ParseTier advanced = %v, %v", tier, err)
	}
	if _, err := ParseTier("grandmaster"); err == nil {
		t.Fatalf("expected error for unknown tier")
	}
}

func TestSuggestRanksAndLimits(t *testing.T) {
	p := rules.NewPosition()
	got := Suggest(p, p.LegalMoves(), 0)
	if len(got) != DefaultSuggestions {
		t.Fatalf("suggestions = %d, want %d", len(got), DefaultSuggestions)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("suggestions not sorted: %+v", got)
		}
	}
	if got[0].Score < 1 {
		t.Fatalf("top suggestion has no bonus: %+v", got[0])
	}
}

func TestSuggestScoringTerms(t *testing.T) {
	promo := positionAfter(t, "8/P7/8/8/8/8/8/k6K w - - 0 1")
	top := Suggest(promo, promo.LegalMoves(), 1)
	if len(top) != 1 || top[0].Move.Promotion == rules.NoKind || top[0].Score < promotionBonus {
		t.Fatalf("promotion not ranked first: %+v", top)
	}

	p := positionAfter(t, "", "e2e4", "e7e5")
	all := Suggest(p, p.LegalMoves(), 100)
	var weak, knight *Suggestion
	for i := range all {
		switch all[i].Move.UCI {
		case "f2f3":
			weak = &all[i]
		case "g1f3":
			knight = &all[i]
		}
	}
	if weak == nil || weak.Score != exposedPenalty {
		t.Fatalf("f2f3 should carry the check penalty: %+v", weak)
	}
	if knight == nil || knight.Score != developmentBonus {
		t.Fatalf("g1f3 should carry the development bonus: %+v", knight)
	}
}
