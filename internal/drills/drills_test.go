package drills

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/park285/cheese-trainer/internal/progress"
)

func TestEmbeddedCatalogIsLegal(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.List(Tactics)) == 0 || len(c.List(Endgame)) == 0 {
		t.Fatalf("catalog missing a category")
	}
	if len(c.List("")) != len(c.Names()) {
		t.Fatalf("list and names disagree")
	}
}

func TestParseRejectsIllegalLine(t *testing.T) {
	raw := []byte(`drills:
  - name: Broken
    category: tactics
    fen: startpos
    moves: [e2e5]
`)
	if _, err := Parse(raw); err == nil {
		t.Fatalf("expected illegal line error")
	}
	dup := []byte(`drills:
  - {name: A, category: endgame, fen: startpos, moves: [e2e4]}
  - {name: a, category: endgame, fen: startpos, moves: [d2d4]}
`)
	if _, err := Parse(dup); err == nil {
		t.Fatalf("expected duplicate error")
	}
}

func TestWalkthroughRecordsProgress(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	d, err := c.Get("back rank mate")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	store := progress.NewMemoryStore()
	w := NewWalkthrough(d, store)
	ctx := context.Background()

	st, pos, err := w.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !st.Done || st.Progress != 100 || !strings.HasPrefix(st.SAN, "Ra8") {
		t.Fatalf("step = %+v", st)
	}
	if !pos.IsCheckmate() {
		t.Fatalf("back rank line should end in mate")
	}
	m, _ := store.Load(ctx)
	if m["Back Rank Mate"] != 100 {
		t.Fatalf("progress = %v", m)
	}

	st, _, _ = w.Next(ctx)
	if st.Index != 1 {
		t.Fatalf("Next past end moved to %d", st.Index)
	}
	st, _, _ = w.Reset(ctx)
	if st.Index != 0 || st.Progress != 0 {
		t.Fatalf("reset = %+v", st)
	}
}

func TestStepPercent(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d, err := c.Get("Zwischenzug")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	w := NewWalkthrough(d, nil)
	st, _, err := w.Step(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if want := 3.0 / 9.0 * 100; math.Abs(st.Progress-want) > 1e-9 {
		t.Fatalf("progress = %v want %v", st.Progress, want)
	}
	if _, err := c.Get("nope"); !errors.Is(err, ErrDrillNotFound) {
		t.Fatalf("err = %v", err)
	}
}
