package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/cheese-trainer/internal/rules"
)

func TestParseTimeControl(t *testing.T) {
	tc, err := ParseTimeControl("15+10")
	if err != nil || tc != Classical {
		t.Fatalf("ParseTimeControl(15+10) = %+v, %v", tc, err)
	}
	tc, err = ParseTimeControl("")
	if err != nil || tc != DefaultTimeControl {
		t.Fatalf("empty time control = %+v, %v", tc, err)
	}
	if _, err := ParseTimeControl("x+1"); err == nil {
		t.Fatalf("expected error")
	}
	if DefaultTimeControl.String() != "10+5" {
		t.Fatalf("default = %s", DefaultTimeControl)
	}
}

func TestTickClampsAtZero(t *testing.T) {
	c := Clock{White: 2, Black: 5}
	if rem, expired := c.Tick(rules.White); rem != 1 || expired {
		t.Fatalf("first tick = %d %v", rem, expired)
	}
	if rem, expired := c.Tick(rules.White); rem != 0 || !expired {
		t.Fatalf("second tick = %d %v", rem, expired)
	}
	if rem, expired := c.Tick(rules.White); rem != 0 || !expired {
		t.Fatalf("tick past zero = %d %v", rem, expired)
	}
	if c.Black != 5 {
		t.Fatalf("idle side changed: %d", c.Black)
	}
}

func TestCreditAddsIncrementToMover(t *testing.T) {
	c := New(Blitz)
	c.Tick(rules.Black)
	before := c.Remaining(rules.Black)
	if got := c.Credit(rules.Black); got != before+Blitz.Increment {
		t.Fatalf("credit = %d, want %d", got, before+Blitz.Increment)
	}
	if c.White != Blitz.Seconds() {
		t.Fatalf("white clock changed: %d", c.White)
	}
}

func TestFormat(t *testing.T) {
	if got := Format(605); got != "10:05" {
		t.Fatalf("Format(605) = %s", got)
	}
	if got := Format(-3); got != "0:00" {
		t.Fatalf("Format(-3) = %s", got)
	}
}

func TestTickerStopsCleanly(t *testing.T) {
	tk := NewTicker(5 * time.Millisecond)
	var n atomic.Int32
	tk.Start(func() { n.Add(1) })
	deadline := time.Now().Add(time.Second)
	for n.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if n.Load() < 3 {
		t.Fatalf("ticker did not fire")
	}
	tk.Stop()
	tk.Stop()
	tk.Wait()
	after := n.Load()
	time.Sleep(25 * time.Millisecond)
	if n.Load() != after {
		t.Fatalf("ticker fired after stop")
	}
	if tk.Running() {
		t.Fatalf("ticker still running")
	}
}
