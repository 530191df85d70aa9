package clock

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/park285/cheese-trainer/internal/rules"
)

// TimeControl is a base time in minutes plus a per-move increment in seconds.
type TimeControl struct {
	Minutes   int `json:"minutes"`
	Increment int `json:"increment"`
}

var (
	Blitz     = TimeControl{Minutes: 5, Increment: 3}
	Rapid     = TimeControl{Minutes: 10, Increment: 5}
	Classical = TimeControl{Minutes: 15, Increment: 10}

	DefaultTimeControl = Rapid
)

func (tc TimeControl) String() string {
	return fmt.Sprintf("%d+%d", tc.Minutes, tc.Increment)
}

// Seconds is the starting time for each side.
func (tc TimeControl) Seconds() int { return tc.Minutes * 60 }

// ParseTimeControl reads "M+I" such as "10+5".
func ParseTimeControl(s string) (TimeControl, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultTimeControl, nil
	}
	base, inc, found := strings.Cut(s, "+")
	m, err := strconv.Atoi(strings.TrimSpace(base))
	if err != nil || m <= 0 {
		return TimeControl{}, fmt.Errorf("invalid time control %q", s)
	}
	tc := TimeControl{Minutes: m}
	if found {
		i, err := strconv.Atoi(strings.TrimSpace(inc))
		if err != nil || i < 0 {
			return TimeControl{}, fmt.Errorf("invalid increment in %q", s)
		}
		tc.Increment = i
	}
	return tc, nil
}

// Clock holds both sides' remaining seconds. It is not safe for concurrent
// use; the owning session serializes access.
type Clock struct {
	White     int `json:"white"`
	Black     int `json:"black"`
	Increment int `json:"increment"`
}

// New gives both sides the full base time.
func New(tc TimeControl) Clock {
	return Clock{White: tc.Seconds(), Black: tc.Seconds(), Increment: tc.Increment}
}

// Remaining returns the seconds left for side.
func (c *Clock) Remaining(side rules.Color) int {
	if side == rules.Black {
		return c.Black
	}
	return c.White
}

func (c *Clock) set(side rules.Color, v int) {
	if v < 0 {
		v = 0
	}
	if side == rules.Black {
		c.Black = v
	} else {
		c.White = v
	}
}

// Tick removes one second from side, clamped at zero. expired is true once
// the side has no time left.
func (c *Clock) Tick(side rules.Color) (remaining int, expired bool) {
	c.set(side, c.Remaining(side)-1)
	remaining = c.Remaining(side)
	return remaining, remaining == 0
}

// Credit adds the increment to the side that just moved.
func (c *Clock) Credit(side rules.Color) int {
	c.set(side, c.Remaining(side)+c.Increment)
	return c.Remaining(side)
}

// Format renders seconds as m:ss.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
