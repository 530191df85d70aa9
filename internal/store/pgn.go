package store

import (
	"fmt"
	"strings"
	"time"
)

// PGNResult maps a human-side outcome to the PGN result token.
func PGNResult(outcome, humanColor string) string {
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case OutcomeDraw:
		return "1/2-1/2"
	case OutcomeWin:
		if humanColor == "black" {
			return "0-1"
		}
		return "1-0"
	case OutcomeLoss:
		if humanColor == "black" {
			return "1-0"
		}
		return "0-1"
	default:
		return "*"
	}
}

// BuildPGN renders headers and numbered SAN for an archived game.
func BuildPGN(g *Game) string {
	if g == nil {
		return ""
	}
	result := PGNResult(g.Outcome, g.HumanColor)
	date := g.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	player := sanitizePGN(g.Player)
	if player == "" {
		player = "Player"
	}
	white, black := player, sanitizePGN(g.Opponent)
	if g.HumanColor == "black" {
		white, black = black, white
	}

	var b strings.Builder
	b.WriteString("[Event \"Cheese Trainer\"]\n")
	b.WriteString("[Site \"cheese-trainer\"]\n")
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[White \"%s\"]\n", white)
	fmt.Fprintf(&b, "[Black \"%s\"]\n", black)
	if tc := strings.TrimSpace(g.TimeControl); tc != "" {
		fmt.Fprintf(&b, "[TimeControl \"%s\"]\n", sanitizePGN(tc))
	}
	if m := strings.TrimSpace(g.Method); m != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(m)))
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", result)

	for i := 0; i < len(g.MovesSAN); i += 2 {
		fmt.Fprintf(&b, "%d. %s", i/2+1, strings.TrimSpace(g.MovesSAN[i]))
		if i+1 < len(g.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(g.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
