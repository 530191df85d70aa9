package session

import (
	"fmt"
	"time"

	"github.com/park285/cheese-trainer/internal/chatcoach"
	"github.com/park285/cheese-trainer/internal/clock"
	"github.com/park285/cheese-trainer/internal/rules"
)

// Phase of a session.
type Phase string

const (
	Setup   Phase = "setup"
	Playing Phase = "playing"
	Ended   Phase = "ended"
)

// Outcome is the result seen from the human's side.
type Outcome string

const (
	NoOutcome Outcome = ""
	Win       Outcome = "win"
	Loss      Outcome = "loss"
	Draw      Outcome = "draw"
)

const (
	MethodResignation = "resignation"
	MethodTimeout     = "timeout"
	MethodAgreement   = "agreement"
)

type LegalMove struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	SAN       string `json:"san"`
	UCI       string `json:"uci"`
}

type LastMove struct {
	From string `json:"from"`
	To   string `json:"to"`
	SAN  string `json:"san"`
}

type OpponentInfo struct {
	Name   string `json:"name"`
	Rating int    `json:"rating"`
	GameID string `json:"gameId,omitempty"`
}

type Opening struct {
	Code  string `json:"code"`
	Title string `json:"title"`
}

// Material sums piece values per side; kings count zero.
type Material struct {
	White int `json:"white"`
	Black int `json:"black"`
}

func (m Material) Diff() int { return m.White - m.Black }

// Snapshot is the read model of a session at one instant.
type Snapshot struct {
	ID          string              `json:"id"`
	Version     uint64              `json:"version"`
	Mode        Mode                `json:"mode"`
	Phase       Phase               `json:"phase"`
	Config      Config              `json:"config"`
	FEN         string              `json:"fen"`
	Turn        rules.Color         `json:"turn"`
	HumanToMove bool                `json:"humanToMove"`
	LegalMoves  []LegalMove         `json:"legalMoves"`
	Clocks      clock.Clock         `json:"clocks"`
	MoveHistory []string            `json:"moveHistory"`
	UCIHistory  []string            `json:"uciHistory"`
	LastMove    *LastMove           `json:"lastMove,omitempty"`
	Result      string              `json:"result,omitempty"`
	Outcome     Outcome             `json:"outcome,omitempty"`
	Method      string              `json:"method,omitempty"`
	Opponent    OpponentInfo        `json:"opponent"`
	Thinking    bool                `json:"thinking"`
	Transcript  []chatcoach.Message `json:"transcript,omitempty"`
	Focus       string              `json:"focus,omitempty"`
	Opening     *Opening            `json:"opening,omitempty"`
	Material    Material            `json:"material"`
	PGN         string              `json:"pgn,omitempty"`
	StartedAt   time.Time           `json:"startedAt,omitempty"`
	EndedAt     time.Time           `json:"endedAt,omitempty"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

var materialValues = map[rules.PieceKind]int{
	rules.Pawn:   1,
	rules.Knight: 3,
	rules.Bishop: 3,
	rules.Rook:   5,
	rules.Queen:  9,
}

func computeMaterial(pos *rules.Position) Material {
	var m Material
	for _, p := range pos.Board() {
		v := materialValues[p.Kind]
		if v == 0 {
			continue
		}
		if p.Color == rules.White {
			m.White += v
		} else {
			m.Black += v
		}
	}
	return m
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:          s.id,
		Version:     s.version,
		Mode:        s.cfg.Mode,
		Phase:       s.phase,
		Config:      s.cfg,
		FEN:         s.pos.FEN(),
		Turn:        s.pos.Turn(),
		Clocks:      s.clk,
		MoveHistory: s.pos.History(),
		UCIHistory:  s.pos.UCIHistory(),
		Result:      s.result,
		Outcome:     s.outcome,
		Method:      s.method,
		Thinking:    s.thinking,
		Transcript:  s.transcript.Messages(),
		Focus:       s.focus,
		Material:    computeMaterial(s.pos),
		StartedAt:   s.startedAt,
		EndedAt:     s.endedAt,
		UpdatedAt:   s.updatedAt,
	}
	snap.HumanToMove = s.phase == Playing && snap.Turn == s.cfg.HumanColor
	if s.phase == Playing {
		for _, m := range s.pos.LegalMoves() {
			lm := LegalMove{From: m.From.String(), To: m.To.String(), SAN: m.Notation, UCI: m.UCI}
			if m.Promotion != rules.NoKind {
				lm.Promotion = string(m.Promotion)
			}
			snap.LegalMoves = append(snap.LegalMoves, lm)
		}
	}
	if s.lastMove != nil {
		snap.LastMove = &LastMove{From: s.lastMove.From.String(), To: s.lastMove.To.String(), SAN: s.lastMove.Notation}
	}
	if s.provider != nil {
		snap.Opponent = OpponentInfo{Name: s.provider.Name(), Rating: s.provider.Rating()}
		if m, ok := s.provider.(matcher); ok {
			snap.Opponent.GameID = m.Match().GameID
		}
	}
	if code, title := s.pos.Opening(); code != "" {
		snap.Opening = &Opening{Code: code, Title: title}
	}
	if s.phase == Ended {
		snap.PGN = s.pgnLocked()
	}
	return snap
}

func (s *Session) pgnLocked() string {
	white, black := "Player", s.opponentName()
	if s.cfg.HumanColor == rules.Black {
		white, black = black, white
	}
	tags := map[string]string{
		"Event":       "Cheese Trainer " + string(s.cfg.Mode),
		"White":       white,
		"Black":       black,
		"TimeControl": timeControlTag(s.cfg.TimeControl),
	}
	if !s.startedAt.IsZero() {
		tags["Date"] = s.startedAt.UTC().Format("2006.01.02")
	}
	return s.pos.PGN(tags)
}

func timeControlTag(tc clock.TimeControl) string {
	return fmt.Sprintf("%d+%d", tc.Seconds(), tc.Increment)
}
