package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/park285/cheese-trainer/internal/clock"
	"github.com/park285/cheese-trainer/internal/feed"
	"github.com/park285/cheese-trainer/internal/session"
)

var (
	stateColor  = color.New(color.FgCyan)
	headerColor = color.New(color.FgHiWhite, color.Bold)
	moveColor   = color.New(color.FgYellow)
	winColor    = color.New(color.FgGreen, color.Bold)
	lossColor   = color.New(color.FgRed, color.Bold)
	noteColor   = color.New(color.FgHiBlack)
)

func main() {
	baseURL := os.Getenv("TRAINER_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	sessionID := os.Getenv("SESSION_ID")
	if len(os.Args) > 1 {
		sessionID = os.Args[1]
	}
	if strings.TrimSpace(sessionID) == "" {
		log.Fatal("usage: feedwatch <session-id> (or SESSION_ID)")
	}
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := feed.New(feed.FeedURL(baseURL, sessionID), 5, time.Second)
	client.OnStateChange(func(s feed.State) {
		stateColor.Printf("-- feed %s\n", s)
	})
	seen := 0
	client.OnSnapshot(func(snap session.Snapshot) {
		seen = printSnapshot(snap, seen)
	})

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err := client.Connect(cctx)
	cancel()
	if err != nil {
		log.Printf("connect error: %v", err)
	}

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = client.Close(shutdown)
}

// printSnapshot writes one status line plus any transcript entries past seen
// and returns the new transcript length.
func printSnapshot(snap session.Snapshot, seen int) int {
	turn := string(snap.Turn)
	if snap.HumanToMove {
		turn += " (you)"
	}
	headerColor.Printf("[v%d] %s %s", snap.Version, snap.Mode, snap.Phase)
	fmt.Printf("  turn=%s  white=%s black=%s", turn,
		clock.Format(snap.Clocks.White), clock.Format(snap.Clocks.Black))
	if snap.LastMove != nil {
		moveColor.Printf("  last=%s", snap.LastMove.SAN)
	}
	if snap.Opening != nil {
		fmt.Printf("  %s %s", snap.Opening.Code, snap.Opening.Title)
	}
	if snap.Thinking {
		noteColor.Printf("  %s is thinking", snap.Opponent.Name)
	}
	fmt.Println()

	if len(snap.Transcript) < seen {
		seen = 0
	}
	for _, m := range snap.Transcript[seen:] {
		noteColor.Printf("   %s: %s\n", m.Role, m.Content)
	}

	if snap.Phase == session.Ended {
		c := headerColor
		switch snap.Outcome {
		case session.Win:
			c = winColor
		case session.Loss:
			c = lossColor
		}
		c.Printf("   %s\n", snap.Result)
	}
	return len(snap.Transcript)
}
