package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func sampleGame(session, player string, outcome string, ended time.Time) *Game {
	return &Game{
		SessionUUID:    session,
		Player:         player,
		Mode:           "classic",
		Tier:           "advanced",
		HumanColor:     "white",
		Opponent:       "AI",
		OpponentRating: 1600,
		TimeControl:    "10+5",
		Outcome:        outcome,
		Method:         "checkmate",
		MovesUCI:       []string{"f2f3", "e7e5", "g2g4", "d8h4"},
		MovesSAN:       []string{"f3", "e5", "g4", "Qh4#"},
		StartedAt:      ended.Add(-time.Minute),
		EndedAt:        ended,
	}
}

func TestApplyResultElo(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p, delta := ApplyResult(nil, "kim", "classic", DefaultRating, OutcomeWin, now)
	if delta != 12 || p.Rating != 1212 {
		t.Fatalf("equal-rating win: delta=%d rating=%d", delta, p.Rating)
	}
	if p.Wins != 1 || p.GamesPlayed != 1 || p.Streak != 1 || p.StreakType != OutcomeWin {
		t.Fatalf("profile = %+v", p)
	}
	p, _ = ApplyResult(p, "kim", "classic", 1200, OutcomeWin, now)
	if p.Streak != 2 {
		t.Fatalf("streak = %d", p.Streak)
	}
	p, delta = ApplyResult(p, "kim", "classic", 1200, OutcomeDraw, now)
	if delta >= 0 || p.Streak != 1 || p.StreakType != OutcomeDraw || p.Draws != 1 {
		t.Fatalf("draw from higher rating: delta=%d %+v", delta, p)
	}
	_, delta = ApplyResult(&Profile{Rating: 1200}, "x", "classic", 2300, OutcomeLoss, now)
	if delta != 0 && delta != -1 {
		t.Fatalf("loss to much stronger opponent should barely move: %d", delta)
	}
}

func TestBuildPGN(t *testing.T) {
	g := sampleGame("s1", "kim", OutcomeLoss, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	pgn := BuildPGN(g)
	for _, want := range []string{
		`[Date "2026.03.01"]`,
		`[White "kim"]`,
		`[Black "AI"]`,
		`[TimeControl "10+5"]`,
		`[Result "0-1"]`,
		"1. f3 e5 2. g4 Qh4# 0-1",
	} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("pgn missing %q:\n%s", want, pgn)
		}
	}

	g.HumanColor = "black"
	g.Outcome = OutcomeWin
	pgn = BuildPGN(g)
	if !strings.Contains(pgn, `[White "AI"]`) || !strings.HasSuffix(pgn, "0-1") {
		t.Fatalf("black human pgn:\n%s", pgn)
	}
}

func TestMemoryArchive(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	p, delta, err := Archive(ctx, repo, sampleGame("s1", "kim", OutcomeWin, base))
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if delta <= 0 || p.GamesPlayed != 1 {
		t.Fatalf("delta=%d profile=%+v", delta, p)
	}
	p, delta, err = Archive(ctx, repo, sampleGame("s1", "kim", OutcomeWin, base))
	if err != nil || delta != 0 || p.GamesPlayed != 1 {
		t.Fatalf("duplicate archive: delta=%d profile=%+v err=%v", delta, p, err)
	}
	if _, err := repo.InsertGame(ctx, sampleGame("s1", "kim", OutcomeWin, base)); !errors.Is(err, ErrDuplicateGame) {
		t.Fatalf("err = %v", err)
	}

	if _, _, err := Archive(ctx, repo, sampleGame("s2", "kim", OutcomeLoss, base.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}
	games, err := repo.GetRecentGames(ctx, "kim", 0)
	if err != nil || len(games) != 2 || games[0].SessionUUID != "s2" {
		t.Fatalf("recent = %v, %v", games, err)
	}
	if games[0].PGN == "" || games[0].Duration != time.Minute {
		t.Fatalf("archive did not fill pgn/duration: %+v", games[0])
	}
	games[0].MovesSAN[0] = "mutated"
	again, _ := repo.GetGame(ctx, games[0].ID)
	if again.MovesSAN[0] != "f3" {
		t.Fatalf("repository aliased caller slice")
	}
	if g, _ := repo.GetGame(ctx, 99); g != nil {
		t.Fatalf("expected nil for missing game")
	}
}

func TestMemoryLeaderboard(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	for _, p := range []*Profile{
		{Player: "a", Rating: 1300, GamesPlayed: 3},
		{Player: "b", Rating: 1500, GamesPlayed: 1},
		{Player: "c", Rating: 1300, GamesPlayed: 5},
		{Player: "idle", Rating: 2000},
	} {
		if err := repo.UpsertProfile(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	board, err := repo.Leaderboard(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(board) != 2 || board[0].Player != "b" || board[1].Player != "c" {
		t.Fatalf("leaderboard = %+v %+v", board[0], board[1])
	}
}

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("TRAINER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TRAINER_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	repo, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	session := "test-" + time.Now().Format("20060102150405.000000000")
	g := sampleGame(session, "pg-"+session, OutcomeDraw, time.Now().UTC().Truncate(time.Millisecond))
	if _, _, err := Archive(ctx, repo, g); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if _, err := repo.InsertGame(ctx, g); !errors.Is(err, ErrDuplicateGame) {
		t.Fatalf("duplicate err = %v", err)
	}
	got, err := repo.GetGameBySession(ctx, session)
	if err != nil || got == nil || len(got.MovesSAN) != 4 {
		t.Fatalf("GetGameBySession = %+v, %v", got, err)
	}
	p, err := repo.GetProfile(ctx, g.Player)
	if err != nil || p == nil || p.Draws != 1 {
		t.Fatalf("profile = %+v, %v", p, err)
	}
}

// archiveConcurrently finishes n games for player at once and checks that
// every result reached the profile.
func archiveConcurrently(t *testing.T, repo Repository, player string, n int) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g := sampleGame(fmt.Sprintf("%s-%d", player, i), player, OutcomeWin, base.Add(time.Duration(i)*time.Second))
			if _, _, err := Archive(ctx, repo, g); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Archive: %v", err)
	}
	p, err := repo.GetProfile(ctx, player)
	if err != nil || p == nil {
		t.Fatalf("profile = %+v, %v", p, err)
	}
	if p.GamesPlayed != n || p.Wins != n || p.Streak != n {
		t.Fatalf("lost updates: games=%d wins=%d streak=%d want %d", p.GamesPlayed, p.Wins, p.Streak, n)
	}
}

func TestMemoryConcurrentArchiveSamePlayer(t *testing.T) {
	archiveConcurrently(t, NewMemory(), "guest", 32)
}

func TestPostgresConcurrentArchiveSamePlayer(t *testing.T) {
	dsn := os.Getenv("TRAINER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TRAINER_TEST_DATABASE_URL not set")
	}
	repo, err := OpenPostgres(context.Background(), dsn)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	archiveConcurrently(t, repo, "guest-"+time.Now().Format("20060102150405.000000000"), 8)
}
