package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Schema creates the archive tables when missing.
const Schema = `
CREATE TABLE IF NOT EXISTS trainer_games (
	id               BIGSERIAL PRIMARY KEY,
	session_uuid     TEXT NOT NULL UNIQUE,
	player           TEXT NOT NULL,
	mode             TEXT NOT NULL,
	tier             TEXT NOT NULL DEFAULT '',
	human_color      TEXT NOT NULL,
	opponent         TEXT NOT NULL,
	opponent_rating  INTEGER NOT NULL,
	time_control     TEXT NOT NULL DEFAULT '',
	result           TEXT NOT NULL,
	outcome          TEXT NOT NULL,
	result_method    TEXT NOT NULL DEFAULT '',
	moves_uci        JSONB NOT NULL DEFAULT '[]',
	moves_san        JSONB NOT NULL DEFAULT '[]',
	pgn              TEXT NOT NULL DEFAULT '',
	started_at       TIMESTAMPTZ NOT NULL,
	ended_at         TIMESTAMPTZ NOT NULL,
	duration_ms      BIGINT
);
CREATE INDEX IF NOT EXISTS trainer_games_player_ended ON trainer_games (player, ended_at DESC);
CREATE TABLE IF NOT EXISTS trainer_profiles (
	player          TEXT PRIMARY KEY,
	rating          INTEGER NOT NULL,
	games_played    INTEGER NOT NULL DEFAULT 0,
	wins            INTEGER NOT NULL DEFAULT 0,
	losses          INTEGER NOT NULL DEFAULT 0,
	draws           INTEGER NOT NULL DEFAULT 0,
	streak          INTEGER NOT NULL DEFAULT 0,
	streak_type     TEXT NOT NULL DEFAULT '',
	last_mode       TEXT NOT NULL DEFAULT '',
	last_played_at  TIMESTAMPTZ,
	updated_at      TIMESTAMPTZ NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);`

const gameColumns = `
	id, session_uuid, player, mode, tier, human_color, opponent, opponent_rating,
	time_control, result, outcome, result_method, moves_uci, moves_san, pgn,
	started_at, ended_at, duration_ms`

const profileColumns = `
	player, rating, games_played, wins, losses, draws, streak, streak_type,
	last_mode, last_played_at, updated_at, created_at`

type Postgres struct {
	db *sql.DB
}

// OpenPostgres opens a pooled connection, pings it and applies Schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (r *Postgres) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Postgres) InsertGame(ctx context.Context, game *Game) (int64, error) {
	if game == nil {
		return 0, fmt.Errorf("insert game: %w", ErrNilPayload)
	}
	movesUCI, err := json.Marshal(nonNil(game.MovesUCI))
	if err != nil {
		return 0, fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(nonNil(game.MovesSAN))
	if err != nil {
		return 0, fmt.Errorf("marshal moves_san: %w", err)
	}

	const query = `
		INSERT INTO trainer_games (
			session_uuid, player, mode, tier, human_color, opponent, opponent_rating,
			time_control, result, outcome, result_method, moves_uci, moves_san, pgn,
			started_at, ended_at, duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13::jsonb, $14, $15, $16, $17)
		ON CONFLICT (session_uuid) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = r.db.QueryRowContext(ctx, query,
		game.SessionUUID,
		game.Player,
		game.Mode,
		game.Tier,
		game.HumanColor,
		game.Opponent,
		game.OpponentRating,
		game.TimeControl,
		game.Result,
		game.Outcome,
		game.Method,
		movesUCI,
		movesSAN,
		game.PGN,
		game.StartedAt,
		game.EndedAt,
		game.Duration.Milliseconds(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return 0, ErrDuplicateGame
	}
	if err != nil {
		return 0, fmt.Errorf("insert game: %w", err)
	}
	return id.Int64, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*Game, error) {
	var (
		g          Game
		uciJSON    []byte
		sanJSON    []byte
		durationMS sql.NullInt64
	)
	if err := row.Scan(
		&g.ID, &g.SessionUUID, &g.Player, &g.Mode, &g.Tier, &g.HumanColor,
		&g.Opponent, &g.OpponentRating, &g.TimeControl, &g.Result, &g.Outcome,
		&g.Method, &uciJSON, &sanJSON, &g.PGN, &g.StartedAt, &g.EndedAt, &durationMS,
	); err != nil {
		return nil, err
	}
	if durationMS.Valid {
		g.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	}
	if err := json.Unmarshal(uciJSON, &g.MovesUCI); err != nil {
		return nil, fmt.Errorf("unmarshal moves_uci: %w", err)
	}
	if err := json.Unmarshal(sanJSON, &g.MovesSAN); err != nil {
		return nil, fmt.Errorf("unmarshal moves_san: %w", err)
	}
	return &g, nil
}

func (r *Postgres) GetRecentGames(ctx context.Context, player string, limit int) ([]*Game, error) {
	limit = clampLimit(limit, defaultRecentLimit)
	query := `SELECT` + gameColumns + `
		FROM trainer_games
		WHERE player = $1
		ORDER BY ended_at DESC, id DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, player, limit)
	if err != nil {
		return nil, fmt.Errorf("select games: %w", err)
	}
	defer rows.Close()

	games := make([]*Game, 0, limit)
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (r *Postgres) GetGame(ctx context.Context, id int64) (*Game, error) {
	query := `SELECT` + gameColumns + ` FROM trainer_games WHERE id = $1`
	g, err := scanGame(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select game: %w", err)
	}
	return g, nil
}

func (r *Postgres) GetGameBySession(ctx context.Context, sessionUUID string) (*Game, error) {
	query := `SELECT` + gameColumns + ` FROM trainer_games WHERE session_uuid = $1 LIMIT 1`
	g, err := scanGame(r.db.QueryRowContext(ctx, query, sessionUUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select game by session: %w", err)
	}
	return g, nil
}

func scanProfile(row rowScanner) (*Profile, error) {
	var (
		p          Profile
		lastPlayed sql.NullTime
	)
	if err := row.Scan(
		&p.Player, &p.Rating, &p.GamesPlayed, &p.Wins, &p.Losses, &p.Draws,
		&p.Streak, &p.StreakType, &p.LastMode, &lastPlayed, &p.UpdatedAt, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	if lastPlayed.Valid {
		p.LastPlayedAt = lastPlayed.Time
	}
	return &p, nil
}

func (r *Postgres) GetProfile(ctx context.Context, player string) (*Profile, error) {
	query := `SELECT` + profileColumns + ` FROM trainer_profiles WHERE player = $1 LIMIT 1`
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, player))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select profile: %w", err)
	}
	return p, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Postgres) UpsertProfile(ctx context.Context, p *Profile) error {
	return upsertProfile(ctx, r.db, p)
}

func upsertProfile(ctx context.Context, db execer, p *Profile) error {
	if p == nil {
		return fmt.Errorf("upsert profile: %w", ErrNilPayload)
	}
	const query = `
		INSERT INTO trainer_profiles (
			player, rating, games_played, wins, losses, draws, streak, streak_type,
			last_mode, last_played_at, updated_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (player)
		DO UPDATE SET
			rating = EXCLUDED.rating,
			games_played = EXCLUDED.games_played,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			draws = EXCLUDED.draws,
			streak = EXCLUDED.streak,
			streak_type = EXCLUDED.streak_type,
			last_mode = EXCLUDED.last_mode,
			last_played_at = EXCLUDED.last_played_at,
			updated_at = NOW()`

	var lastPlayed sql.NullTime
	if !p.LastPlayedAt.IsZero() {
		lastPlayed = sql.NullTime{Time: p.LastPlayedAt, Valid: true}
	}
	_, err := db.ExecContext(ctx, query,
		p.Player, p.Rating, p.GamesPlayed, p.Wins, p.Losses, p.Draws,
		p.Streak, p.StreakType, p.LastMode, lastPlayed,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// UpdateProfile seeds a default row, locks it with SELECT ... FOR UPDATE and
// writes fn's result in the same transaction, so concurrent results for one
// player apply one after another.
func (r *Postgres) UpdateProfile(ctx context.Context, player string, fn func(*Profile) *Profile) (*Profile, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin profile tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const seed = `
		INSERT INTO trainer_profiles (player, rating, updated_at, created_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (player) DO NOTHING`
	if _, err := tx.ExecContext(ctx, seed, player, DefaultRating); err != nil {
		return nil, fmt.Errorf("seed profile: %w", err)
	}
	query := `SELECT` + profileColumns + ` FROM trainer_profiles WHERE player = $1 FOR UPDATE`
	cur, err := scanProfile(tx.QueryRowContext(ctx, query, player))
	if err != nil {
		return nil, fmt.Errorf("lock profile: %w", err)
	}
	if cur.GamesPlayed == 0 && cur.LastPlayedAt.IsZero() {
		cur = nil
	}

	next := fn(cur)
	if next == nil {
		return nil, fmt.Errorf("update profile: %w", ErrNilPayload)
	}
	if err := upsertProfile(ctx, tx, next); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit profile: %w", err)
	}
	return next, nil
}

func (r *Postgres) Leaderboard(ctx context.Context, limit int) ([]*Profile, error) {
	limit = clampLimit(limit, defaultLeaderboardLimit)
	query := `SELECT` + profileColumns + `
		FROM trainer_profiles
		WHERE games_played > 0
		ORDER BY rating DESC, games_played DESC, player ASC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select leaderboard: %w", err)
	}
	defer rows.Close()

	out := make([]*Profile, 0, limit)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
