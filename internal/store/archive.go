package store

import (
	"context"
	"errors"
	"fmt"
)

// Archive inserts a finished game and folds it into the player's profile.
// A game that is already archived leaves the profile untouched and returns
// a zero delta.
func Archive(ctx context.Context, repo Repository, g *Game) (*Profile, int, error) {
	if g == nil {
		return nil, 0, fmt.Errorf("archive: %w", ErrNilPayload)
	}
	if g.PGN == "" {
		g.PGN = BuildPGN(g)
	}
	if g.Duration == 0 && !g.StartedAt.IsZero() && g.EndedAt.After(g.StartedAt) {
		g.Duration = g.EndedAt.Sub(g.StartedAt)
	}

	id, err := repo.InsertGame(ctx, g)
	if errors.Is(err, ErrDuplicateGame) {
		profile, perr := repo.GetProfile(ctx, g.Player)
		if perr != nil {
			return nil, 0, perr
		}
		return profile, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	g.ID = id

	var delta int
	profile, err := repo.UpdateProfile(ctx, g.Player, func(p *Profile) *Profile {
		var next *Profile
		next, delta = ApplyResult(p, g.Player, g.Mode, g.OpponentRating, g.Outcome, g.EndedAt)
		return next
	})
	if err != nil {
		return nil, 0, err
	}
	return profile, delta, nil
}
