package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/internal/chatcoach"
	"github.com/park285/cheese-trainer/internal/clock"
	"github.com/park285/cheese-trainer/internal/drills"
	"github.com/park285/cheese-trainer/internal/evaluator"
	"github.com/park285/cheese-trainer/internal/msgcat"
	"github.com/park285/cheese-trainer/internal/render"
	"github.com/park285/cheese-trainer/internal/rules"
	"github.com/park285/cheese-trainer/internal/session"
	"github.com/park285/cheese-trainer/internal/store"
	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

// ActionResponse reports whether a game action was taken. A rejected action
// is not an error.
type ActionResponse struct {
	Accepted bool             `json:"accepted"`
	State    session.Snapshot `json:"state"`
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

func defaultSessionDeps(cat *msgcat.Catalog, logger *zap.Logger) session.Deps {
	return session.Deps{Catalog: cat, Logger: logger}
}

func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.hub.Get(r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		h(w, r, sess)
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req trainerdto.CreateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, _ := s.hub.Create(req.Player)
	writeJSON(w, http.StatusCreated, trainerdto.CreateSessionResponse{ID: id})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.hub.Remove(r.PathValue("id")) {
		writeError(w, ErrSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func respond(w http.ResponseWriter, sess *session.Session, accepted bool) {
	writeJSON(w, http.StatusOK, ActionResponse{Accepted: accepted, State: sess.Snapshot()})
}

// startConfig overlays the request on the server defaults.
func (s *Server) startConfig(req trainerdto.StartRequest) (session.Config, error) {
	cfg := s.hub.defaults
	var err error
	if v := strings.TrimSpace(req.Mode); v != "" {
		if cfg.Mode, err = session.ParseMode(v); err != nil {
			return cfg, badRequest(err.Error())
		}
	}
	if v := strings.TrimSpace(req.Tier); v != "" {
		if cfg.Tier, err = evaluator.ParseTier(v); err != nil {
			return cfg, badRequest(err.Error())
		}
	}
	if v := strings.TrimSpace(req.HumanColor); v != "" {
		c, ok := rules.ParseColor(v)
		if !ok {
			return cfg, badRequest("invalid color: " + v)
		}
		cfg.HumanColor = c
	}
	if v := strings.TrimSpace(req.TimeControl); v != "" {
		if cfg.TimeControl, err = clock.ParseTimeControl(v); err != nil {
			return cfg, badRequest(err.Error())
		}
	}
	return cfg, nil
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req trainerdto.StartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	cfg, err := s.startConfig(req)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, sess, sess.StartGame(cfg))
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req trainerdto.MoveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if uci := strings.TrimSpace(req.UCI); uci != "" {
		if _, _, _, err := rules.ParseUCI(uci); err != nil {
			writeError(w, badRequest(err.Error()))
			return
		}
		respond(w, sess, sess.AttemptUCI(uci))
		return
	}
	from, err := rules.ParseSquare(req.From)
	if err != nil {
		writeError(w, badRequest(err.Error()))
		return
	}
	to, err := rules.ParseSquare(req.To)
	if err != nil {
		writeError(w, badRequest(err.Error()))
		return
	}
	promo, ok := rules.ParsePromotion(req.Promotion)
	if !ok {
		writeError(w, badRequest("invalid promotion: "+req.Promotion))
		return
	}
	respond(w, sess, sess.AttemptMove(from, to, promo))
}

func (s *Server) handleResign(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	respond(w, sess, sess.Resign())
}

func (s *Server) handleDraw(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	respond(w, sess, sess.OfferDraw())
}

func (s *Server) handleUndo(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	respond(w, sess, sess.UndoLastRound())
}

func (s *Server) handleNewGame(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	sess.NewGame()
	respond(w, sess, true)
}

func (s *Server) handleHint(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	pos := sess.Position()
	suggestions := evaluator.Suggest(pos, pos.LegalMoves(), evaluator.DefaultSuggestions)
	out := trainerdto.HintResponse{
		Line:        chatcoach.Hint(s.cat, pos),
		Suggestions: make([]trainerdto.Suggestion, 0, len(suggestions)),
	}
	for _, sg := range suggestions {
		out.Suggestions = append(out.Suggestions, trainerdto.Suggestion{
			UCI:     sg.Move.UCI,
			SAN:     sg.Move.Notation,
			Score:   sg.Score,
			Reasons: sg.Reasons,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req trainerdto.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, badRequest("text is required"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), chatTimeout)
	defer cancel()
	reply, ok := sess.Chat(ctx, text)
	if !ok {
		writeError(w, trainerdto.NewError(trainerdto.CodeNotCoachMode, "chat is only available in a running coach game"))
		return
	}
	writeJSON(w, http.StatusOK, trainerdto.ChatResponse{
		Role:    reply.Message.Role,
		Content: reply.Message.Content,
		Move:    reply.Move,
	})
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	snap := sess.Snapshot()
	q := r.URL.Query()
	opts := render.Options{
		Flip:        snap.Config.HumanColor == rules.Black,
		Coordinates: q.Get("coords") != "0",
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, badRequest("invalid size"))
			return
		}
		opts.SquareSize = n
	}
	if lm := snap.LastMove; lm != nil {
		from, ferr := rules.ParseSquare(lm.From)
		to, terr := rules.ParseSquare(lm.To)
		if ferr == nil && terr == nil {
			opts.LastMove = &render.Highlight{From: from, To: to}
		}
	}
	img, err := render.RenderPNG(r.Context(), snap.FEN, opts)
	if err != nil {
		s.log.Warn("board_render_failed", zap.String("session_id", snap.ID), zap.Error(err))
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(img)
}

func (s *Server) handleDrills(w http.ResponseWriter, r *http.Request) {
	if s.drills == nil {
		writeError(w, trainerdto.NewError(trainerdto.CodeUnavailable, "drills not loaded"))
		return
	}
	writeJSON(w, http.StatusOK, s.drills.List(drills.Category(r.URL.Query().Get("category"))))
}

func (s *Server) walkthrough(name string) (*drills.Walkthrough, error) {
	d, err := s.drills.Get(name)
	if err != nil {
		return nil, err
	}
	s.walkMu.Lock()
	defer s.walkMu.Unlock()
	w, ok := s.walks[d.Name]
	if !ok {
		w = drills.NewWalkthrough(d, s.progress)
		s.walks[d.Name] = w
	}
	return w, nil
}

type drillStepResponse struct {
	drills.Step
	Explanation string `json:"explanation,omitempty"`
}

func (s *Server) handleDrillStep(w http.ResponseWriter, r *http.Request) {
	if s.drills == nil {
		writeError(w, trainerdto.NewError(trainerdto.CodeUnavailable, "drills not loaded"))
		return
	}
	var req trainerdto.DrillStepRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	walk, err := s.walkthrough(r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}

	s.walkMu.Lock()
	var step drills.Step
	switch {
	case req.Index != nil:
		step, _, err = walk.Step(r.Context(), *req.Index)
	case req.Step == "prev":
		step, _, err = walk.Prev(r.Context())
	case req.Step == "reset":
		step, _, err = walk.Reset(r.Context())
	case req.Step == "" || req.Step == "next":
		step, _, err = walk.Next(r.Context())
	default:
		err = badRequest("step must be next, prev or reset")
	}
	s.walkMu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	out := drillStepResponse{Step: step}
	if step.Done {
		out.Explanation = walk.Drill().Explanation
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	m, err := s.progress.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trainerdto.ProgressResponse{Progress: m})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, badRequest("invalid limit"))
			return
		}
		limit = n
	}
	profiles, err := s.repo.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := trainerdto.LeaderboardResponse{Entries: make([]trainerdto.Profile, 0, len(profiles))}
	for _, p := range profiles {
		out.Entries = append(out.Entries, profileDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	player := strings.TrimSpace(r.PathValue("player"))
	p, err := s.repo.GetProfile(r.Context(), player)
	if err != nil {
		writeError(w, err)
		return
	}
	if p == nil {
		writeError(w, trainerdto.NewError(trainerdto.CodeNotFound, "no profile for "+player))
		return
	}
	games, err := s.repo.GetRecentGames(r.Context(), player, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	dto := profileDTO(p)
	out := trainerdto.ProfileResponse{Profile: &dto, Recent: make([]trainerdto.GameSummary, 0, len(games))}
	for _, g := range games {
		out.Recent = append(out.Recent, gameDTO(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func profileDTO(p *store.Profile) trainerdto.Profile {
	return trainerdto.Profile{
		Player:       p.Player,
		Rating:       p.Rating,
		GamesPlayed:  p.GamesPlayed,
		Wins:         p.Wins,
		Losses:       p.Losses,
		Draws:        p.Draws,
		Streak:       p.Streak,
		StreakType:   p.StreakType,
		LastMode:     p.LastMode,
		LastPlayedAt: p.LastPlayedAt,
	}
}

func gameDTO(g *store.Game) trainerdto.GameSummary {
	return trainerdto.GameSummary{
		ID:          g.ID,
		Mode:        g.Mode,
		Opponent:    g.Opponent,
		Outcome:     g.Outcome,
		Method:      g.Method,
		Result:      g.Result,
		Moves:       len(g.MovesSAN),
		PGN:         g.PGN,
		EndedAt:     g.EndedAt,
		DurationSec: int64(g.Duration.Seconds()),
	}
}
