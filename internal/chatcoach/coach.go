package chatcoach

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/internal/evaluator"
	"github.com/park285/cheese-trainer/internal/msgcat"
	"github.com/park285/cheese-trainer/internal/rules"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	defaultTranscriptLimit = 200
	contextWindow          = 20
)

var (
	movePattern  = regexp.MustCompile(`(?i)\b([a-h][1-8][a-h][1-8][qrnb]?)\b`)
	focusPattern = regexp.MustCompile(`(?i)\b(?:learn|teach)\s+([a-z\s']+)`)
)

// ExtractMove returns the first UCI-looking token in text, lowercased.
func ExtractMove(text string) (string, bool) {
	m := movePattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// FocusOpening picks the opening name out of "learn X" or "teach X".
func FocusOpening(text string) (string, bool) {
	m := focusPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", false
	}
	name := strings.TrimSpace(m[1])
	name = strings.TrimSuffix(name, " opening")
	return name, name != ""
}

// Transcript is an append-only chat log with a size cap. The owner
// serializes access.
type Transcript struct {
	msgs  []Message
	limit int
}

func NewTranscript(limit int) *Transcript {
	if limit <= 0 {
		limit = defaultTranscriptLimit
	}
	return &Transcript{limit: limit}
}

func (t *Transcript) Append(role, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	t.msgs = append(t.msgs, Message{Role: role, Content: content})
	if over := len(t.msgs) - t.limit; over > 0 {
		t.msgs = append([]Message(nil), t.msgs[over:]...)
	}
}

func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Recent returns at most n trailing messages.
func (t *Transcript) Recent(n int) []Message {
	if n <= 0 || n >= len(t.msgs) {
		return t.Messages()
	}
	out := make([]Message, n)
	copy(out, t.msgs[len(t.msgs)-n:])
	return out
}

func (t *Transcript) Len() int { return len(t.msgs) }

func (t *Transcript) Reset() { t.msgs = nil }

// GameContext is what the system prompt describes.
type GameContext struct {
	FEN     string
	Opening string
	Moves   []string
}

// Reply is the outcome of one Ask.
type Reply struct {
	Message Message
	Move    string
}

type Coach struct {
	completer Completer
	cat       *msgcat.Catalog
	logger    *zap.Logger
}

func NewCoach(c Completer, cat *msgcat.Catalog, logger *zap.Logger) *Coach {
	if cat == nil {
		cat = msgcat.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coach{completer: c, cat: cat, logger: logger}
}

// Ask sends the prompt, the recent history and userText. On failure the
// reply is a system message carrying the error and err is non-nil.
func (c *Coach) Ask(ctx context.Context, gc GameContext, history []Message, userText string) (Reply, error) {
	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: RoleSystem, Content: c.systemPrompt(gc)})
	if len(history) > contextWindow {
		history = history[len(history)-contextWindow:]
	}
	msgs = append(msgs, history...)
	if strings.TrimSpace(userText) != "" {
		msgs = append(msgs, Message{Role: RoleUser, Content: userText})
	}

	var (
		content string
		err     error
	)
	if c.completer == nil {
		err = ErrNotConfigured
	} else {
		content, err = c.completer.Complete(ctx, msgs)
	}
	if err != nil {
		c.logger.Warn("coach_request_failed", zap.Error(err))
		return Reply{Message: Message{
			Role:    RoleSystem,
			Content: c.cat.Text("chat.error", map[string]string{"Error": err.Error()}),
		}}, err
	}
	reply := Reply{Message: Message{Role: RoleAssistant, Content: content}}
	reply.Move, _ = ExtractMove(content)
	return reply, nil
}

// MovePrompt is the user turn sent after the human moves.
func (c *Coach) MovePrompt(lastMove string) string {
	if lastMove == "" {
		lastMove = "Start position"
	}
	return c.cat.Text("chat.made_move", map[string]string{"Move": lastMove})
}

func (c *Coach) systemPrompt(gc GameContext) string {
	return c.cat.Text("chat.system", map[string]string{
		"FEN":     gc.FEN,
		"Opening": gc.Opening,
		"Moves":   strings.Join(gc.Moves, ", "),
	})
}

// Hint turns the evaluator's suggestions into one coaching line. It never
// touches the network.
func Hint(cat *msgcat.Catalog, pos *rules.Position) string {
	if cat == nil {
		cat = msgcat.Default()
	}
	if pos == nil {
		return cat.Text("hint.none", nil)
	}
	sugg := evaluator.Suggest(pos, pos.LegalMoves(), evaluator.DefaultSuggestions)
	if len(sugg) == 0 {
		return cat.Text("hint.none", nil)
	}
	others := make([]string, 0, len(sugg)-1)
	for _, s := range sugg[1:] {
		others = append(others, s.Move.Notation)
	}
	return cat.Text("hint.line", map[string]string{
		"Move":    sugg[0].Move.Notation,
		"Reasons": strings.Join(sugg[0].Reasons, ", "),
		"Others":  strings.Join(others, ", "),
	})
}
