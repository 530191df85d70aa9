package drills

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/park285/cheese-trainer/internal/progress"
	"github.com/park285/cheese-trainer/internal/rules"
)

//go:embed catalog.yaml
var catalogYAML []byte

var ErrDrillNotFound = errors.New("drill not found")

type Category string

const (
	Tactics Category = "tactics"
	Endgame Category = "endgame"
)

// Drill is a scripted line from a fixed position.
type Drill struct {
	Name        string   `yaml:"name" json:"name"`
	Category    Category `yaml:"category" json:"category"`
	Description string   `yaml:"description" json:"description"`
	FEN         string   `yaml:"fen" json:"fen"`
	Moves       []string `yaml:"moves" json:"moves"`
	Explanation string   `yaml:"explanation" json:"explanation"`
}

type catalogFile struct {
	Drills []Drill `yaml:"drills"`
}

// Catalog is the validated set of drills, in file order.
type Catalog struct {
	drills []Drill
	byName map[string]int
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(catalogYAML)
}

// Parse decodes raw YAML and replays every line; any illegal move is an error.
func Parse(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse drills: %w", err)
	}
	c := &Catalog{byName: make(map[string]int, len(f.Drills))}
	for _, d := range f.Drills {
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			return nil, errors.New("drill without name")
		}
		if _, dup := c.byName[strings.ToLower(d.Name)]; dup {
			return nil, fmt.Errorf("duplicate drill %q", d.Name)
		}
		if d.Category != Tactics && d.Category != Endgame {
			return nil, fmt.Errorf("drill %q: unknown category %q", d.Name, d.Category)
		}
		if len(d.Moves) == 0 {
			return nil, fmt.Errorf("drill %q: no moves", d.Name)
		}
		if _, err := rules.ReplayPosition(d.FEN, d.Moves); err != nil {
			return nil, fmt.Errorf("drill %q: %w", d.Name, err)
		}
		c.byName[strings.ToLower(d.Name)] = len(c.drills)
		c.drills = append(c.drills, d)
	}
	return c, nil
}

// List returns drills of category, or all when category is empty.
func (c *Catalog) List(category Category) []Drill {
	out := make([]Drill, 0, len(c.drills))
	for _, d := range c.drills {
		if category == "" || d.Category == category {
			out = append(out, d)
		}
	}
	return out
}

func (c *Catalog) Get(name string) (Drill, error) {
	i, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Drill{}, fmt.Errorf("%w: %s", ErrDrillNotFound, name)
	}
	return c.drills[i], nil
}

// Names returns all drill names sorted.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.drills))
	for _, d := range c.drills {
		out = append(out, d.Name)
	}
	sort.Strings(out)
	return out
}

// Step is one position along a drill line.
type Step struct {
	Drill    string  `json:"drill"`
	Index    int     `json:"index"`
	Total    int     `json:"total"`
	FEN      string  `json:"fen"`
	LastMove string  `json:"lastMove,omitempty"`
	SAN      string  `json:"san,omitempty"`
	Progress float64 `json:"progress"`
	Done     bool    `json:"done"`
}

// Walkthrough steps through one drill and records progress.
type Walkthrough struct {
	drill Drill
	store progress.Store
	index int
}

func NewWalkthrough(d Drill, store progress.Store) *Walkthrough {
	return &Walkthrough{drill: d, store: store}
}

func (w *Walkthrough) Drill() Drill { return w.drill }
func (w *Walkthrough) Index() int   { return w.index }

// Step replays the first index moves, clamped to the line length, and saves
// the resulting percentage.
func (w *Walkthrough) Step(ctx context.Context, index int) (Step, *rules.Position, error) {
	total := len(w.drill.Moves)
	if index < 0 {
		index = 0
	}
	if index > total {
		index = total
	}
	pos, err := rules.ReplayPosition(w.drill.FEN, w.drill.Moves[:index])
	if err != nil {
		return Step{}, nil, err
	}
	w.index = index
	st := Step{
		Drill:    w.drill.Name,
		Index:    index,
		Total:    total,
		FEN:      pos.FEN(),
		Progress: Percent(index, total),
		Done:     index == total,
	}
	if index > 0 {
		st.LastMove = w.drill.Moves[index-1]
		if san := pos.History(); len(san) > 0 {
			st.SAN = san[len(san)-1]
		}
	}
	if w.store != nil {
		if _, err := progress.Record(ctx, w.store, w.drill.Name, st.Progress); err != nil {
			return st, pos, fmt.Errorf("record progress: %w", err)
		}
	}
	return st, pos, nil
}

func (w *Walkthrough) Next(ctx context.Context) (Step, *rules.Position, error) {
	return w.Step(ctx, w.index+1)
}

func (w *Walkthrough) Prev(ctx context.Context) (Step, *rules.Position, error) {
	return w.Step(ctx, w.index-1)
}

func (w *Walkthrough) Reset(ctx context.Context) (Step, *rules.Position, error) {
	return w.Step(ctx, 0)
}

// Percent is index/total*100.
func Percent(index, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(index) / float64(total) * 100
}
