package engine

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// CatalogSource provides catalogs to a Simulator.
type CatalogSource interface {
	LoadCatalog(name string) (*Catalog, error)
	GetDefault() *Catalog
}

// Simulator is a local Engine that plays over a catalog of characters by
// filtering candidates on their traits. It stands in for a remote engine in
// development and tests.
type Simulator struct {
	catalogs CatalogSource
}

// NewSimulator creates a Simulator. A nil source plays the built-in catalog.
func NewSimulator(catalogs CatalogSource) *Simulator {
	return &Simulator{catalogs: catalogs}
}

// Start begins a new game over opts.Catalog, or the default catalog when empty.
func (s *Simulator) Start(ctx context.Context, opts Options) (Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "start: %v", err)
	}

	catalog, err := s.catalog(opts.Catalog)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "load catalog %q: %v", opts.Catalog, err)
	}

	characters := make([]Character, 0, len(catalog.Characters))
	for _, ch := range catalog.Characters {
		if opts.ChildMode && ch.Adult {
			continue
		}
		characters = append(characters, ch)
	}
	if len(characters) == 0 {
		return nil, errors.Wrapf(ErrUnavailable, "catalog %q has no playable characters", catalog.Name)
	}

	candidates := make([]int, len(characters))
	for i := range candidates {
		candidates[i] = i
	}

	g := &simGame{
		questions:  catalog.Questions,
		characters: characters,
	}
	g.cur = g.settle(frame{candidates: candidates})
	return g, nil
}

func (s *Simulator) catalog(name string) (*Catalog, error) {
	if s.catalogs == nil {
		if name != "" && name != "default" {
			return nil, errors.Errorf("catalog %q not available", name)
		}
		return DefaultCatalog(), nil
	}
	if name == "" {
		c := s.catalogs.GetDefault()
		if c == nil {
			return nil, errors.New("no default catalog")
		}
		return c, nil
	}
	return s.catalogs.LoadCatalog(name)
}

// frame is an immutable snapshot of a simulated game.
type frame struct {
	candidates []int    // indices into simGame.characters
	asked      []string // question IDs in the order they were answered
	pending    int      // index into simGame.questions, meaningless when won
	won        bool
	guess      int // index into simGame.characters when won
}

type simGame struct {
	mu         sync.Mutex
	questions  []Question
	characters []Character
	cur        frame
	history    []frame
}

func (g *simGame) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stateLocked()
}

func (g *simGame) Answer(ctx context.Context, a Answer) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !a.Valid() {
		return State{}, errors.Wrapf(ErrInvalidAnswer, "%d", int(a))
	}
	if err := ctx.Err(); err != nil {
		return State{}, errors.Wrapf(ErrUnavailable, "answer: %v", err)
	}
	if g.cur.won {
		return State{}, ErrGameOver
	}

	q := g.questions[g.cur.pending]
	next := frame{
		asked: append(append(make([]string, 0, len(g.cur.asked)+1), g.cur.asked...), q.ID),
	}

	switch a {
	case Yes, Probably:
		next.candidates = g.filter(q.ID, true)
	case No, ProbablyNot:
		next.candidates = g.filter(q.ID, false)
	default:
		next.candidates = g.cur.candidates
	}
	if len(next.candidates) == 0 {
		// A contradicting answer keeps the current candidates.
		next.candidates = g.cur.candidates
	}

	g.history = append(g.history, g.cur)
	g.cur = g.settle(next)
	return g.stateLocked(), nil
}

func (g *simGame) Cancel(ctx context.Context) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return State{}, errors.Wrapf(ErrUnavailable, "cancel: %v", err)
	}
	if len(g.history) == 0 {
		return State{}, ErrNoAnswerToCancel
	}

	g.cur = g.history[len(g.history)-1]
	g.history = g.history[:len(g.history)-1]
	return g.stateLocked(), nil
}

func (g *simGame) filter(questionID string, want bool) []int {
	kept := make([]int, 0, len(g.cur.candidates))
	for _, idx := range g.cur.candidates {
		if g.characters[idx].Traits[questionID] == want {
			kept = append(kept, idx)
		}
	}
	return kept
}

// settle picks the next question for f, or declares a win when no question
// can split the remaining candidates.
func (g *simGame) settle(f frame) frame {
	if len(f.candidates) == 1 {
		f.won, f.guess = true, f.candidates[0]
		return f
	}

	asked := make(map[string]bool, len(f.asked))
	for _, id := range f.asked {
		asked[id] = true
	}

	best, bestScore := -1, 0
	n := len(f.candidates)
	for i, q := range g.questions {
		if asked[q.ID] {
			continue
		}
		yes := 0
		for _, idx := range f.candidates {
			if g.characters[idx].Traits[q.ID] {
				yes++
			}
		}
		if yes == 0 || yes == n {
			continue
		}
		score := 2*yes - n
		if score < 0 {
			score = -score
		}
		if best == -1 || score < bestScore {
			best, bestScore = i, score
		}
	}

	if best == -1 {
		f.won, f.guess = true, f.candidates[0]
		return f
	}
	f.pending = best
	return f
}

func (g *simGame) stateLocked() State {
	step := len(g.cur.asked)
	if g.cur.won {
		ch := g.characters[g.cur.guess]
		return State{
			Progress: 100,
			Step:     step,
			Win:      true,
			Suggestion: &Suggestion{
				Name:        ch.Name,
				Description: ch.Description,
				PhotoURL:    ch.PhotoURL,
			},
		}
	}

	return State{
		Question: g.questions[g.cur.pending].Text,
		Progress: g.progress(),
		Step:     step,
	}
}

func (g *simGame) progress() int {
	total := len(g.characters)
	if total <= 1 {
		return 0
	}
	p := 100 * (total - len(g.cur.candidates)) / (total - 1)
	if p > 99 {
		p = 99
	}
	return p
}
