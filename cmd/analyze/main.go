// Command analyze plays every character of each catalog through the
// simulator with truthful answers and prints how many questions it takes to
// reach each one. Characters that end in a wrong guess are listed, as are
// the characters that need the most questions.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/wricardo/guess-game/game/engine"
)

// CharacterRun is the outcome of playing one character to the end.
type CharacterRun struct {
	Name    string
	Steps   int
	Guessed string
	Correct bool
}

// Analysis summarizes the runs over a catalog.
type Analysis struct {
	Catalog  string
	Runs     []CharacterRun
	MaxSteps int
	AvgSteps float64
	Wrong    int
}

// staticCatalog serves a single catalog to the simulator.
type staticCatalog struct {
	catalog *engine.Catalog
}

func (s staticCatalog) LoadCatalog(name string) (*engine.Catalog, error) {
	return s.catalog, nil
}

func (s staticCatalog) GetDefault() *engine.Catalog {
	return s.catalog
}

// truthfulAnswer answers question text the way ch would.
func truthfulAnswer(c *engine.Catalog, ch engine.Character, question string) engine.Answer {
	for _, q := range c.Questions {
		if q.Text == question {
			if ch.Traits[q.ID] {
				return engine.Yes
			}
			return engine.No
		}
	}
	return engine.DontKnow
}

// playCharacter answers truthfully for ch until the simulator guesses. The
// question count is bounded by the number of questions in the catalog.
func playCharacter(ctx context.Context, sim *engine.Simulator, c *engine.Catalog, ch engine.Character) (CharacterRun, error) {
	run := CharacterRun{Name: ch.Name}

	game, err := sim.Start(ctx, engine.Options{})
	if err != nil {
		return run, err
	}

	state := game.State()
	for !state.Win && run.Steps <= len(c.Questions) {
		state, err = game.Answer(ctx, truthfulAnswer(c, ch, state.Question))
		if err != nil {
			return run, err
		}
		run.Steps++
	}

	if state.Suggestion != nil {
		run.Guessed = state.Suggestion.Name
	}
	run.Correct = run.Guessed == ch.Name
	return run, nil
}

func analyzeCatalog(ctx context.Context, c *engine.Catalog) (*Analysis, error) {
	sim := engine.NewSimulator(staticCatalog{catalog: c})
	a := &Analysis{Catalog: c.Name}

	total := 0
	for _, ch := range c.Characters {
		run, err := playCharacter(ctx, sim, c, ch)
		if err != nil {
			return nil, fmt.Errorf("play %s: %w", ch.Name, err)
		}
		a.Runs = append(a.Runs, run)
		total += run.Steps
		if run.Steps > a.MaxSteps {
			a.MaxSteps = run.Steps
		}
		if !run.Correct {
			a.Wrong++
		}
	}
	if len(a.Runs) > 0 {
		a.AvgSteps = float64(total) / float64(len(a.Runs))
	}

	sort.SliceStable(a.Runs, func(i, j int) bool { return a.Runs[i].Steps > a.Runs[j].Steps })
	return a, nil
}

func printAnalysis(a *Analysis) {
	fmt.Printf("Catalog: %s\n", a.Catalog)
	fmt.Printf("Characters: %d\n", len(a.Runs))
	fmt.Printf("Questions to guess: avg %.1f, max %d\n", a.AvgSteps, a.MaxSteps)

	if a.Wrong > 0 {
		fmt.Printf("⚠️  WARNING: %d characters end in a wrong guess\n", a.Wrong)
		for _, run := range a.Runs {
			if !run.Correct {
				fmt.Printf("   %s guessed as %s\n", run.Name, run.Guessed)
			}
		}
	} else {
		fmt.Printf("✅ Every character is guessed correctly\n")
	}

	for i, run := range a.Runs {
		if i == 3 {
			break
		}
		fmt.Printf("   Slowest: %s (%d questions)\n", run.Name, run.Steps)
	}
}

func main() {
	catalogDir := "catalogs"
	if len(os.Args) > 1 {
		catalogDir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(catalogDir, "*.json"))
	if err != nil {
		fmt.Printf("Error finding catalogs: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	for _, file := range files {
		fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(file))

		c, err := engine.LoadCatalogFile(file)
		if err != nil {
			fmt.Printf("Error loading catalog: %v\n", err)
			continue
		}

		a, err := analyzeCatalog(ctx, c)
		if err != nil {
			fmt.Printf("Error analyzing catalog: %v\n", err)
			continue
		}
		printAnalysis(a)
	}
}
