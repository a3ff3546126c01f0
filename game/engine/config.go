package engine

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

const (
	MinCharacters = 2
	MaxCharacters = 10000
	MaxQuestions  = 500
)

// ValidateCatalog checks that a catalog is playable by the Simulator.
func ValidateCatalog(c *Catalog) error {
	if c == nil {
		return errors.New("catalog validation: catalog is nil")
	}
	if c.Name == "" {
		return errors.New("catalog validation: name is required")
	}
	if len(c.Characters) < MinCharacters || len(c.Characters) > MaxCharacters {
		return errors.Errorf("catalog validation: need between %d and %d characters, got %d",
			MinCharacters, MaxCharacters, len(c.Characters))
	}
	if len(c.Questions) == 0 || len(c.Questions) > MaxQuestions {
		return errors.Errorf("catalog validation: need between 1 and %d questions, got %d",
			MaxQuestions, len(c.Questions))
	}

	questions := make(map[string]bool, len(c.Questions))
	for i, q := range c.Questions {
		if q.ID == "" {
			return errors.Errorf("catalog validation: question %d has no id", i+1)
		}
		if q.Text == "" {
			return errors.Errorf("catalog validation: question %q has no text", q.ID)
		}
		if questions[q.ID] {
			return errors.Errorf("catalog validation: duplicate question id %q", q.ID)
		}
		questions[q.ID] = true
	}

	names := make(map[string]bool, len(c.Characters))
	for i, ch := range c.Characters {
		if ch.Name == "" {
			return errors.Errorf("catalog validation: character %d has no name", i+1)
		}
		if names[ch.Name] {
			return errors.Errorf("catalog validation: duplicate character %q", ch.Name)
		}
		names[ch.Name] = true

		for trait := range ch.Traits {
			if !questions[trait] {
				return errors.Errorf("catalog validation: character %q references unknown question %q", ch.Name, trait)
			}
		}
	}

	return nil
}

// LoadCatalogFile reads and validates a catalog from a JSON file.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(err, "parse catalog %s", path)
	}

	if err := ValidateCatalog(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// DefaultCatalog returns a small built-in catalog used when no catalog files
// are available.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Name:        "default",
		Description: "Built-in minimal catalog",
		Questions: []Question{
			{ID: "real", Text: "Is your character real?"},
			{ID: "male", Text: "Is your character male?"},
			{ID: "alive", Text: "Is your character alive?"},
			{ID: "musician", Text: "Is your character a musician?"},
		},
		Characters: []Character{
			{
				Name:        "Albert Einstein",
				Description: "Theoretical physicist",
				PhotoURL:    "https://upload.wikimedia.org/wikipedia/commons/d/d3/Albert_Einstein_Head.jpg",
				Traits:      map[string]bool{"real": true, "male": true},
			},
			{
				Name:        "Taylor Swift",
				Description: "Singer-songwriter",
				PhotoURL:    "https://upload.wikimedia.org/wikipedia/commons/b/b1/Taylor_Swift_at_the_2023_MTV_Video_Music_Awards_%283%29.png",
				Traits:      map[string]bool{"real": true, "alive": true, "musician": true},
			},
			{
				Name:        "Sherlock Holmes",
				Description: "Fictional detective",
				PhotoURL:    "https://upload.wikimedia.org/wikipedia/commons/c/cd/Sherlock_Holmes_Portrait_Paget.jpg",
				Traits:      map[string]bool{"male": true},
			},
			{
				Name:        "Hatsune Miku",
				Description: "Virtual singer",
				PhotoURL:    "https://upload.wikimedia.org/wikipedia/commons/6/6b/Hatsune_Miku.png",
				Traits:      map[string]bool{"musician": true},
			},
		},
	}
}
