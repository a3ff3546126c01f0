// Command validate checks the character catalog JSON files in a directory
// (default ../catalogs). For each file it checks:
//   - JSON structure and the rules enforced when a catalog is loaded
//   - Distinguishability: no two characters answer every question the same
//   - Useful questions: every question splits the characters
//   - Child mode: at least two characters remain once adult ones are excluded
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/guess-game/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...interface{}) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validateCatalog loads and validates a single catalog JSON file.
func validateCatalog(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	var catalog engine.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}

	if err := engine.ValidateCatalog(&catalog); err != nil {
		result.fail("%v", err)
		return result
	}

	for _, group := range indistinguishable(&catalog) {
		result.fail("Indistinguishable characters: %s", strings.Join(group, ", "))
	}

	for _, q := range uselessQuestions(&catalog) {
		result.fail("Question %q never splits the characters", q)
	}

	playable := 0
	for _, ch := range catalog.Characters {
		if !ch.Adult {
			playable++
		}
	}
	if playable < engine.MinCharacters {
		result.fail("Child mode needs at least %d non-adult characters, got %d", engine.MinCharacters, playable)
	}

	if result.Valid {
		result.info("Name: %s", catalog.Name)
		result.info("Characters: %d (%d in child mode)", len(catalog.Characters), playable)
		result.info("Questions: %d", len(catalog.Questions))
	}

	return result
}

// traitKey is the answer pattern of a character over every question.
func traitKey(c *engine.Catalog, ch engine.Character) string {
	var b strings.Builder
	for _, q := range c.Questions {
		if ch.Traits[q.ID] {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// indistinguishable groups characters that share an answer pattern. Groups
// are sorted for stable output.
func indistinguishable(c *engine.Catalog) [][]string {
	byKey := make(map[string][]string)
	for _, ch := range c.Characters {
		key := traitKey(c, ch)
		byKey[key] = append(byKey[key], ch.Name)
	}

	var groups [][]string
	for _, names := range byKey {
		if len(names) > 1 {
			sort.Strings(names)
			groups = append(groups, names)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

// uselessQuestions returns the IDs of questions every character answers the
// same way.
func uselessQuestions(c *engine.Catalog) []string {
	var useless []string
	for _, q := range c.Questions {
		yes := 0
		for _, ch := range c.Characters {
			if ch.Traits[q.ID] {
				yes++
			}
		}
		if yes == 0 || yes == len(c.Characters) {
			useless = append(useless, q.ID)
		}
	}
	return useless
}

// main validates every *.json file in the catalog directory, printing a
// concise report and exiting with non-zero status if any are invalid.
func main() {
	catalogDir := "../catalogs"
	if len(os.Args) > 1 {
		catalogDir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(catalogDir, "*.json"))
	if err != nil {
		fmt.Printf("Error finding catalog files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No catalog files found in %s\n", catalogDir)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateCatalog(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All catalogs are valid!")
	} else {
		fmt.Println("❌ Some catalogs have errors")
		os.Exit(1)
	}
}
