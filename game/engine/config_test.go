package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCatalog_Default(t *testing.T) {
	require.NoError(t, ValidateCatalog(DefaultCatalog()))
}

func TestValidateCatalog_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Catalog)
		want   string
	}{
		{"missing name", func(c *Catalog) { c.Name = "" }, "name is required"},
		{"too few characters", func(c *Catalog) { c.Characters = c.Characters[:1] }, "characters"},
		{"no questions", func(c *Catalog) { c.Questions = nil }, "questions"},
		{"question without id", func(c *Catalog) { c.Questions[0].ID = "" }, "has no id"},
		{"question without text", func(c *Catalog) { c.Questions[1].Text = "" }, "has no text"},
		{"duplicate question", func(c *Catalog) { c.Questions[1].ID = c.Questions[0].ID }, "duplicate question"},
		{"duplicate character", func(c *Catalog) { c.Characters[1].Name = c.Characters[0].Name }, "duplicate character"},
		{"character without name", func(c *Catalog) { c.Characters[2].Name = "" }, "has no name"},
		{"unknown trait", func(c *Catalog) { c.Characters[0].Traits["wizard"] = true }, "unknown question"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultCatalog()
			tt.mutate(c)
			err := ValidateCatalog(c)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.Error(t, ValidateCatalog(nil))
}

func TestLoadCatalogFile(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.json")
	require.NoError(t, os.WriteFile(valid, []byte(`{
		"name": "tiny",
		"questions": [{"id": "real", "text": "Is your character real?"}],
		"characters": [
			{"name": "A", "traits": {"real": true}},
			{"name": "B"}
		]
	}`), 0644))

	c, err := LoadCatalogFile(valid)
	require.NoError(t, err)
	assert.Equal(t, "tiny", c.Name)
	assert.Len(t, c.Characters, 2)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{not json`), 0644))
	_, err = LoadCatalogFile(broken)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"name": "x", "questions": [], "characters": []}`), 0644))
	_, err = LoadCatalogFile(invalid)
	assert.Error(t, err)

	_, err = LoadCatalogFile(filepath.Join(dir, "missing.json"))
	assert.True(t, os.IsNotExist(err))
}
