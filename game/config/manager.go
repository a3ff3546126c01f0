package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/guess-game/game/engine"
	"github.com/wricardo/guess-game/game/service"
)

// Aliases of the service sentinels.
var (
	ErrCatalogNotFound = service.ErrCatalogNotFound
	ErrInvalidCatalog  = service.ErrInvalidCatalog
)

// DefaultCatalogName is preferred as the default when present in the directory.
const DefaultCatalogName = "classic"

// Manager loads and caches character catalogs from a directory of JSON files.
type Manager struct {
	catalogDir     string
	defaultCatalog *engine.Catalog
	catalogs       map[string]*engine.Catalog
	mu             sync.RWMutex
}

// NewManager creates a catalog manager over catalogDir, which must exist.
func NewManager(catalogDir string) (*Manager, error) {
	if _, err := os.Stat(catalogDir); os.IsNotExist(err) {
		return nil, errors.Errorf("catalog directory does not exist: %s", catalogDir)
	}

	m := &Manager{
		catalogDir: catalogDir,
		catalogs:   make(map[string]*engine.Catalog),
	}

	if err := m.loadDefaultCatalog(); err != nil {
		return nil, errors.Wrap(err, "load default catalog")
	}

	return m, nil
}

func catalogKey(name string) string {
	return strings.TrimSuffix(name, ".json")
}

// validKey rejects keys that would leave the catalog directory.
func validKey(key string) bool {
	return key != "" && key != "." && key != ".." && !strings.ContainsAny(key, `/\`)
}

// LoadCatalog loads a catalog by name, with or without the .json extension.
func (m *Manager) LoadCatalog(name string) (*engine.Catalog, error) {
	key := catalogKey(name)
	if !validKey(key) {
		return nil, ErrCatalogNotFound
	}

	m.mu.RLock()
	if c, ok := m.catalogs[key]; ok {
		m.mu.RUnlock()
		return c, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.catalogs[key]; ok {
		return c, nil
	}

	c, err := m.readCatalog(key)
	if err != nil {
		return nil, err
	}

	m.catalogs[key] = c
	return c, nil
}

func (m *Manager) readCatalog(key string) (*engine.Catalog, error) {
	path := filepath.Join(m.catalogDir, key+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCatalogNotFound
		}
		return nil, errors.Wrap(err, "read catalog file")
	}

	var c engine.Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(ErrInvalidCatalog, "parse %s: %v", path, err)
	}
	if err := engine.ValidateCatalog(&c); err != nil {
		return nil, errors.Wrapf(ErrInvalidCatalog, "%v", err)
	}

	return &c, nil
}

// ListCatalogs describes every valid catalog in the directory, sorted by id.
// Invalid files are skipped.
func (m *Manager) ListCatalogs() ([]*service.CatalogInfo, error) {
	entries, err := os.ReadDir(m.catalogDir)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog directory")
	}

	var infos []*service.CatalogInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := catalogKey(entry.Name())
		c, err := m.LoadCatalog(id)
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping catalog")
			continue
		}

		infos = append(infos, &service.CatalogInfo{
			Filename:    entry.Name(),
			CatalogID:   id,
			Name:        c.Name,
			Description: c.Description,
			Characters:  len(c.Characters),
			Questions:   len(c.Questions),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].CatalogID < infos[j].CatalogID })
	return infos, nil
}

// GetDefault returns the default catalog.
func (m *Manager) GetDefault() *engine.Catalog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultCatalog
}

// SetDefault makes the named catalog the default.
func (m *Manager) SetDefault(name string) error {
	c, err := m.LoadCatalog(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultCatalog = c
	return nil
}

// RefreshCache drops every cached catalog and reselects the default from disk.
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.catalogs = make(map[string]*engine.Catalog)
	m.mu.Unlock()

	return m.loadDefaultCatalog()
}

// loadDefaultCatalog picks classic.json, else the first valid catalog, else
// the built-in catalog.
func (m *Manager) loadDefaultCatalog() error {
	c, err := m.LoadCatalog(DefaultCatalogName)
	if err != nil {
		infos, listErr := m.ListCatalogs()
		if listErr != nil || len(infos) == 0 {
			log.Info().Str("dir", m.catalogDir).Msg("No catalogs found, using built-in catalog")
			c = engine.DefaultCatalog()
		} else if c, err = m.LoadCatalog(infos[0].CatalogID); err != nil {
			c = engine.DefaultCatalog()
		}
	}

	m.mu.Lock()
	m.defaultCatalog = c
	m.mu.Unlock()
	return nil
}

// SaveCatalog validates c and writes it to <name>.json.
func (m *Manager) SaveCatalog(name string, c *engine.Catalog) error {
	if err := engine.ValidateCatalog(c); err != nil {
		return errors.Wrapf(ErrInvalidCatalog, "%v", err)
	}

	key := catalogKey(name)
	if !validKey(key) {
		return errors.Wrapf(ErrInvalidCatalog, "catalog name %q", name)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal catalog")
	}

	if err := os.WriteFile(filepath.Join(m.catalogDir, key+".json"), data, 0644); err != nil {
		return errors.Wrap(err, "write catalog file")
	}

	m.mu.Lock()
	m.catalogs[key] = c
	m.mu.Unlock()

	return nil
}
