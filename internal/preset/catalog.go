package preset

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rbright/voiceassist/internal/settings"
)

// Store is the persistence subset the catalog needs.
type Store interface {
	Get(key string, out any) (bool, error)
	Set(key string, value any) error
}

// Catalog owns the built-in and custom preset lists for the process lifetime.
type Catalog struct {
	store  Store
	logger *slog.Logger

	mu      sync.RWMutex
	presets []Preset
}

// NewCatalog constructs a catalog and loads it from store.
func NewCatalog(store Store, logger *slog.Logger) *Catalog {
	c := &Catalog{store: store, logger: logger}
	c.Load()
	return c
}

// Load rebuilds the catalog from the built-in table plus stored custom presets.
// Undecodable custom data is logged and ignored; built-ins always survive.
func (c *Catalog) Load() []Preset {
	presets := Builtins()
	seen := make(map[string]struct{}, len(presets))
	for _, p := range presets {
		seen[p.ID] = struct{}{}
	}

	for _, p := range c.loadCustom() {
		if !p.IsCustom() {
			c.warn("skipping stored preset with non-custom category", "id", p.ID, "category", string(p.Category))
			continue
		}
		if _, dup := seen[p.ID]; dup || strings.TrimSpace(p.ID) == "" {
			c.warn("skipping stored preset with duplicate or empty id", "id", p.ID)
			continue
		}
		seen[p.ID] = struct{}{}
		p.Settings = p.Settings.Clamped()
		presets = append(presets, p)
	}

	c.mu.Lock()
	c.presets = presets
	c.mu.Unlock()
	return clonePresets(presets)
}

// loadCustom decodes the stored custom list, returning nil on any failure.
func (c *Catalog) loadCustom() []Preset {
	if c.store == nil {
		return nil
	}
	var custom []Preset
	ok, err := c.store.Get(settings.KeyCustomPresets, &custom)
	if err != nil {
		c.warn("custom presets unreadable; using built-ins only", "error", err.Error())
		return nil
	}
	if !ok {
		return nil
	}
	return custom
}

// Presets returns a snapshot of the full catalog in display order.
func (c *Catalog) Presets() []Preset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clonePresets(c.presets)
}

// Get looks up a preset by id.
func (c *Catalog) Get(id string) (Preset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.presets {
		if p.ID == id {
			return clonePreset(p), true
		}
	}
	return Preset{}, false
}

// Search filters the catalog by name, description, or tag. An empty query
// returns everything. Source order is preserved.
func (c *Catalog) Search(query string) []Preset {
	needle := strings.ToLower(strings.TrimSpace(query))

	c.mu.RLock()
	defer c.mu.RUnlock()

	if needle == "" {
		return clonePresets(c.presets)
	}
	out := make([]Preset, 0, len(c.presets))
	for _, p := range c.presets {
		if p.matches(needle) {
			out = append(out, clonePreset(p))
		}
	}
	return out
}

// Add appends a custom preset and persists the custom subset.
func (c *Catalog) Add(p Preset) error {
	if !p.IsCustom() {
		return fmt.Errorf("add %q: %w", p.ID, ErrNotCustom)
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("add preset: id must not be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.presets {
		if existing.ID == p.ID {
			return fmt.Errorf("add %q: %w", p.ID, ErrDuplicateID)
		}
	}

	added := clonePreset(p)
	added.Settings = added.Settings.Clamped()

	previous := c.presets
	c.presets = append(clonePresets(previous), added)
	if err := c.persistLocked(); err != nil {
		c.presets = previous
		return err
	}
	return nil
}

// Remove deletes a custom preset and persists the custom subset.
func (c *Catalog) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i, p := range c.presets {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("remove %q: %w", id, ErrNotFound)
	}
	if !c.presets[idx].IsCustom() {
		return fmt.Errorf("remove %q: %w", id, ErrNotCustom)
	}

	previous := c.presets
	next := make([]Preset, 0, len(previous)-1)
	next = append(next, previous[:idx]...)
	next = append(next, previous[idx+1:]...)
	c.presets = next
	if err := c.persistLocked(); err != nil {
		c.presets = previous
		return err
	}
	return nil
}

// persistLocked writes only the custom subset. Callers hold c.mu.
func (c *Catalog) persistLocked() error {
	if c.store == nil {
		return nil
	}
	custom := make([]Preset, 0)
	for _, p := range c.presets {
		if p.IsCustom() {
			custom = append(custom, p)
		}
	}
	if err := c.store.Set(settings.KeyCustomPresets, custom); err != nil {
		return fmt.Errorf("persist custom presets: %w", err)
	}
	return nil
}

func (c *Catalog) warn(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(msg, args...)
}

func clonePreset(p Preset) Preset {
	if p.Tags != nil {
		p.Tags = append([]string(nil), p.Tags...)
	}
	return p
}

func clonePresets(in []Preset) []Preset {
	out := make([]Preset, len(in))
	for i, p := range in {
		out[i] = clonePreset(p)
	}
	return out
}
