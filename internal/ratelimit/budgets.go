package ratelimit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/driftwatchhq/driftwatch/internal/logger"
)

// Budget is the per-integration credit budget for one window.
type Budget struct {
	MaxCredits int64         `yaml:"max_credits"`
	Window     time.Duration `yaml:"window"`
}

// UnmarshalYAML accepts the window as a Go duration string ("1m", "30s").
func (b *Budget) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		MaxCredits int64  `yaml:"max_credits"`
		Window     string `yaml:"window"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	b.MaxCredits = raw.MaxCredits
	b.Window = 0
	if raw.Window != "" {
		d, err := time.ParseDuration(raw.Window)
		if err != nil {
			return fmt.Errorf("parse window: %w", err)
		}
		b.Window = d
	}
	return nil
}

// DefaultBudget is the conservative budget applied to integrations with no
// explicit configuration.
var DefaultBudget = Budget{MaxCredits: 60, Window: time.Minute}

// DefaultBudgets returns the built-in per-integration budgets. Figma file
// reads carry a generous per-minute credit budget; outbound Slack messages
// a small one.
func DefaultBudgets() map[string]Budget {
	return map[string]Budget{
		"figma": {MaxCredits: 300, Window: time.Minute},
		"slack": {MaxCredits: 10, Window: time.Minute},
	}
}

// Budgets holds the active budget table. Safe for concurrent use; Replace
// swaps the whole table, which is how the hot reload path applies changes.
type Budgets struct {
	mu       sync.RWMutex
	byName   map[string]Budget
	fallback Budget
}

// NewBudgets creates a budget table seeded with the given entries.
func NewBudgets(entries map[string]Budget) *Budgets {
	b := &Budgets{
		byName:   make(map[string]Budget, len(entries)),
		fallback: DefaultBudget,
	}
	for name, budget := range entries {
		b.byName[name] = budget
	}
	return b
}

// For returns the budget for an integration, or the conservative default.
func (b *Budgets) For(integration string) Budget {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if budget, ok := b.byName[integration]; ok {
		return budget
	}
	return b.fallback
}

// Replace swaps the active budget table.
func (b *Budgets) Replace(entries map[string]Budget) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.byName = make(map[string]Budget, len(entries))
	for name, budget := range entries {
		b.byName[name] = budget
	}
}

// budgetsFile is the YAML shape of the budgets file.
type budgetsFile struct {
	Budgets map[string]Budget `yaml:"budgets"`
}

// LoadBudgetsFile reads per-integration budgets from a YAML file.
func LoadBudgetsFile(path string) (map[string]Budget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read budgets file: %w", err)
	}

	var f budgetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse budgets file: %w", err)
	}

	for name, budget := range f.Budgets {
		if budget.MaxCredits <= 0 {
			return nil, fmt.Errorf("budget %q: max_credits must be positive", name)
		}
		if budget.Window <= 0 {
			return nil, fmt.Errorf("budget %q: window must be positive", name)
		}
	}
	return f.Budgets, nil
}

// WatchBudgetsFile reloads the budget table whenever the file changes.
// Blocks until ctx is canceled. A reload that fails to parse keeps the
// previous table.
func WatchBudgetsFile(ctx context.Context, path string, budgets *Budgets, log *logger.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so replace-by-rename edits are seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			entries, err := LoadBudgetsFile(path)
			if err != nil {
				log.Warn("budgets reload failed, keeping previous table", "path", path, "error", err)
				continue
			}
			budgets.Replace(entries)
			log.Info("rate limit budgets reloaded", "path", path, "integrations", len(entries))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("budgets watcher error", "error", err)
		}
	}
}
