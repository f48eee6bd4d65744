// Package config loads the streakd configuration file and serves it through
// dotted-path lookups (`activity_types.quiz.validators.min_score`).
// The file is TOML at $STREAKD_HOME/config.toml; missing keys fall back to
// caller-supplied defaults, a missing file falls back to built-in defaults.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/streakforge/streakd/internal/domain"
)

// Provider is a read-only dotted-path view over the decoded config tree.
type Provider struct {
	tree map[string]any
	path string
}

// Home returns the streakd data directory.
func Home() string {
	if env := os.Getenv("STREAKD_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".streakd")
}

// Load reads $STREAKD_HOME/config.toml, falling back to built-in defaults
// when no file exists. A .env in the working directory is applied first so
// STREAKD_HOME can be set there.
func Load() (*Provider, error) {
	_ = godotenv.Load() // optional; absence is not an error

	path := filepath.Join(Home(), "config.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a specific TOML config file.
func LoadFile(path string) (*Provider, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
	}

	tree := map[string]any{}
	if _, err := toml.DecodeFile(path, &tree); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &Provider{tree: tree, path: path}, nil
}

// FromTree builds a Provider over an in-memory tree. Used by tests.
func FromTree(tree map[string]any) *Provider {
	return &Provider{tree: tree}
}

// Default returns the built-in configuration.
func Default() *Provider {
	return FromTree(map[string]any{
		"service_version":              "1.2.0",
		"daily_reset_hour_utc":         int64(0),
		"next_deadline_buffer_seconds": int64(-1),
		"grace_period_hours":           int64(0),
		"streak_tiers": []map[string]any{
			{"name": "bronze", "min_streak": int64(3)},
			{"name": "silver", "min_streak": int64(7)},
			{"name": "gold", "min_streak": int64(14)},
			{"name": "diamond", "min_streak": int64(30)},
		},
		"activity_types": map[string]any{
			"login": map[string]any{
				"enabled": true,
			},
			"quiz": map[string]any{
				"enabled": true,
				"validators": map[string]any{
					"min_score":          int64(5),
					"max_time_taken_sec": int64(300),
				},
			},
			"help_post": map[string]any{
				"enabled": true,
				"validators": map[string]any{
					"min_word_count":        int64(20),
					"ai_validation_enabled": false,
				},
			},
		},
		"model_versions": map[string]any{
			"help_post_classifier": "1.0.0",
		},
		"api": map[string]any{
			"host": "127.0.0.1",
			"port": int64(8420),
		},
		"telemetry": map[string]any{
			"prometheus": true,
		},
	})
}

// Path returns the loaded file path ("" for built-in defaults).
func (p *Provider) Path() string { return p.path }

// ─── Dotted-path lookups ────────────────────────────────────────────────────

// Get walks the config tree along a dotted path, returning def when any
// segment is missing or not a table.
func (p *Provider) Get(path string, def any) any {
	var node any = p.tree
	for _, part := range strings.Split(path, ".") {
		table, ok := node.(map[string]any)
		if !ok {
			return def
		}
		node, ok = table[part]
		if !ok {
			return def
		}
	}
	return node
}

// Set overrides a value at a dotted path, creating tables as needed.
// Used for CLI flag overrides at startup; the engine itself never writes.
func (p *Provider) Set(path string, value any) {
	parts := strings.Split(path, ".")
	table := p.tree
	for _, part := range parts[:len(parts)-1] {
		next, ok := table[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			table[part] = next
		}
		table = next
	}
	table[parts[len(parts)-1]] = value
}

// String returns a string value at path.
func (p *Provider) String(path, def string) string {
	if s, ok := p.Get(path, def).(string); ok {
		return s
	}
	return def
}

// Bool returns a boolean value at path.
func (p *Provider) Bool(path string, def bool) bool {
	if b, ok := p.Get(path, def).(bool); ok {
		return b
	}
	return def
}

// Int returns an integer value at path. TOML integers decode as int64.
func (p *Provider) Int(path string, def int) int {
	if n, ok := asFloat(p.Get(path, nil)); ok {
		return int(n)
	}
	return def
}

// Float returns a numeric value at path.
func (p *Provider) Float(path string, def float64) float64 {
	if n, ok := asFloat(p.Get(path, nil)); ok {
		return n
	}
	return def
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// ─── Typed subtrees ─────────────────────────────────────────────────────────

// Rules assembles the deadline calculator knobs.
func (p *Provider) Rules() domain.DeadlineRules {
	return domain.DeadlineRules{
		ResetHourUTC: p.Int("daily_reset_hour_utc", 0),
		Buffer:       time.Duration(p.Int("next_deadline_buffer_seconds", -1)) * time.Second,
		Grace:        time.Duration(p.Float("grace_period_hours", 0) * float64(time.Hour)),
	}
}

// Tiers parses the streak_tiers list. An absent list is valid (tier
// resolution then yields "none"); a present but malformed list is a
// configuration error.
func (p *Provider) Tiers() ([]domain.Tier, error) {
	raw := p.Get("streak_tiers", nil)
	if raw == nil {
		return nil, nil
	}

	items, ok := asSlice(raw)
	if !ok {
		return nil, fmt.Errorf("%w: streak_tiers is not a list", domain.ErrConfigInvalid)
	}

	tiers := make([]domain.Tier, 0, len(items))
	for i, item := range items {
		table, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: streak_tiers[%d] is not a table", domain.ErrConfigInvalid, i)
		}
		name, ok := table["name"].(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: streak_tiers[%d] has no name", domain.ErrConfigInvalid, i)
		}
		min, ok := asFloat(table["min_streak"])
		if !ok || min < 0 || min != math.Trunc(min) {
			return nil, fmt.Errorf("%w: streak_tiers[%d] %q has invalid min_streak", domain.ErrConfigInvalid, i, name)
		}
		tiers = append(tiers, domain.Tier{Name: name, MinStreak: int(min)})
	}
	return tiers, nil
}

// asSlice tolerates the two shapes TOML array-of-tables decoding produces.
func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []map[string]any:
		out := make([]any, len(s))
		for i, m := range s {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}

// ActivityType parses the configuration subtree for one activity type.
// ok is false when the type is not configured at all.
func (p *Provider) ActivityType(name string) (cfg domain.ActivityTypeConfig, ok bool, err error) {
	raw := p.Get("activity_types."+name, nil)
	if raw == nil {
		return cfg, false, nil
	}
	table, isTable := raw.(map[string]any)
	if !isTable {
		return cfg, false, fmt.Errorf("%w: activity_types.%s is not a table", domain.ErrConfigInvalid, name)
	}

	if enabled, has := table["enabled"]; has {
		b, isBool := enabled.(bool)
		if !isBool {
			return cfg, false, fmt.Errorf("%w: activity_types.%s.enabled is not a boolean", domain.ErrConfigInvalid, name)
		}
		cfg.Enabled = b
	}

	rawVals, has := table["validators"]
	if !has {
		return cfg, true, nil
	}
	vals, isTable := rawVals.(map[string]any)
	if !isTable {
		return cfg, false, fmt.Errorf("%w: activity_types.%s.validators is not a table", domain.ErrConfigInvalid, name)
	}

	cfg.Validators.MinScore, err = numRule(vals, "min_score", name)
	if err != nil {
		return cfg, false, err
	}
	cfg.Validators.MaxTimeTakenSec, err = numRule(vals, "max_time_taken_sec", name)
	if err != nil {
		return cfg, false, err
	}
	cfg.Validators.MinWordCount, err = numRule(vals, "min_word_count", name)
	if err != nil {
		return cfg, false, err
	}
	if ai, has := vals["ai_validation_enabled"]; has {
		b, isBool := ai.(bool)
		if !isBool {
			return cfg, false, fmt.Errorf("%w: activity_types.%s.validators.ai_validation_enabled is not a boolean", domain.ErrConfigInvalid, name)
		}
		cfg.Validators.AIValidationEnabled = b
	}
	return cfg, true, nil
}

func numRule(vals map[string]any, key, typeName string) (*float64, error) {
	raw, has := vals[key]
	if !has {
		return nil, nil
	}
	n, ok := asFloat(raw)
	if !ok {
		return nil, fmt.Errorf("%w: activity_types.%s.validators.%s is not a number", domain.ErrConfigInvalid, typeName, key)
	}
	return &n, nil
}

// ActivityTypeNames returns the configured activity type names, sorted.
func (p *Provider) ActivityTypeNames() []string {
	table, ok := p.Get("activity_types", nil).(map[string]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate parses every typed subtree once so malformed configuration is a
// startup failure, not a per-request surprise.
func (p *Provider) Validate() error {
	if _, err := p.Tiers(); err != nil {
		return err
	}
	for _, name := range p.ActivityTypeNames() {
		if _, _, err := p.ActivityType(name); err != nil {
			return err
		}
	}
	if h := p.Int("daily_reset_hour_utc", 0); h < 0 || h > 23 {
		return fmt.Errorf("%w: daily_reset_hour_utc %d out of range", domain.ErrConfigInvalid, h)
	}
	return nil
}
