package driver

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xyproto/env/v2"

	"hygienic/expander-go/pkg/eval"
	"hygienic/expander-go/pkg/expander"
	"hygienic/expander-go/pkg/reader"
)

// Config holds the settings a driver run needs. Environment variables take
// precedence over the project manifest; unset limits fall back to the
// expander's defaults.
type Config struct {
	Home          string
	MaxExpansions int
	MaxDepth      int
	Trace         func(expander.Event)
}

// LoadConfig reads EXPANDER_HOME, EXPANDER_MAX_EXPANSIONS and
// EXPANDER_MAX_DEPTH, filling unset limits from manifest when it is not nil.
func LoadConfig(manifest *Manifest) (*Config, error) {
	home := env.Str("EXPANDER_HOME")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("driver: resolve user home: %w", err)
		}
		home = filepath.Join(userHome, ".expander")
	}
	abs, err := filepath.Abs(home)
	if err != nil {
		return nil, fmt.Errorf("driver: resolve EXPANDER_HOME %q: %w", home, err)
	}
	cfg := &Config{
		Home:          abs,
		MaxExpansions: env.Int("EXPANDER_MAX_EXPANSIONS", 0),
		MaxDepth:      env.Int("EXPANDER_MAX_DEPTH", 0),
	}
	if cfg.MaxExpansions < 0 || cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("driver: expansion limits must not be negative")
	}
	if manifest != nil {
		if cfg.MaxExpansions == 0 {
			cfg.MaxExpansions = manifest.Expander.MaxExpansions
		}
		if cfg.MaxDepth == 0 {
			cfg.MaxDepth = manifest.Expander.MaxDepth
		}
	}
	return cfg, nil
}

// NewSession wires the default collaborators into an expander session: the
// tree-sitter reader, the file loader, a resolver over lock's packages and
// the default evaluators. The returned close function releases the reader.
func NewSession(cfg *Config, lock *Lockfile, cwd string) (*expander.Session, func(), error) {
	rd, err := reader.New()
	if err != nil {
		return nil, nil, err
	}
	ev := eval.New()
	session := expander.NewSession(expander.Options{
		MaxExpansions: cfg.MaxExpansions,
		MaxDepth:      cfg.MaxDepth,
		Cwd:           cwd,
		Trace:         cfg.Trace,
		Reader:        rd,
		Loader:        FileLoader,
		Resolver:      NewResolver(lock, cfg.Home).Resolve,
		Compiletime:   ev,
		Runtime:       ev,
	})
	return session, rd.Close, nil
}
