package scanner

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Config is per-scanner configuration, overlaid onto a driver's own
// defaults.
type Config struct {
	Disabled     []string      // scanner names disabled regardless of driver default
	Timeout      time.Duration // per-invocation timeout; zero means driver default
	IgnoreGlobs  []string      // doublestar patterns excluded from scanning entirely
}

// FilterIgnored removes files matching any of config's IgnoreGlobs
// (doublestar syntax: **, *, ?, [...]), normalizing separators first so
// patterns behave the same regardless of the host OS. An invalid pattern
// is skipped rather than treated as a match-everything wildcard.
func FilterIgnored(files []string, ignoreGlobs []string) []string {
	if len(ignoreGlobs) == 0 {
		return files
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		normalized := NormalizePath(f)
		ignored := false
		for _, pattern := range ignoreGlobs {
			matched, err := doublestar.Match(pattern, normalized)
			if err != nil {
				continue
			}
			if matched {
				ignored = true
				break
			}
		}
		if !ignored {
			out = append(out, f)
		}
	}
	return out
}

// Registry maps languages to the ordered list of drivers that can scan
// them, probes availability, and caches the probe result for the run.
type Registry struct {
	mu      sync.RWMutex
	byLang  map[string][]Driver
	config  Config
	logger  *slog.Logger
	cache   map[string]availability
}

type availability struct {
	ok     bool
	reason string
}

// NewRegistry creates an empty Registry. Register drivers with Register.
func NewRegistry(config Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		byLang: map[string][]Driver{},
		config: config,
		logger: logger,
		cache:  map[string]availability{},
	}
}

// Register adds driver under each of its supported languages. An empty
// Languages list in Info means "all languages".
func (r *Registry) Register(d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()

	langs := d.Info().Languages
	if len(langs) == 0 {
		langs = []string{"*"}
	}
	for _, l := range langs {
		r.byLang[l] = append(r.byLang[l], d)
	}
}

func (r *Registry) isDisabled(name string) bool {
	for _, d := range r.config.Disabled {
		if d == name {
			return true
		}
	}
	return false
}

// Available returns the drivers usable for language, skipping disabled
// drivers and those whose availability probe failed. The probe result is
// cached for the lifetime of the Registry.
func (r *Registry) Available(language string) []Driver {
	r.mu.RLock()
	candidates := append(append([]Driver(nil), r.byLang[language]...), r.byLang["*"]...)
	r.mu.RUnlock()

	var out []Driver
	for _, d := range candidates {
		name := d.Name()
		if r.isDisabled(name) || !d.Enabled() {
			continue
		}
		ok, reason := r.probe(d)
		if !ok {
			r.logger.Warn("scanner unavailable", "scanner", name, "reason", reason)
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (r *Registry) probe(d Driver) (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.cache[d.Name()]; ok {
		return a.ok, a.reason
	}
	ok, reason := d.CheckAvailability()
	r.cache[d.Name()] = availability{ok: ok, reason: reason}
	return ok, reason
}

// Reset clears the availability cache, forcing re-probing on next Available
// call. Exists for tests and for long-lived processes that re-check
// scanners periodically.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = map[string]availability{}
}

// AllLanguages returns every language this registry has at least one
// driver registered for (excluding the "*" catch-all marker).
func (r *Registry) AllLanguages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]string, 0, len(r.byLang))
	for l := range r.byLang {
		if l != "*" {
			langs = append(langs, l)
		}
	}
	sort.Strings(langs)
	return langs
}
