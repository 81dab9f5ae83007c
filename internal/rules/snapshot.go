// Package rules turns extracted configuration fields and file-system
// facts into findings. Each check is independent and pure: it reads the
// shared snapshot, never another check's output, so the engine is free to
// evaluate them concurrently and reassemble results in registration order.
package rules

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kcchien/clawpilot/internal/extract"
	"github.com/kcchien/clawpilot/internal/fileutil"
)

// configNames are probed in order inside the install root; the first hit
// wins. The gateway itself accepts any of these spellings.
var configNames = []string{"openclaw.json", "openclaw.json5", "config.json"}

// Snapshot is an immutable capture of one installation's configuration
// text, plus a lazily filled extraction cache so repeated field lookups
// across checks cost one regex pass each. It lives for a single run.
type Snapshot struct {
	Root       string
	ConfigPath string // "" when no config file was found

	raw    string
	window int

	mu    sync.Mutex
	cache map[string]cachedField
}

type cachedField struct {
	value string
	ok    bool
}

// NewSnapshot probes root for a configuration file and captures its text.
// A missing or unreadable config is not an error here: checks observe the
// empty snapshot and degrade to their documented defaults.
func NewSnapshot(root string, window int) *Snapshot {
	if window <= 0 {
		window = extract.DefaultWindow
	}
	s := &Snapshot{Root: root, window: window, cache: map[string]cachedField{}}

	for _, name := range configNames {
		path := filepath.Join(root, name)
		data, err := fileutil.ReadCapped(path)
		if err != nil {
			continue
		}
		s.ConfigPath = path
		s.raw = string(data)
		break
	}
	return s
}

// HasConfig reports whether a configuration file was found and read.
func (s *Snapshot) HasConfig() bool { return s.ConfigPath != "" }

// Raw returns the captured configuration text.
func (s *Snapshot) Raw() string { return s.raw }

// Field returns the first value bound to key anywhere in the config text.
// Results are cached for the snapshot's lifetime.
func (s *Snapshot) Field(key string) (string, bool) {
	return s.lookup("\x00"+key, func() (string, bool) {
		return extract.Extract(s.raw, key)
	})
}

// Scoped returns the value bound to key within the line window following
// the first occurrence of parent.
func (s *Snapshot) Scoped(parent, key string) (string, bool) {
	return s.lookup(parent+"\x00"+key, func() (string, bool) {
		return extract.ExtractScoped(s.raw, parent, key, s.window)
	})
}

// Fields returns the config fields looked up so far, split into resolved
// key/value pairs and the keys that could not be resolved. Scoped lookups
// are reported as "parent.key". Intended for diagnostic output after a
// run completes.
func (s *Snapshot) Fields() (resolved map[string]string, unresolved []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resolved = map[string]string{}
	for cacheKey, c := range s.cache {
		parent, key, _ := strings.Cut(cacheKey, "\x00")
		name := key
		if parent != "" {
			name = parent + "." + key
		}
		if c.ok {
			resolved[name] = c.value
		} else {
			unresolved = append(unresolved, name)
		}
	}
	sort.Strings(unresolved)
	return resolved, unresolved
}

func (s *Snapshot) lookup(cacheKey string, fn func() (string, bool)) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, hit := s.cache[cacheKey]; hit {
		return c.value, c.ok
	}
	value, ok := fn()
	s.cache[cacheKey] = cachedField{value: value, ok: ok}
	return value, ok
}
