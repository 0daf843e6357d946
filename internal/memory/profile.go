package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Profiles serves the static per-owner profile files (profiles/<owner>.md)
// through a small TTL cache. Edits on disk show up after the TTL, or
// immediately after Invalidate.
type Profiles struct {
	dir   string
	cache *expirable.LRU[string, string]
}

// NewProfiles creates a profile loader rooted at dir.
func NewProfiles(dir string, ttl time.Duration) *Profiles {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Profiles{
		dir:   dir,
		cache: expirable.NewLRU[string, string](64, nil, ttl),
	}
}

// Load returns the owner's profile text, or "" if none exists.
func (p *Profiles) Load(owner string) (string, error) {
	if cached, ok := p.cache.Get(owner); ok {
		return cached, nil
	}

	data, err := os.ReadFile(p.path(owner))
	if os.IsNotExist(err) {
		p.cache.Add(owner, "")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("profiles: load %s: %w", owner, err)
	}

	text := strings.TrimSpace(string(data))
	p.cache.Add(owner, text)
	return text, nil
}

// Save writes the owner's profile and invalidates the cache entry.
func (p *Profiles) Save(owner, text string) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("profiles: mkdir: %w", err)
	}
	if err := os.WriteFile(p.path(owner), []byte(text), 0o644); err != nil {
		return fmt.Errorf("profiles: save %s: %w", owner, err)
	}
	p.cache.Remove(owner)
	return nil
}

// Invalidate drops the cached copy so the next Load rereads the file.
func (p *Profiles) Invalidate(owner string) {
	p.cache.Remove(owner)
}

func (p *Profiles) path(owner string) string {
	// Owners are CLI-supplied; keep the filename flat.
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '.' {
			return '-'
		}
		return r
	}, owner)
	return filepath.Join(p.dir, safe+".md")
}
