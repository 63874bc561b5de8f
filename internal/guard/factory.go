package guard

import (
	"fmt"
	"net/url"
	"strings"
)

// NewStoreFromURL picks a backend by URL scheme: memory:// (default) or
// redis:// / rediss://.
func NewStoreFromURL(raw string) (Store, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NewMemoryStore(), nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid ignore store url: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "memory", "mem", "inmem":
		return NewMemoryStore(), nil
	case "redis", "rediss":
		return NewRedisStore(raw)
	default:
		return nil, fmt.Errorf("unsupported ignore store scheme: %s", parsed.Scheme)
	}
}
