package strapi

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialCache maps an identity email to its last token. Entries are
// reused while younger than the reuse window, which widens to the
// process-wide rate-limit backoff when that is longer.
type CredentialCache struct {
	mu      sync.RWMutex
	entries map[string]Credential
	window  time.Duration
	backoff func() time.Duration
	cipher  Cipher
	now     func() time.Time
}

func NewCredentialCache(window time.Duration, backoff func() time.Duration, cipher Cipher) *CredentialCache {
	if backoff == nil {
		backoff = func() time.Duration { return 0 }
	}
	if cipher == nil {
		cipher = passthroughCipher{}
	}
	return &CredentialCache{
		entries: make(map[string]Credential),
		window:  window,
		backoff: backoff,
		cipher:  cipher,
		now:     time.Now,
	}
}

// Get returns a fresh credential for email, if any.
func (c *CredentialCache) Get(email string) (Credential, bool) {
	c.mu.RLock()
	cred, ok := c.entries[key(email)]
	c.mu.RUnlock()
	if !ok {
		return Credential{}, false
	}
	token, err := c.cipher.Decrypt(cred.Token)
	if err != nil {
		return Credential{}, false
	}
	cred.Token = token
	if !c.Fresh(cred) {
		return Credential{}, false
	}
	return cred, true
}

// Put stores cred for email; the last writer wins.
func (c *CredentialCache) Put(email string, cred Credential) error {
	sealed, err := c.cipher.Encrypt(cred.Token)
	if err != nil {
		return err
	}
	cred.Token = sealed
	c.mu.Lock()
	c.entries[key(email)] = cred
	c.mu.Unlock()
	return nil
}

func (c *CredentialCache) Invalidate(email string) {
	c.mu.Lock()
	delete(c.entries, key(email))
	c.mu.Unlock()
}

// Window is the effective reuse window.
func (c *CredentialCache) Window() time.Duration {
	if b := c.backoff(); b > c.window {
		return b
	}
	return c.window
}

// Fresh reports whether cred may still be reused. A JWT past its exp claim
// is never fresh.
func (c *CredentialCache) Fresh(cred Credential) bool {
	if cred.Token == "" {
		return false
	}
	now := c.now()
	if exp, ok := tokenExpiry(cred.Token); ok && !now.Before(exp) {
		return false
	}
	return now.Sub(cred.AcquiredAt) < c.Window()
}

func key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// tokenExpiry reads the exp claim without verifying the signature; the
// remote is the only party that can verify it.
func tokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
