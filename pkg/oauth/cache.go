package oauth

import (
	"sync"
	"time"
)

// AccessTokenKey is the cache name under which the gateway token is kept.
const AccessTokenKey = "access_token"

// Token is a cached bearer token. A zero Expiry never expires.
type Token struct {
	Value  string
	Expiry time.Time
}

// Cache is a process-wide store of named tokens.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Token
	nowFunc func() time.Time
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]Token),
		nowFunc: time.Now,
	}
}

// Get returns the named token when present and unexpired.
func (c *Cache) Get(name string) (Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tok, ok := c.entries[name]
	if !ok || tok.Value == "" {
		return Token{}, false
	}
	if !tok.Expiry.IsZero() && !c.nowFunc().Before(tok.Expiry) {
		return Token{}, false
	}
	return tok, true
}

// Set stores a token under name, replacing any previous one.
func (c *Cache) Set(name string, tok Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = tok
}

// Delete removes the named token.
func (c *Cache) Delete(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
}
