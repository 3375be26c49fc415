package oauth

import "errors"

// ErrAuthUnavailable is returned when no usable access token is cached.
var ErrAuthUnavailable = errors.New("access token unavailable")

// Provider reads the gateway access token from a Cache. It never fetches
// tokens itself; see Refresher.
type Provider struct {
	cache *Cache
	name  string
}

// NewProvider returns a Provider reading the token stored under name.
func NewProvider(cache *Cache, name string) *Provider {
	return &Provider{cache: cache, name: name}
}

// Token returns the cached token value, if any.
func (p *Provider) Token() (string, bool) {
	tok, ok := p.cache.Get(p.name)
	if !ok {
		return "", false
	}
	return tok.Value, true
}

// AccessToken returns the cached token or ErrAuthUnavailable.
func (p *Provider) AccessToken() (string, error) {
	tok, ok := p.Token()
	if !ok {
		return "", ErrAuthUnavailable
	}
	return tok, nil
}
