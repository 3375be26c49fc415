package oauth

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentials configures the OAuth2 client-credentials grant used to
// obtain gateway tokens.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

const (
	// refreshMargin caps how long before expiry a token is replaced.
	refreshMargin   = 30 * time.Second
	minRefreshDelay = 10 * time.Millisecond
	retryDelay      = 5 * time.Second
)

// Refresher keeps a token in the Cache fresh.
type Refresher struct {
	source oauth2.TokenSource
	cache  *Cache
	name   string
}

// NewRefresher stores tokens from source in cache under name.
func NewRefresher(source oauth2.TokenSource, cache *Cache, name string) *Refresher {
	return &Refresher{source: source, cache: cache, name: name}
}

// NewClientCredentialsRefresher builds a Refresher backed by the
// client-credentials grant.
func NewClientCredentialsRefresher(ctx context.Context, creds ClientCredentials, cache *Cache) *Refresher {
	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.TokenURL,
		Scopes:       creds.Scopes,
	}
	return NewRefresher(cfg.TokenSource(ctx), cache, AccessTokenKey)
}

// Refresh fetches a token and stores it. On failure the cached token, if any,
// is left in place.
func (r *Refresher) Refresh() error {
	tok, err := r.source.Token()
	if err != nil {
		return fmt.Errorf("failed to fetch access token: %w", err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("failed to fetch access token: empty token")
	}
	r.cache.Set(r.name, Token{Value: tok.AccessToken, Expiry: tok.Expiry})
	return nil
}

// Run refreshes immediately and then again after each delay computed by
// nextDelay, until ctx is done.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	for {
		if err := r.Refresh(); err != nil {
			log.Printf("Token refresh failed: %v", err)
		}

		timer := time.NewTimer(r.nextDelay(interval))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// nextDelay is interval, shortened so the cached token is replaced before it
// expires. Without a cached token the refresh is retried after retryDelay.
func (r *Refresher) nextDelay(interval time.Duration) time.Duration {
	tok, ok := r.cache.Get(r.name)
	if !ok {
		if interval > retryDelay {
			return retryDelay
		}
		return interval
	}
	if tok.Expiry.IsZero() {
		return interval
	}

	lifetime := tok.Expiry.Sub(r.cache.nowFunc())
	margin := lifetime / 5
	if margin > refreshMargin {
		margin = refreshMargin
	}
	delay := lifetime - margin
	if delay < minRefreshDelay {
		delay = minRefreshDelay
	}
	if delay > interval {
		return interval
	}
	return delay
}
