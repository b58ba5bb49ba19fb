package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultHTTPTimeout is the default timeout for protocol HTTP requests.
const DefaultHTTPTimeout = 30 * time.Second

// Resolver fetches and caches OIDC discovery documents.
//
// A document is fetched once per distinct authority and cached for the
// process lifetime; it is never refetched unless the authority changes.
// Concurrent resolutions for the same authority are deduplicated with
// singleflight. The resolver never retries; the caller decides whether to.
type Resolver struct {
	httpClient *http.Client

	mu    sync.RWMutex
	cache map[string]*Metadata
	group singleflight.Group
}

// NewResolver creates a discovery resolver. A nil httpClient uses a default
// client with DefaultHTTPTimeout.
func NewResolver(httpClient *http.Client) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Resolver{
		httpClient: httpClient,
		cache:      make(map[string]*Metadata),
	}
}

// Resolve returns the discovery document for the authority, fetching it on
// first use. Fails with a KindDiscovery error when the document is
// unreachable or malformed.
func (r *Resolver) Resolve(ctx context.Context, authority string) (*Metadata, error) {
	authority = strings.TrimSuffix(authority, "/")

	r.mu.RLock()
	if meta, ok := r.cache[authority]; ok {
		r.mu.RUnlock()
		return meta, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.group.Do(authority, func() (interface{}, error) {
		// Double-check the cache after acquiring the singleflight slot.
		r.mu.RLock()
		if meta, ok := r.cache[authority]; ok {
			r.mu.RUnlock()
			return meta, nil
		}
		r.mu.RUnlock()

		meta, err := r.fetch(ctx, authority)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[authority] = meta
		r.mu.Unlock()
		return meta, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Metadata), nil
}

// fetch performs the discovery document request for one authority.
func (r *Resolver) fetch(ctx context.Context, authority string) (*Metadata, error) {
	wellKnownURL := authority + "/.well-known/openid-configuration"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnownURL, nil)
	if err != nil {
		return nil, WrapError(KindDiscovery, "invalid authority URL", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, WrapError(KindDiscovery, "discovery document unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewError(KindDiscovery, "",
			fmt.Sprintf("discovery request failed with status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(KindDiscovery, "failed to read discovery document", err)
	}

	var meta Metadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, WrapError(KindDiscovery, "malformed discovery document", err)
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	return &meta, nil
}

// Invalidate drops the cached document for an authority. Used when the
// configured authority changes at runtime.
func (r *Resolver) Invalidate(authority string) {
	authority = strings.TrimSuffix(authority, "/")
	r.mu.Lock()
	delete(r.cache, authority)
	r.mu.Unlock()
}
