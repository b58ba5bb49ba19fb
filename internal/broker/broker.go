package broker

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"authgate/internal/config"
	"authgate/internal/login"
	"authgate/internal/tokencache"
	"authgate/pkg/logging"
	"authgate/pkg/oauth"
)

// Options configure the broker's collaborators. Zero values select the
// production implementations.
type Options struct {
	// HTTPClient is used for discovery and token endpoint requests.
	HTTPClient *http.Client

	// Navigator presents the authorization URL; nil opens the system browser.
	Navigator login.Navigator

	// SilentHTTPClient navigates prompt=none attempts; nil uses a default
	// cookie-less client.
	SilentHTTPClient *http.Client

	// SecureStore persists the refresh credential; nil uses the OS keychain.
	SecureStore tokencache.SecureStore

	// Clock supplies the current time; nil uses time.Now.
	Clock oauth.Clock

	// ExpiryMargin is subtracted from token lifetimes when deciding whether
	// a cached token is still usable. Zero uses oauth.DefaultExpiryMargin.
	ExpiryMargin time.Duration
}

// LoginRequest describes one login call.
type LoginRequest struct {
	// Scopes is the requested scope set.
	Scopes []string `json:"scopes"`

	// ExtraScopes are consented alongside Scopes without being required for
	// the cache match.
	ExtraScopes []string `json:"extraScopes,omitempty"`

	// Prompt is the OIDC prompt hint: "", "none", "login",
	// "select_account" or "consent".
	Prompt string `json:"promptHint,omitempty"`

	// LoginHint preselects the account at the authorization server.
	LoginHint string `json:"loginHint,omitempty"`
}

// Broker is the authentication orchestrator. Construct with New, then
// Init before any other operation.
type Broker struct {
	opts Options

	resolver *oauth.Resolver
	now      oauth.Clock
	margin   time.Duration

	mu         sync.RWMutex
	cfg        *config.ClientConfig
	exchanger  *oauth.Exchanger
	controller *login.Controller
	cache      *tokencache.Cache

	// loginMu is the single interactive-login slot per client identity.
	loginMu sync.Mutex

	// refreshGroup collapses concurrent silent refreshes into one token
	// endpoint call.
	refreshGroup singleflight.Group
}

// New creates an uninitialized broker.
func New(opts Options) *Broker {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	margin := opts.ExpiryMargin
	if margin == 0 {
		margin = oauth.DefaultExpiryMargin
	}
	return &Broker{
		opts:     opts,
		resolver: oauth.NewResolver(opts.HTTPClient),
		now:      now,
		margin:   margin,
	}
}

// Init validates and installs the client configuration, warms the discovery
// cache, and loads any persisted credential. Fails with a configuration
// error when the client identity is incomplete. Re-initializing with a
// different authority invalidates the previous discovery document.
func (b *Broker) Init(ctx context.Context, cfg config.ClientConfig) error {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	if b.cfg != nil && b.cfg.Authority != cfg.Authority {
		b.resolver.Invalidate(b.cfg.Authority)
	}
	b.cfg = &cfg
	b.exchanger = oauth.NewExchanger(cfg.ClientID, b.opts.HTTPClient, b.now)
	b.controller = login.NewController(cfg.RedirectURI, b.opts.Navigator, b.opts.SilentHTTPClient)

	store := b.opts.SecureStore
	if store == nil {
		store = tokencache.NewKeyringStore()
	}
	b.cache = tokencache.New(cfg.ClientID, store, b.now)
	b.mu.Unlock()

	// Warm the discovery cache. A failure here is not fatal: the document is
	// resolved lazily on the first operation that needs it.
	if _, err := b.resolver.Resolve(ctx, cfg.Authority); err != nil {
		logging.Warn("Broker", "Discovery warm-up for %s failed; will retry on first use", cfg.Authority)
	}

	if rt, err := b.cache.LoadPersisted(); err != nil {
		logging.Warn("Broker", "Could not read persisted credential for client %s", cfg.ClientID)
	} else if rt != "" {
		logging.Info("Broker", "Found persisted credential for client %s; silent login available", cfg.ClientID)
	}

	logging.Info("Broker", "Initialized client %s against %s", cfg.ClientID, cfg.Authority)
	return nil
}

// snapshot returns the initialized collaborators or a configuration error.
func (b *Broker) snapshot() (*config.ClientConfig, *oauth.Exchanger, *login.Controller, *tokencache.Cache, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.cfg == nil {
		return nil, nil, nil, nil, oauth.NewError(oauth.KindConfiguration, "", "broker is not initialized")
	}
	return b.cfg, b.exchanger, b.controller, b.cache, nil
}

// Login returns a token set for the requested scopes, preferring the cached
// set, then a silent refresh, then the interactive PKCE flow.
func (b *Broker) Login(ctx context.Context, req LoginRequest) (*oauth.TokenSet, error) {
	cfg, _, _, cache, err := b.snapshot()
	if err != nil {
		return nil, err
	}

	scopes := oauth.MergeScopes(req.Scopes, req.ExtraScopes)
	if len(scopes) == 0 {
		scopes = cfg.DefaultScopes
	}

	if ts := b.cachedSatisfying(cache, scopes); ts != nil {
		logging.Debug("Broker", "Login satisfied from cache")
		return ts, nil
	}

	// A prompt hint that forces interaction skips the refresh attempt.
	if req.Prompt == "" || req.Prompt == "none" {
		if ts, err := b.refresh(ctx, scopes); err == nil {
			return ts, nil
		} else if oauth.IsKind(err, oauth.KindLoginInProgress) {
			return nil, err
		} else {
			logging.Debug("Broker", "Silent refresh before interactive login failed: %v", oauth.KindOf(err))
		}
	}

	return b.interactiveLogin(ctx, scopes, req)
}

// AcquireTokenSilent returns a token set for the requested scopes using the
// cache or the refresh credential. It never opens a visible surface; when no
// refresh token exists the caller receives interaction_required and is
// expected to fall back to Login.
func (b *Broker) AcquireTokenSilent(ctx context.Context, scopes []string) (*oauth.TokenSet, error) {
	cfg, _, _, cache, err := b.snapshot()
	if err != nil {
		return nil, err
	}
	if len(scopes) == 0 {
		scopes = cfg.DefaultScopes
	}

	if ts := b.cachedSatisfying(cache, scopes); ts != nil {
		return ts, nil
	}

	return b.refresh(ctx, scopes)
}

// GetAccount returns the identity claims decoded from the current token
// set's ID token, or nil when no session exists. No network I/O; calling it
// twice without an intervening login or refresh returns identical claims.
func (b *Broker) GetAccount() (Account, error) {
	_, _, _, cache, err := b.snapshot()
	if err != nil {
		return nil, err
	}

	ts := cache.Current()
	if ts == nil || ts.IDToken == "" {
		return nil, nil
	}
	return DecodeAccount(ts.IDToken)
}

// Logout drops the in-memory token set and deletes the persisted credential.
func (b *Broker) Logout(ctx context.Context) error {
	_, _, _, cache, err := b.snapshot()
	if err != nil {
		return err
	}
	if err := cache.Clear(); err != nil {
		return err
	}
	logging.Info("Broker", "Session cleared")
	return nil
}

// cachedSatisfying returns a copy of the cached token set when it is fresh
// and grants a superset of the requested scopes.
func (b *Broker) cachedSatisfying(cache *tokencache.Cache, scopes []string) *oauth.TokenSet {
	ts := cache.Current()
	if ts == nil {
		return nil
	}
	if cache.IsExpired(b.margin) {
		return nil
	}
	if !ts.HasScopes(scopes) {
		return nil
	}
	return ts
}

// refresh performs a single-flight refresh-token grant for the client
// identity. All concurrent callers observing an expired token await the one
// token endpoint call; using a refresh token twice can revoke its family.
func (b *Broker) refresh(ctx context.Context, scopes []string) (*oauth.TokenSet, error) {
	cfg, exchanger, _, cache, err := b.snapshot()
	if err != nil {
		return nil, err
	}

	result, err, _ := b.refreshGroup.Do(cfg.ClientID, func() (interface{}, error) {
		// The winning caller re-checks the cache: a refresh that completed
		// while we queued may already satisfy us.
		if ts := b.cachedSatisfying(cache, scopes); ts != nil {
			return ts, nil
		}

		refreshToken, err := cache.RefreshToken()
		if err != nil {
			return nil, err
		}
		if refreshToken == "" {
			return nil, oauth.NewError(oauth.KindInteractionRequired, "",
				"there is no refresh token available")
		}

		meta, err := b.resolver.Resolve(ctx, cfg.Authority)
		if err != nil {
			return nil, err
		}

		logging.Debug("Broker", "Refreshing token set for client %s", cfg.ClientID)
		ts, err := exchanger.ExchangeRefreshToken(ctx, meta.TokenEndpoint, refreshToken, scopes)
		if err != nil {
			// The persisted credential is left untouched: an
			// interaction_required answer does not invalidate it.
			return nil, err
		}

		// Servers may omit a rotated refresh token; keep the current one so
		// future silent renewals still work.
		if ts.RefreshToken == "" {
			ts.RefreshToken = refreshToken
		}

		b.storeResult(cache, ts)
		return ts, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*oauth.TokenSet).Clone(), nil
}

// interactiveLogin runs the full PKCE authorization-code flow.
func (b *Broker) interactiveLogin(ctx context.Context, scopes []string, req LoginRequest) (*oauth.TokenSet, error) {
	cfg, exchanger, controller, cache, err := b.snapshot()
	if err != nil {
		return nil, err
	}

	if !b.loginMu.TryLock() {
		return nil, oauth.NewError(oauth.KindLoginInProgress, "",
			"an interactive login is already in progress")
	}
	defer b.loginMu.Unlock()

	meta, err := b.resolver.Resolve(ctx, cfg.Authority)
	if err != nil {
		return nil, err
	}

	// Fresh single-use PKCE pair and anti-forgery values per attempt.
	pkce, err := oauth.GeneratePKCE()
	if err != nil {
		return nil, oauth.WrapError(oauth.KindConfiguration, "failed to generate PKCE challenge", err)
	}
	state, err := oauth.GenerateState()
	if err != nil {
		return nil, oauth.WrapError(oauth.KindConfiguration, "failed to generate state", err)
	}
	nonce, err := oauth.GenerateNonce()
	if err != nil {
		return nil, oauth.WrapError(oauth.KindConfiguration, "failed to generate nonce", err)
	}

	authorizeURL, err := b.buildAuthorizeURL(meta, cfg, scopes, state, nonce, pkce, req)
	if err != nil {
		return nil, err
	}

	logging.Info("Broker", "Starting interactive login for client %s", cfg.ClientID)
	result, err := controller.Run(ctx, authorizeURL, state, login.RunOptions{
		SuppressPrompt: req.Prompt == "none",
	})
	if err != nil {
		return nil, err
	}

	ts, err := exchanger.ExchangeCode(ctx, meta.TokenEndpoint, result.Code, pkce.CodeVerifier, cfg.RedirectURI, scopes)
	if err != nil {
		return nil, err
	}

	if err := verifyNonce(ts.IDToken, nonce); err != nil {
		return nil, err
	}

	b.storeResult(cache, ts)
	logging.Info("Broker", "Interactive login completed for client %s", cfg.ClientID)
	return ts.Clone(), nil
}

// storeResult replaces the cached token set. A persistence failure degrades
// only future silent renewal, so the session proceeds with a warning.
func (b *Broker) storeResult(cache *tokencache.Cache, ts *oauth.TokenSet) {
	if err := cache.Store(ts); err != nil {
		logging.Warn("Broker", "Token set active in memory only; refresh credential was not persisted")
	}
}

// buildAuthorizeURL constructs the authorization request URL for one attempt.
func (b *Broker) buildAuthorizeURL(meta *oauth.Metadata, cfg *config.ClientConfig, scopes []string, state, nonce string, pkce *oauth.PKCEChallenge, req LoginRequest) (string, error) {
	authURL, err := url.Parse(meta.AuthorizationEndpoint)
	if err != nil {
		return "", oauth.WrapError(oauth.KindDiscovery, "invalid authorization endpoint", err)
	}

	query := authURL.Query()
	query.Set("response_type", "code")
	query.Set("response_mode", "query")
	query.Set("client_id", cfg.ClientID)
	query.Set("redirect_uri", cfg.RedirectURI)
	query.Set("scope", oauth.JoinScopes(scopes))
	query.Set("state", state)
	query.Set("nonce", nonce)
	query.Set("code_challenge", pkce.CodeChallenge)
	query.Set("code_challenge_method", pkce.CodeChallengeMethod)
	if req.Prompt != "" {
		query.Set("prompt", req.Prompt)
	}
	if req.LoginHint != "" {
		query.Set("login_hint", req.LoginHint)
	}

	authURL.RawQuery = query.Encode()
	return authURL.String(), nil
}
