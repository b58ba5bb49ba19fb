package login

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"authgate/pkg/logging"
	"authgate/pkg/oauth"
)

const (
	// DefaultInteractiveTimeout bounds how long the controller waits for the
	// user to complete an interactive login.
	DefaultInteractiveTimeout = 10 * time.Minute

	// DefaultSilentTimeout bounds surface-less (prompt=none) attempts.
	// Absence of a redirect within this window surfaces as
	// interaction_required, never a hang.
	DefaultSilentTimeout = 20 * time.Second

	// maxSilentRedirects caps the redirect chain a silent navigation follows
	// before concluding that interaction is required.
	maxSilentRedirects = 10
)

// errSurfaceClosed is the cancellation cause used when the login surface is
// closed before a matching redirect occurs.
var errSurfaceClosed = errors.New("login surface closed")

// AuthorizationResult is the outcome of a completed login attempt.
type AuthorizationResult struct {
	// Code is the authorization code to exchange at the token endpoint.
	Code string
}

// RunOptions control a single login attempt.
type RunOptions struct {
	// SuppressPrompt runs the attempt without any visible surface
	// (prompt=none flows). The authorization URL is still navigated.
	SuppressPrompt bool

	// Timeout bounds the attempt. Zero uses DefaultInteractiveTimeout for
	// visible attempts and DefaultSilentTimeout for suppressed ones.
	Timeout time.Duration
}

// Controller drives the browser surface through the authorization redirect
// and captures the callback. Exactly one attempt may be in flight at a time.
type Controller struct {
	redirectURI string
	navigator   Navigator
	// silentClient navigates prompt=none attempts without a surface. It must
	// not follow redirects on its own; the controller walks the chain.
	silentClient *http.Client

	mu     sync.Mutex
	active bool
	state  State
	cancel context.CancelCauseFunc
}

// NewController creates a login controller bound to the configured redirect
// URI. A nil navigator opens the system browser; a nil silentClient uses a
// default cookie-less client.
func NewController(redirectURI string, navigator Navigator, silentClient *http.Client) *Controller {
	if navigator == nil {
		navigator = BrowserNavigator{}
	}
	if silentClient == nil {
		silentClient = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &Controller{
		redirectURI:  redirectURI,
		navigator:    navigator,
		silentClient: silentClient,
		state:        StateIdle,
	}
}

// State returns the state of the current (or most recent) attempt.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cancel closes the pending attempt, releasing its waiter with a
// user_cancelled outcome. Cancelling when no attempt is pending is a no-op.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel(errSurfaceClosed)
	}
}

// Run presents the authorization URL and captures the first navigation
// matching the redirect URI. It returns the authorization code on success,
// or a typed error: user_cancelled, invalid_state, an authorization error
// from the redirect, interaction_required (silent attempts), or
// login_in_progress when another attempt is already pending.
func (c *Controller) Run(ctx context.Context, authorizeURL, expectedState string, opts RunOptions) (*AuthorizationResult, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		if opts.SuppressPrompt {
			timeout = DefaultSilentTimeout
		} else {
			timeout = DefaultInteractiveTimeout
		}
	}

	attemptCtx, cancel, err := c.begin(ctx, timeout)
	if err != nil {
		return nil, err
	}
	defer c.end(cancel)

	var result *CallbackResult
	if opts.SuppressPrompt {
		result, err = c.runSilent(attemptCtx, authorizeURL)
	} else {
		result, err = c.runVisible(attemptCtx, authorizeURL)
	}
	if err != nil {
		return nil, c.mapWaitError(attemptCtx, err, opts.SuppressPrompt)
	}

	c.setState(StateRedirected)
	return c.validate(result, expectedState)
}

// begin claims the single attempt slot.
func (c *Controller) begin(ctx context.Context, timeout time.Duration) (context.Context, context.CancelCauseFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return nil, nil, oauth.NewError(oauth.KindLoginInProgress, "",
			"an interactive login is already in progress")
	}

	deadlineCtx, cancelTimeout := context.WithTimeout(ctx, timeout)
	attemptCtx, cancel := context.WithCancelCause(deadlineCtx)
	// Tie the timeout's cancel to the attempt cancel so both are released.
	wrapped := func(cause error) {
		cancel(cause)
		cancelTimeout()
	}

	c.active = true
	c.state = StateIdle
	c.cancel = wrapped
	return attemptCtx, wrapped, nil
}

// end releases the attempt slot.
func (c *Controller) end(cancel context.CancelCauseFunc) {
	cancel(nil)
	c.mu.Lock()
	c.active = false
	c.cancel = nil
	c.mu.Unlock()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// runVisible opens the system browser and waits for the loopback callback.
func (c *Controller) runVisible(ctx context.Context, authorizeURL string) (*CallbackResult, error) {
	server, err := NewCallbackServer(c.redirectURI)
	if err != nil {
		return nil, oauth.WrapError(oauth.KindConfiguration, "invalid redirect URI", err)
	}
	if err := server.Start(ctx); err != nil {
		return nil, oauth.WrapError(oauth.KindTransport, "failed to start redirect listener", err)
	}
	defer server.Stop()

	if err := c.navigator.Open(authorizeURL); err != nil {
		c.setState(StateFailed)
		return nil, oauth.WrapError(oauth.KindTransport, "failed to open login surface", err)
	}
	c.setState(StateOpened)
	logging.Debug("Login", "Opened login surface, waiting for redirect")

	return server.Wait(ctx)
}

// runSilent navigates the authorization URL without a surface, stopping at
// the first redirect whose target matches the redirect URI prefix.
func (c *Controller) runSilent(ctx context.Context, authorizeURL string) (*CallbackResult, error) {
	c.setState(StateOpened)
	logging.Debug("Login", "Running silent authorization navigation")

	current := authorizeURL
	for i := 0; i < maxSilentRedirects; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return nil, oauth.WrapError(oauth.KindTransport, "invalid authorization URL", err)
		}

		resp, err := c.silentClient.Do(req)
		if err != nil {
			return nil, err
		}
		resp.Body.Close()

		if resp.StatusCode < 300 || resp.StatusCode > 399 {
			// The server rendered a page instead of redirecting: the flow
			// needs the user.
			return nil, oauth.NewError(oauth.KindInteractionRequired, "",
				"authorization server requires user interaction")
		}

		loc, err := resp.Location()
		if err != nil {
			return nil, oauth.NewError(oauth.KindInteractionRequired, "",
				"authorization server redirect carries no location")
		}

		if c.matchesRedirectURI(loc) {
			return resultFromQuery(loc.Query()), nil
		}
		current = loc.String()
	}

	return nil, oauth.NewError(oauth.KindInteractionRequired, "",
		"authorization server did not redirect back")
}

// matchesRedirectURI reports whether the navigation target is the configured
// redirect URI (prefix match, ignoring query).
func (c *Controller) matchesRedirectURI(u *url.URL) bool {
	target := *u
	target.RawQuery = ""
	target.Fragment = ""
	return strings.HasPrefix(target.String(), c.redirectURI)
}

// mapWaitError converts low-level wait failures into the taxonomy.
func (c *Controller) mapWaitError(ctx context.Context, err error, silent bool) error {
	var oe *oauth.Error
	if errors.As(err, &oe) {
		c.setState(StateFailed)
		return err
	}

	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, errSurfaceClosed), errors.Is(err, context.Canceled):
		c.setState(StateCancelled)
		logging.Info("Login", "Login surface closed before redirect")
		return oauth.NewError(oauth.KindUserCancelled, "", "the user cancelled the login")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(cause, context.DeadlineExceeded):
		c.setState(StateFailed)
		if silent {
			return oauth.NewError(oauth.KindInteractionRequired, "",
				"no redirect received within the silent login window")
		}
		return oauth.NewError(oauth.KindTimeout, "", "interactive login timed out")
	default:
		c.setState(StateFailed)
		return oauth.WrapError(oauth.KindTransport, "redirect capture failed", err)
	}
}

// validate applies the error and anti-forgery checks to a captured redirect.
func (c *Controller) validate(result *CallbackResult, expectedState string) (*AuthorizationResult, error) {
	if result.IsError() {
		c.setState(StateFailed)
		logging.Warn("Login", "Authorization redirect carried error %s", result.Error)
		return nil, oauth.RedirectError(result.Error, result.ErrorDescription)
	}

	if result.State != expectedState {
		c.setState(StateFailed)
		// Possible CSRF: log lengths only, never the values.
		logging.Warn("Login", "Authorization response state mismatch (expected %d chars, got %d)",
			len(expectedState), len(result.State))
		return nil, oauth.NewError(oauth.KindStateMismatch, "",
			"the authorization response state does not match the request state")
	}

	if result.Code == "" {
		c.setState(StateFailed)
		return nil, oauth.NewError(oauth.KindAuthorization, "invalid_response",
			"the authorization response carries no code")
	}

	c.setState(StateCompleted)
	return &AuthorizationResult{Code: result.Code}, nil
}
