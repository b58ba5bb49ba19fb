package login

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const callbackSuccessHTML = `<!DOCTYPE html>
<html><head><title>Signed in</title></head>
<body><p>Authentication complete. You can close this window.</p></body></html>`

const callbackErrorHTML = `<!DOCTYPE html>
<html><head><title>Sign-in failed</title></head>
<body><p>Authentication failed. You can close this window and try again.</p></body></html>`

// CallbackResult carries the query parameters of the captured redirect.
type CallbackResult struct {
	// Code is the authorization code from the authorization server.
	Code string

	// State is the state parameter to verify against the original request.
	State string

	// Error is the error code if the authorization failed.
	Error string

	// ErrorDescription is a human-readable error description.
	ErrorDescription string
}

// IsError reports whether the redirect carried an error parameter.
func (r *CallbackResult) IsError() bool {
	return r.Error != ""
}

// resultFromQuery extracts the callback parameters from a redirect URL query.
func resultFromQuery(query url.Values) *CallbackResult {
	return &CallbackResult{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}
}

// CallbackServer is a loopback HTTP listener bound to the configured
// redirect URI. It captures the first matching navigation and then refuses
// further callbacks for the attempt.
type CallbackServer struct {
	redirect *url.URL

	server   *http.Server
	listener net.Listener
	once     sync.Once
	resultCh chan *CallbackResult
	errorCh  chan error
}

// NewCallbackServer creates a callback server for the given redirect URI.
// The URI must be a loopback http URL, e.g. http://127.0.0.1:8765/auth/callback.
func NewCallbackServer(redirectURI string) (*CallbackServer, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI: %w", err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("redirect URI must use http on loopback, got %q", u.Scheme)
	}

	return &CallbackServer{
		redirect: u,
		resultCh: make(chan *CallbackResult, 1),
		errorCh:  make(chan error, 1),
	}, nil
}

// Start binds the listener and begins waiting for the redirect. The server
// stops automatically when the context is cancelled.
func (s *CallbackServer) Start(ctx context.Context) error {
	host := s.redirect.Host
	if s.redirect.Port() == "" {
		host = net.JoinHostPort(s.redirect.Hostname(), "80")
	}

	listener, err := net.Listen("tcp", host)
	if err != nil {
		return fmt.Errorf("failed to bind callback listener on %s: %w", host, err)
	}
	s.listener = listener

	path := s.redirect.Path
	if path == "" {
		path = "/"
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Wait blocks until the redirect is captured, the server fails, or the
// context is done.
func (s *CallbackServer) Wait(ctx context.Context) (*CallbackResult, error) {
	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// handleCallback captures the first navigation; later hits are refused.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	var handled bool
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})

	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	result := resultFromQuery(r.URL.Query())

	if result.IsError() {
		_, _ = fmt.Fprint(w, callbackErrorHTML)
	} else {
		_, _ = fmt.Fprint(w, callbackSuccessHTML)
	}

	select {
	case s.resultCh <- result:
	default:
	}

	// Give the response time to flush before tearing the server down.
	go func() {
		time.Sleep(1 * time.Second)
		s.Stop()
	}()
}

// Stop gracefully shuts down the callback server.
func (s *CallbackServer) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// RedirectURI returns the redirect URI the server is bound to.
func (s *CallbackServer) RedirectURI() string {
	return s.redirect.String()
}
