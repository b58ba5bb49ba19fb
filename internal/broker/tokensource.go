package broker

import (
	"context"

	"golang.org/x/oauth2"
)

// tokenSource adapts the broker's silent acquisition to oauth2.TokenSource,
// so in-process Go consumers can hand the broker to any x/oauth2-aware HTTP
// stack.
type tokenSource struct {
	ctx    context.Context
	broker *Broker
	scopes []string
}

// TokenSource returns an oauth2.TokenSource backed by AcquireTokenSilent.
// Token() never opens a visible surface; when interaction is required the
// error propagates and the consumer must run Login.
func (b *Broker) TokenSource(ctx context.Context, scopes []string) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, broker: b, scopes: scopes}
}

// Token implements oauth2.TokenSource.
func (s *tokenSource) Token() (*oauth2.Token, error) {
	ts, err := s.broker.AcquireTokenSilent(s.ctx, s.scopes)
	if err != nil {
		return nil, err
	}
	return ts.ToOAuth2Token(), nil
}
