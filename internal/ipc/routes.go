package ipc

import (
	"context"
	"encoding/json"

	"authgate/internal/broker"
	"authgate/internal/config"
	"authgate/pkg/oauth"
)

// Route names understood by the channel.
const (
	RouteInit          = "auth-init"
	RouteLogin         = "auth-login"
	RouteAcquireSilent = "auth-acquire-silent"
	RouteGetAccount    = "auth-get-account"
	RouteLogout        = "auth-logout"
)

type silentRequest struct {
	Scopes []string `json:"scopes"`
}

// RegisterBrokerRoutes binds the authentication routes onto a dispatcher.
func RegisterBrokerRoutes(d *Dispatcher, b *broker.Broker) {
	d.Register(RouteInit, func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		var cfg config.ClientConfig
		if err := decodePayload(payload, &cfg); err != nil {
			return nil, err
		}
		return nil, b.Init(ctx, cfg)
	})

	d.Register(RouteLogin, func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		var req broker.LoginRequest
		if err := decodePayload(payload, &req); err != nil {
			return nil, err
		}
		return b.Login(ctx, req)
	})

	d.Register(RouteAcquireSilent, func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		var req silentRequest
		if err := decodePayload(payload, &req); err != nil {
			return nil, err
		}
		return b.AcquireTokenSilent(ctx, req.Scopes)
	})

	d.Register(RouteGetAccount, func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		account, err := b.GetAccount()
		if err != nil {
			return nil, err
		}
		if account == nil {
			// No signed-in session maps to an empty result, not an error.
			return nil, nil
		}
		return account, nil
	})

	d.Register(RouteLogout, func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		return nil, b.Logout(ctx)
	})
}

func decodePayload(payload json.RawMessage, into interface{}) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, into); err != nil {
		return oauth.NewError(oauth.KindConfiguration, "invalid_request", "the request payload is malformed")
	}
	return nil
}
