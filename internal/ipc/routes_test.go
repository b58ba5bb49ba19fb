package ipc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authgate/internal/broker"
	"authgate/internal/tokencache"
)

func testDispatcherWithBroker(t *testing.T) (*Dispatcher, *broker.Broker) {
	t.Helper()
	b := broker.New(broker.Options{SecureStore: tokencache.NewMemoryStore()})
	d := NewDispatcher(5 * time.Second)
	RegisterBrokerRoutes(d, b)
	return d, b
}

func TestRoutesBeforeInit(t *testing.T) {
	d, _ := testDispatcherWithBroker(t)

	resp := d.Dispatch(context.Background(), &Request{ID: "1", Route: RouteGetAccount})
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_configuration", resp.Error.Error)

	resp = d.Dispatch(context.Background(), &Request{ID: "2", Route: RouteAcquireSilent,
		Payload: json.RawMessage(`{"scopes": ["openid"]}`)})
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_configuration", resp.Error.Error)
}

func TestRoutesInitAndAccount(t *testing.T) {
	d, _ := testDispatcherWithBroker(t)

	resp := d.Dispatch(context.Background(), &Request{ID: "1", Route: RouteInit,
		Payload: json.RawMessage(`{
			"clientId": "client-1",
			"authority": "http://127.0.0.1:1",
			"redirectUri": "http://127.0.0.1:9100/auth/callback"
		}`)})
	require.Nil(t, resp.Error)
	assert.Empty(t, resp.Result)

	// No session yet: the account route answers with an empty result, not
	// an error.
	resp = d.Dispatch(context.Background(), &Request{ID: "2", Route: RouteGetAccount})
	assert.Nil(t, resp.Error)
	assert.Empty(t, resp.Result)

	resp = d.Dispatch(context.Background(), &Request{ID: "3", Route: RouteLogout})
	assert.Nil(t, resp.Error)
}

func TestRoutesInitRejectsIncompleteConfig(t *testing.T) {
	d, _ := testDispatcherWithBroker(t)

	resp := d.Dispatch(context.Background(), &Request{ID: "1", Route: RouteInit,
		Payload: json.RawMessage(`{"clientId": "client-1"}`)})
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_configuration", resp.Error.Error)
}

func TestRoutesMalformedPayload(t *testing.T) {
	d, _ := testDispatcherWithBroker(t)

	resp := d.Dispatch(context.Background(), &Request{ID: "1", Route: RouteLogin,
		Payload: json.RawMessage(`{"scopes": 42}`)})
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_request", resp.Error.Error)
}
