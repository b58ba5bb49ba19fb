package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
)

// CallError is an error response delivered over the channel.
type CallError struct {
	Code        string
	Description string
}

func (e *CallError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Client issues calls over a single connection. Calls may overlap;
// responses are matched back to their callers by correlation ID.
type Client struct {
	conn    net.Conn
	encMu   sync.Mutex
	encoder *json.Encoder

	mu      sync.Mutex
	pending map[string]chan *Response
	closed  bool
	readErr error
}

// Dial connects to the server socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", socketPath, err)
	}
	c := &Client{
		conn:    conn,
		encoder: json.NewEncoder(conn),
		pending: make(map[string]chan *Response),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for scanner.Scan() {
		var resp Response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}

	err := scanner.Err()
	if err == nil {
		err = fmt.Errorf("connection closed")
	}
	c.mu.Lock()
	c.closed = true
	c.readErr = err
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	c.mu.Unlock()
}

// Call sends one request and waits for its response. A non-nil result is
// filled from the response body. Channel-level failures and error
// responses both surface as errors; the latter as *CallError.
func (c *Client) Call(ctx context.Context, route string, payload interface{}, result interface{}) error {
	req := &Request{ID: uuid.New().String(), Route: route}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload for %s: %w", route, err)
		}
		req.Payload = raw
	}

	ch := make(chan *Response, 1)
	c.mu.Lock()
	if c.closed {
		err := c.readErr
		c.mu.Unlock()
		return fmt.Errorf("channel is closed: %w", err)
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	c.encMu.Lock()
	err := c.encoder.Encode(req)
	c.encMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return fmt.Errorf("failed to send request on %s: %w", route, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("connection closed before response on %s", route)
		}
		if resp.Error != nil {
			return &CallError{Code: resp.Error.Error, Description: resp.Error.ErrorDescription}
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("failed to decode result from %s: %w", route, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return ctx.Err()
	}
}

// Close shuts the connection down. In-flight calls fail.
func (c *Client) Close() error {
	return c.conn.Close()
}
