package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"authgate/pkg/logging"
)

// maxLineBytes bounds a single request line. Payloads are small control
// messages; anything larger is a protocol violation.
const maxLineBytes = 1 << 20

// Server accepts connections on a unix socket and dispatches each
// newline-delimited request concurrently.
type Server struct {
	socketPath string
	dispatcher *Dispatcher

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	closed   bool
}

// NewServer creates a server for the given socket path. Start must be
// called before the server accepts connections.
func NewServer(socketPath string, dispatcher *Dispatcher) *Server {
	return &Server{
		socketPath: socketPath,
		dispatcher: dispatcher,
		conns:      make(map[net.Conn]struct{}),
	}
}

// Start binds the socket and launches the accept loop. A stale socket file
// from a previous run is removed before binding.
func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to restrict socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	logging.Info("IPC", "Listening on %s", s.socketPath)

	s.wg.Add(1)
	go s.acceptLoop(ctx)
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return
			}
			logging.Warn("IPC", "Accept failed: %v", err)
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	var writeMu sync.Mutex
	var pending sync.WaitGroup
	defer pending.Wait()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			logging.Warn("IPC", "Dropping malformed request line: %v", err)
			continue
		}

		// Handlers can block on interactive flows, so each request runs
		// on its own goroutine and responses are serialized on write.
		pending.Add(1)
		go func(req Request) {
			defer pending.Done()
			resp := s.dispatcher.Dispatch(ctx, &req)
			writeMu.Lock()
			defer writeMu.Unlock()
			if err := encoder.Encode(resp); err != nil {
				logging.Warn("IPC", "Failed to write response for %s: %v", req.Route, err)
			}
		}(req)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		logging.Debug("IPC", "Connection read ended: %v", err)
	}
}

// Stop closes the listener and all active connections, waits for in-flight
// requests to finish, and removes the socket file.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	listener := s.listener
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
	logging.Info("IPC", "Stopped listening on %s", s.socketPath)
}
