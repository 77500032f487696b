// Package control exposes a unix-socket command channel into a running
// training or exploration process. The CLI's stop and status commands
// talk to it from a second terminal.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Command is a control request sent to a running trainer
type Command struct {
	Type      string                 `json:"type"`       // "stop", "status"
	SessionID string                 `json:"session_id"` // target session
	Reason    string                 `json:"reason"`     // optional reason for stop
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Response is the trainer's answer to a control command
type Response struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// SocketPath returns the per-session control socket location
func SocketPath(sessionID string) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("atelier-%s.sock", sessionID))
}

// Server listens on the session's control socket and dispatches
// commands to the handler
type Server struct {
	socketPath string
	listener   net.Listener
	mu         sync.RWMutex
	running    bool
	stopCh     chan struct{}
	doneCh     chan struct{}

	// onCommand handles each received command, returning response data
	onCommand func(cmd Command) (map[string]interface{}, error)
}

// NewServer creates a control server on the given socket path. A stale
// socket file from a crashed previous run is removed first.
func NewServer(socketPath string, onCommand func(Command) (map[string]interface{}, error)) (*Server, error) {
	dir := filepath.Dir(socketPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	return &Server{
		socketPath: socketPath,
		onCommand:  onCommand,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}, nil
}

// Start begins accepting control connections in the background
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("control server already running")
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create control socket: %w", err)
	}

	s.listener = listener
	s.running = true
	s.mu.Unlock()

	go s.acceptLoop(ctx)

	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer close(s.doneCh)
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		// Accept with a deadline so the stop channel is checked
		if err := s.listener.(*net.UnixListener).SetDeadline(time.Now().Add(1 * time.Second)); err != nil {
			fmt.Fprintf(os.Stderr, "control: failed to set deadline: %v\n", err)
			continue
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			select {
			case <-s.stopCh:
				return
			default:
			}
			fmt.Fprintf(os.Stderr, "control: accept error: %v\n", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		fmt.Fprintf(os.Stderr, "control: failed to set read deadline: %v\n", err)
		return
	}

	decoder := json.NewDecoder(conn)
	var cmd Command
	if err := decoder.Decode(&cmd); err != nil {
		s.sendError(conn, fmt.Sprintf("failed to decode command: %v", err))
		return
	}

	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now()
	}

	var resp Response
	if s.onCommand != nil {
		data, err := s.onCommand(cmd)
		if err != nil {
			resp = Response{
				Success: false,
				Message: fmt.Sprintf("command failed: %v", err),
				Error:   err.Error(),
			}
		} else {
			resp = Response{
				Success: true,
				Message: fmt.Sprintf("command %q completed", cmd.Type),
				Data:    data,
			}
		}
	} else {
		resp = Response{
			Success: false,
			Message: "no command handler registered",
			Error:   "server misconfiguration",
		}
	}

	if err := s.sendResponse(conn, resp); err != nil {
		fmt.Fprintf(os.Stderr, "control: failed to send response: %v\n", err)
	}
}

func (s *Server) sendError(conn net.Conn, message string) {
	resp := Response{
		Success: false,
		Message: message,
		Error:   message,
	}
	_ = s.sendResponse(conn, resp)
}

func (s *Server) sendResponse(conn net.Conn, resp Response) error {
	encoder := json.NewEncoder(conn)
	return encoder.Encode(resp)
}

// Stop shuts the server down and removes the socket file
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "control: error closing listener: %v\n", err)
		}
	}

	select {
	case <-s.doneCh:
	case <-time.After(5 * time.Second):
		fmt.Fprintf(os.Stderr, "control: timeout waiting for server shutdown\n")
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		fmt.Fprintf(os.Stderr, "control: failed to remove socket file: %v\n", err)
	}

	return nil
}

// IsRunning reports whether the server is accepting connections
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
