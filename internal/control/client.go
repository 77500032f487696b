package control

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client sends control commands to a running training process
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a control client for the given socket
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    10 * time.Second,
	}
}

// SetTimeout overrides the default 10s command timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// SendCommand sends one command and waits for the response
func (c *Client) SendCommand(cmd Command) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to trainer (is a run active?): %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(cmd); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	decoder := json.NewDecoder(conn)
	var resp Response
	if err := decoder.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &resp, nil
}

// Stop asks the run on this socket to stop at its next checkpoint.
// Work already in flight finishes first; committed style versions are
// never rolled back.
func (c *Client) Stop(sessionID, reason string) (*Response, error) {
	cmd := Command{
		Type:      "stop",
		SessionID: sessionID,
		Reason:    reason,
		Timestamp: time.Now(),
	}
	return c.SendCommand(cmd)
}

// Status asks the run for its current progress
func (c *Client) Status(sessionID string) (*Response, error) {
	cmd := Command{
		Type:      "status",
		SessionID: sessionID,
		Timestamp: time.Now(),
	}
	return c.SendCommand(cmd)
}
