package vision

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ConnectionError indicates the vision backend could not be reached or
// timed out. Retried at the call site with bounded backoff; surfaced as
// a fatal run error once retries are exhausted.
type ConnectionError struct {
	Operation string
	Err       error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("vision %s: connection failed: %v", e.Operation, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// MalformedOutputError indicates the model replied but the structured
// payload could not be parsed. Callers decide whether this is fatal
// (hypothesis extraction) or recoverable with a neutral fallback
// (critique scoring).
type MalformedOutputError struct {
	Operation string
	Detail    string
	Raw       string
}

func (e *MalformedOutputError) Error() string {
	raw := e.Raw
	if len(raw) > 200 {
		raw = raw[:200] + "..."
	}
	return fmt.Sprintf("vision %s: malformed output: %s (response: %s)", e.Operation, e.Detail, raw)
}

// IsMalformed reports whether err is a malformed-output error
func IsMalformed(err error) bool {
	var m *MalformedOutputError
	return errors.As(err, &m)
}
