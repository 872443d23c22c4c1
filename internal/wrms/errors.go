package wrms

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/wrmsprobe/wrmsprobe/internal/provider/resilience"
)

// ErrKeyNotEnforced is wrapped by the ProtocolError returned when the remote
// API answers a request carrying an invalid key with anything but 401/403.
var ErrKeyNotEnforced = errors.New("invalid api key was not rejected")

// ErrorKind classifies probe failures for reporting and metrics.
type ErrorKind string

// Error kinds.
const (
	KindNone     ErrorKind = ""
	KindConfig   ErrorKind = "config"
	KindNetwork  ErrorKind = "network"
	KindProtocol ErrorKind = "protocol"
	KindSchema   ErrorKind = "schema"
	KindInternal ErrorKind = "internal"
)

// ConfigError reports an invalid client configuration. It is the only error
// that escapes NewClient and Run.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// NetworkError is a transport-level failure: timeout, DNS, refused
// connection or an open circuit. Callers may retry.
type NetworkError struct {
	Op      string
	URL     string
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	msg := fmt.Sprintf("network error: %s %s: %v", e.Op, e.URL, e.Err)
	if e.Timeout {
		msg += " (timeout)"
	}
	return msg
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError is an unexpected status code or an unparseable body.
type ProtocolError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *ProtocolError) Error() string {
	var b strings.Builder
	b.WriteString("protocol error")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// SchemaError names every required field missing from a response.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "schema error: missing required fields: " + strings.Join(e.Missing, ", ")
}

// Kind returns the classification of err.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var (
		cfgErr    *ConfigError
		netErr    *NetworkError
		protoErr  *ProtocolError
		schemaErr *SchemaError
	)
	switch {
	case errors.As(err, &cfgErr):
		return KindConfig
	case errors.As(err, &netErr):
		return KindNetwork
	case errors.As(err, &protoErr):
		return KindProtocol
	case errors.As(err, &schemaErr):
		return KindSchema
	default:
		return KindInternal
	}
}

// IsRetryable reports whether a caller could reasonably repeat the
// observation that produced err.
func IsRetryable(err error) bool {
	if Kind(err) == KindNetwork {
		return true
	}
	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		return protoErr.StatusCode == http.StatusTooManyRequests || protoErr.StatusCode >= 500
	}
	return false
}

// networkError wraps a transport failure from the resilient client.
func networkError(op, url string, err error) *NetworkError {
	return &NetworkError{
		Op:      op,
		URL:     url,
		Timeout: isTimeout(err),
		Err:     err,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
