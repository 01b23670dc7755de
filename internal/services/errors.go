package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrInvalidInput marks malformed URLs or missing required parameters,
	// rejected before any external call is made.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstream marks a non-success response from an external service.
	ErrUpstream = errors.New("upstream error")
	// ErrConcurrencyLimit marks the avatar API's "maximum concurrent
	// conversations" rejection, kept distinct so callers can show a
	// wait-and-retry message.
	ErrConcurrencyLimit = errors.New("concurrent session limit reached")
	// ErrTimeout marks an external call that exceeded its time budget.
	ErrTimeout = errors.New("timeout")
	// ErrNoUsableContent marks a session request whose jobs all ended in error.
	ErrNoUsableContent = errors.New("no usable content")
	// ErrStorage marks a failure reading or writing the job store.
	ErrStorage = errors.New("storage error")
	// ErrSessionCreation marks a failure creating the conversation session.
	ErrSessionCreation = errors.New("session creation failed")
	// ErrTerminal marks an attempt to mutate a job that already completed or errored.
	ErrTerminal = errors.New("job is terminal")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrUpstream
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ClassifyHTTP maps a transport-level error to the taxonomy. Deadline and
// net timeouts become ErrTimeout; everything else becomes ErrUpstream.
func ClassifyHTTP(component, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(ErrTimeout, component, operation, "", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Wrap(ErrTimeout, component, operation, "", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return Wrap(ErrTimeout, component, operation, "", err)
	}
	return Wrap(ErrUpstream, component, operation, "", err)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
