package client

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Failure taxonomy for the outbound integrations. Callers branch on these
// with errors.Is / errors.As instead of parsing messages.
var (
	// ErrTimeout means the bounded per-call deadline elapsed.
	ErrTimeout = errors.New("request timed out")

	// ErrNetwork covers DNS, connection and transport failures, including a
	// fast-fail from an open circuit breaker.
	ErrNetwork = errors.New("network error")

	// ErrMalformedResponse means the upstream answered 2xx but the payload
	// did not have the expected shape.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrPartialData means the upstream answered but one of the requested
	// variables is absent or empty for this location/period.
	ErrPartialData = errors.New("partial data for requested variables")
)

// HTTPError is a non-2xx upstream response. Status 400 means the request
// itself was invalid (bad coordinates or dates) and is reported to the user
// differently from other statuses.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream HTTP %d", e.Status)
}

// classifyTransportError maps an error returned by the HTTP client into the
// taxonomy above.
func classifyTransportError(err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
