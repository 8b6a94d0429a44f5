package session

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrTimeout reports that a request exceeded the session timeout. It is
// distinct from HTTPError so callers can tell a slow site from a
// rejecting one.
var ErrTimeout = errors.New("session: request timed out")

// HTTPError reports a non-success HTTP status from the target site.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("session: %s returned status %d", e.URL, e.Status)
}

// classifyTransportError maps a transport-level failure onto the session
// error taxonomy: timeouts become ErrTimeout, everything else is wrapped
// as a connection error.
func classifyTransportError(url string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, url)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s", ErrTimeout, url)
	}
	return fmt.Errorf("session: connection to %s failed: %w", url, err)
}
