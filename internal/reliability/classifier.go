package reliability

import (
	"context"
	"errors"
	"strings"

	"github.com/agoravox/agoravox/internal/realtime"
)

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ClassifyConnectError maps a failed connect attempt to a stable error code
// and a retryable flag for the surfaced error event. Retryable here means "a
// fresh user-initiated connect may succeed"; the service never retries on its
// own.
func ClassifyConnectError(err error) (code string, retryable bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, realtime.ErrPermissionDenied):
		return "microphone_denied", false
	case errors.Is(err, context.Canceled):
		return "connect_cancelled", false
	case errors.Is(err, context.DeadlineExceeded):
		return "connect_timeout", true
	case strings.Contains(err.Error(), "credential"):
		return "credential_fetch_failed", true
	case strings.Contains(err.Error(), "handshake"):
		return "handshake_failed", true
	default:
		return "transport_error", true
	}
}
