package reliability

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/agoravox/agoravox/internal/realtime"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !IsRetryableHTTPStatus(code) {
			t.Fatalf("IsRetryableHTTPStatus(%d) = false, want true", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404} {
		if IsRetryableHTTPStatus(code) {
			t.Fatalf("IsRetryableHTTPStatus(%d) = true, want false", code)
		}
	}
}

func TestClassifyConnectError(t *testing.T) {
	cases := []struct {
		err           error
		wantCode      string
		wantRetryable bool
	}{
		{realtime.ErrPermissionDenied, "microphone_denied", false},
		{fmt.Errorf("start microphone: %w", realtime.ErrPermissionDenied), "microphone_denied", false},
		{context.Canceled, "connect_cancelled", false},
		{context.DeadlineExceeded, "connect_timeout", true},
		{errors.New("credential endpoint returned 500"), "credential_fetch_failed", true},
		{errors.New("handshake returned 401: invalid token"), "handshake_failed", true},
		{errors.New("ice failure"), "transport_error", true},
	}
	for _, tc := range cases {
		code, retryable := ClassifyConnectError(tc.err)
		if code != tc.wantCode || retryable != tc.wantRetryable {
			t.Fatalf("ClassifyConnectError(%v) = (%q, %v), want (%q, %v)",
				tc.err, code, retryable, tc.wantCode, tc.wantRetryable)
		}
	}
}
