package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCredentialClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"client_secret":{"value":"ek_test_token"}}`))
	}))
	defer srv.Close()

	c := NewCredentialClient(srv.URL, srv.Client())
	token, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if token != "ek_test_token" {
		t.Fatalf("token = %q, want ek_test_token", token)
	}
}

func TestCredentialClientRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewCredentialClient(srv.URL, srv.Client())
	if _, err := c.Fetch(context.Background()); err == nil {
		t.Fatalf("Fetch() error = nil, want status error")
	}
}

func TestCredentialClientRejectsMalformedBody(t *testing.T) {
	cases := []string{
		`not json`,
		`{"client_secret":{}}`,
		`{"client_secret":{"value":"  "}}`,
	}
	for _, body := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		c := NewCredentialClient(srv.URL, srv.Client())
		if _, err := c.Fetch(context.Background()); err == nil {
			t.Fatalf("Fetch() error = nil for body %q, want malformed payload error", body)
		}
		srv.Close()
	}
}
