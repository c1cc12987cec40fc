package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CredentialClient fetches the ephemeral bearer token used to authenticate
// directly with the remote voice service. The issuing endpoint is a trusted
// collaborator; any failure here is fatal for the connect attempt.
type CredentialClient struct {
	url    string
	client *http.Client
}

func NewCredentialClient(url string, client *http.Client) *CredentialClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &CredentialClient{url: url, client: client}
}

type credentialResponse struct {
	ClientSecret struct {
		Value string `json:"value"`
	} `json:"client_secret"`
}

// Fetch obtains one ephemeral token. Non-200 responses and malformed bodies
// are errors; the caller aborts the connect sequence.
func (c *CredentialClient) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("build credential request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("credential request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("credential endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read credential body: %w", err)
	}

	var parsed credentialResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("malformed credential payload: %w", err)
	}
	token := strings.TrimSpace(parsed.ClientSecret.Value)
	if token == "" {
		return "", fmt.Errorf("credential payload missing client_secret.value")
	}
	return token, nil
}
