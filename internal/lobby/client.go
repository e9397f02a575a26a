package lobby

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"example.com/pegboard/internal/auth"
)

// TokenSigner mints the bearer token attached to each presence request.
type TokenSigner interface {
	Sign(subject, scope string, ttl time.Duration) (string, error)
}

// Client posts signals to a lobby counter running in another process.
type Client struct {
	url      string
	signer   TokenSigner
	tokenTTL time.Duration
	http     *http.Client
}

func NewClient(baseURL string, signer TokenSigner, tokenTTL, timeout time.Duration) *Client {
	return &Client{
		url:      strings.TrimRight(baseURL, "/") + "/lobby/presence",
		signer:   signer,
		tokenTTL: tokenTTL,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) Send(ctx context.Context, sig Signal) error {
	body, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	token, err := c.signer.Sign("room-controller", auth.ScopePresence, c.tokenTTL)
	if err != nil {
		return fmt.Errorf("lobby: sign token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("lobby: post signal: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("lobby: post signal: status %d", resp.StatusCode)
	}
	return nil
}
