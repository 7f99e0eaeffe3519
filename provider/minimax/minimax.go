// Package minimax implements text, speech, and video generation against the
// MiniMax platform APIs.
package minimax

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pitchcast/pitch-orchestrator/config"
	"github.com/pitchcast/pitch-orchestrator/provider"
)

// Name identifies the MiniMax provider by name.
const Name = "minimax"

func init() {
	must(provider.RegisterText(Name, textFactory))
	must(provider.RegisterTTS(Name, ttsFactory))
	must(provider.RegisterVideo(Name, videoFactory))
}

func must(err error) {
	if err != nil {
		fmt.Printf("registering minimax factory: %v\n", err)
	}
}

// client is the shared HTTP plumbing for every MiniMax capability.
type client struct {
	cfg config.MiniMax
	hc  *http.Client
}

func newClient(cfg *config.Config) (*client, error) {
	if cfg.MiniMax.APIKey == "" {
		return nil, provider.InvalidConfigError("MINIMAX_API_KEY not set")
	}
	return &client{
		cfg: cfg.MiniMax,
		hc:  &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// baseResp is the vendor's JSON error envelope. A non-zero status code means
// the call failed even when HTTP reported 200.
type baseResp struct {
	StatusCode int64  `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
}

func (b baseResp) err(op string) error {
	if b.StatusCode != 0 {
		return fmt.Errorf("minimax %s error %d: %s", op, b.StatusCode, b.StatusMsg)
	}
	return nil
}

func (c *client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	return c.do(req, out)
}

func (c *client) do(req *http.Request, out interface{}) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("calling minimax: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("minimax status %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing minimax response: %w", err)
	}
	return nil
}

func (c *client) close() error {
	c.hc.CloseIdleConnections()
	return nil
}
