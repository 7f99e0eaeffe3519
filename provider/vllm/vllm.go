// Package vllm implements text generation against an OpenAI-compatible vLLM
// server.
package vllm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pitchcast/pitch-orchestrator/config"
	"github.com/pitchcast/pitch-orchestrator/provider"
)

// Name identifies the vLLM provider by name.
const Name = "vllm"

func init() {
	if err := provider.RegisterText(Name, factory); err != nil {
		fmt.Printf("registering vllm factory: %v\n", err)
	}
}

type textProvider struct {
	baseURL string
	model   string
	apiKey  string
	hc      *http.Client
}

func factory(cfg *config.Config) (provider.TextProvider, error) {
	if cfg.VLLM.BaseURL == "" {
		return nil, provider.InvalidConfigError("PROVIDER_VLLM_BASE_URL not set")
	}
	return &textProvider{
		baseURL: normalizeBaseURL(cfg.VLLM.BaseURL),
		model:   cfg.VLLM.Model,
		apiKey:  cfg.VLLM.APIKey,
		hc:      &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// normalizeBaseURL ensures the base URL carries the /v1 prefix the
// OpenAI-compatible API routes live under.
func normalizeBaseURL(u string) string {
	u = strings.TrimRight(u, "/")
	if !strings.HasSuffix(u, "/v1") {
		u += "/v1"
	}
	return u
}

func (p *textProvider) Name() string { return Name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *provider.TokenUsage `json:"usage"`
}

func (p *textProvider) Generate(ctx context.Context, req provider.TextRequest) (*provider.TextResult, error) {
	msgs := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.Prompt})

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	body, err := json.Marshal(chatRequest{
		Model:       p.model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	httpResp, err := p.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling vllm: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vllm status %d: %s", httpResp.StatusCode, respBody)
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parsing vllm response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("vllm: empty choices in response")
	}

	model := resp.Model
	if model == "" {
		model = p.model
	}
	return &provider.TextResult{
		Content: resp.Choices[0].Message.Content,
		Model:   model,
		Usage:   resp.Usage,
	}, nil
}

func (p *textProvider) Close() error {
	p.hc.CloseIdleConnections()
	return nil
}
