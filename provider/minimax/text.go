package minimax

import (
	"context"
	"fmt"

	"github.com/pitchcast/pitch-orchestrator/config"
	"github.com/pitchcast/pitch-orchestrator/provider"
)

const textModel = "MiniMax-M2"

type textProvider struct {
	*client
}

func textFactory(cfg *config.Config) (provider.TextProvider, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &textProvider{client: c}, nil
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
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage    *provider.TokenUsage `json:"usage"`
	BaseResp baseResp             `json:"base_resp"`
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

	var resp chatResponse
	err := p.postJSON(ctx, "/chat/completions", chatRequest{
		Model:       textModel,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if err := resp.BaseResp.err("text"); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("minimax text: empty choices in response")
	}
	return &provider.TextResult{
		Content: resp.Choices[0].Message.Content,
		Model:   textModel,
		Usage:   resp.Usage,
	}, nil
}

func (p *textProvider) Close() error { return p.close() }
