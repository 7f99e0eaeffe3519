// Package ai is the task-shaped facade over the provider registry: callers
// ask for research, scripts, speech, or video and never touch vendor APIs or
// provider selection directly.
package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/pitchcast/pitch-orchestrator/provider"
)

// ResearchRequest carries everything the research prompt needs.
type ResearchRequest struct {
	CompanyURL        string
	CompanyName       string
	AdditionalContext string
	ScrapedData       string
}

// ScriptRequest carries everything the script prompt needs.
type ScriptRequest struct {
	Research   map[string]interface{}
	OurProduct string
	SenderName string
}

// Service routes generation tasks to whichever provider the registry
// resolves, and cleans the raw model output into usable values.
type Service struct {
	registry *provider.Registry
	log      *logrus.Logger
}

func NewService(registry *provider.Registry, log *logrus.Logger) *Service {
	return &Service{registry: registry, log: log}
}

// Research asks the text provider for a company research profile and decodes
// it. The result is passed through as a raw map: downstream consumers pick
// the keys they understand and ignore the rest.
func (s *Service) Research(ctx context.Context, req ResearchRequest) (map[string]interface{}, error) {
	p, err := s.registry.Text("")
	if err != nil {
		return nil, err
	}

	prompt := fill(researchPrompt, map[string]string{
		"company_url":        req.CompanyURL,
		"company_name":       orDash(req.CompanyName),
		"additional_context": orDash(req.AdditionalContext),
		"scraped_data":       orDash(req.ScrapedData),
	})

	result, err := p.Generate(ctx, provider.TextRequest{Prompt: prompt, MaxTokens: 2000})
	if err != nil {
		return nil, fmt.Errorf("generating research: %w", err)
	}

	research, err := parseJSONResponse(result.Content)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"provider": p.Name(),
		"model":    result.Model,
	}).Debug("research profile generated")
	return research, nil
}

// Script asks the text provider for a spoken pitch script and extracts the
// narration from the labeled response.
func (s *Service) Script(ctx context.Context, req ScriptRequest) (string, error) {
	p, err := s.registry.Text("")
	if err != nil {
		return "", err
	}

	profile, err := json.MarshalIndent(req.Research, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding research profile: %w", err)
	}
	product := req.OurProduct
	if product == "" {
		product = "our product"
	}
	sender := req.SenderName
	if sender == "" {
		sender = "our team"
	}

	prompt := fill(scriptPrompt, map[string]string{
		"our_product":      product,
		"sender_name":      sender,
		"research_profile": string(profile),
	})

	result, err := p.Generate(ctx, provider.TextRequest{Prompt: prompt, MaxTokens: 1000})
	if err != nil {
		return "", fmt.Errorf("generating script: %w", err)
	}

	script := cleanScript(result.Content)
	if script == "" {
		return "", fmt.Errorf("generated script is empty")
	}
	return script, nil
}

// Speech synthesizes narration audio.
func (s *Service) Speech(ctx context.Context, req provider.SpeechRequest) (*provider.SpeechResult, error) {
	p, err := s.registry.TTS("")
	if err != nil {
		return nil, err
	}
	return p.Synthesize(ctx, req)
}

// CloneVoice builds a reusable cloned voice from a sample recording.
func (s *Service) CloneVoice(ctx context.Context, req provider.CloneRequest) (*provider.CloneResult, error) {
	p, err := s.registry.TTS("")
	if err != nil {
		return nil, err
	}
	return p.CloneVoice(ctx, req)
}

// Video generates prompt-driven video.
func (s *Service) Video(ctx context.Context, req provider.VideoRequest) (*provider.VideoResult, error) {
	p, err := s.registry.Video("")
	if err != nil {
		return nil, err
	}
	return p.Generate(ctx, req)
}

// TalkingHead animates a face image to match narration audio.
func (s *Service) TalkingHead(ctx context.Context, req provider.TalkingHeadRequest) (*provider.VideoResult, error) {
	p, err := s.registry.Video("")
	if err != nil {
		return nil, err
	}
	return p.TalkingHead(ctx, req)
}

// NeedsHostedImage reports whether the active video provider requires face
// images at a public URL. Pipelines call this once at start.
func (s *Service) NeedsHostedImage() (bool, error) {
	p, err := s.registry.Video("")
	if err != nil {
		return false, err
	}
	return p.NeedsHostedImage(), nil
}

// Voices lists the built-in voices of the active TTS provider.
func (s *Service) Voices() (map[string]string, error) {
	p, err := s.registry.TTS("")
	if err != nil {
		return nil, err
	}
	return p.Voices(), nil
}

// ProviderInfo reports the registered provider names per capability.
func (s *Service) ProviderInfo() map[provider.Capability][]string {
	return provider.Registered()
}

// Close releases every cached provider instance.
func (s *Service) Close() {
	s.registry.CloseAll()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
