// Package coqui implements speech synthesis and voice cloning against a
// local XTTS sidecar service.
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pitchcast/pitch-orchestrator/config"
	"github.com/pitchcast/pitch-orchestrator/provider"
)

// Name identifies the Coqui XTTS provider by name.
const Name = "coqui"

func init() {
	if err := provider.RegisterTTS(Name, factory); err != nil {
		fmt.Printf("registering coqui factory: %v\n", err)
	}
}

type ttsProvider struct {
	baseURL string
	hc      *http.Client
}

func factory(cfg *config.Config) (provider.TTSProvider, error) {
	if cfg.Coqui.ServiceURL == "" {
		return nil, provider.InvalidConfigError("PROVIDER_COQUI_SERVICE_URL not set")
	}
	p := &ttsProvider{
		baseURL: strings.TrimRight(cfg.Coqui.ServiceURL, "/"),
		hc:      &http.Client{Timeout: 5 * time.Minute},
	}
	if err := p.health(); err != nil {
		return nil, provider.InvalidConfigError(
			fmt.Sprintf("coqui sidecar at %s unreachable: %v", p.baseURL, err))
	}
	return p, nil
}

func (p *ttsProvider) Name() string { return Name }

// health probes the sidecar so an unreachable service surfaces at
// construction, where the registry fallback loop can route around it.
func (p *ttsProvider) health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := p.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health status %d", resp.StatusCode)
	}
	return nil
}

type synthesizeRequest struct {
	Text     string  `json:"text"`
	VoiceID  string  `json:"voice_id,omitempty"`
	Speed    float64 `json:"speed"`
	Language string  `json:"language"`
}

func (p *ttsProvider) Synthesize(ctx context.Context, req provider.SpeechRequest) (*provider.SpeechResult, error) {
	speed := req.Speed
	if speed == 0 {
		speed = 1.0
	}
	body, err := json.Marshal(synthesizeRequest{
		Text:     req.Text,
		VoiceID:  req.VoiceID,
		Speed:    speed,
		Language: "en",
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling coqui: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui status %d: %s", resp.StatusCode, audio)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("coqui: empty audio in response")
	}

	return &provider.SpeechResult{
		Audio:      audio,
		Format:     "wav",
		SampleRate: 24000,
		Duration:   estimateDuration(req.Text, speed),
	}, nil
}

func estimateDuration(text string, speed float64) time.Duration {
	words := len(strings.Fields(text))
	secs := float64(words) / 150 * 60 / speed
	return time.Duration(secs * float64(time.Second))
}

type cloneResponse struct {
	VoiceID string `json:"voice_id"`
	Error   string `json:"error"`
}

func (p *ttsProvider) CloneVoice(ctx context.Context, req provider.CloneRequest) (*provider.CloneResult, error) {
	filename := req.Filename
	if filename == "" {
		filename = "sample.wav"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("building clone form: %w", err)
	}
	if _, err := fw.Write(req.Audio); err != nil {
		return nil, fmt.Errorf("building clone form: %w", err)
	}
	if err := mw.WriteField("name", req.Name); err != nil {
		return nil, fmt.Errorf("building clone form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("building clone form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/clone", &buf)
	if err != nil {
		return nil, fmt.Errorf("creating clone request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	httpResp, err := p.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling coqui: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading clone response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui status %d: %s", httpResp.StatusCode, respBody)
	}

	var resp cloneResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parsing clone response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("coqui clone error: %s", resp.Error)
	}
	if resp.VoiceID == "" {
		return nil, fmt.Errorf("coqui clone: no voice_id in response")
	}

	return &provider.CloneResult{
		VoiceID:  resp.VoiceID,
		Name:     req.Name,
		Provider: Name,
	}, nil
}

func (p *ttsProvider) Voices() map[string]string {
	return map[string]string{
		"default": "XTTS built-in speaker",
	}
}

func (p *ttsProvider) Close() error {
	p.hc.CloseIdleConnections()
	return nil
}
