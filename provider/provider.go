// Package provider defines the pluggable generation backends and the
// registry that selects between them with fallback.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/pitchcast/pitch-orchestrator/config"
)

// Capability identifies one kind of generation work.
type Capability string

const (
	Text  = Capability("text")
	TTS   = Capability("tts")
	Video = Capability("video")
)

var (
	ErrRegistered = errors.New("provider is already registered")
	ErrNotFound   = errors.New("provider not found")
)

// InvalidConfigError is returned by a factory whose vendor configuration is
// missing or unusable. It surfaces to the registry's fallback loop.
type InvalidConfigError string

func (err InvalidConfigError) Error() string {
	return string(err)
}

// TimeoutError is returned when a polling wait exhausts its overall budget.
// It is distinct from an upstream failure so callers can tell "the vendor
// never finished" from "the vendor said no".
type TimeoutError struct {
	Op     string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Budget)
}

// TextRequest is a single prompt/completion exchange.
type TextRequest struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// TokenUsage reports token accounting when the vendor supplies it.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TextResult is the output of one text generation call.
type TextResult struct {
	Content string
	Model   string
	Usage   *TokenUsage
}

// SpeechRequest asks for synthesized speech.
type SpeechRequest struct {
	Text    string
	VoiceID string
	Speed   float64
	Emotion string
}

// SpeechResult carries synthesized audio.
type SpeechResult struct {
	Audio      []byte
	Format     string
	SampleRate int
	Duration   time.Duration
}

// CloneRequest asks for a voice clone from a sample recording.
type CloneRequest struct {
	Audio    []byte
	Name     string
	Filename string
}

// CloneResult identifies a cloned voice usable in later speech requests.
type CloneResult struct {
	VoiceID  string
	Name     string
	Provider string
}

// VideoRequest asks for prompt-driven video generation.
type VideoRequest struct {
	Prompt   string
	Model    string
	Duration int
}

// TalkingHeadRequest asks for a face animated to match an audio track.
// AudioPath and ImagePath are local files; ImageURL is a publicly reachable
// copy of the face image for backends that cannot read local files.
type TalkingHeadRequest struct {
	AudioPath string
	ImagePath string
	ImageURL  string
	Prompt    string
	Duration  int
}

// VideoResult carries generated video as bytes, a local path, or both.
type VideoResult struct {
	Video    []byte
	Path     string
	TaskID   string
	Duration int
}

// TextProvider generates text from prompts.
type TextProvider interface {
	Name() string
	Generate(context.Context, TextRequest) (*TextResult, error)
	Close() error
}

// TTSProvider synthesizes speech and, where supported, clones voices.
type TTSProvider interface {
	Name() string
	Synthesize(context.Context, SpeechRequest) (*SpeechResult, error)
	CloneVoice(context.Context, CloneRequest) (*CloneResult, error)

	// Voices lists built-in voice ids mapped to human descriptions.
	Voices() map[string]string
	Close() error
}

// VideoProvider generates video from prompts or animates a still face.
type VideoProvider interface {
	Name() string
	Generate(context.Context, VideoRequest) (*VideoResult, error)
	TalkingHead(context.Context, TalkingHeadRequest) (*VideoResult, error)

	// NeedsHostedImage reports whether TalkingHead requires ImageURL to be
	// set (vendor-hosted generation) rather than a local ImagePath.
	NeedsHostedImage() bool
	Close() error
}

// Factories build provider instances from loaded configuration.
type (
	TextFactory  func(*config.Config) (TextProvider, error)
	TTSFactory   func(*config.Config) (TTSProvider, error)
	VideoFactory func(*config.Config) (VideoProvider, error)
)

var (
	textFactories  = map[string]func(*config.Config) (TextProvider, error){}
	ttsFactories   = map[string]func(*config.Config) (TTSProvider, error){}
	videoFactories = map[string]func(*config.Config) (VideoProvider, error){}
)

// RegisterText registers a text provider factory under name.
func RegisterText(name string, f TextFactory) error {
	if _, ok := textFactories[name]; ok {
		return ErrRegistered
	}
	textFactories[name] = f
	return nil
}

// RegisterTTS registers a TTS provider factory under name.
func RegisterTTS(name string, f TTSFactory) error {
	if _, ok := ttsFactories[name]; ok {
		return ErrRegistered
	}
	ttsFactories[name] = f
	return nil
}

// RegisterVideo registers a video provider factory under name.
func RegisterVideo(name string, f VideoFactory) error {
	if _, ok := videoFactories[name]; ok {
		return ErrRegistered
	}
	videoFactories[name] = f
	return nil
}

// Registered returns the registered provider names for each capability,
// alphabetically ordered.
func Registered() map[Capability][]string {
	return map[Capability][]string{
		Text:  names(textFactories),
		TTS:   names(ttsFactories),
		Video: names(videoFactories),
	}
}

func names[T any](m map[string]T) []string {
	ns := make([]string, 0, len(m))
	for n := range m {
		ns = append(ns, n)
	}
	sort.Strings(ns)
	return ns
}

// ExhaustedError reports that no candidate in a fallback chain could be
// constructed. It keeps the full candidate list and the last cause.
type ExhaustedError struct {
	Capability Capability
	Tried      []string
	Last       error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("no available %s provider: tried %v: last error: %v",
		e.Capability, e.Tried, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }
