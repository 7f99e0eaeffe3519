// Package config loads service configuration from the environment.
package config

import (
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Config holds every tunable for the API and its providers. It is loaded
// once at startup and treated as immutable afterwards.
type Config struct {
	ServerAddr string `envconfig:"SERVER_ADDR" default:":8000"`

	OutputDir string `envconfig:"OUTPUT_DIR" default:"./outputs"`
	UploadDir string `envconfig:"UPLOAD_DIR" default:"./uploads"`

	SentryDSN string `envconfig:"SENTRY_DSN"`
	Env       string `envconfig:"ENVIRONMENT" default:"dev"`

	EnablePersonalized bool `envconfig:"ENABLE_PERSONALIZED_PIPELINE" default:"true"`

	// Provider selection per capability plus ordered fallback chains.
	TextProvider  string `envconfig:"PROVIDER_TEXT" default:"minimax"`
	TTSProvider   string `envconfig:"PROVIDER_TTS" default:"minimax"`
	VideoProvider string `envconfig:"PROVIDER_VIDEO" default:"minimax"`

	TextFallback  []string `envconfig:"PROVIDER_TEXT_FALLBACK" default:"vllm,minimax"`
	TTSFallback   []string `envconfig:"PROVIDER_TTS_FALLBACK" default:"coqui,minimax"`
	VideoFallback []string `envconfig:"PROVIDER_VIDEO_FALLBACK" default:"sadtalker,minimax"`

	JobStore  JobStore
	MiniMax   MiniMax
	VLLM      VLLM
	Coqui     Coqui
	EdgeTTS   EdgeTTS
	SadTalker SadTalker
	Hosting   Hosting
}

// JobStore selects where job records live.
type JobStore struct {
	Backend   string `envconfig:"JOB_STORE" default:"memory"`
	RedisAddr string `envconfig:"JOB_STORE_REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int    `envconfig:"JOB_STORE_REDIS_DB"`
}

// MiniMax holds credentials and endpoints for the MiniMax platform APIs.
type MiniMax struct {
	APIKey  string `envconfig:"MINIMAX_API_KEY"`
	GroupID string `envconfig:"MINIMAX_GROUP_ID"`
	BaseURL string `envconfig:"MINIMAX_BASE_URL" default:"https://api.minimax.io/v1"`
}

// VLLM points at an OpenAI-compatible vLLM server.
type VLLM struct {
	BaseURL string `envconfig:"PROVIDER_VLLM_BASE_URL" default:"http://localhost:8000"`
	Model   string `envconfig:"PROVIDER_VLLM_MODEL" default:"meta-llama/Llama-3.1-70B-Instruct"`
	APIKey  string `envconfig:"PROVIDER_VLLM_API_KEY"`
}

// Coqui points at the XTTS sidecar service.
type Coqui struct {
	ServiceURL string `envconfig:"PROVIDER_COQUI_SERVICE_URL" default:"http://localhost:5050"`
	VoicesDir  string `envconfig:"PROVIDER_COQUI_VOICES_DIR" default:"./voices"`
	Device     string `envconfig:"PROVIDER_COQUI_DEVICE" default:"cuda"`
}

// EdgeTTS configures the Microsoft Edge read-aloud backend.
type EdgeTTS struct {
	DefaultVoice string `envconfig:"PROVIDER_EDGE_DEFAULT_VOICE" default:"en-US-JennyNeural"`
}

// SadTalker configures the local talking-head generator.
type SadTalker struct {
	CheckpointDir string `envconfig:"PROVIDER_SADTALKER_CHECKPOINT" default:"./models/sadtalker"`
	Device        string `envconfig:"PROVIDER_SADTALKER_DEVICE" default:"cuda"`
	Preprocess    string `envconfig:"PROVIDER_SADTALKER_PREPROCESS" default:"crop"`
	Still         bool   `envconfig:"PROVIDER_SADTALKER_STILL"`
	Enhancer      string `envconfig:"PROVIDER_SADTALKER_ENHANCER"`
}

// Hosting configures how face images get a publicly reachable URL.
// Mode "anon" posts to a keyless file host; mode "s3" uses an S3-compatible
// bucket (R2 works) fronted by PublicURL.
type Hosting struct {
	Mode      string `envconfig:"ASSET_HOST_MODE" default:"anon"`
	AnonURL   string `envconfig:"ASSET_HOST_ANON_URL" default:"https://uguu.se/upload"`
	Endpoint  string `envconfig:"ASSET_HOST_S3_ENDPOINT"`
	Bucket    string `envconfig:"ASSET_HOST_S3_BUCKET"`
	AccessKey string `envconfig:"ASSET_HOST_S3_ACCESS_KEY"`
	SecretKey string `envconfig:"ASSET_HOST_S3_SECRET_KEY"`
	PublicURL string `envconfig:"ASSET_HOST_S3_PUBLIC_URL"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "processing environment config")
	}
	cfg.TextProvider = strings.ToLower(cfg.TextProvider)
	cfg.TTSProvider = strings.ToLower(cfg.TTSProvider)
	cfg.VideoProvider = strings.ToLower(cfg.VideoProvider)
	cfg.TextFallback = lower(cfg.TextFallback)
	cfg.TTSFallback = lower(cfg.TTSFallback)
	cfg.VideoFallback = lower(cfg.VideoFallback)
	return &cfg, nil
}

func lower(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(strings.ToLower(n))
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}
