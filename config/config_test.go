package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerAddr != ":8000" {
		t.Errorf("ServerAddr = %q", cfg.ServerAddr)
	}
	if cfg.TextProvider != "minimax" || cfg.TTSProvider != "minimax" || cfg.VideoProvider != "minimax" {
		t.Errorf("default providers = %s/%s/%s", cfg.TextProvider, cfg.TTSProvider, cfg.VideoProvider)
	}
	if cfg.JobStore.Backend != "memory" {
		t.Errorf("JobStore.Backend = %q", cfg.JobStore.Backend)
	}
	if !cfg.EnablePersonalized {
		t.Error("EnablePersonalized = false, want true by default")
	}
}

func TestLoadNormalizesProviderNames(t *testing.T) {
	t.Setenv("PROVIDER_TEXT", "VLLM")
	t.Setenv("PROVIDER_TTS_FALLBACK", " Coqui , EDGETTS ,, minimax ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TextProvider != "vllm" {
		t.Errorf("TextProvider = %q, want lowercased", cfg.TextProvider)
	}
	want := []string{"coqui", "edgetts", "minimax"}
	if diff := cmp.Diff(want, cfg.TTSFallback); diff != "" {
		t.Errorf("TTSFallback mismatch (-want +got):\n%s", diff)
	}
}
