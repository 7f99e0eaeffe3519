package vllm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pitchcast/pitch-orchestrator/config"
	"github.com/pitchcast/pitch-orchestrator/provider"
)

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"http://localhost:8000", "http://localhost:8000/v1"},
		{"http://localhost:8000/", "http://localhost:8000/v1"},
		{"http://localhost:8000/v1", "http://localhost:8000/v1"},
		{"http://localhost:8000/v1/", "http://localhost:8000/v1"},
	}
	for _, tt := range tests {
		if got := normalizeBaseURL(tt.in); got != tt.want {
			t.Errorf("normalizeBaseURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"model":"llama","choices":[{"message":{"role":"assistant","content":"hi"}}]}`)
	}))
	defer srv.Close()

	p, err := factory(&config.Config{VLLM: config.VLLM{BaseURL: srv.URL, Model: "llama"}})
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.Generate(context.Background(), provider.TextRequest{Prompt: "hello"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Content != "hi" || got.Model != "llama" {
		t.Errorf("Generate() = %+v", got)
	}
}

func TestGenerateSurfacesErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not loaded"}`, 500)
	}))
	defer srv.Close()

	p, err := factory(&config.Config{VLLM: config.VLLM{BaseURL: srv.URL}})
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Generate(context.Background(), provider.TextRequest{Prompt: "hello"})
	if err == nil || !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("Generate() error = %v, want error body surfaced", err)
	}
}
