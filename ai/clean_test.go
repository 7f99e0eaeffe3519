package ai

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseJSONResponse(t *testing.T) {
	want := map[string]interface{}{"company_name": "Acme", "industry": "logistics"}

	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "bare json",
			raw:  `{"company_name":"Acme","industry":"logistics"}`,
		},
		{
			name: "surrounding whitespace",
			raw:  "\n\n  {\"company_name\":\"Acme\",\"industry\":\"logistics\"}  \n",
		},
		{
			name: "fenced with language tag",
			raw:  "```json\n{\"company_name\":\"Acme\",\"industry\":\"logistics\"}\n```",
		},
		{
			name: "fenced without language tag",
			raw:  "```\n{\"company_name\":\"Acme\",\"industry\":\"logistics\"}\n```",
		},
		{
			name: "thinking block before json",
			raw:  "<think>\nlet me reason about this\n{not json}\n</think>\n{\"company_name\":\"Acme\",\"industry\":\"logistics\"}",
		},
		{
			name: "prose around the object",
			raw:  "Here is the profile you asked for:\n{\"company_name\":\"Acme\",\"industry\":\"logistics\"}\nLet me know if you need more.",
		},
		{
			name: "think block plus fence plus prose",
			raw:  "<think>hmm</think>\nSure!\n```json\n{\"company_name\":\"Acme\",\"industry\":\"logistics\"}\n```",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseJSONResponse(tt.raw)
			if err != nil {
				t.Fatalf("parseJSONResponse() error = %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("parseJSONResponse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseJSONResponseNestedBraces(t *testing.T) {
	raw := `{"a":{"b":{"c":1}},"d":"x"}`
	got, err := parseJSONResponse(raw)
	if err != nil {
		t.Fatalf("parseJSONResponse() error = %v", err)
	}
	if _, ok := got["a"].(map[string]interface{}); !ok {
		t.Errorf("nested object lost: %v", got)
	}
}

func TestParseJSONResponseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "no json at all", raw: "I could not find anything about that company."},
		{name: "empty", raw: ""},
		{name: "broken json", raw: `{"company_name": "Acme", }`},
		{name: "only a thinking block", raw: "<think>{\"a\":1}</think>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseJSONResponse(tt.raw)
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("error = %v, want *ParseError", err)
			}
		})
	}
}

func TestCleanScript(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "both markers",
			raw:  "SCRIPT:\nHi there, quick question about your fleet.\nWORD_COUNT: 8",
			want: "Hi there, quick question about your fleet.",
		},
		{
			name: "script marker only",
			raw:  "SCRIPT:\nHi there, quick question.",
			want: "Hi there, quick question.",
		},
		{
			name: "no markers falls back to cleaned text",
			raw:  "Hi there, quick question.",
			want: "Hi there, quick question.",
		},
		{
			name: "thinking block before markers",
			raw:  "<think>drafting...</think>\nSCRIPT:\nHi there.\nWORD_COUNT: 2",
			want: "Hi there.",
		},
		{
			name: "fenced response with markers",
			raw:  "```\nSCRIPT:\nHi there.\nWORD_COUNT: 2\n```",
			want: "Hi there.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanScript(tt.raw); got != tt.want {
				t.Errorf("cleanScript() = %q, want %q", got, tt.want)
			}
		})
	}
}

// The prompt templates embed JSON examples; substitution must leave those
// braces alone.
func TestFillLeavesLiteralBracesAlone(t *testing.T) {
	got := fill(researchPrompt, map[string]string{
		"company_url":        "https://acme.test",
		"company_name":       "Acme",
		"additional_context": "-",
		"scraped_data":       "-",
	})
	if strings.Contains(got, "{company_url}") {
		t.Error("placeholder {company_url} not substituted")
	}
	if !strings.Contains(got, `"personalization_hooks"`) {
		t.Error("JSON example damaged by substitution")
	}
	if !strings.Contains(got, "{\n") {
		t.Error("literal braces of the JSON example were lost")
	}
}
