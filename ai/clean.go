package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseError reports that a model response contained no usable JSON after
// cleaning. Raw holds a snippet of the cleaned text for diagnostics.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no valid JSON in model response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var thinkBlockRE = regexp.MustCompile(`(?s)<think>.*?</think>`)

// stripNoise removes reasoning blocks and the first Markdown code fence,
// keeping the fenced content. Models wrap JSON in fences or prepend thinking
// blocks depending on vendor and mood.
func stripNoise(s string) string {
	s = strings.TrimSpace(s)
	s = thinkBlockRE.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = unfence(s)
	return strings.TrimSpace(s)
}

// unfence replaces the first triple-backtick fenced block with its contents.
// An optional language tag after the opening fence is dropped.
func unfence(s string) string {
	open := strings.Index(s, "```")
	if open < 0 {
		return s
	}
	rest := s[open+3:]
	// Language tag runs to the first newline.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		tag := strings.TrimSpace(rest[:nl])
		if tag != "" && !strings.ContainsAny(tag, " \t{") {
			rest = rest[nl+1:]
		}
	}
	closing := strings.Index(rest, "```")
	if closing < 0 {
		return s[:open] + rest
	}
	return s[:open] + rest[:closing] + rest[closing+3:]
}

// parseJSONResponse cleans a raw model response and decodes the outermost
// JSON object in it.
func parseJSONResponse(raw string) (map[string]interface{}, error) {
	cleaned := stripNoise(raw)

	start := strings.IndexByte(cleaned, '{')
	end := strings.LastIndexByte(cleaned, '}')
	if start < 0 || end < start {
		return nil, &ParseError{Raw: snippet(cleaned), Err: fmt.Errorf("no JSON object found")}
	}

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &out); err != nil {
		return nil, &ParseError{Raw: snippet(cleaned), Err: err}
	}
	return out, nil
}

// cleanScript extracts the narration between the SCRIPT: and WORD_COUNT:
// markers the prompt asks for. When the model skips the markers the cleaned
// text is returned unchanged.
func cleanScript(raw string) string {
	cleaned := stripNoise(raw)

	i := strings.Index(cleaned, "SCRIPT:")
	if i < 0 {
		return cleaned
	}
	script := cleaned[i+len("SCRIPT:"):]
	if j := strings.Index(script, "WORD_COUNT:"); j >= 0 {
		script = script[:j]
	}
	return strings.TrimSpace(script)
}

func snippet(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
