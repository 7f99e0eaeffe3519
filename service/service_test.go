package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/pitchcast/pitch-orchestrator/ai"
	"github.com/pitchcast/pitch-orchestrator/config"
	"github.com/pitchcast/pitch-orchestrator/pipeline"
	"github.com/pitchcast/pitch-orchestrator/provider"
	"github.com/pitchcast/pitch-orchestrator/scraper"
	"github.com/pitchcast/pitch-orchestrator/service/exceptions"
	"github.com/pitchcast/pitch-orchestrator/voiceprofile"
)

func testServer(t *testing.T, cfg *config.Config) (Server, pipeline.Store) {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{EnablePersonalized: true}
	}
	cfg.OutputDir = t.TempDir()

	logger, _ := logtest.NewNullLogger()
	profiles, err := voiceprofile.Open(filepath.Join(t.TempDir(), "profiles.json"))
	if err != nil {
		t.Fatal(err)
	}
	store := pipeline.NewMemoryStore()

	return Server{
		Config:      cfg,
		AI:          ai.NewService(provider.NewRegistry(cfg, logger), logger),
		Scraper:     scraper.NewClient(),
		Jobs:        store,
		Profiles:    profiles,
		Logger:      logger,
		ErrReporter: &exceptions.NoopReporter{},
	}, store
}

func do(t *testing.T, srv Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestBadPathsReturnPlatformError(t *testing.T) {
	srv, _ := testServer(t, nil)

	for _, path := range []string{"/", "/api", "/api/unknown", "/metrics"} {
		w := do(t, srv, "GET", path, "")
		if w.Code != 400 {
			t.Errorf("GET %s = %d, want 400", path, w.Code)
		}
		var perr PlatformError
		if err := json.Unmarshal(w.Body.Bytes(), &perr); err != nil {
			t.Fatalf("GET %s: body not a platform error: %v", path, err)
		}
		if perr.Ok || perr.Status != 400 || perr.Rid == 0 {
			t.Errorf("GET %s envelope = %+v", path, perr)
		}
	}
}

func TestValidationFailures(t *testing.T) {
	srv, _ := testServer(t, nil)

	tests := []struct {
		method, path, body string
		want               int
	}{
		{"POST", "/api/research", `{}`, 400},
		{"POST", "/api/research", `not json`, 400},
		{"POST", "/api/script", `{"research":{}}`, 400},
		{"POST", "/api/voice", `{"voice_id":"v"}`, 400},
		{"POST", "/api/video", `{"duration":6}`, 400},
		{"POST", "/api/generate", `{}`, 400},
	}
	for _, tt := range tests {
		w := do(t, srv, tt.method, tt.path, tt.body)
		if w.Code != tt.want {
			t.Errorf("%s %s = %d, want %d: %s", tt.method, tt.path, w.Code, tt.want, w.Body)
		}
	}
}

func TestStatusUnknownJob(t *testing.T) {
	srv, _ := testServer(t, nil)

	for _, path := range []string{
		"/api/generate/status/nope",
		"/api/video/status/nope",
		"/api/personalized/status/nope",
	} {
		w := do(t, srv, "GET", path, "")
		if w.Code != 404 {
			t.Errorf("GET %s = %d, want 404", path, w.Code)
		}
	}
}

func TestStatusReturnsJobRecord(t *testing.T) {
	srv, store := testServer(t, nil)

	job := pipeline.NewJob(pipeline.TypeStandard, pipeline.Request{CompanyURL: "https://acme.test"})
	job.Status = pipeline.StatusScripting
	job.Progress = 25
	if err := store.Create(job); err != nil {
		t.Fatal(err)
	}

	w := do(t, srv, "GET", "/api/generate/status/"+job.ID, "")
	if w.Code != 200 {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var resp struct {
		Ok  bool          `json:"ok"`
		Job *pipeline.Job `json:"job"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Ok || resp.Job.Status != pipeline.StatusScripting || resp.Job.Progress != 25 {
		t.Errorf("response = %+v", resp.Job)
	}
}

func TestPersonalizedDisabled(t *testing.T) {
	srv, _ := testServer(t, &config.Config{EnablePersonalized: false})

	if w := do(t, srv, "POST", "/api/personalized/generate", ""); w.Code != 503 {
		t.Errorf("POST personalized/generate = %d, want 503", w.Code)
	}
	if w := do(t, srv, "GET", "/api/personalized/status/x", ""); w.Code != 503 {
		t.Errorf("GET personalized/status = %d, want 503", w.Code)
	}
}

func TestVoiceProfileRoutes(t *testing.T) {
	srv, _ := testServer(t, nil)

	p, err := srv.Profiles.Add("demo", "voice-1", "minimax")
	if err != nil {
		t.Fatal(err)
	}

	w := do(t, srv, "GET", "/api/voice/profiles", "")
	if w.Code != 200 || !strings.Contains(w.Body.String(), "demo") {
		t.Errorf("list = %d: %s", w.Code, w.Body)
	}

	w = do(t, srv, "GET", "/api/voice/profiles/"+p.ID, "")
	if w.Code != 200 {
		t.Errorf("get = %d: %s", w.Code, w.Body)
	}

	w = do(t, srv, "DELETE", "/api/voice/profiles/"+p.ID, "")
	if w.Code != 200 {
		t.Errorf("delete = %d: %s", w.Code, w.Body)
	}

	w = do(t, srv, "GET", "/api/voice/profiles/"+p.ID, "")
	if w.Code != 404 {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestDownloadRejectsTraversal(t *testing.T) {
	srv, _ := testServer(t, nil)

	for _, name := range []string{"..%2F..%2Fetc%2Fpasswd", "nope.mp3"} {
		w := do(t, srv, "GET", "/api/voice/download/"+name, "")
		if w.Code != 400 && w.Code != 404 {
			t.Errorf("download %q = %d, want 400 or 404", name, w.Code)
		}
	}
}

func TestProvidersEndpoint(t *testing.T) {
	srv, _ := testServer(t, &config.Config{
		TextProvider:  "minimax",
		TTSProvider:   "coqui",
		VideoProvider: "sadtalker",
	})

	w := do(t, srv, "GET", "/api/providers", "")
	if w.Code != 200 {
		t.Fatalf("providers = %d: %s", w.Code, w.Body)
	}
	var resp struct {
		Ok       bool              `json:"ok"`
		Selected map[string]string `json:"selected"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Ok || resp.Selected["tts"] != "coqui" {
		t.Errorf("response = %+v", resp)
	}
}
