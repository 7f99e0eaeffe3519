// Package service is the HTTP surface: synchronous research/script/voice
// calls plus the asynchronous pipeline-start and status-poll endpoints.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pitchcast/pitch-orchestrator/ai"
	"github.com/pitchcast/pitch-orchestrator/assets"
	"github.com/pitchcast/pitch-orchestrator/config"
	"github.com/pitchcast/pitch-orchestrator/pipeline"
	"github.com/pitchcast/pitch-orchestrator/provider"
	"github.com/pitchcast/pitch-orchestrator/scraper"
	"github.com/pitchcast/pitch-orchestrator/service/exceptions"
	"github.com/pitchcast/pitch-orchestrator/voiceprofile"
)

type Server struct {
	Config      *config.Config
	AI          *ai.Service
	Scraper     *scraper.Client
	Runner      *pipeline.Runner
	Jobs        pipeline.Store
	Profiles    *voiceprofile.Store
	Logger      *logrus.Logger
	ErrReporter exceptions.Reporter

	request
}

func (s Server) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	s.request = newRequest(rw, r)
	s.serve()
	defer s.request.finalize()
}

func (s *Server) serve() bool {
	if s.chop() != "api" {
		return s.writeerror("bad request path", 400, nil)
	}
	switch s.chop() {
	case "research":
		if s.method() == "POST" {
			return s.postResearch()
		}
	case "script":
		if s.method() == "POST" {
			return s.postScript()
		}
	case "voice":
		return s.serveVoice()
	case "video":
		return s.serveJobFamily(pipeline.TypeVideo)
	case "generate":
		return s.serveJobFamily(pipeline.TypeStandard)
	case "personalized":
		return s.servePersonalized()
	case "providers":
		if s.method() == "GET" {
			return s.getProviders()
		}
	}
	return s.writeerror("bad request path", 400, nil)
}

func (s *Server) serveVoice() bool {
	switch s.chop() {
	case "":
		if s.method() == "POST" {
			return s.postVoice()
		}
	case "voices":
		if s.method() == "GET" {
			return s.getVoices()
		}
	case "clone":
		if s.method() == "POST" {
			return s.postVoiceClone()
		}
	case "profiles":
		switch id := s.chop(); {
		case id == "" && s.method() == "GET":
			return s.writebody(map[string]interface{}{"ok": true, "profiles": s.Profiles.List()})
		case id != "" && s.method() == "GET":
			p, ok := s.Profiles.Get(id)
			if !ok {
				return s.writeerror("voice profile not found", 404, nil)
			}
			return s.writebody(map[string]interface{}{"ok": true, "profile": p})
		case id != "" && s.method() == "DELETE":
			if err := s.Profiles.Delete(id); err != nil {
				return s.writeerror("voice profile not found", 404, err)
			}
			return s.writebody(map[string]interface{}{"ok": true})
		}
	case "download":
		if s.method() == "GET" {
			return s.getDownload(s.chop())
		}
	}
	return s.writeerror("bad request path", 400, nil)
}

// serveJobFamily handles the POST-create / GET-status pair shared by
// /api/video and /api/generate.
func (s *Server) serveJobFamily(t pipeline.JobType) bool {
	switch s.chop() {
	case "":
		if s.method() == "POST" {
			if t == pipeline.TypeVideo {
				return s.postVideoJob()
			}
			return s.postGenerate()
		}
	case "status":
		if s.method() == "GET" {
			return s.getStatus(s.chop())
		}
	}
	return s.writeerror("bad request path", 400, nil)
}

func (s *Server) servePersonalized() bool {
	if !s.Config.EnablePersonalized {
		return s.writeerror("personalized pipeline is disabled", 503, nil)
	}
	switch s.chop() {
	case "generate":
		if s.method() == "POST" {
			return s.postPersonalized()
		}
	case "status":
		if s.method() == "GET" {
			return s.getStatus(s.chop())
		}
	}
	return s.writeerror("bad request path", 400, nil)
}

func (s *Server) postResearch() bool {
	var req struct {
		CompanyURL        string `json:"company_url"`
		CompanyName       string `json:"company_name"`
		AdditionalContext string `json:"additional_context"`
	}
	if !s.UnmarshalJSON(&req) {
		return false
	}
	if req.CompanyURL == "" {
		return s.writeerror("company_url is required", 400, nil)
	}

	info, err := s.Scraper.Scrape(s.ctx, req.CompanyURL)
	if err != nil {
		return s.writeerror("scraping company site failed", 502, err)
	}
	name := req.CompanyName
	if name == "" {
		name = info.Name
	}
	research, err := s.AI.Research(s.ctx, ai.ResearchRequest{
		CompanyURL:        req.CompanyURL,
		CompanyName:       name,
		AdditionalContext: req.AdditionalContext,
		ScrapedData:       info.PromptContext(),
	})
	if err != nil {
		return s.aiError("research failed", err)
	}
	return s.writebody(map[string]interface{}{
		"ok":           true,
		"research":     research,
		"company_info": info,
	})
}

func (s *Server) postScript() bool {
	var req struct {
		Research   map[string]interface{} `json:"research"`
		OurProduct string                 `json:"our_product"`
		SenderName string                 `json:"sender_name"`
	}
	if !s.UnmarshalJSON(&req) {
		return false
	}
	if len(req.Research) == 0 {
		return s.writeerror("research is required", 400, nil)
	}

	script, err := s.AI.Script(s.ctx, ai.ScriptRequest{
		Research:   req.Research,
		OurProduct: req.OurProduct,
		SenderName: req.SenderName,
	})
	if err != nil {
		return s.aiError("script generation failed", err)
	}
	return s.writebody(map[string]interface{}{"ok": true, "script": script})
}

func (s *Server) postVoice() bool {
	var req struct {
		Text    string  `json:"text"`
		VoiceID string  `json:"voice_id"`
		Speed   float64 `json:"speed"`
	}
	if !s.UnmarshalJSON(&req) {
		return false
	}
	if req.Text == "" {
		return s.writeerror("text is required", 400, nil)
	}

	speech, err := s.AI.Speech(s.ctx, provider.SpeechRequest{
		Text:    req.Text,
		VoiceID: req.VoiceID,
		Speed:   req.Speed,
	})
	if err != nil {
		return s.aiError("speech synthesis failed", err)
	}

	if err := os.MkdirAll(s.Config.OutputDir, 0o755); err != nil {
		return s.writeerror("storing audio failed", 500, err)
	}
	filename := fmt.Sprintf("voice_%d.%s", s.rid, speech.Format)
	path := filepath.Join(s.Config.OutputDir, filename)
	if err := os.WriteFile(path, speech.Audio, 0o644); err != nil {
		return s.writeerror("storing audio failed", 500, err)
	}
	return s.writebody(map[string]interface{}{
		"ok":               true,
		"filename":         filename,
		"download_url":     "/api/voice/download/" + filename,
		"duration_seconds": speech.Duration.Seconds(),
	})
}

func (s *Server) getVoices() bool {
	voices, err := s.AI.Voices()
	if err != nil {
		return s.aiError("listing voices failed", err)
	}
	return s.writebody(map[string]interface{}{"ok": true, "voices": voices})
}

func (s *Server) postVoiceClone() bool {
	if !s.parseMultipart() {
		return s.writeerror("malformed multipart form", 400, s.err)
	}
	name := s.field("name")
	if name == "" {
		return s.writeerror("name is required", 400, nil)
	}
	sample, filename, ok := s.fileField("file")
	if !ok {
		return s.writeerror("file is required", 400, s.err)
	}
	if err := assets.ValidateAudio(filename, sample); err != nil {
		return s.writeerror(err.Error(), 400, err)
	}

	clone, err := s.AI.CloneVoice(s.ctx, provider.CloneRequest{
		Audio:    sample,
		Name:     name,
		Filename: filename,
	})
	if err != nil {
		return s.aiError("voice cloning failed", err)
	}
	profile, err := s.Profiles.Add(name, clone.VoiceID, clone.Provider)
	if err != nil {
		return s.writeerror(err.Error(), 400, err)
	}
	return s.writebody(map[string]interface{}{"ok": true, "profile": profile})
}

func (s *Server) getDownload(filename string) bool {
	if filename == "" || strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
		return s.writeerror("bad filename", 400, nil)
	}
	path := filepath.Join(s.Config.OutputDir, filename)
	if _, err := os.Stat(path); err != nil {
		return s.writeerror("file not found", 404, err)
	}
	http.ServeFile(s.w, s.r, path)
	return true
}

func (s *Server) postVideoJob() bool {
	var req struct {
		Prompt   string `json:"prompt"`
		Duration int    `json:"duration"`
	}
	if !s.UnmarshalJSON(&req) {
		return false
	}
	if req.Prompt == "" {
		return s.writeerror("prompt is required", 400, nil)
	}
	job := pipeline.NewJob(pipeline.TypeVideo, pipeline.Request{
		VideoPrompt:   req.Prompt,
		VideoDuration: req.Duration,
	})
	return s.launch(job)
}

func (s *Server) postGenerate() bool {
	var req pipeline.Request
	if !s.UnmarshalJSON(&req) {
		return false
	}
	if req.CompanyURL == "" {
		return s.writeerror("company_url is required", 400, nil)
	}
	return s.launch(pipeline.NewJob(pipeline.TypeStandard, req))
}

func (s *Server) postPersonalized() bool {
	if !s.parseMultipart() {
		return s.writeerror("malformed multipart form", 400, s.err)
	}
	companyURL := s.field("company_url")
	if companyURL == "" {
		return s.writeerror("company_url is required", 400, nil)
	}

	image, imageName, ok := s.fileField("person_image")
	if !ok {
		return s.writeerror("person_image is required", 400, s.err)
	}
	if err := assets.ValidateImage(imageName, image); err != nil {
		return s.writeerror(err.Error(), 400, err)
	}

	sample, sampleName, hasSample := s.fileField("voice_sample")
	profileID := s.field("voice_profile_id")
	if !hasSample && profileID == "" {
		return s.writeerror("voice_sample or voice_profile_id is required", 400, s.err)
	}
	if hasSample {
		if err := assets.ValidateAudio(sampleName, sample); err != nil {
			return s.writeerror(err.Error(), 400, err)
		}
	}
	if profileID != "" {
		if _, found := s.Profiles.Get(profileID); !found {
			return s.writeerror("voice profile not found", 404, nil)
		}
	}

	job := pipeline.NewJob(pipeline.TypePersonalized, pipeline.Request{
		CompanyURL:        companyURL,
		CompanyName:       s.field("company_name"),
		AdditionalContext: s.field("additional_context"),
		OurProduct:        s.field("our_product"),
		SenderName:        s.field("sender_name"),
		VoiceProfileID:    profileID,
	})
	job.FaceImage = image
	job.FaceImageName = imageName
	if hasSample {
		job.VoiceSample = sample
		job.VoiceSampleName = sampleName
	}
	return s.launch(job)
}

// launch starts a pipeline job and returns its id; clients poll the status
// endpoint.
func (s *Server) launch(job *pipeline.Job) bool {
	if err := s.Runner.Launch(job); err != nil {
		return s.writeerror("starting job failed", 500, err)
	}
	return s.writebody(map[string]interface{}{
		"ok":     true,
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (s *Server) getStatus(id string) bool {
	if id == "" {
		return s.writeerror("job id is required", 400, nil)
	}
	job, err := s.Jobs.Get(id)
	if errors.Is(err, pipeline.ErrJobNotFound) {
		return s.writeerror("job not found", 404, err)
	}
	if err != nil {
		return s.writeerror("loading job failed", 500, err)
	}
	return s.writebody(map[string]interface{}{"ok": true, "job": job})
}

func (s *Server) getProviders() bool {
	return s.writebody(map[string]interface{}{
		"ok": true,
		"selected": map[string]string{
			"text":  s.Config.TextProvider,
			"tts":   s.Config.TTSProvider,
			"video": s.Config.VideoProvider,
		},
		"registered": s.AI.ProviderInfo(),
	})
}

// aiError maps generation failures: a response the model fumbled is the
// vendor's fault (502), an exhausted provider chain means nothing was
// available (503).
func (s *Server) aiError(msg string, err error) bool {
	var parseErr *ai.ParseError
	var exhausted *provider.ExhaustedError
	switch {
	case errors.As(err, &exhausted):
		return s.writeerror(msg, 503, err)
	case errors.As(err, &parseErr):
		return s.writeerror(msg, 502, err)
	default:
		s.ErrReporter.ReportException(err)
		return s.writeerror(msg, 502, err)
	}
}

func (s *Server) method() string {
	return s.request.r.Method
}

// PlatformError implements a well-known error response for http clients
// encountering an error when using the service.
type PlatformError struct {
	Ok     bool   `json:"ok"`
	Status int    `json:"status"`
	Rid    uint64 `json:"rid"`
	Msg    string `json:"msg,omitempty"`
}

// String returns the json-formatted platform response
func (p PlatformError) String() string {
	data, _ := json.Marshal(p)
	return string(data)
}
