package minimax

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pitchcast/pitch-orchestrator/config"
	"github.com/pitchcast/pitch-orchestrator/provider"
)

const (
	defaultVideoModel = "T2V-01"
	subjectVideoModel = "S2V-01"

	pollInterval = 10 * time.Second
	pollTimeout  = 10 * time.Minute
)

type videoProvider struct {
	*client
	interval time.Duration
	timeout  time.Duration
}

func videoFactory(cfg *config.Config) (provider.VideoProvider, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &videoProvider{client: c, interval: pollInterval, timeout: pollTimeout}, nil
}

func (p *videoProvider) Name() string { return Name }

// NeedsHostedImage is true because S2V-01 subject references must be
// publicly reachable URLs, not local files.
func (p *videoProvider) NeedsHostedImage() bool { return true }

type subjectReference struct {
	Type  string   `json:"type"`
	Image []string `json:"image"`
}

type videoRequest struct {
	Model            string             `json:"model"`
	Prompt           string             `json:"prompt"`
	PromptOptimizer  bool               `json:"prompt_optimizer"`
	Duration         int                `json:"duration"`
	SubjectReference []subjectReference `json:"subject_reference,omitempty"`
}

type videoSubmitResponse struct {
	TaskID   string   `json:"task_id"`
	BaseResp baseResp `json:"base_resp"`
}

type videoStatusResponse struct {
	Status   string   `json:"status"`
	FileID   string   `json:"file_id"`
	BaseResp baseResp `json:"base_resp"`
}

type fileRetrieveResponse struct {
	File struct {
		DownloadURL string `json:"download_url"`
	} `json:"file"`
	BaseResp baseResp `json:"base_resp"`
}

func (p *videoProvider) Generate(ctx context.Context, req provider.VideoRequest) (*provider.VideoResult, error) {
	model := req.Model
	if model == "" {
		model = defaultVideoModel
	}
	duration := req.Duration
	if duration == 0 {
		duration = 6
	}
	return p.submitAndWait(ctx, videoRequest{
		Model:           model,
		Prompt:          req.Prompt,
		PromptOptimizer: true,
		Duration:        duration,
	})
}

func (p *videoProvider) TalkingHead(ctx context.Context, req provider.TalkingHeadRequest) (*provider.VideoResult, error) {
	if req.ImageURL == "" {
		return nil, fmt.Errorf("minimax S2V-01 requires a hosted image URL; upload the face image first")
	}
	prompt := req.Prompt
	if prompt == "" {
		prompt = "Professional person talking to camera in modern office setting. " +
			"Natural head movements and expressions. Confident and friendly demeanor. " +
			"High quality, well-lit, corporate environment."
	}
	duration := req.Duration
	if duration == 0 {
		duration = 6
	}
	return p.submitAndWait(ctx, videoRequest{
		Model:           subjectVideoModel,
		Prompt:          prompt,
		PromptOptimizer: true,
		Duration:        duration,
		SubjectReference: []subjectReference{{
			Type:  "character",
			Image: []string{req.ImageURL},
		}},
	})
}

func (p *videoProvider) submitAndWait(ctx context.Context, req videoRequest) (*provider.VideoResult, error) {
	var submit videoSubmitResponse
	if err := p.postJSON(ctx, "/video_generation", req, &submit); err != nil {
		return nil, err
	}
	if err := submit.BaseResp.err("video"); err != nil {
		return nil, err
	}
	if submit.TaskID == "" {
		return nil, fmt.Errorf("minimax video: no task_id in response")
	}

	fileID, err := p.waitForVideo(ctx, submit.TaskID)
	if err != nil {
		return nil, err
	}

	result := &provider.VideoResult{TaskID: submit.TaskID, Duration: req.Duration}
	if fileID != "" {
		video, err := p.downloadVideo(ctx, fileID)
		if err != nil {
			return nil, err
		}
		result.Video = video
	}
	return result, nil
}

// waitForVideo polls the generation task at a fixed interval until it
// succeeds, fails, or the overall budget is spent. The wait occupies the
// calling goroutine; there is no cancellation beyond ctx.
func (p *videoProvider) waitForVideo(ctx context.Context, taskID string) (string, error) {
	deadline := time.Now().Add(p.timeout)
	for {
		var status videoStatusResponse
		err := p.getJSON(ctx, "/query/video_generation?task_id="+url.QueryEscape(taskID), &status)
		if err != nil {
			return "", err
		}
		if err := status.BaseResp.err("video status"); err != nil {
			return "", err
		}

		switch status.Status {
		case "Success":
			return status.FileID, nil
		case "Fail":
			return "", fmt.Errorf("minimax video generation failed: %s", status.BaseResp.StatusMsg)
		}

		if time.Now().After(deadline) {
			return "", &provider.TimeoutError{Op: "video generation", Budget: p.timeout}
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.interval):
		}
	}
}

func (p *videoProvider) downloadVideo(ctx context.Context, fileID string) ([]byte, error) {
	var meta fileRetrieveResponse
	err := p.getJSON(ctx, "/files/retrieve?file_id="+url.QueryEscape(fileID), &meta)
	if err != nil {
		return nil, err
	}
	if err := meta.BaseResp.err("file retrieve"); err != nil {
		return nil, err
	}
	if meta.File.DownloadURL == "" {
		return nil, fmt.Errorf("minimax video: no download URL for file %s", fileID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.File.DownloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating download request: %w", err)
	}
	resp, err := p.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading video: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading video from CDN: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (p *videoProvider) Close() error { return p.close() }
