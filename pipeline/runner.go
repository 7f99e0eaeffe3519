package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pitchcast/pitch-orchestrator/ai"
	"github.com/pitchcast/pitch-orchestrator/assembler"
	"github.com/pitchcast/pitch-orchestrator/assets"
	"github.com/pitchcast/pitch-orchestrator/provider"
	"github.com/pitchcast/pitch-orchestrator/scraper"
	"github.com/pitchcast/pitch-orchestrator/service/exceptions"
	"github.com/pitchcast/pitch-orchestrator/voiceprofile"
)

// Stage progress milestones. Fixed per stage, monotonic, never computed
// from sub-progress.
const (
	progressResearching     = 10
	progressScripting       = 25
	progressCloningVoice    = 30
	progressGeneratingVoice = 40
	progressUploadingImage  = 50
	progressGeneratingVideo = 60
	progressMerging         = 85
	progressDone            = 100
)

// Runner executes pipeline jobs as independent background goroutines. Jobs
// share nothing but the store and the provider caches; a failure in one job
// never touches another.
type Runner struct {
	Store     Store
	AI        *ai.Service
	Scraper   *scraper.Client
	Assembler *assembler.Assembler
	Hoster    assets.Hoster
	Profiles  *voiceprofile.Store

	OutputDir string
	UploadDir string

	Log      *logrus.Logger
	Reporter exceptions.Reporter
}

// Launch stores the job and starts its pipeline in the background. The
// caller gets the id back synchronously and polls for status. There is no
// way to cancel a launched job.
func (r *Runner) Launch(job *Job) error {
	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := r.Store.Create(job); err != nil {
		return err
	}
	go r.run(job)
	return nil
}

func (r *Runner) run(job *Job) {
	ctx := context.Background()

	var err error
	switch job.Type {
	case TypePersonalized:
		err = r.runPersonalized(ctx, job)
	case TypeVideo:
		err = r.runVideo(ctx, job)
	default:
		err = r.runStandard(ctx, job)
	}
	if err != nil {
		r.fail(job, err)
	}
}

func (r *Runner) runStandard(ctx context.Context, job *Job) error {
	if err := r.researchAndScript(ctx, job); err != nil {
		return err
	}
	voiceID, err := r.resolveVoice(ctx, job)
	if err != nil {
		return err
	}
	if err := r.generateVoice(ctx, job, voiceID); err != nil {
		return err
	}

	if job.Request.SkipVideo {
		return r.complete(job, job.AudioPath)
	}

	if err := r.advance(job, StatusGeneratingVideo, progressGeneratingVideo); err != nil {
		return err
	}
	result, err := r.AI.Video(ctx, provider.VideoRequest{
		Prompt:   r.videoPrompt(job),
		Duration: job.Request.VideoDuration,
	})
	if err != nil {
		return err
	}
	if err := r.storeVideo(job, result); err != nil {
		return err
	}

	return r.mergeAndComplete(ctx, job)
}

func (r *Runner) runPersonalized(ctx context.Context, job *Job) error {
	// The active video provider decides once, up front, whether the face
	// image must be hosted at a public URL.
	needsHostedImage, err := r.AI.NeedsHostedImage()
	if err != nil {
		return err
	}

	if err := r.researchAndScript(ctx, job); err != nil {
		return err
	}

	voiceID, err := r.resolveVoice(ctx, job)
	if err != nil {
		return err
	}
	if err := r.generateVoice(ctx, job, voiceID); err != nil {
		return err
	}

	imagePath, err := assets.Save(r.UploadDir, job.FaceImageName, job.FaceImage)
	if err != nil {
		return fmt.Errorf("saving face image: %w", err)
	}
	job.FaceImagePath = imagePath

	var imageURL string
	if needsHostedImage {
		if err := r.advance(job, StatusUploadingImage, progressUploadingImage); err != nil {
			return err
		}
		imageURL, err = r.Hoster.Host(ctx, job.FaceImageName, job.FaceImage)
		if err != nil {
			return fmt.Errorf("hosting face image: %w", err)
		}
	}
	job.FaceImage = nil

	if err := r.advance(job, StatusGeneratingVideo, progressGeneratingVideo); err != nil {
		return err
	}
	result, err := r.AI.TalkingHead(ctx, provider.TalkingHeadRequest{
		AudioPath: job.AudioPath,
		ImagePath: imagePath,
		ImageURL:  imageURL,
		Duration:  job.Request.VideoDuration,
	})
	if err != nil {
		return err
	}
	if err := r.storeVideo(job, result); err != nil {
		return err
	}

	return r.mergeAndComplete(ctx, job)
}

// runVideo is the single-stage path behind POST /api/video: one generation
// call, no research, no audio.
func (r *Runner) runVideo(ctx context.Context, job *Job) error {
	if err := r.advance(job, StatusGeneratingVideo, progressGeneratingVideo); err != nil {
		return err
	}
	result, err := r.AI.Video(ctx, provider.VideoRequest{
		Prompt:   job.Request.VideoPrompt,
		Duration: job.Request.VideoDuration,
	})
	if err != nil {
		return err
	}
	if err := r.storeVideo(job, result); err != nil {
		return err
	}
	if job.VideoPath == "" {
		return fmt.Errorf("video provider returned no output")
	}
	return r.complete(job, job.VideoPath)
}

// researchAndScript runs the shared first two stages: scrape + research,
// then script.
func (r *Runner) researchAndScript(ctx context.Context, job *Job) error {
	if err := r.advance(job, StatusResearching, progressResearching); err != nil {
		return err
	}
	info, err := r.Scraper.Scrape(ctx, job.Request.CompanyURL)
	if err != nil {
		return fmt.Errorf("scraping %s: %w", job.Request.CompanyURL, err)
	}
	research, err := r.AI.Research(ctx, ai.ResearchRequest{
		CompanyURL:        job.Request.CompanyURL,
		CompanyName:       firstNonEmpty(job.Request.CompanyName, info.Name),
		AdditionalContext: job.Request.AdditionalContext,
		ScrapedData:       info.PromptContext(),
	})
	if err != nil {
		return err
	}
	job.Research = research

	if err := r.advance(job, StatusScripting, progressScripting); err != nil {
		return err
	}
	script, err := r.AI.Script(ctx, ai.ScriptRequest{
		Research:   research,
		OurProduct: job.Request.OurProduct,
		SenderName: job.Request.SenderName,
	})
	if err != nil {
		return err
	}
	job.Script = script
	return nil
}

// resolveVoice returns the voice id to narrate with: a fresh clone when the
// job carries a sample, an existing profile when it names one, else the
// request's plain voice id. The sample bytes are released once consumed.
func (r *Runner) resolveVoice(ctx context.Context, job *Job) (string, error) {
	if len(job.VoiceSample) > 0 {
		if err := r.advance(job, StatusCloningVoice, progressCloningVoice); err != nil {
			return "", err
		}
		clone, err := r.AI.CloneVoice(ctx, provider.CloneRequest{
			Audio:    job.VoiceSample,
			Name:     "voice_" + shortID(job.ID),
			Filename: job.VoiceSampleName,
		})
		if err != nil {
			return "", err
		}
		job.VoiceSample = nil
		profile, err := r.Profiles.Add(clone.Name, clone.VoiceID, clone.Provider)
		if err != nil {
			return "", err
		}
		job.VoiceProfileID = profile.ID
		return clone.VoiceID, nil
	}
	if job.Request.VoiceProfileID != "" {
		profile, ok := r.Profiles.Get(job.Request.VoiceProfileID)
		if !ok {
			return "", fmt.Errorf("voice profile %s not found", job.Request.VoiceProfileID)
		}
		job.VoiceProfileID = profile.ID
		return profile.VoiceID, nil
	}
	return job.Request.VoiceID, nil
}

func (r *Runner) generateVoice(ctx context.Context, job *Job, voiceID string) error {
	if err := r.advance(job, StatusGeneratingVoice, progressGeneratingVoice); err != nil {
		return err
	}
	speech, err := r.AI.Speech(ctx, provider.SpeechRequest{
		Text:    job.Script,
		VoiceID: voiceID,
	})
	if err != nil {
		return err
	}
	path := filepath.Join(r.OutputDir, fmt.Sprintf("%s_audio.%s", job.ID, speech.Format))
	if err := os.WriteFile(path, speech.Audio, 0o644); err != nil {
		return fmt.Errorf("writing audio: %w", err)
	}
	job.AudioPath = path
	return nil
}

// storeVideo normalizes a provider result: bytes are written under the
// output dir, local paths pass through. Neither present leaves VideoPath
// empty, which downstream treats as "no video produced".
func (r *Runner) storeVideo(job *Job, result *provider.VideoResult) error {
	if result == nil {
		return nil
	}
	if len(result.Video) > 0 {
		path := filepath.Join(r.OutputDir, job.ID+"_video.mp4")
		if err := os.WriteFile(path, result.Video, 0o644); err != nil {
			return fmt.Errorf("writing video: %w", err)
		}
		job.VideoPath = path
		return nil
	}
	job.VideoPath = result.Path
	return nil
}

// mergeAndComplete muxes audio into the generated video. A job with no
// video output but a saved face image gets a still-image render over the
// narration; with neither, it completes delivering the audio alone.
func (r *Runner) mergeAndComplete(ctx context.Context, job *Job) error {
	if job.VideoPath == "" && job.FaceImagePath == "" {
		r.Log.WithField("job", job.ID).Warn("no video produced; delivering audio only")
		return r.complete(job, job.AudioPath)
	}
	if err := r.advance(job, StatusMerging, progressMerging); err != nil {
		return err
	}
	final := filepath.Join(r.OutputDir, job.ID+"_final.mp4")
	if job.VideoPath == "" {
		r.Log.WithField("job", job.ID).Warn("no animated video produced; rendering still image")
		if err := r.Assembler.VideoFromImage(ctx, job.FaceImagePath, job.AudioPath, final); err != nil {
			return err
		}
		return r.complete(job, final)
	}
	if err := r.Assembler.Merge(ctx, job.VideoPath, job.AudioPath, final); err != nil {
		return err
	}
	return r.complete(job, final)
}

func (r *Runner) advance(job *Job, status Status, progress int) error {
	job.Status = status
	job.Progress = progress
	if err := r.Store.Update(job); err != nil {
		return err
	}
	r.Log.WithFields(logrus.Fields{
		"job":      job.ID,
		"status":   status,
		"progress": progress,
	}).Info("pipeline stage")
	return nil
}

func (r *Runner) complete(job *Job, finalPath string) error {
	job.Status = StatusCompleted
	job.Progress = progressDone
	job.FinalPath = finalPath
	return r.Store.Update(job)
}

// fail is the single catch for a pipeline run: record the error string,
// report it, halt. No retries, no rollback.
func (r *Runner) fail(job *Job, cause error) {
	r.Log.WithField("job", job.ID).WithError(cause).Error("pipeline failed")
	r.Reporter.ReportException(cause)

	job.Status = StatusFailed
	job.Error = cause.Error()
	if err := r.Store.Update(job); err != nil {
		r.Log.WithField("job", job.ID).WithError(err).Error("recording job failure")
	}
}

// videoPrompt derives a scene prompt for prompt-driven generation from the
// research profile. The script itself narrates; the video is backdrop.
func (r *Runner) videoPrompt(job *Job) string {
	if job.Request.VideoPrompt != "" {
		return job.Request.VideoPrompt
	}
	industry := ""
	if v, ok := job.Research["industry"].(string); ok {
		industry = v
	}
	company := job.Request.CompanyName
	if v, ok := job.Research["company_name"].(string); ok && v != "" {
		company = v
	}
	var b strings.Builder
	b.WriteString("Professional corporate b-roll montage")
	if industry != "" {
		b.WriteString(" for the " + industry + " industry")
	}
	if company != "" {
		b.WriteString(", evoking " + company)
	}
	b.WriteString(". Modern office, clean aesthetics, soft natural light, no text overlays.")
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
