// Package pipeline runs the multi-stage background jobs that turn a company
// URL into a finished sales video, and owns the job records clients poll.
package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Status is a pipeline stage name. Stages advance strictly forward; failed
// is reachable from any non-terminal stage.
type Status string

const (
	StatusPending         = Status("pending")
	StatusResearching     = Status("researching")
	StatusScripting       = Status("scripting")
	StatusCloningVoice    = Status("cloning_voice")
	StatusGeneratingVoice = Status("generating_voice")
	StatusUploadingImage  = Status("uploading_image")
	StatusGeneratingVideo = Status("generating_video")
	StatusMerging         = Status("merging")
	StatusCompleted       = Status("completed")
	StatusFailed          = Status("failed")
)

// statusRank orders stages for the forward-only invariant.
var statusRank = map[Status]int{
	StatusPending:         0,
	StatusResearching:     1,
	StatusScripting:       2,
	StatusCloningVoice:    3,
	StatusGeneratingVoice: 4,
	StatusUploadingImage:  5,
	StatusGeneratingVideo: 6,
	StatusMerging:         7,
	StatusCompleted:       8,
}

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JobType selects which stage sequence a job runs.
type JobType string

const (
	TypeStandard     = JobType("standard")
	TypePersonalized = JobType("personalized")
	TypeVideo        = JobType("video")
)

// Request is the caller-supplied snapshot a job runs against. It never
// changes after job creation.
type Request struct {
	CompanyURL        string `json:"company_url"`
	CompanyName       string `json:"company_name,omitempty"`
	AdditionalContext string `json:"additional_context,omitempty"`
	OurProduct        string `json:"our_product,omitempty"`
	SenderName        string `json:"sender_name,omitempty"`
	VoiceID           string `json:"voice_id,omitempty"`
	VoiceProfileID    string `json:"voice_profile_id,omitempty"`
	SkipVideo         bool   `json:"skip_video,omitempty"`
	VideoPrompt       string `json:"video_prompt,omitempty"`
	VideoDuration     int    `json:"video_duration,omitempty"`
}

// Job is one pipeline run. Upload payloads are held only until the stage
// that consumes them and are never persisted.
type Job struct {
	ID       string  `json:"id"`
	Type     JobType `json:"type"`
	Status   Status  `json:"status"`
	Progress int     `json:"progress"`

	Request Request `json:"request"`

	Research       map[string]interface{} `json:"research,omitempty"`
	Script         string                 `json:"script,omitempty"`
	VoiceProfileID string                 `json:"voice_profile_id,omitempty"`
	AudioPath      string                 `json:"audio_path,omitempty"`
	FaceImagePath  string                 `json:"face_image_path,omitempty"`
	VideoPath      string                 `json:"video_path,omitempty"`
	FinalPath      string                 `json:"final_path,omitempty"`
	Error          string                 `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	FaceImage       []byte `json:"-"`
	FaceImageName   string `json:"-"`
	VoiceSample     []byte `json:"-"`
	VoiceSampleName string `json:"-"`
}

// NewJob returns a pending job with a fresh id.
func NewJob(t JobType, req Request) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.NewString(),
		Type:      t,
		Status:    StatusPending,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
