package minimax

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"strings"
	"time"

	"github.com/pitchcast/pitch-orchestrator/config"
	"github.com/pitchcast/pitch-orchestrator/provider"
)

const ttsModel = "speech-02-hd"

var builtinVoices = map[string]string{
	"female-shaonv":    "Young female, energetic",
	"female-yujie":     "Mature female, professional",
	"male-qn-qingse":   "Young male, fresh",
	"male-qn-jingying": "Male, business professional",
	"presenter_male":   "Male presenter voice",
	"presenter_female": "Female presenter voice",
}

type ttsProvider struct {
	*client
}

func ttsFactory(cfg *config.Config) (provider.TTSProvider, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.MiniMax.GroupID == "" {
		return nil, provider.InvalidConfigError("MINIMAX_GROUP_ID not set")
	}
	return &ttsProvider{client: c}, nil
}

func (p *ttsProvider) Name() string { return Name }

type ttsRequest struct {
	Model        string `json:"model"`
	Text         string `json:"text"`
	Stream       bool   `json:"stream"`
	VoiceSetting struct {
		VoiceID string  `json:"voice_id"`
		Speed   float64 `json:"speed"`
		Vol     float64 `json:"vol"`
		Pitch   int     `json:"pitch"`
	} `json:"voice_setting"`
	AudioSetting struct {
		Format     string `json:"format"`
		SampleRate int    `json:"sample_rate"`
	} `json:"audio_setting"`
}

type ttsResponse struct {
	Data struct {
		Audio string `json:"audio"`
	} `json:"data"`
	AudioFile string   `json:"audio_file"`
	BaseResp  baseResp `json:"base_resp"`
}

func (p *ttsProvider) Synthesize(ctx context.Context, req provider.SpeechRequest) (*provider.SpeechResult, error) {
	speed := req.Speed
	if speed == 0 {
		speed = 1.0
	}
	var payload ttsRequest
	payload.Model = ttsModel
	payload.Text = req.Text
	payload.VoiceSetting.VoiceID = req.VoiceID
	payload.VoiceSetting.Speed = speed
	payload.VoiceSetting.Vol = 1.0
	payload.AudioSetting.Format = "mp3"
	payload.AudioSetting.SampleRate = 32000

	var resp ttsResponse
	err := p.postJSON(ctx, "/t2a_v2?GroupId="+p.cfg.GroupID, payload, &resp)
	if err != nil {
		return nil, err
	}
	if err := resp.BaseResp.err("tts"); err != nil {
		return nil, err
	}

	// The audio payload is hex-encoded in the JSON body.
	audioHex := resp.Data.Audio
	if audioHex == "" {
		audioHex = resp.AudioFile
	}
	if audioHex == "" {
		return nil, fmt.Errorf("minimax tts: no audio in response")
	}
	audio, err := hex.DecodeString(audioHex)
	if err != nil {
		return nil, fmt.Errorf("minimax tts: decoding audio hex: %w", err)
	}

	return &provider.SpeechResult{
		Audio:      audio,
		Format:     "mp3",
		SampleRate: 32000,
		Duration:   estimateDuration(req.Text, speed),
	}, nil
}

// estimateDuration assumes roughly 150 spoken words per minute at speed 1.0.
func estimateDuration(text string, speed float64) time.Duration {
	words := len(strings.Fields(text))
	secs := float64(words) / 150 * 60 / speed
	return time.Duration(secs * float64(time.Second))
}

type uploadResponse struct {
	File struct {
		FileID int64 `json:"file_id"`
	} `json:"file"`
	BaseResp baseResp `json:"base_resp"`
}

type cloneResponse struct {
	BaseResp baseResp `json:"base_resp"`
}

func (p *ttsProvider) CloneVoice(ctx context.Context, req provider.CloneRequest) (*provider.CloneResult, error) {
	filename := req.Filename
	if filename == "" {
		filename = "audio.mp3"
	}

	fileID, err := p.uploadSample(ctx, req.Audio, filename)
	if err != nil {
		return nil, err
	}

	var resp cloneResponse
	err = p.postJSON(ctx, "/voice_clone?GroupId="+p.cfg.GroupID, map[string]interface{}{
		"file_id":  fileID,
		"voice_id": req.Name,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if err := resp.BaseResp.err("voice clone"); err != nil {
		return nil, err
	}
	return &provider.CloneResult{
		VoiceID:  req.Name,
		Name:     req.Name,
		Provider: Name,
	}, nil
}

// uploadSample pushes a voice sample to MiniMax file storage and returns
// the vendor file id for later cloning.
func (p *ttsProvider) uploadSample(ctx context.Context, audio []byte, filename string) (int64, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	hdr.Set("Content-Type", contentTypeFor(filename))
	fw, err := mw.CreatePart(hdr)
	if err != nil {
		return 0, fmt.Errorf("building upload form: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return 0, fmt.Errorf("building upload form: %w", err)
	}
	if err := mw.WriteField("purpose", "voice_clone"); err != nil {
		return 0, fmt.Errorf("building upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return 0, fmt.Errorf("building upload form: %w", err)
	}

	url := p.cfg.BaseURL + "/files/upload?GroupId=" + p.cfg.GroupID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return 0, fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp uploadResponse
	if err := p.do(req, &resp); err != nil {
		return 0, err
	}
	if err := resp.BaseResp.err("file upload"); err != nil {
		return 0, err
	}
	if resp.File.FileID == 0 {
		return 0, fmt.Errorf("minimax upload: no file_id in response")
	}
	return resp.File.FileID, nil
}

// contentTypeFor maps an audio filename to its MIME type for uploads.
func contentTypeFor(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	default:
		return "audio/mpeg"
	}
}

func (p *ttsProvider) Voices() map[string]string {
	out := make(map[string]string, len(builtinVoices))
	for k, v := range builtinVoices {
		out[k] = v
	}
	return out
}

func (p *ttsProvider) Close() error { return p.close() }
