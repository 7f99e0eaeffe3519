// Package assets validates, stores, and publishes the user-supplied face
// images and voice samples the personalized pipeline consumes.
package assets

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
)

// ValidationError reports an unusable upload. Handlers map it to a 400.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

const (
	minImageBytes = 1 << 10  // 1 KiB
	minAudioBytes = 10 << 10 // 10 KiB
	minImageEdge  = 512
)

var (
	jpegMagic = []byte{0xff, 0xd8, 0xff}
	pngMagic  = []byte{0x89, 'P', 'N', 'G'}
	id3Magic  = []byte("ID3")
	riffMagic = []byte("RIFF")
	ftypMagic = []byte("ftyp")
)

// ValidateImage checks a face image upload: extension, header magic, byte
// floor, and a minimum edge length so the animators have enough pixels.
func ValidateImage(filename string, data []byte) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png":
	default:
		return ValidationError(fmt.Sprintf("unsupported image type %q: use jpg or png", filepath.Ext(filename)))
	}
	if len(data) < minImageBytes {
		return ValidationError("image file too small to be a real photo")
	}
	if !bytes.HasPrefix(data, jpegMagic) && !bytes.HasPrefix(data, pngMagic) {
		return ValidationError("file content is not a jpg or png image")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ValidationError(fmt.Sprintf("undecodable image: %v", err))
	}
	if cfg.Width < minImageEdge || cfg.Height < minImageEdge {
		return ValidationError(fmt.Sprintf("image is %dx%d; need at least %dx%d",
			cfg.Width, cfg.Height, minImageEdge, minImageEdge))
	}
	return nil
}

// ValidateAudio checks a voice sample upload: extension, header magic, and a
// byte floor. Cloning needs several seconds of clean speech.
func ValidateAudio(filename string, data []byte) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3", ".wav", ".m4a":
	default:
		return ValidationError(fmt.Sprintf("unsupported audio type %q: use mp3, wav, or m4a", filepath.Ext(filename)))
	}
	if len(data) < minAudioBytes {
		return ValidationError("audio sample too short for voice cloning")
	}
	if !looksLikeAudio(data) {
		return ValidationError("file content is not mp3, wav, or m4a audio")
	}
	return nil
}

func looksLikeAudio(data []byte) bool {
	if bytes.HasPrefix(data, id3Magic) || bytes.HasPrefix(data, riffMagic) {
		return true
	}
	// Raw MPEG frame sync.
	if len(data) >= 2 && data[0] == 0xff && data[1]&0xe0 == 0xe0 {
		return true
	}
	// MP4 container: "ftyp" at offset 4.
	if len(data) >= 8 && bytes.Equal(data[4:8], ftypMagic) {
		return true
	}
	return false
}

// Save writes an upload under dir with a uuid-suffixed name, keeping the
// original extension. It returns the local path.
func Save(dir, originalName string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	if base == "" {
		base = "upload"
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s%s", base, uuid.NewString()[:8], ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
