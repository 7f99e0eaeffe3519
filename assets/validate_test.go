package assets

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestValidateImage(t *testing.T) {
	big := pngBytes(t, 512, 512)
	small := pngBytes(t, 128, 128)

	tests := []struct {
		name     string
		filename string
		data     []byte
		wantErr  string
	}{
		{name: "valid png", filename: "face.png", data: big},
		{name: "unsupported extension", filename: "face.gif", data: big,
			wantErr: "unsupported image type"},
		{name: "too small in pixels", filename: "face.png", data: small,
			wantErr: "need at least 512x512"},
		{name: "not an image", filename: "face.jpg", data: bytes.Repeat([]byte("x"), 2048),
			wantErr: "not a jpg or png"},
		{name: "magic without a decodable body", filename: "face.jpg",
			data:    append([]byte{0xff, 0xd8, 0xff}, bytes.Repeat([]byte{0}, 2048)...),
			wantErr: "undecodable image"},
		{name: "tiny file", filename: "face.jpg", data: []byte{0xff, 0xd8, 0xff},
			wantErr: "too small"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImage(tt.filename, tt.data)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateImage() error = %v", err)
				}
				return
			}
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("ValidateImage() error = %v, want ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAudio(t *testing.T) {
	pad := bytes.Repeat([]byte{0}, minAudioBytes)

	tests := []struct {
		name     string
		filename string
		data     []byte
		wantErr  string
	}{
		{name: "mp3 with id3 tag", filename: "voice.mp3", data: append([]byte("ID3"), pad...)},
		{name: "raw mpeg frame", filename: "voice.mp3", data: append([]byte{0xff, 0xfb}, pad...)},
		{name: "wav riff header", filename: "voice.wav", data: append([]byte("RIFF"), pad...)},
		{name: "m4a container", filename: "voice.m4a",
			data: append([]byte{0, 0, 0, 0x20, 'f', 't', 'y', 'p'}, pad...)},
		{name: "unsupported extension", filename: "voice.ogg", data: append([]byte("OggS"), pad...),
			wantErr: "unsupported audio type"},
		{name: "too short", filename: "voice.mp3", data: []byte("ID3"),
			wantErr: "too short"},
		{name: "wrong content", filename: "voice.mp3", data: append([]byte("MZxx"), pad...),
			wantErr: "not mp3, wav, or m4a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAudio(tt.filename, tt.data)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateAudio() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveUsesCollisionResistantNames(t *testing.T) {
	dir := t.TempDir()

	p1, err := Save(dir, "face.jpg", []byte("one"))
	if err != nil {
		t.Fatal(err)
	}
	p2, err := Save(dir, "face.jpg", []byte("two"))
	if err != nil {
		t.Fatal(err)
	}
	if p1 == p2 {
		t.Error("two saves of the same filename collided")
	}
	if filepath.Ext(p1) != ".jpg" {
		t.Errorf("extension lost: %q", p1)
	}
	data, err := os.ReadFile(p2)
	if err != nil || string(data) != "two" {
		t.Errorf("saved content = %q, %v", data, err)
	}
}
