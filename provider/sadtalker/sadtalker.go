// Package sadtalker implements talking-head generation by shelling out to a
// local SadTalker checkout. It trades API cost for GPU time and keeps face
// images on the local disk.
package sadtalker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pitchcast/pitch-orchestrator/config"
	"github.com/pitchcast/pitch-orchestrator/provider"
)

// Name identifies the SadTalker provider by name.
const Name = "sadtalker"

func init() {
	if err := provider.RegisterVideo(Name, factory); err != nil {
		fmt.Printf("registering sadtalker factory: %v\n", err)
	}
}

type videoProvider struct {
	cfg config.SadTalker
}

func factory(cfg *config.Config) (provider.VideoProvider, error) {
	info, err := os.Stat(cfg.SadTalker.CheckpointDir)
	if err != nil || !info.IsDir() {
		return nil, provider.InvalidConfigError(
			fmt.Sprintf("sadtalker checkpoint dir %q not found", cfg.SadTalker.CheckpointDir))
	}
	return &videoProvider{cfg: cfg.SadTalker}, nil
}

func (p *videoProvider) Name() string { return Name }

// NeedsHostedImage is false: the inference script reads the face image
// straight from the local filesystem.
func (p *videoProvider) NeedsHostedImage() bool { return false }

func (p *videoProvider) Generate(context.Context, provider.VideoRequest) (*provider.VideoResult, error) {
	return nil, fmt.Errorf("sadtalker only animates faces; prompt-driven generation is not supported")
}

func (p *videoProvider) TalkingHead(ctx context.Context, req provider.TalkingHeadRequest) (*provider.VideoResult, error) {
	if req.AudioPath == "" || req.ImagePath == "" {
		return nil, fmt.Errorf("sadtalker requires local audio and image paths")
	}

	resultDir, err := os.MkdirTemp("", "sadtalker-")
	if err != nil {
		return nil, fmt.Errorf("creating result dir: %w", err)
	}

	args := []string{
		"inference.py",
		"--driven_audio", req.AudioPath,
		"--source_image", req.ImagePath,
		"--result_dir", resultDir,
		"--checkpoint_dir", p.cfg.CheckpointDir,
		"--preprocess", p.cfg.Preprocess,
	}
	if p.cfg.Still {
		args = append(args, "--still")
	}
	if p.cfg.Enhancer != "" {
		args = append(args, "--enhancer", p.cfg.Enhancer)
	}
	if p.cfg.Device == "cpu" {
		args = append(args, "--cpu")
	}

	cmd := exec.CommandContext(ctx, "python3", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running sadtalker: %w: %s", err, tail(stderr.String(), 512))
	}

	path, err := newestVideo(resultDir)
	if err != nil {
		return nil, err
	}
	return &provider.VideoResult{Path: path, Duration: req.Duration}, nil
}

// newestVideo finds the generated mp4; the script names outputs by timestamp
// inside nested run directories.
func newestVideo(dir string) (string, error) {
	var newest string
	var newestMod int64
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".mp4") {
			return nil
		}
		if mod := info.ModTime().UnixNano(); mod > newestMod {
			newest, newestMod = path, mod
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scanning sadtalker output: %w", err)
	}
	if newest == "" {
		return "", fmt.Errorf("sadtalker produced no video in %s", dir)
	}
	return newest, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func (p *videoProvider) Close() error { return nil }
