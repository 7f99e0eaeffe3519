// Package assembler wraps the ffmpeg binary for the muxing and fallback
// rendering steps at the end of a pipeline.
package assembler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Assembler shells out to ffmpeg. FFmpegPath defaults to "ffmpeg" on PATH.
type Assembler struct {
	FFmpegPath string
}

func New() *Assembler {
	return &Assembler{FFmpegPath: "ffmpeg"}
}

// Merge muxes one video and one audio track into outPath. The video stream is
// copied, the audio re-encoded to AAC, and the output cut to the shorter of
// the two inputs. A codec mismatch fails loudly with ffmpeg's stderr.
func (a *Assembler) Merge(ctx context.Context, videoPath, audioPath, outPath string) error {
	return a.run(ctx,
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		outPath,
	)
}

// VideoFromImage renders a still image over the audio track, the fallback
// when no animated video could be produced.
func (a *Assembler) VideoFromImage(ctx context.Context, imagePath, audioPath, outPath string) error {
	return a.run(ctx,
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-c:a", "aac",
		"-pix_fmt", "yuv420p",
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-shortest",
		outPath,
	)
}

func (a *Assembler) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, a.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", args[len(args)-1], err, tail(stderr.String(), 512))
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
