package util

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// GenerateImageThumbnail scales srcPath down to width pixels wide, keeping the
// aspect ratio, and writes a JPEG to dstPath.
func GenerateImageThumbnail(srcPath, dstPath string, width int) error {
	if width <= 0 {
		width = 480
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w", err)
	}

	return ffmpeg.Input(srcPath).
		Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:-2", width)}).
		Output(dstPath, ffmpeg.KwArgs{
			"frames:v": "1",
			"q:v":      "4",
		}).
		OverWriteOutput().
		Silent(true).
		Run()
}

// GetFFmpegVersion checks that an ffmpeg binary is on PATH.
func GetFFmpegVersion() (string, error) {
	cmd := exec.Command("ffmpeg", "-version", "-hide_banner")
	var out bytes.Buffer
	var errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg not available: %v, %s", err, errOut.String())
	}

	return out.String(), nil
}
