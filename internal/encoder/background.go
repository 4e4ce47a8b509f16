package encoder

import (
	"context"
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/aymanhs/capvid/internal/logging"
)

// BackgroundParams describes the normalized background segment an export
// composites over: the source trimmed to the export range, scaled and
// padded to the output size, at the output frame rate.
type BackgroundParams struct {
	SourcePath string
	StartMs    int64
	EndMs      int64
	Width      int
	Height     int
	FPS        int
	Blur       bool
}

// cacheKey folds every parameter that changes the rendered segment, so a
// re-export with identical settings reuses the file.
func (p BackgroundParams) cacheKey() string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s|%d|%d|%dx%d|%d|%t",
		p.SourcePath, p.StartMs, p.EndMs, p.Width, p.Height, p.FPS, p.Blur)))
	return fmt.Sprintf("%x", sum)
}

// PrepareBackground renders the background segment into cacheDir and
// returns its path. Existing cache entries are returned as-is.
func PrepareBackground(ctx context.Context, p BackgroundParams, cacheDir string, log *logging.Logger) (string, error) {
	if _, err := os.Stat(p.SourcePath); os.IsNotExist(err) {
		return "", fmt.Errorf("background source not found: %s", p.SourcePath)
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create background cache dir: %w", err)
	}

	outPath := filepath.Join(cacheDir, "bg_"+p.cacheKey()+".mp4")
	if info, err := os.Stat(outPath); err == nil && info.Size() > 0 {
		log.Debugw("background segment cached", "path", outPath)
		return outPath, nil
	}

	ffmpegPath, err := FFmpegPath()
	if err != nil {
		return "", err
	}

	vf := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		p.Width, p.Height, p.Width, p.Height)
	if p.Blur {
		vf = fmt.Sprintf(
			"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,boxblur=20:2",
			p.Width, p.Height, p.Width, p.Height)
	}
	vf += fmt.Sprintf(",fps=%d", p.FPS)

	kwargs := ffmpeg.KwArgs{
		"ss": formatSeconds(p.StartMs),
		"t":  formatSeconds(p.EndMs - p.StartMs),
		"vf": vf,
		"an": "",
		"y":  "",
	}

	err = ffmpeg.Input(p.SourcePath).
		Output(outPath, kwargs).
		OverWriteOutput().
		SetFfmpegPath(ffmpegPath).
		Run()
	if err != nil {
		_ = os.Remove(outPath)
		return "", fmt.Errorf("background render failed: %w", err)
	}

	select {
	case <-ctx.Done():
		_ = os.Remove(outPath)
		return "", ctx.Err()
	default:
	}

	log.Debugw("background segment rendered", "path", outPath)
	return outPath, nil
}
