package encoder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/aymanhs/capvid/internal/logging"
)

// ConcatParams joins intermediate chunk files into the final output.
// Audio inputs, when present, are muxed in at this stage so intermediate
// chunks can stay video-only.
type ConcatParams struct {
	Inputs       []string
	OutputPath   string
	Audio        []AudioInput
	AudioBitrate string // aac bitrate
	DurationMs   int64  // caps the output when audio outlasts the video
}

// Concat stitches the inputs in order with the concat demuxer, copying
// video streams and encoding audio to aac. On success the inputs are
// deleted; on failure the partial output is removed and the inputs are
// left in place for a retry.
func Concat(ctx context.Context, p ConcatParams, log *logging.Logger) error {
	if len(p.Inputs) == 0 {
		return fmt.Errorf("nothing to concatenate")
	}
	for _, in := range p.Inputs {
		if _, err := os.Stat(in); err != nil {
			return fmt.Errorf("concat input missing: %s", in)
		}
	}

	ffmpegPath, err := FFmpegPath()
	if err != nil {
		return err
	}

	withAudio := len(p.Audio) > 0
	if !withAudio {
		// chunks encoded with their own audio still need a clean final track
		for _, in := range p.Inputs {
			ok, err := HasAudio(in)
			if err != nil {
				return fmt.Errorf("probing %s: %w", in, err)
			}
			if ok {
				withAudio = true
				break
			}
		}
	}

	listPath, err := writeConcatList(p.Inputs, filepath.Dir(p.OutputPath))
	if err != nil {
		return err
	}
	defer os.Remove(listPath)

	kwargs := ffmpeg.KwArgs{"c:v": "copy", "y": ""}
	bitrate := p.AudioBitrate
	if bitrate == "" {
		bitrate = "320k"
	}
	switch {
	case len(p.Audio) > 0:
		kwargs["filter_complex"] = audioFilter(p.Audio, 1)
		kwargs["map"] = []string{"0:v", "[aout]"}
		kwargs["c:a"] = "aac"
		kwargs["b:a"] = bitrate
	case withAudio:
		kwargs["c:a"] = "aac"
		kwargs["b:a"] = bitrate
		// chunk boundaries can leave tiny audio gaps; async resampling
		// re-aligns timestamps across them
		kwargs["af"] = "aresample=async=1:first_pts=0"
	default:
		kwargs["an"] = ""
	}
	if p.DurationMs > 0 {
		kwargs["t"] = formatSeconds(p.DurationMs)
	}

	streams := []*ffmpeg.Stream{ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": "0"})}
	for _, a := range p.Audio {
		streams = append(streams, ffmpeg.Input(a.Path))
	}

	cmd := ffmpeg.Output(streams, p.OutputPath, kwargs).
		OverWriteOutput().
		SetFfmpegPath(ffmpegPath).
		Compile()

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting concat: %w", err)
	}
	go func() { done <- cmd.Wait() }()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		err = ctx.Err()
	}

	if err != nil {
		writeConcatFailureLog(p.OutputPath, cmd.Args, stderr.String(), err, log)
		_ = os.Remove(p.OutputPath)
		return fmt.Errorf("concat failed: %w", err)
	}

	for _, in := range p.Inputs {
		if err := os.Remove(in); err != nil && !os.IsNotExist(err) {
			log.Warnw("could not remove concat input", "path", in, "error", err)
		}
	}

	log.Infow("concatenated chunks", "inputs", len(p.Inputs), "output", p.OutputPath)
	return nil
}

// writeConcatList emits the concat demuxer's list file. Single quotes in
// paths are escaped per the demuxer's quoting rules.
func writeConcatList(inputs []string, dir string) (string, error) {
	f, err := os.CreateTemp(dir, "concat_*.txt")
	if err != nil {
		return "", fmt.Errorf("creating concat list: %w", err)
	}

	var b strings.Builder
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			abs = in
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}

	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("writing concat list: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("closing concat list: %w", err)
	}
	return f.Name(), nil
}

func writeConcatFailureLog(outputPath string, args []string, stderr string, cause error, log *logging.Logger) {
	name := fmt.Sprintf("ffmpeg_failed_%d.txt", time.Now().Unix())
	path := filepath.Join(filepath.Dir(outputPath), name)

	content := fmt.Sprintf("error: %v\nargs: %s\n\n%s", cause, strings.Join(args, " "), stderr)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		log.Warnw("could not write concat failure log", "path", path, "error", err)
		return
	}
	log.Errorw("concat failed, log written", "log", path)
}
