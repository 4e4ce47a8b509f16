package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aymanhs/capvid/internal/logging"
)

var (
	// ErrNoFrames reports a session finished without receiving any frames.
	ErrNoFrames = errors.New("encoder: no frames were sent")
	// ErrSessionClosed reports a send after Finish or Abort.
	ErrSessionClosed = errors.New("encoder: session already closed")
)

// AudioInput places a slice of a source file onto the session timeline.
// Trim bounds select the source portion; OffsetMs delays its start
// relative to the session's first frame. A zero TrimEndMs means "to the
// end of the source".
type AudioInput struct {
	Path        string
	OffsetMs    int64
	TrimStartMs int64
	TrimEndMs   int64
}

// SessionParams configures one streaming encode: PNG frames in over
// stdin, one media file out. BackgroundPath, when set, names a prepared
// background segment composited under the PNG stream's alpha.
type SessionParams struct {
	OutputPath     string
	FPS            int
	DurationMs     int64
	Codec          Codec
	BackgroundPath string
	Audio          []AudioInput

	// Intermediate sessions keep audio lossless (alac) so concatenation
	// re-encodes from a clean source; final sessions emit aac.
	Intermediate bool
	AudioBitrate string // final aac bitrate, e.g. "320k"
}

// Session accepts frames until Finish. Implementations must tolerate
// Finish after a send error and Abort at any point.
type Session interface {
	// writes one PNG frame, repeated repeat times (repeat >= 1)
	SendFrame(ctx context.Context, frame []byte, repeat int) error
	// closes the input stream and waits for the encoder to finalize
	Finish(ctx context.Context) error
	// kills the encoder and removes any partial output
	Abort()
}

// Service starts encoding sessions. The interface exists so the export
// pipeline can be tested without spawning ffmpeg.
type Service interface {
	StartSession(ctx context.Context, p SessionParams) (Session, error)
}

// FFmpegService runs sessions against a real ffmpeg binary.
type FFmpegService struct {
	log *logging.Logger
}

func NewFFmpegService(log *logging.Logger) *FFmpegService {
	return &FFmpegService{log: log}
}

func (s *FFmpegService) StartSession(ctx context.Context, p SessionParams) (Session, error) {
	if p.FPS <= 0 {
		return nil, fmt.Errorf("invalid fps %d", p.FPS)
	}
	ffmpegPath, err := FFmpegPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p.OutputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	args := sessionArgs(p)
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening encoder stdin: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting ffmpeg: %w", err)
	}
	s.log.Debugw("encoder session started",
		"output", p.OutputPath, "fps", p.FPS, "codec", p.Codec.Name, "args", strings.Join(args, " "))

	return &ffmpegSession{
		params: p,
		cmd:    cmd,
		stdin:  stdin,
		stderr: &stderr,
		log:    s.log,
	}, nil
}

// sessionArgs builds the full argv (minus the binary) for a streaming
// session. Split out for testing. Input order: the PNG pipe, then the
// background segment when present, then the audio files.
func sessionArgs(p SessionParams) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "image2pipe",
		"-c:v", "png",
		"-framerate", strconv.Itoa(p.FPS),
		"-i", "-",
	}

	audioBase := 1
	if p.BackgroundPath != "" {
		args = append(args, "-i", p.BackgroundPath)
		audioBase = 2
	}
	for _, a := range p.Audio {
		args = append(args, "-i", a.Path)
	}

	videoMap := "0:v"
	var filters []string
	if p.BackgroundPath != "" {
		// the PNG stream carries alpha; overlay it onto the background
		filters = append(filters, "[1:v][0:v]overlay=0:0[vout]")
		videoMap = "[vout]"
	}
	if len(p.Audio) > 0 {
		filters = append(filters, audioFilter(p.Audio, audioBase))
	}
	if len(filters) > 0 {
		args = append(args, "-filter_complex", strings.Join(filters, ";"))
	}

	if len(p.Audio) > 0 {
		args = append(args, "-map", videoMap, "-map", "[aout]")
		if p.Intermediate {
			args = append(args, "-c:a", "alac")
		} else {
			bitrate := p.AudioBitrate
			if bitrate == "" {
				bitrate = "320k"
			}
			args = append(args, "-c:a", "aac", "-b:a", bitrate)
		}
	} else {
		if p.BackgroundPath != "" {
			args = append(args, "-map", videoMap)
		}
		args = append(args, "-an")
	}

	args = append(args, "-c:v", p.Codec.Name)
	args = append(args, p.Codec.Args...)
	args = append(args, "-r", strconv.Itoa(p.FPS))
	if p.DurationMs > 0 {
		args = append(args, "-t", formatSeconds(p.DurationMs))
	}
	args = append(args, p.OutputPath)
	return args
}

// audioFilter trims, resamples and delays each input, then mixes them
// into [aout]. firstInput is the ffmpeg index of the first audio input.
// Resampling to a fixed 48kHz keeps the mix and the later concat step
// sample-accurate across heterogeneous sources.
func audioFilter(inputs []AudioInput, firstInput int) string {
	var b strings.Builder
	labels := make([]string, len(inputs))
	for i, a := range inputs {
		label := fmt.Sprintf("a%d", i)
		labels[i] = "[" + label + "]"

		fmt.Fprintf(&b, "[%d:a]", firstInput+i)
		if a.TrimStartMs > 0 || a.TrimEndMs > 0 {
			fmt.Fprintf(&b, "atrim=start=%s", formatSeconds(a.TrimStartMs))
			if a.TrimEndMs > 0 {
				fmt.Fprintf(&b, ":end=%s", formatSeconds(a.TrimEndMs))
			}
			b.WriteString(",asetpts=PTS-STARTPTS,")
		}
		b.WriteString("aresample=48000")
		if a.OffsetMs > 0 {
			fmt.Fprintf(&b, ",adelay=%d:all=1", a.OffsetMs)
		}
		fmt.Fprintf(&b, "[%s];", label)
	}
	fmt.Fprintf(&b, "%samix=inputs=%d:normalize=0[aout]", strings.Join(labels, ""), len(inputs))
	return b.String()
}

func formatSeconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', 3, 64)
}

type ffmpegSession struct {
	params SessionParams
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer
	log    *logging.Logger

	frames   int64
	sendErr  error
	finished bool
}

func (fs *ffmpegSession) SendFrame(ctx context.Context, frame []byte, repeat int) error {
	if fs.finished {
		return ErrSessionClosed
	}
	if fs.sendErr != nil {
		return fs.sendErr
	}
	if repeat < 1 {
		repeat = 1
	}
	for i := 0; i < repeat; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := fs.stdin.Write(frame); err != nil {
			fs.sendErr = fmt.Errorf("writing frame %d: %w", fs.frames, err)
			return fs.sendErr
		}
		fs.frames++
	}
	return nil
}

func (fs *ffmpegSession) Finish(ctx context.Context) error {
	if fs.finished {
		return nil
	}
	fs.finished = true

	if fs.frames == 0 && fs.sendErr == nil {
		_ = fs.stdin.Close()
		if fs.cmd.Process != nil {
			_ = fs.cmd.Process.Kill()
		}
		_ = fs.cmd.Wait()
		_ = os.Remove(fs.params.OutputPath)
		return ErrNoFrames
	}

	_ = fs.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- fs.cmd.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		_ = fs.cmd.Process.Kill()
		<-done
		err = ctx.Err()
	}

	if fs.sendErr != nil && err == nil {
		err = fs.sendErr
	}
	if err != nil {
		logPath := fs.writeFailureLog(err)
		preserveFailedOutput(fs.params.OutputPath)
		if logPath != "" {
			return fmt.Errorf("encoder session failed after %d frames (log: %s): %w",
				fs.frames, logPath, err)
		}
		return fmt.Errorf("encoder session failed after %d frames: %w", fs.frames, err)
	}

	fs.log.Debugw("encoder session finished", "output", fs.params.OutputPath, "frames", fs.frames)
	return nil
}

func (fs *ffmpegSession) Abort() {
	if fs.finished {
		return
	}
	fs.finished = true
	_ = fs.stdin.Close()
	if fs.cmd.Process != nil {
		_ = fs.cmd.Process.Kill()
	}
	_ = fs.cmd.Wait()
	preserveFailedOutput(fs.params.OutputPath)
}

// preserveFailedOutput renames a partial output with a .failed suffix so
// failed runs leave their intermediates on disk for diagnosis instead of
// discarding them, while the intended path never holds a half-written file.
func preserveFailedOutput(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = os.Rename(path, path+".failed")
}

// writeFailureLog dumps the encoder invocation and its stderr next to the
// intended output so failures in the field can be diagnosed from disk.
// Returns the log path, or "" when the log itself could not be written.
func (fs *ffmpegSession) writeFailureLog(cause error) string {
	name := fmt.Sprintf("ffmpeg_failed_%d.txt", time.Now().Unix())
	path := filepath.Join(filepath.Dir(fs.params.OutputPath), name)

	var b strings.Builder
	fmt.Fprintf(&b, "error: %v\n", cause)
	fmt.Fprintf(&b, "frames sent: %d\n", fs.frames)
	fmt.Fprintf(&b, "args: %s\n\n", strings.Join(fs.cmd.Args, " "))
	b.WriteString(fs.stderr.String())

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		fs.log.Warnw("could not write encoder failure log", "path", path, "error", err)
		return ""
	}
	fs.log.Errorw("encoder session failed, log written", "log", path)
	return path
}
