package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/aymanhs/capvid/internal/config"
	"github.com/aymanhs/capvid/internal/encoder"
	"github.com/aymanhs/capvid/internal/logging"
	"github.com/aymanhs/capvid/internal/render"
	"github.com/aymanhs/capvid/internal/timeline"
)

// capture owns the progress range below this; finalization the rest
const capturePhaseEnd = 95.0

// BackgroundOptions selects a background video to composite under the
// captured overlay frames. Width and Height fix the output dimensions;
// the blur fill comes from config.
type BackgroundOptions struct {
	SourcePath string
	Width      int
	Height     int
}

// Request describes one export job.
type Request struct {
	ExportID   string // generated when empty
	Range      timeline.TimeRange
	Clips      []timeline.Clip
	Audio      []encoder.AudioInput
	Background *BackgroundOptions
	OutputPath string
	FastMode   bool
}

// Result summarizes a finished export.
type Result struct {
	ExportID   string
	OutputPath string
	Chunks     int
	FramesSent int64
	Elapsed    time.Duration
}

// Exporter orchestrates the full pipeline: plan, chunk, capture, encode,
// concatenate. It restores the renderer's playhead and opacity state on
// every exit path and emits exactly one terminal progress event per job.
type Exporter struct {
	cfg        *config.Config
	renderer   render.Renderer
	service    encoder.Service
	pub        *Publisher
	log        *logging.Logger
	concat     func(context.Context, encoder.ConcatParams, *logging.Logger) error
	prepareBkg func(context.Context, encoder.BackgroundParams, string, *logging.Logger) (string, error)
}

func New(cfg *config.Config, r render.Renderer, svc encoder.Service, pub *Publisher, log *logging.Logger) *Exporter {
	return &Exporter{
		cfg:        cfg,
		renderer:   r,
		service:    svc,
		pub:        pub,
		log:        log,
		concat:     encoder.Concat,
		prepareBkg: encoder.PrepareBackground,
	}
}

func (e *Exporter) Publisher() *Publisher { return e.pub }

func (e *Exporter) Export(ctx context.Context, req Request) (*Result, error) {
	if err := req.Range.Validate(); err != nil {
		return nil, fmt.Errorf("invalid export range: %w", err)
	}
	if req.OutputPath == "" {
		return nil, fmt.Errorf("output path required")
	}

	id := req.ExportID
	if id == "" {
		id = uuid.NewString()
	}
	started := time.Now()

	fail := func(err error) (*Result, error) {
		e.pub.Publish(Progress{ExportID: id, State: StateError, Message: err.Error()})
		return nil, err
	}

	e.pub.Publish(Progress{ExportID: id, State: StateInitializing})

	snap := render.TakeSnapshot(e.renderer)
	defer snap.Restore(e.renderer)

	plan := timeline.BuildPlan(req.Range, req.Clips, e.cfg.FadeDurationMs, req.FastMode)

	target := e.cfg.Chunking.HighFidelityChunkMs
	if req.FastMode {
		target = e.cfg.Chunking.FastChunkMs
	}
	duration := req.Range.Duration()

	var chunks []timeline.Chunk
	if duration > target {
		chunks = timeline.SplitChunks(req.Range, req.Clips, target)
	} else {
		chunks = []timeline.Chunk{{Start: req.Range.Start, End: req.Range.End, Index: 0}}
	}
	single := len(chunks) == 1

	e.log.Infow("export starting",
		"export", id,
		"duration_ms", duration,
		"chunks", len(chunks),
		"fast", req.FastMode,
		"segments", len(plan.Timestamps)-1)

	codec := encoder.ChooseCodec(ctx, e.cfg.Encoder.PreferHardware, e.log)

	if req.FastMode {
		// fades are collapsed in fast mode, so every frame renders opaque
		e.renderer.SetFullOpacity(true)
	}

	scratchRoot := e.cfg.ScratchDir
	if scratchRoot == "" {
		scratchRoot = filepath.Join(os.TempDir(), "capvid")
	}
	// always present, so intermediates and failure logs have a stable home
	scratch := filepath.Join(scratchRoot, id)
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return fail(fmt.Errorf("creating scratch dir: %w", err))
	}

	streamer := NewStreamer(
		e.renderer,
		time.Duration(e.cfg.Render.ReadinessTimeoutMs)*time.Millisecond,
		e.pub, e.log)

	var (
		totalSent  int64
		chunkPaths []string
	)
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		params := encoder.SessionParams{
			FPS:          e.cfg.FPS,
			DurationMs:   chunk.End - chunk.Start,
			Codec:        codec,
			AudioBitrate: e.cfg.Encoder.AudioBitrate,
		}
		if single {
			params.OutputPath = req.OutputPath
			params.Audio = req.Audio
		} else {
			// intermediates stay video-only; audio is muxed at concat time
			params.OutputPath = filepath.Join(scratch, fmt.Sprintf("chunk_%03d.mov", chunk.Index))
			params.Intermediate = true
		}

		if req.Background != nil {
			bgPath, err := e.prepareBkg(ctx, encoder.BackgroundParams{
				SourcePath: req.Background.SourcePath,
				StartMs:    chunk.Start,
				EndMs:      chunk.End,
				Width:      req.Background.Width,
				Height:     req.Background.Height,
				FPS:        e.cfg.FPS,
				Blur:       e.cfg.Encoder.BackgroundBlur,
			}, filepath.Join(scratchRoot, "backgrounds"), e.log)
			if err != nil {
				return fail(fmt.Errorf("chunk %d background: %w", chunk.Index, err))
			}
			params.BackgroundPath = bgPath
		}

		// fast mode repeats one frame per span even under custom overlays
		var overlayClips []timeline.Clip
		if !req.FastMode {
			overlayClips = req.Clips
		}

		sent, err := e.exportChunk(ctx, streamer, params, StreamParams{
			ExportID:      id,
			Range:         timeline.TimeRange{Start: chunk.Start, End: chunk.End},
			Plan:          &plan,
			Clips:         overlayClips,
			FPS:           e.cfg.FPS,
			PhaseStart:    capturePhaseEnd * float64(chunk.Index) / float64(len(chunks)),
			PhaseEnd:      capturePhaseEnd * float64(chunk.Index+1) / float64(len(chunks)),
			ExportStartMs: req.Range.Start,
			ExportEndMs:   req.Range.End,
		})
		if err != nil {
			return fail(fmt.Errorf("chunk %d: %w", chunk.Index, err))
		}
		totalSent += sent
		if !single {
			chunkPaths = append(chunkPaths, params.OutputPath)
		}
	}

	e.pub.Publish(Progress{
		ExportID: id,
		State:    StateCreatingVideo,
		Percent:  capturePhaseEnd,
		Message:  "finalizing video",
	})

	if !single {
		err := e.concat(ctx, encoder.ConcatParams{
			Inputs:       chunkPaths,
			OutputPath:   req.OutputPath,
			Audio:        req.Audio,
			AudioBitrate: e.cfg.Encoder.AudioBitrate,
			DurationMs:   duration,
		}, e.log)
		if err != nil {
			// intermediates are kept so a retry can skip recapture
			return fail(err)
		}
	}

	if err := os.RemoveAll(scratch); err != nil {
		e.log.Warnw("could not remove scratch dir", "path", scratch, "error", err)
	}

	e.pub.Publish(Progress{
		ExportID:      id,
		State:         StateExported,
		Percent:       100,
		CurrentTimeMs: duration,
		TotalTimeMs:   duration,
	})

	res := &Result{
		ExportID:   id,
		OutputPath: req.OutputPath,
		Chunks:     len(chunks),
		FramesSent: totalSent,
		Elapsed:    time.Since(started),
	}
	e.log.Infow("export finished",
		"export", id,
		"output", res.OutputPath,
		"frames", res.FramesSent,
		"elapsed", res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// exportChunk runs one capture session to completion. The session always
// terminates: Finish on the happy path, Abort when streaming failed, which
// preserves the partial chunk under a .failed name for diagnosis.
func (e *Exporter) exportChunk(ctx context.Context, streamer *Streamer, sp encoder.SessionParams, p StreamParams) (int64, error) {
	session, err := e.service.StartSession(ctx, sp)
	if err != nil {
		return 0, fmt.Errorf("starting session: %w", err)
	}

	sent, err := streamer.Stream(ctx, session, p)
	if err != nil {
		session.Abort()
		return sent, err
	}

	if err := session.Finish(ctx); err != nil {
		return sent, err
	}
	return sent, nil
}
