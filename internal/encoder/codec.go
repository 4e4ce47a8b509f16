package encoder

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"

	"github.com/aymanhs/capvid/internal/logging"
)

// Codec is a video encoder choice plus the extra ffmpeg args it needs.
type Codec struct {
	Name string
	Args []string
}

var softwareCodec = Codec{
	Name: "libx264",
	Args: []string{
		"-pix_fmt", "yuv420p",
		"-crf", "22",
		"-tune", "zerolatency",
		"-bf", "0",
		"-preset", "ultrafast",
	},
}

// hardware candidates in preference order
var hardwareCodecs = []Codec{
	{
		Name: "h264_nvenc",
		Args: []string{"-pix_fmt", "yuv420p", "-preset", "p1", "-tune", "ll", "-bf", "0"},
	},
	{
		Name: "h264_qsv",
		Args: []string{"-pix_fmt", "yuv420p", "-preset", "veryfast", "-bf", "0"},
	},
	{
		Name: "h264_amf",
		Args: []string{"-pix_fmt", "yuv420p", "-quality", "speed", "-bf", "0"},
	},
}

var (
	chooseOnce  sync.Once
	chosenCodec Codec
)

// ChooseCodec picks the video encoder for this machine: the first hardware
// encoder that ffmpeg lists and that survives a one-frame smoke test, else
// libx264. The result is cached for the process since probing spawns
// ffmpeg. preferHardware false skips probing entirely.
func ChooseCodec(ctx context.Context, preferHardware bool, log *logging.Logger) Codec {
	if !preferHardware {
		return softwareCodec
	}
	chooseOnce.Do(func() {
		chosenCodec = probeCodec(ctx, log)
	})
	return chosenCodec
}

func probeCodec(ctx context.Context, log *logging.Logger) Codec {
	ffmpegPath, err := FFmpegPath()
	if err != nil {
		return softwareCodec
	}

	available, err := listEncoders(ctx, ffmpegPath)
	if err != nil {
		log.Debugw("encoder listing failed, using software codec", "error", err)
		return softwareCodec
	}

	for _, c := range hardwareCodecs {
		if !available[c.Name] {
			continue
		}
		if err := smokeTest(ctx, ffmpegPath, c); err != nil {
			log.Debugw("hardware encoder failed smoke test", "codec", c.Name, "error", err)
			continue
		}
		log.Infow("using hardware video encoder", "codec", c.Name)
		return c
	}

	log.Infow("no usable hardware encoder, using libx264")
	return softwareCodec
}

func listEncoders(ctx context.Context, ffmpegPath string) (map[string]bool, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath, "-hide_banner", "-encoders")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return parseEncoders(out.String()), nil
}

func parseEncoders(out string) map[string]bool {
	available := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && strings.HasPrefix(fields[0], "V") {
			available[fields[1]] = true
		}
	}
	return available
}

// smokeTest encodes a single black frame; listing an encoder does not
// guarantee the driver can actually open a session.
func smokeTest(ctx context.Context, ffmpegPath string, c Codec) error {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=black:s=256x256:d=0.1",
		"-frames:v", "1",
		"-c:v", c.Name,
	}
	args = append(args, c.Args...)
	args = append(args, "-f", "null", "-")
	return exec.CommandContext(ctx, ffmpegPath, args...).Run()
}
