package encoder

import (
	"bufio"
	"context"
	"iter"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"reel/internal/command"
	"reel/internal/logging"
	"reel/internal/media"
)

const stderrTailBytes = 64 << 10

// progressArgs make ffmpeg write key=value progress blocks to stdout and keep
// stderr for diagnostics.
var progressArgs = []string{"-nostdin", "-y", "-progress", "pipe:1", "-nostats"}

// FFmpeg runs ffmpeg and follows its progress.
type FFmpeg struct {
	logger *slog.Logger
}

// NewFFmpeg constructs the streaming-progress adapter.
func NewFFmpeg(logger *slog.Logger) *FFmpeg {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FFmpeg{logger: logger}
}

// Convert prepares a conversion without running it.
//
// Profile commands without placeholders follow the usual ffmpeg shape: the
// adapter supplies "-i <input>" before the profile options and the output path
// after them.
func (f *FFmpeg) Convert(ctx context.Context, profile media.Profile, inputPath, outputPath string) (*Conversion, error) {
	head, err := command.Split("encoder path", profile.Encoder.Path)
	if err != nil {
		return nil, err
	}
	flags, err := command.Split("encoder flags", profile.Encoder.Flags)
	if err != nil {
		return nil, err
	}
	opts, err := command.Split("profile command", profile.Command)
	if err != nil {
		return nil, err
	}
	if len(head) == 0 {
		head = []string{"ffmpeg"}
	}

	argv := append(append(append([]string{}, head...), flags...), progressArgs...)
	if command.HasPlaceholders(profile.Command) {
		argv = append(argv, command.Substitute(opts, inputPath, outputPath)...)
	} else {
		argv = append(argv, "-i", inputPath)
		argv = append(argv, opts...)
		argv = append(argv, outputPath)
	}
	return &Conversion{ctx: ctx, cmd: command.Command{Argv: argv}}, nil
}

// Start implements Adapter. Progress is only logged; it never changes the
// outcome.
func (f *FFmpeg) Start(ctx context.Context, profile media.Profile, inputPath, outputPath string) error {
	conv, err := f.Convert(ctx, profile, inputPath, outputPath)
	if err != nil {
		return err
	}
	if err := prepareOutput(outputPath); err != nil {
		return err
	}

	logger := logging.WithContext(ctx, f.logger).With(logging.String(logging.FieldProfile, profile.Name))
	logger.Debug("running ffmpeg", logging.String("command", conv.Command()))

	var total time.Duration
	if binary := probeBinary(conv.cmd.Name()); binary != "" {
		if result, err := probe(ctx, binary, inputPath); err == nil {
			total = result.Duration()
		} else {
			logger.Debug("input probe failed; progress percent unavailable", logging.Error(err))
		}
	}

	sampler := logging.NewProgressSampler(10, 15*time.Second)
	for timecode := range conv.Timecodes() {
		percent := -1.0
		if total > 0 {
			percent = min(100, float64(timecode)/float64(total)*100)
		}
		if sampler.ShouldLog(percent, "") {
			attrs := []logging.Attr{logging.Duration("timecode", timecode)}
			if percent >= 0 {
				attrs = append(attrs, logging.Float64("percent", float64(int(percent*10))/10))
			}
			logger.Debug("encode progress", logging.Args(attrs...)...)
		}
	}

	if failure := conv.failure(); failure != nil {
		logging.ErrorWithContext(logger, "ffmpeg failed", "encode_failed",
			logging.String("command", failure.Command),
			logging.String("output", failure.Output),
			logging.Error(failure),
		)
		return failure
	}
	return nil
}

// Conversion is a prepared ffmpeg run.
type Conversion struct {
	ctx context.Context
	cmd command.Command

	mu   sync.Mutex
	last *EncodeFailure
}

// Command returns the composed command line.
func (c *Conversion) Command() string {
	return c.cmd.String()
}

// Timecodes runs ffmpeg and yields the processed media time as progress is
// reported. The sequence ends when the process exits. Every call starts a new
// run; Err reports the outcome of the most recent one. Stopping early kills
// the process.
func (c *Conversion) Timecodes() iter.Seq[time.Duration] {
	return func(yield func(time.Duration) bool) {
		c.setErr(nil)

		ctx, cancel := context.WithCancel(c.ctx)
		defer cancel()

		proc := commandContext(ctx, c.cmd.Name(), c.cmd.Args()...) //nolint:gosec
		configureProcess(proc)
		stderr := newTailBuffer(stderrTailBytes)
		proc.Stderr = stderr
		stdout, err := proc.StdoutPipe()
		if err != nil {
			c.setErr(newFailure(c.cmd, "", err))
			return
		}
		if err := proc.Start(); err != nil {
			c.setErr(newFailure(c.cmd, stderr.String(), err))
			return
		}

		stopped := false
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			timecode, ok := parseProgressLine(scanner.Text())
			if !ok || stopped {
				continue
			}
			if !yield(timecode) {
				stopped = true
				cancel()
			}
		}

		if err := proc.Wait(); err != nil {
			c.setErr(newFailure(c.cmd, stderr.String(), withContextErr(ctx, err)))
		}
	}
}

// Err returns the failure of the last run, or nil.
func (c *Conversion) Err() error {
	if failure := c.failure(); failure != nil {
		return failure
	}
	return nil
}

func (c *Conversion) failure() *EncodeFailure {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *Conversion) setErr(failure *EncodeFailure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = failure
}

// parseProgressLine extracts out_time from an ffmpeg -progress line.
func parseProgressLine(line string) (time.Duration, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || key != "out_time" {
		return 0, false
	}
	return parseTimecode(value)
}

// parseTimecode parses HH:MM:SS[.fraction]. ffmpeg reports N/A before the
// first frame and a negative time for some inputs; both are skipped.
func parseTimecode(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "-") {
		return 0, false
	}
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || seconds < 0 {
		return 0, false
	}
	total := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	return total + time.Duration(seconds*float64(time.Second)), true
}

var _ Adapter = (*FFmpeg)(nil)
