package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"time"
)

// DefaultFrameDuration is the amount of audio carried by each captured frame.
const DefaultFrameDuration = 20 * time.Millisecond

// Recorder captures microphone audio.
type Recorder interface {
	// Record starts capturing and returns a channel of frames. Capture stops
	// and the channel is closed when ctx is cancelled or the device ends.
	Record(ctx context.Context) (<-chan AudioFrame, error)

	// Format is the format of every frame Record emits.
	Format() Format
}

// CommandRecorder reads raw PCM from the stdout of an external program such
// as arecord, sox or ffmpeg.
type CommandRecorder struct {
	argv          []string
	format        Format
	frameDuration time.Duration
}

var _ Recorder = (*CommandRecorder)(nil)

// NewCommandRecorder returns a recorder that runs argv and reads PCM in
// format f from its stdout. An empty argv runs arecord with arguments matching
// f.
func NewCommandRecorder(argv []string, f Format) *CommandRecorder {
	if len(argv) == 0 {
		argv = []string{"arecord", "-q", "-t", "raw", "-f", "S16_LE",
			"-r", strconv.Itoa(f.SampleRate), "-c", strconv.Itoa(f.Channels)}
	}
	return &CommandRecorder{argv: argv, format: f, frameDuration: DefaultFrameDuration}
}

// Format implements Recorder.
func (r *CommandRecorder) Format() Format { return r.format }

// Record implements Recorder. The program is killed when ctx is cancelled.
func (r *CommandRecorder) Record(ctx context.Context) (<-chan AudioFrame, error) {
	frameBytes := int(int64(r.format.BytesPerSecond()) * int64(r.frameDuration) / int64(time.Second))
	frameBytes -= frameBytes % (2 * max(r.format.Channels, 1))
	if frameBytes <= 0 {
		return nil, fmt.Errorf("audio: record: invalid format %s", r.format)
	}

	cmd := exec.CommandContext(ctx, r.argv[0], r.argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("audio: record: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("audio: record: start %s: %w", r.argv[0], err)
	}
	slog.Debug("audio: recording started", "cmd", r.argv[0], "format", r.format.String())

	frames := make(chan AudioFrame, 64)
	go func() {
		defer close(frames)
		var offset time.Duration
		for {
			buf := make([]byte, frameBytes)
			n, err := io.ReadFull(stdout, buf)
			if n > 0 {
				n -= n % 2
				f := AudioFrame{
					Data:       buf[:n],
					SampleRate: r.format.SampleRate,
					Channels:   r.format.Channels,
					Timestamp:  offset,
				}
				offset += r.format.Duration(n)
				select {
				case frames <- f:
				case <-ctx.Done():
				}
			}
			if err != nil {
				break
			}
		}
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			slog.Warn("audio: recorder exited", "cmd", r.argv[0], "err", err)
		}
	}()
	return frames, nil
}
