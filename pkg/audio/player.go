package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// Player plays PCM audio to completion.
type Player interface {
	Play(ctx context.Context, pcm []byte, f Format) error
}

// CommandPlayer writes the audio to a temporary WAV file and runs an external
// program (aplay, ffplay, afplay, paplay) with the file path as its last
// argument. Play returns once the program exits.
type CommandPlayer struct {
	argv    []string
	tempDir string
}

var _ Player = (*CommandPlayer)(nil)

// PlayerOption configures a [CommandPlayer].
type PlayerOption func(*CommandPlayer)

// WithTempDir places the temporary WAV files in dir instead of os.TempDir.
func WithTempDir(dir string) PlayerOption {
	return func(p *CommandPlayer) { p.tempDir = dir }
}

// NewCommandPlayer returns a player running argv. An empty argv uses
// "aplay -q".
func NewCommandPlayer(argv []string, opts ...PlayerOption) *CommandPlayer {
	if len(argv) == 0 {
		argv = []string{"aplay", "-q"}
	}
	p := &CommandPlayer{argv: argv}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Play implements Player. The temporary file is removed afterwards; a
// failed removal is logged and otherwise ignored.
func (p *CommandPlayer) Play(ctx context.Context, pcm []byte, f Format) error {
	tmp, err := os.CreateTemp(p.tempDir, "courtroom-*.wav")
	if err != nil {
		return fmt.Errorf("audio: play: create temp file: %w", err)
	}
	path := tmp.Name()
	defer func() {
		if err := os.Remove(path); err != nil {
			slog.Warn("audio: could not remove temp file", "path", path, "err", err)
		}
	}()

	_, err = tmp.Write(EncodeWAV(pcm, f))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("audio: play: write %s: %w", path, err)
	}

	args := append(append([]string(nil), p.argv[1:]...), path)
	out, err := exec.CommandContext(ctx, p.argv[0], args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("audio: play: %s: %w (%s)", p.argv[0], err, out)
	}
	return nil
}
