// Package audio captures microphone audio, plays synthesized speech and
// converts raw 16-bit PCM between formats.
//
// All PCM in this package is signed 16-bit little-endian, interleaved when
// stereo. Capture and playback are delegated to external programs (arecord,
// aplay, ffplay, sox) through [CommandRecorder] and [CommandPlayer].
package audio

import (
	"fmt"
	"time"
)

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond returns the PCM data rate of f.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Duration returns how long n bytes of PCM in format f play for.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

// String returns e.g. "16000Hz mono".
func (f Format) String() string {
	switch f.Channels {
	case 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	default:
		return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
	}
}

// AudioFrame is one chunk of captured PCM.
type AudioFrame struct {
	Data []byte

	SampleRate int
	Channels   int

	// Timestamp is the offset of the frame from the start of capture.
	Timestamp time.Duration
}

// Format returns the frame's format.
func (f AudioFrame) Format() Format {
	return Format{SampleRate: f.SampleRate, Channels: f.Channels}
}
