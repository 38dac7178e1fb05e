// Package voice captures spoken statements and speaks results.
//
// [Input] and [Output] are the two voice collaborators of a session. The
// speech implementations, [STTListener] and [TTSSpeaker], sit on top of the
// pkg/provider STT and TTS abstractions and the pkg/audio recorder and
// player. [ConsoleInput] and [ConsoleOutput] replace them for text-only runs.
//
// The selected [Language] is passed to every call; there is no package
// state.
package voice

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Input captures one statement.
type Input interface {
	// Listen returns the recognised text, or "" when nothing could be
	// understood or the recognition service failed. It never returns an
	// error; failures are logged.
	Listen(ctx context.Context, lang Language) string
}

// Output speaks text.
type Output interface {
	// Speak synthesises text in lang and plays it, returning after playback
	// has finished.
	Speak(ctx context.Context, text string, lang Language) error
}

// ConsoleInput reads one line per Listen call.
type ConsoleInput struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
	prompt  io.Writer
}

// NewConsoleInput reads from r. When prompt is non-nil a "> " marker is
// written to it before each read.
func NewConsoleInput(r io.Reader, prompt io.Writer) *ConsoleInput {
	return &ConsoleInput{scanner: bufio.NewScanner(r), prompt: prompt}
}

// Listen implements Input. End of input yields "".
func (c *ConsoleInput) Listen(_ context.Context, lang Language) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prompt != nil {
		fmt.Fprintf(c.prompt, "[%s] > ", lang.RecognitionCode)
	}
	if !c.scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(c.scanner.Text())
}

// ConsoleOutput writes each spoken text as a line.
type ConsoleOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleOutput writes to w.
func NewConsoleOutput(w io.Writer) *ConsoleOutput {
	return &ConsoleOutput{w: w}
}

// Speak implements Output.
func (c *ConsoleOutput) Speak(_ context.Context, text string, _ Language) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, text)
	return err
}
