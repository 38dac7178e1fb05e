// Package app wires courtroom together.
//
// [Service] owns the corpus, lexicon, matcher and simulator and swaps them
// on config reload. [App] runs one interactive case on top of it: pick a
// language, hear both sides, then print and speak the verdict.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MrWong99/courtroom/internal/observe"
	"github.com/MrWong99/courtroom/internal/verdict"
	"github.com/MrWong99/courtroom/internal/voice"
)

// Fixed utterances of a session.
const (
	LanguagePrompt    = "Which language do you want to use? Hindi, Telugu, Tamil, Kannada, Malayalam, or English."
	ProsecutionPrompt = "Please speak Prosecution's Argument or Evidence"
	DefensePrompt     = "Please speak Defense's Argument or Evidence"
)

// CaseSimulator produces a verdict for two statements. *Service satisfies
// it.
type CaseSimulator interface {
	Simulate(ctx context.Context, prosecution, defense string) verdict.Verdict
}

var _ CaseSimulator = (*Service)(nil)

// Option configures an [App].
type Option func(*App)

// WithStdout redirects the printed transcript and report. Default os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(a *App) { a.stdout = w }
}

// WithDefaultLanguage sets the language used when the spoken choice is not
// recognised. Default [voice.English].
func WithDefaultLanguage(l voice.Language) Option {
	return func(a *App) { a.fallback = l }
}

// WithEcho prints every recognised statement, as a voice session does so
// the user can see what was heard.
func WithEcho(echo bool) Option {
	return func(a *App) { a.echo = echo }
}

// App runs a single case session. Stages run strictly one after another.
type App struct {
	in       voice.Input
	out      voice.Output
	sim      CaseSimulator
	stdout   io.Writer
	fallback voice.Language
	echo     bool
}

// New creates an App reading statements from in, speaking through out and
// judging with sim.
func New(in voice.Input, out voice.Output, sim CaseSimulator, opts ...Option) *App {
	a := &App{
		in:       in,
		out:      out,
		sim:      sim,
		stdout:   os.Stdout,
		fallback: voice.English,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Run executes the session and returns the verdict. Voice failures degrade
// to empty statements; only cancellation of ctx is an error.
func (a *App) Run(ctx context.Context) (verdict.Verdict, error) {
	ctx, span := observe.StartSpan(ctx, "app.Run")
	defer span.End()

	lang := a.ChooseLanguage(ctx)
	if err := ctx.Err(); err != nil {
		return verdict.Verdict{}, err
	}

	a.say(ctx, ProsecutionPrompt, lang)
	prosecution := a.hear(ctx, lang)
	if err := ctx.Err(); err != nil {
		return verdict.Verdict{}, err
	}

	a.say(ctx, DefensePrompt, lang)
	defense := a.hear(ctx, lang)
	if err := ctx.Err(); err != nil {
		return verdict.Verdict{}, err
	}

	v := a.sim.Simulate(ctx, prosecution, defense)
	report := v.Report()
	fmt.Fprintln(a.stdout, report)
	a.say(ctx, report, lang)
	return v, ctx.Err()
}

// ChooseLanguage asks for a language in English and resolves the answer.
// Unrecognised answers fall back to the default language.
func (a *App) ChooseLanguage(ctx context.Context) voice.Language {
	a.say(ctx, LanguagePrompt, voice.English)
	answer := a.hear(ctx, voice.English)

	lang, ok := voice.ResolveLanguage(answer)
	if !ok {
		slog.Info("Language not recognized. Defaulting to " + a.fallback.DisplayName() + ".")
		return a.fallback
	}
	fmt.Fprintf(a.stdout, "Language set to %s (%s, %s)\n", lang.DisplayName(), lang.RecognitionCode, lang.SynthesisCode)
	a.say(ctx, "You have chosen "+lang.DisplayName(), lang)
	return lang
}

// say speaks text. Playback failures are logged and the session goes on.
func (a *App) say(ctx context.Context, text string, lang voice.Language) {
	if err := a.out.Speak(ctx, text, lang); err != nil {
		observe.Logger(ctx).Warn("app: speak failed", "lang", lang.Name, "err", err)
	}
}

func (a *App) hear(ctx context.Context, lang voice.Language) string {
	text := a.in.Listen(ctx, lang)
	if a.echo {
		if text == "" {
			fmt.Fprintln(a.stdout, "Could not understand audio")
		} else {
			fmt.Fprintln(a.stdout, "You said:", text)
		}
	}
	return text
}
