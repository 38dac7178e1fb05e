package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/courtroom/internal/app"
	"github.com/MrWong99/courtroom/internal/config"
	"github.com/MrWong99/courtroom/internal/lexicon"
	"github.com/MrWong99/courtroom/internal/voice"
	"github.com/MrWong99/courtroom/pkg/audio"
	"github.com/MrWong99/courtroom/pkg/types"
)

// synonymBoost is the keyword boost given to every crime synonym.
const synonymBoost = 2

// ── run ──────────────────────────────────────────────────────────────────────

var runFlags struct {
	text bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one interactive case session",
	Long: `Asks for a language, then for the prosecution's and the defense's statements,
and reports the matching laws with simulated odds.

Speech is used when STT and TTS providers are configured; --text or a missing
provider falls back to the terminal.`,
	Args: cobra.NoArgs,
	RunE: runSession,
}

func init() {
	runCmd.Flags().BoolVar(&runFlags.text, "text", false, "type statements instead of speaking them")
}

func runSession(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	stopServer, err := startObservability(cmd.Context(), e)
	if err != nil {
		return err
	}
	defer stopServer()

	cfg := e.cfg
	fallback, _ := voice.LookupLanguage(cfg.Voice.DefaultLanguage)

	var in voice.Input = voice.NewConsoleInput(cmd.InOrStdin(), cmd.ErrOrStderr())
	var out voice.Output = voice.NewConsoleOutput(cmd.ErrOrStderr())
	spoken := false

	if !runFlags.text && e.providers.STT != nil {
		format := audio.Format{SampleRate: cfg.Voice.SampleRate, Channels: 1}
		in = voice.NewSTTListener(e.providers.STT,
			audio.NewCommandRecorder(cfg.Voice.RecorderCommand, format),
			voice.WithSTTFormat(format),
			voice.WithListenTimeout(cfg.Voice.ListenTimeout),
			voice.WithKeywords(keywords(e.svc.Lexicon())),
			voice.WithListenerMetrics(e.metrics),
		)
		spoken = true
	}
	if !runFlags.text && e.providers.TTS != nil {
		speaker := voice.NewTTSSpeaker(e.providers.TTS,
			audio.NewCommandPlayer(cfg.Voice.PlayerCommand),
			voice.WithVoice(types.VoiceProfile{
				ID:          cfg.Voice.VoiceID,
				Provider:    cfg.Providers.TTS.Name,
				SpeedFactor: cfg.Voice.SpeedFactor,
			}),
			voice.WithSpeakerMetrics(e.metrics),
		)
		if err := speaker.CheckVoice(cmd.Context()); err != nil {
			slog.Warn("configured voice may not be usable", "voice_id", cfg.Voice.VoiceID, "err", err)
		}
		out = speaker
	}
	slog.Debug("session devices", "speech_input", spoken, "speech_output", !runFlags.text && e.providers.TTS != nil)

	a := app.New(in, out, e.svc,
		app.WithStdout(cmd.OutOrStdout()),
		app.WithDefaultLanguage(fallback),
		app.WithEcho(spoken),
	)
	_, err = a.Run(cmd.Context())
	return err
}

// keywords turns every crime synonym into an STT keyword boost.
func keywords(lx *lexicon.Lexicon) []types.KeywordBoost {
	texts := lx.PhraseTexts()
	kws := make([]types.KeywordBoost, 0, len(texts))
	seen := make(map[string]bool, len(texts))
	for _, t := range texts {
		if seen[t] {
			continue
		}
		seen[t] = true
		kws = append(kws, types.KeywordBoost{Keyword: t, Boost: synonymBoost})
	}
	return kws
}

// ── match ────────────────────────────────────────────────────────────────────

var matchCmd = &cobra.Command{
	Use:   "match <statement...>",
	Short: "Print the laws matching a statement",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMatch,
}

func runMatch(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	for _, line := range e.svc.Match(cmd.Context(), strings.Join(args, " ")) {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

// ── simulate ─────────────────────────────────────────────────────────────────

var simulateFlags struct {
	prosecution string
	defense     string
	seed        uint64
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate a case from two typed statements",
	Args:  cobra.NoArgs,
	RunE:  runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVarP(&simulateFlags.prosecution, "prosecution", "p", "", "the prosecution's argument or evidence")
	f.StringVarP(&simulateFlags.defense, "defense", "d", "", "the defense's argument or evidence")
	f.Uint64Var(&simulateFlags.seed, "seed", 0, "seed the odds for a reproducible outcome (overrides simulation.seed)")
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	var overrides []func(*config.Config)
	if cmd.Flags().Changed("seed") {
		seed := simulateFlags.seed
		overrides = append(overrides, func(cfg *config.Config) { cfg.Simulation.Seed = &seed })
	}

	e, err := setup(cmd, overrides...)
	if err != nil {
		return err
	}
	defer e.close()

	v := e.svc.Simulate(cmd.Context(), simulateFlags.prosecution, simulateFlags.defense)
	fmt.Fprint(cmd.OutOrStdout(), v.Report())
	return nil
}

// ── crimes ───────────────────────────────────────────────────────────────────

var crimesCmd = &cobra.Command{
	Use:   "crimes [category]",
	Short: "List the crime lexicon",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCrimes,
}

func runCrimes(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	lx := e.svc.Lexicon()
	entries := lx.Entries()
	if len(args) == 1 {
		entry, ok := lx.Lookup(args[0])
		if !ok {
			return fmt.Errorf("unknown crime category %q", args[0])
		}
		entries = []lexicon.CrimeEntry{entry}
	}

	out := cmd.OutOrStdout()
	for _, entry := range entries {
		fmt.Fprintf(out, "%s: %s\n", entry.Category, strings.Join(entry.Synonyms, ", "))
		for _, c := range entry.Citations {
			fmt.Fprintf(out, "  - %s\n", c)
		}
	}
	return nil
}

// ── voices ───────────────────────────────────────────────────────────────────

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the voices the configured TTS provider offers",
	Long: `Lists the voice IDs usable as voice.voice_id. The configured voice, if any,
is marked with "*".`,
	Args: cobra.NoArgs,
	RunE: runVoices,
}

func runVoices(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	if e.providers.TTS == nil {
		return errors.New("voices: providers.tts is not configured")
	}
	voices, err := e.providers.TTS.ListVoices(cmd.Context())
	if err != nil {
		return fmt.Errorf("voices: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, v := range voices {
		mark := " "
		if v.ID == e.cfg.Voice.VoiceID {
			mark = "*"
		}
		fmt.Fprintf(out, "%s %s\t%s\n", mark, v.ID, v.Name)
	}
	return nil
}

// ── index ────────────────────────────────────────────────────────────────────

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed every crime synonym into the pgvector index",
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

func runIndex(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	if e.providers.Embeddings == nil {
		return errors.New("index: providers.embeddings is not configured")
	}
	if e.cfg.Index.PostgresDSN == "" {
		return errors.New("index: index.postgres_dsn is not configured")
	}
	ix, err := e.openIndex(cmd.Context())
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	n, err := ix.Sync(cmd.Context(), e.svc.Lexicon().PhraseTexts())
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d new synonyms with %s.\n", n, e.providers.Embeddings.ModelID())
	return nil
}
