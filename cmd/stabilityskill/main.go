package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/manash/stability-skill/internal/batch"
	"github.com/manash/stability-skill/internal/config"
	"github.com/manash/stability-skill/internal/config/paramstore"
	"github.com/manash/stability-skill/internal/display"
	"github.com/manash/stability-skill/internal/generate"
	"github.com/manash/stability-skill/internal/history"
	"github.com/manash/stability-skill/internal/host"
	"github.com/manash/stability-skill/internal/keys"
	"github.com/manash/stability-skill/internal/locale"
	"github.com/manash/stability-skill/internal/provider"
	"github.com/manash/stability-skill/internal/provider/stability"
	"github.com/manash/stability-skill/internal/repl"
	"github.com/manash/stability-skill/internal/session"
	"github.com/manash/stability-skill/internal/skill"
)

var (
	version = "dev"
	commit  = "none"
)

// keyProvider names the credential in the key store.
const keyProvider = "stability"

var (
	flagVerbose     bool
	flagConfig      string
	flagLang        string
	flagDirect      bool
	flagParallel    int
	flagPerMinute   float64
	flagStopOnError bool
	flagLimit       int
	flagSession     string
)

type App struct {
	In          io.Reader
	Out         io.Writer
	Err         io.Writer
	GetEnv      func(string) string
	ConfigDir   func() (string, error)
	CacheDir    string
	Locale      *locale.Bundle
	NewHistory  func() (*history.Store, error)
	NewParams   func(ctx context.Context) (paramstore.Getter, error)
	NewProvider provider.Constructor
	NewGUI      func() host.GUI
}

func DefaultApp() *App {
	return &App{
		In:        os.Stdin,
		Out:       os.Stdout,
		Err:       os.Stderr,
		GetEnv:    os.Getenv,
		ConfigDir: keys.ConfigDir,
		Locale:    locale.Default(),
		NewHistory: history.NewStore,
		NewParams: func(ctx context.Context) (paramstore.Getter, error) {
			c, err := paramstore.NewFromEnvironment(ctx)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		NewProvider: stability.NewProvider,
		NewGUI: func() host.GUI {
			return display.NewTerminal(os.Stdout)
		},
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app := DefaultApp()
	rootCmd := newRootCmd(app)
	return rootCmd.Execute()
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stabilityskill",
		Short: "Voice-assistant skill that draws what you ask with Stability AI",
		Long: `stabilityskill runs the Stability AI drawing skill from a terminal.

Utterances are matched the way an assistant host would match them,
the image is drawn through the Stability AI API, and the answer is
spoken as text. Images are shown inline on terminals that support
the Kitty graphics protocol.

Examples:
  stabilityskill ask "draw a cat wearing a hat"
  stabilityskill ask --direct "a lighthouse at dusk"
  stabilityskill converse --lang es-es
  stabilityskill batch utterances.txt --parallel 2 --per-minute 10
  stabilityskill keys set sk-...`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log request details")
	cmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "settings file (defaults to settings.yaml in the config directory)")
	cmd.PersistentFlags().StringVarP(&flagLang, "lang", "l", batch.DefaultLang, "session language")

	cmd.AddCommand(newAskCmd(app))
	cmd.AddCommand(newConverseCmd(app))
	cmd.AddCommand(newBatchCmd(app))
	cmd.AddCommand(newHistoryCmd(app))
	cmd.AddCommand(newPruneCmd(app))
	cmd.AddCommand(newKeysCmd(app))

	return cmd
}

func newAskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <utterance>",
		Short: "Say one utterance to the skill in a fresh session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, args, app)
		},
	}
	cmd.Flags().BoolVarP(&flagDirect, "direct", "d", false, "draw the text as given, without matching")
	return cmd
}

func newConverseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "converse",
		Short: "Hold a conversation with the skill",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConverse(cmd, args, app)
		},
	}
}

func newBatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Run utterances from a .txt or .json file, one session each",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, app)
		},
	}
	cmd.Flags().IntVarP(&flagParallel, "parallel", "p", 1, "turns to run at once")
	cmd.Flags().Float64Var(&flagPerMinute, "per-minute", 0, "maximum turns started per minute (0 for no limit)")
	cmd.Flags().BoolVar(&flagStopOnError, "stop-on-error", false, "stop at the first failed turn")
	return cmd
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runAsk(_ *cobra.Command, args []string, app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, err := app.build(ctx, app.NewGUI())
	if err != nil {
		return err
	}
	defer rt.Close()

	sess := host.Session{ID: uuid.NewString(), Lang: flagLang}
	defer rt.skill.StopSession(sess)

	utterance := strings.Join(args, " ")
	if flagDirect {
		rt.skill.HandleQuery(ctx, sess, utterance)
		st, _ := rt.skill.Store().Get(sess.ID)
		return reportImage(app.Out, st.ImagePath)
	}

	res := rt.skill.Turn(ctx, sess, utterance)
	if !res.Matched {
		return batch.ErrNoMatch
	}
	return reportImage(app.Out, res.Image)
}

func reportImage(out io.Writer, path string) error {
	if path == "" {
		return batch.ErrNoImage
	}
	fmt.Fprintf(out, "Image: %s\n", path)
	return nil
}

func runConverse(_ *cobra.Command, _ []string, app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, err := app.build(ctx, app.NewGUI())
	if err != nil {
		return err
	}
	defer rt.Close()

	r := repl.New(&repl.Config{
		In:    app.In,
		Out:   app.Out,
		Err:   app.Err,
		Skill: rt.skill,
		Lang:  flagLang,
	})
	err = r.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runBatch(_ *cobra.Command, args []string, app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

	items, err := batch.ParseFile(args[0])
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no utterances in %s", args[0])
	}

	// parallel turns would interleave inline images
	rt, err := app.build(ctx, display.Headless{})
	if err != nil {
		return err
	}
	defer rt.Close()

	p := batch.NewProcessor(rt.skill, app.Out, app.Err)
	results, err := p.Process(ctx, items, &batch.Options{
		Parallel:    flagParallel,
		PerMinute:   flagPerMinute,
		Lang:        flagLang,
		StopOnError: flagStopOnError,
	})
	p.PrintSummary(results)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("%d of %d turns failed", countFailed(results), len(results))
		}
	}
	return nil
}

func countFailed(results []batch.Result) int {
	n := 0
	for _, r := range results {
		if r.Error != nil {
			n++
		}
	}
	return n
}

// runtime is the wired skill for one command invocation.
type runtime struct {
	log      *logrus.Logger
	settings config.Provider
	history  *history.Store
	gen      *generate.Generator
	skill    *skill.Skill
}

func (rt *runtime) Close() {
	if rt.skill != nil {
		rt.skill.Stop()
	}
	if rt.history != nil {
		rt.history.Close()
	}
}

func (app *App) newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(app.Err)
	log.SetLevel(logrus.WarnLevel)
	if flagVerbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// settingsChain resolves the settings file, then the parameter store,
// then the key store and the environment.
func (app *App) settingsChain(log logrus.FieldLogger) (config.Provider, error) {
	dir, err := app.ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to locate config directory: %w", err)
	}
	path := flagConfig
	if path == "" {
		path = config.DefaultPath(dir)
	}

	params := paramstore.NewCached(paramstore.NewLazy(app.NewParams), paramstore.DefaultTTL)
	base := config.NewParamStore(config.NewFileProvider(path), params)
	return config.NewChain(base, keys.NewStoreAt(dir), keyProvider, log).WithEnv(app.GetEnv), nil
}

func (app *App) build(ctx context.Context, gui host.GUI) (*runtime, error) {
	log := app.newLogger()
	settings, err := app.settingsChain(log)
	if err != nil {
		return nil, err
	}

	hist, err := app.NewHistory()
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	store := session.NewStore()
	gen := generate.New(settings,
		generate.WithConstructor(app.NewProvider),
		generate.WithCacheDir(app.CacheDir),
		generate.WithRecorder(hist),
		generate.WithInUse(store.References),
		generate.WithLogger(log),
		generate.WithVerbose(flagVerbose),
	)

	current, err := settings.Settings(ctx)
	if err != nil {
		log.WithError(err).Warn("could not read settings, using defaults")
		current = config.Defaults()
	}

	sk := skill.New(skill.Deps{
		Store:     store,
		Generator: gen,
		Settings:  settings,
		GUI:       gui,
		Speaker:   newConsole(app.Out, app.Locale),
		Context:   contextLog{log: log},
		Threshold: current.Threshold,
		Logger:    log,
	})
	if err := sk.RegisterLocale(app.Locale); err != nil {
		hist.Close()
		return nil, fmt.Errorf("failed to load locale: %w", err)
	}

	return &runtime{log: log, settings: settings, history: hist, gen: gen, skill: sk}, nil
}
