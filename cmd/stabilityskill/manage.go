package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/manash/stability-skill/internal/generate"
	"github.com/manash/stability-skill/internal/history"
	"github.com/manash/stability-skill/internal/keys"
)

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent drawing attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args, app)
		},
	}
	cmd.Flags().IntVarP(&flagLimit, "limit", "n", 20, "number of entries to show")
	cmd.Flags().StringVarP(&flagSession, "session", "s", "", "only show attempts from this session")
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string, app *App) error {
	ctx := commandContext(cmd)
	store, err := app.NewHistory()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	var entries []*history.Entry
	if flagSession != "" {
		entries, err = store.ListBySession(ctx, flagSession)
	} else {
		entries, err = store.Recent(ctx, flagLimit)
	}
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintln(app.Out, "No drawings yet.")
		return nil
	}

	for _, e := range entries {
		fmt.Fprintf(app.Out, "%s  %-8s %-14s %6s  %s\n",
			shortID(e.ID), e.Status, humanize.Time(e.CreatedAt), e.Duration.Round(100*time.Millisecond), e.Query)
		switch {
		case e.Status == history.StatusFailed:
			fmt.Fprintf(app.Out, "          %s: %s\n", e.ErrorKind, e.Error)
		case e.Removed:
			fmt.Fprintf(app.Out, "          %s (pruned)\n", e.ImagePath)
		case e.ImagePath != "":
			fmt.Fprintf(app.Out, "          %s\n", e.ImagePath)
		}
	}

	summary, err := store.Summary(ctx)
	if err != nil {
		return fmt.Errorf("failed to summarize history: %w", err)
	}
	fmt.Fprintf(app.Out, "\nTotal: %s (%s drawn, %s failed)\n",
		humanize.Comma(int64(summary.Total)), humanize.Comma(int64(summary.Succeeded)), humanize.Comma(int64(summary.Failed)))
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newPruneCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Apply the image cache retention policy now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(cmd, args, app)
		},
	}
}

func runPrune(cmd *cobra.Command, _ []string, app *App) error {
	ctx := commandContext(cmd)
	log := app.newLogger()
	settings, err := app.settingsChain(log)
	if err != nil {
		return err
	}
	store, err := app.NewHistory()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	gen := generate.New(settings,
		generate.WithCacheDir(app.CacheDir),
		generate.WithRecorder(store),
		generate.WithLogger(log),
	)
	result, err := gen.Prune(ctx)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}

	for _, e := range result.Removed {
		fmt.Fprintf(app.Out, "Removed: %s (%s, %s)\n", e.Path, humanize.Bytes(uint64(e.Size)), humanize.Time(e.ModTime))
	}
	fmt.Fprintf(app.Out, "Removed %d image(s), freed %s, kept %d\n",
		len(result.Removed), humanize.Bytes(uint64(result.Bytes)), result.Kept)
	return nil
}

func newKeysCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the stored Stability AI API key",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [key]",
		Short: "Store the API key (prompts when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysSet(cmd, args, app)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the stored API key, masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysShow(cmd, args, app)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysDelete(cmd, args, app)
		},
	})
	return cmd
}

func (app *App) keyStore() (*keys.Store, error) {
	dir, err := app.ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to locate config directory: %w", err)
	}
	return keys.NewStoreAt(dir), nil
}

func runKeysSet(_ *cobra.Command, args []string, app *App) error {
	store, err := app.keyStore()
	if err != nil {
		return err
	}

	var key string
	if len(args) == 1 {
		key = args[0]
	} else {
		fmt.Fprint(app.Err, "Stability AI API key: ")
		key, err = readSecret(app.In)
		fmt.Fprintln(app.Err)
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
	}

	if err := store.Set(keyProvider, strings.TrimSpace(key)); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Stored %s in %s\n", keys.MaskKey(key), store.Path())
	return nil
}

// readSecret reads one line without echo when in is a terminal.
func readSecret(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		return string(b), err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runKeysShow(_ *cobra.Command, _ []string, app *App) error {
	store, err := app.keyStore()
	if err != nil {
		return err
	}
	key, err := store.Get(keyProvider)
	if err != nil {
		return err
	}
	if key == "" {
		fmt.Fprintln(app.Out, "No API key stored.")
		return nil
	}
	fmt.Fprintf(app.Out, "%s: %s\n", keyProvider, keys.MaskKey(key))
	return nil
}

func runKeysDelete(_ *cobra.Command, _ []string, app *App) error {
	store, err := app.keyStore()
	if err != nil {
		return err
	}
	if err := store.Delete(keyProvider); err != nil {
		return err
	}
	fmt.Fprintln(app.Out, "API key removed.")
	return nil
}
