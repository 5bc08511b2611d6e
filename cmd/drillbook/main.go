// Command drillbook is a thin command-line front end to the drillbook
// engine: spaced-repetition reviews, activity logging, streaks and trends.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/conorfennell/drillbook/internal/config"
	"github.com/conorfennell/drillbook/internal/ledger"
	"github.com/conorfennell/drillbook/internal/review"
	"github.com/conorfennell/drillbook/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "drillbook: %v\n", err)
		os.Exit(1)
	}
}

// app carries what the subcommands share. The store is opened per command
// and only by commands that need it.
type app struct {
	cfg      *config.Config
	store    *storage.Store
	ledger   *ledger.Ledger
	review   *review.Service
	out      io.Writer
	closeLog func()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{out: stdout, closeLog: func() {}}
	defer func() { a.closeLog() }()

	root := &cobra.Command{
		Use:           "drillbook",
		Short:         "Spaced repetition and consistency tracking for deliberate practice",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Flags(), stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		migrateCmd(a),
		dueCmd(a),
		reviewCmd(a),
		logTimeCmd(a),
		stepCmd(a),
		streakCmd(a),
		trendCmd(a),
		progressCmd(a),
		watchProgressCmd(a),
		importDeckCmd(a),
		importCommitsCmd(a),
		cleanupCmd(a),
	)
	return root.ExecuteContext(ctx)
}

// init loads configuration from the parsed flags and installs logging.
func (a *app) init(fs *pflag.FlagSet, stderr io.Writer) error {
	cfg, err := config.Load("", fs)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	a.cfg = cfg
	a.closeLog = setupLogging(cfg, stderr)
	return nil
}

// withStore opens the database for the duration of one command.
func (a *app) withStore(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		st, err := storage.Open(a.cfg.Store())
		if err != nil {
			return err
		}
		defer st.Close()

		a.store = st
		a.ledger = ledger.New(st, a.cfg.Store())
		a.review = review.New(st, a.cfg.Store())
		return fn(cmd, args)
	}
}

// setupLogging installs the default slog logger. Logs go to stderr and, if
// configured, to a size-rotated file.
func setupLogging(cfg *config.Config, stderr io.Writer) func() {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	w := stderr
	closer := func() {}
	if cfg.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		w = io.MultiWriter(stderr, lj)
		closer = func() { lj.Close() }
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return closer
}
