package main

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/drillbook/internal/deck"
	"github.com/conorfennell/drillbook/internal/domain"
	"github.com/conorfennell/drillbook/internal/gitsource"
	"github.com/conorfennell/drillbook/internal/progress"
	"github.com/conorfennell/drillbook/internal/sm2"
	"github.com/conorfennell/drillbook/internal/trend"
)

func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, _ []string) error {
			n, err := a.store.Migrate()
			if err != nil {
				return err
			}
			v, err := a.store.SchemaVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Schema version %d (%d applied)\n", v, n)
			return nil
		}),
	}
}

func dueCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "due",
		Short: "List items due for review, most overdue first",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, _ []string) error {
			items, err := a.review.Due(limit)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(a.out, "Nothing due.")
				return nil
			}
			for _, it := range items {
				fmt.Fprintf(a.out, "%s\t%s\t%s\t%s\n", it.ID, it.Kind, domain.FormatDate(it.NextReviewDate), it.Title)
			}
			return nil
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many items")
	return cmd
}

func reviewCmd(a *app) *cobra.Command {
	var kind, title string
	cmd := &cobra.Command{
		Use:   "review <id> <quality>",
		Short: "Record a review graded 0 (blackout) to 5 (perfect)",
		Args:  cobra.ExactArgs(2),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			q, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quality %q", args[1])
			}
			k, err := domain.ParseItemKind(kind)
			if err != nil {
				return err
			}
			it, err := a.review.Review(domain.ItemRef{ID: args[0], Kind: k, Title: title}, sm2.Quality(q))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s: next review %s (interval %d days, easiness %.2f)\n",
				it.ID, domain.FormatDate(it.NextReviewDate), it.IntervalDays, it.EasinessFactor)
			return nil
		}),
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Item kind when first reviewed (flashcard, exercise, incident)")
	cmd.Flags().StringVar(&title, "title", "", "Item title when first reviewed")
	return cmd
}

func logTimeCmd(a *app) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "log-time <seconds>",
		Short: "Log coding time for the current logical day",
		Args:  cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			secs, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid seconds %q", args[0])
			}
			if err := a.ledger.RecordCodingTime(time.Now(), secs, source); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged %ds for %s\n", secs, domain.FormatDate(a.ledger.Today()))
			return nil
		}),
	}
	cmd.Flags().StringVar(&source, "source", "manual", "Where the time came from")
	return cmd
}

func stepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "step <name>",
		Short: "Mark a workflow step done for the current logical day",
		Args:  cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			added, err := a.ledger.CompleteStep(time.Now(), args[0])
			if err != nil {
				return err
			}
			if !added {
				fmt.Fprintf(a.out, "Step %s was already done today\n", args[0])
				return nil
			}
			fmt.Fprintf(a.out, "Step %s done\n", args[0])
			return nil
		}),
	}
}

func streakCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "streak",
		Short: "Show the strict and rest-day tolerant streaks",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, _ []string) error {
			strict, err := a.ledger.StrictStreak()
			if err != nil {
				return err
			}
			tolerant, err := a.ledger.TolerantStreak()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Strict streak:   %d days\nTolerant streak: %d days\n", strict, tolerant)
			return nil
		}),
	}
}

func trendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trend",
		Short: "Forecast next week's coding time and flag unusual days",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, _ []string) error {
			r, err := trend.NewAnalyzer(a.cfg.TrendWindowDays, a.cfg.AnomalyZThreshold).Analyze(a.ledger)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Window: %d days\n", r.Days)
			fmt.Fprintf(a.out, "Forecast next week: %s (slope %+.0fs/day)\n",
				time.Duration(r.Forecast.TotalNextWeek)*time.Second, r.Forecast.Slope)
			if r.HasNext {
				fmt.Fprintf(a.out, "Next study day: %s\n", domain.FormatDate(r.NextStudy))
			}
			for _, an := range r.Anomalies {
				fmt.Fprintf(a.out, "Anomaly %s %s=%.0f (mean %.1f, z %.2f)\n",
					domain.FormatDate(an.Date), an.Metric, an.Value, an.Mean, an.ZScore)
			}
			return nil
		}),
	}
}

// progressCmd works on the JSON progress file only.
func progressCmd(a *app) *cobra.Command {
	var strategy string
	var exercises []string
	cmd := &cobra.Command{
		Use:   "progress <date> <steps> <time> <cards>",
		Short: "Merge a day's entry into the progress file",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := progress.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			nums := make([]int64, 3)
			for i, s := range args[1:] {
				if nums[i], err = strconv.ParseInt(s, 10, 64); err != nil {
					return fmt.Errorf("invalid number %q", s)
				}
			}

			ps, err := progress.Open(a.cfg.ProgressPath)
			if err != nil {
				return err
			}
			ok, err := ps.Merge(progress.Entry{
				Date:          args[0],
				Steps:         int(nums[0]),
				Time:          nums[1],
				Cards:         int(nums[2]),
				ExercisesDone: exercises,
			}, st)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(a.out, "Entry for %s changed on disk; not merged\n", args[0])
				return nil
			}
			e, _ := ps.Get(args[0])
			fmt.Fprintf(a.out, "%s: steps=%d time=%d cards=%d\n", e.Date, e.Steps, e.Time, e.Cards)
			return nil
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", string(progress.Smart), "Merge strategy: replace, accumulate or smart")
	cmd.Flags().StringSliceVar(&exercises, "exercise", nil, "Exercise completed that day (repeatable)")
	return cmd
}

// watchProgressCmd prints the progress file each time another process
// changes it, until interrupted.
func watchProgressCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch-progress",
		Short: "Print progress entries whenever the progress file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ps, err := progress.Open(a.cfg.ProgressPath)
			if err != nil {
				return err
			}
			w, err := progress.NewWatcher(a.cfg.ProgressPath)
			if err != nil {
				return err
			}
			printEntries(a, ps.Entries())
			return w.Run(cmd.Context(), func() {
				if err := ps.Reload(); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "reload: %v\n", err)
					return
				}
				printEntries(a, ps.Entries())
			})
		},
	}
}

func printEntries(a *app, entries []progress.Entry) {
	fmt.Fprintf(a.out, "%d entries\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(a.out, "  %s steps=%d time=%d cards=%d exercises=%s\n",
			e.Date, e.Steps, e.Time, e.Cards, strings.Join(e.ExercisesDone, ","))
	}
}

func importDeckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import-deck <dir|git-url>",
		Short: "Reconcile a markdown flashcard deck into reviewable items",
		Args:  cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			im := deck.NewImporter(a.store, a.review, filepath.Join(a.cfg.DataDir, "repos"))
			report, err := im.Import(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Parsed %d cards: %d new, %d restored, %d archived, %d errors\n",
				report.Parsed, report.Enrolled, report.Restored, report.Archived, len(report.Errors))
			for _, e := range report.Errors {
				fmt.Fprintf(a.out, "- %v\n", e)
			}
			return nil
		}),
	}
}

func importCommitsCmd(a *app) *cobra.Command {
	var (
		author string
		days   int
	)
	cmd := &cobra.Command{
		Use:   "import-commits <repo>",
		Short: "Record commits from a local git repository as activity",
		Args:  cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			opts := gitsource.ImportOptions{AuthorEmail: author}
			if days > 0 {
				opts.Since = time.Now().AddDate(0, 0, -days)
			}
			n, err := gitsource.ImportCommits(cmd.Context(), args[0], opts, a.ledger)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Recorded %d new commits\n", n)
			return nil
		}),
	}
	cmd.Flags().StringVar(&author, "author", "", "Only import commits by this author email")
	cmd.Flags().IntVar(&days, "days", 0, "Only import commits from the last N days (0 for all)")
	return cmd
}

func cleanupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete log rows older than the retention window (requires --retention-enabled)",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, _ []string) error {
			res, err := a.ledger.Cleanup(0)
			if err != nil {
				return err
			}
			tables := make([]string, 0, len(res.Deleted))
			for table, n := range res.Deleted {
				tables = append(tables, fmt.Sprintf("%s=%d", table, n))
			}
			slices.Sort(tables)
			fmt.Fprintf(a.out, "Deleted %d rows older than %s (%s)\n",
				res.Total(), domain.FormatDate(res.Cutoff), strings.Join(tables, ", "))
			return nil
		}),
	}
}
