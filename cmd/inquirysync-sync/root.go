package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"inquirysync/internal/core/category"
	"inquirysync/internal/core/version"
	"inquirysync/internal/modkit"
	"inquirysync/internal/modkit/module"
	"inquirysync/internal/modkit/repokit"
	"inquirysync/internal/platform/config"
	perr "inquirysync/internal/platform/errors"
	"inquirysync/internal/platform/logger"
	"inquirysync/internal/platform/store"
	syncdomain "inquirysync/internal/services/sync/domain"
	syncmod "inquirysync/internal/services/sync/module"

	"github.com/spf13/cobra"
)

// syncModule is what the commands need from the wired sync module
type syncModule interface {
	module.Module
	Interval() time.Duration
}

// openSync opens the stores and builds the sync module; the returned func closes the stores
var openSync = func(ctx context.Context, cfg config.Conf) (syncModule, func(), error) {
	log := logger.Get()
	st, err := store.Open(ctx, store.ConfigFrom(cfg, "sync"), store.WithLogger(*log))
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if err := st.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}
	repokit.MustGuard(ctx, st)

	m, err := syncmod.New(ctx, modkit.FromStore(cfg, st))
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	module.Register(m.Name(), m.Ports())
	return m, closeStore, nil
}

func newRootCmd(out io.Writer) *cobra.Command {
	cfg := config.New()
	root := &cobra.Command{
		Use:   "inquirysync-sync",
		Short: "Sync spreadsheet inquiries into Postgres",
		Long: `Reads every inquiry tab of the intake spreadsheet, routes each tab to a category,
inserts rows not yet stored and sends one notification per pass.`,
		Example: `  # one pass over every enabled category
  $ inquirysync-sync once

  # one pass over two categories, report as JSON
  $ inquirysync-sync once --categories estimate,careon_application --json

  # run every 30 minutes until SIGINT or SIGTERM
  $ inquirysync-sync schedule --interval 30m`,
		Version:       version.Info().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(out)

	root.AddCommand(
		newOnceCmd(cfg),
		newScheduleCmd(cfg),
		newNotifyTestCmd(cfg),
		newCategoriesCmd(cfg),
	)
	return root
}

func newOnceCmd(cfg config.Conf) *cobra.Command {
	var (
		cats   []string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single sync pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			only, err := category.ParseList(cats)
			if err != nil {
				return err
			}
			m, closeFn, err := openSync(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			runner := module.MustPortsOf[syncdomain.RunnerPort](m)
			rep, err := runner.RunPass(cmd.Context(), syncdomain.PassOptions{Categories: only})
			if err != nil {
				return err
			}
			if err := printReport(cmd.OutOrStdout(), rep, asJSON); err != nil {
				return err
			}
			if rep.Failed() {
				return perr.Newf(perr.ErrorCodeUnknown, "pass %s finished with errors", rep.RunID)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&cats, "categories", nil, "comma separated category keys, default all enabled")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the pass report as JSON")
	return cmd
}

func newScheduleCmd(cfg config.Conf) *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run a pass now and then on every interval until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, closeFn, err := openSync(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			if every <= 0 {
				every = m.Interval()
			}
			logger.Named("cli").Info().Dur("interval", every).Msg("scheduler starting")
			return module.MustPortsOf[syncdomain.RunnerPort](m).Schedule(cmd.Context(), every)
		},
	}
	cmd.Flags().DurationVar(&every, "interval", 0, "pass interval, default SYNC_INTERVAL")
	return cmd
}

func newNotifyTestCmd(cfg config.Conf) *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test message through every enabled notification channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tab, err := loadTable(cfg)
			if err != nil {
				return err
			}
			fan, err := syncmod.NewNotifier(syncmod.NotifyFromConfig(cfg), tab)
			if err != nil {
				return err
			}
			chs := fan.Channels()
			if len(chs) == 0 {
				return perr.InvalidArgf("no notification channel enabled")
			}
			if err := fan.Test(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "test message sent via %s\n", strings.Join(chs, ", "))
			return err
		},
	}
}

func newCategoriesCmd(cfg config.Conf) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Print the effective category table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tab, err := loadTable(cfg)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tDISPLAY\tTABLE\tVIEW\tENABLED\tKEYWORDS")
			for _, s := range tab.Specs() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
					s.Key, s.Display, s.Table, s.View, s.Enabled, strings.Join(s.SheetKeywords, ","))
			}
			return tw.Flush()
		},
	}
}

// loadTable applies SYNC_CATEGORIES_FILE and SYNC_CATEGORIES
func loadTable(cfg config.Conf) (*category.Table, error) {
	sy := cfg.Prefix("SYNC_")
	tab, err := category.Load(sy.MayString("CATEGORIES_FILE", ""))
	if err != nil {
		return nil, err
	}
	only, err := category.ParseList(sy.MayCSV("CATEGORIES", nil))
	if err != nil {
		return nil, err
	}
	return tab.Restrict(only), nil
}

func printReport(w io.Writer, rep syncdomain.PassReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run %s  sheets %d  inserted %d  notified %t\n", rep.RunID, len(rep.Sheets), rep.Inserted, rep.Notified)
	fmt.Fprintln(tw, "CATEGORY\tSTATUS\tREAD\tNEW\tEXISTING\tDUPLICATE\tDROPPED\tERROR")
	for _, o := range rep.Outcomes {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			o.Category, o.Status, o.Read, o.Inserted, o.Existing, o.Duplicate, o.Dropped, o.Error)
	}
	if len(rep.Skipped) > 0 {
		fmt.Fprintf(tw, "skipped sheets: %s\n", strings.Join(rep.Skipped, ", "))
	}
	if rep.NotifyError != "" {
		fmt.Fprintf(tw, "notify error: %s\n", rep.NotifyError)
	}
	return tw.Flush()
}
