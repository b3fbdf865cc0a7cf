package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/inboxctl/internal/compose"
	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/textutil"
	"github.com/wesm/inboxctl/internal/watch"
)

var (
	watchFolders  []string
	watchSchedule string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll folders on a schedule and print new mail",
	Long: `Poll folders on a cron schedule and print one line per newly arrived
message. The first poll of each folder runs immediately and records
what is already there.

Folders and schedule default to the [watch] section of config.toml:
  [watch]
  folders = ["inbox"]
  schedule = "*/5 * * * *"

Cron format: minute hour day-of-month month day-of-week

Use Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchFolders, "folder", nil, "folder to watch (repeatable, overrides config)")
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "", "cron schedule (overrides config)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if len(watchFolders) > 0 {
		cfg.Watch.Folders = watchFolders
	}
	if watchSchedule != "" {
		cfg.Watch.Schedule = watchSchedule
	}
	if err := watch.ValidateCronExpr(cfg.Watch.Schedule); err != nil {
		return err
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	arrivals := watch.NewArrivals()
	w := watch.New(func(ctx context.Context, folder string) error {
		msgs, err := c.gw.ListFolder(ctx, c.user, folder)
		if err != nil {
			return err
		}
		printArrivals(out, folder, arrivals.Diff(folder, msgs))
		return nil
	}).WithLogger(logger)

	added, errs := w.AddFoldersFromConfig(cfg)
	for _, err := range errs {
		logger.Error("failed to watch folder", "error", err)
	}
	if added == 0 {
		return fmt.Errorf("no folders to watch")
	}

	w.Start()
	for _, folder := range cfg.Watch.Folders {
		if w.IsWatched(folder) {
			if err := w.Trigger(folder); err != nil {
				logger.Warn("initial poll", "folder", folder, "error", err)
			}
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %d folder(s) on %q. Press Ctrl+C to stop.\n", added, cfg.Watch.Schedule)

	<-cmd.Context().Done()

	select {
	case <-w.Stop().Done():
	case <-time.After(10 * time.Second):
		logger.Warn("watcher did not stop in time")
	}
	return nil
}

func printArrivals(out io.Writer, folder string, msgs []mail.Message) {
	for _, m := range msgs {
		fmt.Fprintf(out, "%s  %-10s %s %-30s %s\n",
			m.Timestamp.Local().Format("2006-01-02 15:04"),
			textutil.Truncate(folder, 10),
			compose.PriorityGlyph(m.Priority),
			textutil.Truncate(m.Sender, 30),
			textutil.Truncate(m.Subject, 60))
	}
}
