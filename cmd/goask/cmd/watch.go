package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goask/internal/scheduler"
)

var watchSchedule string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the index up to date on a schedule",
	Long: `Watch refreshes the index once, then again on every tick of the cron
schedule until interrupted. A tick is skipped while the previous refresh is
still running.

The schedule is read from schedule.reindex unless --schedule is given.
Sending SIGHUP refreshes immediately.

Example:
  goask watch --schedule "@every 30m"
  goask watch --schedule "0 * * * *"`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "",
		"Cron expression overriding schedule.reindex")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	spec := watchSchedule
	if spec == "" {
		spec = cfg.Schedule.Reindex
	}
	if spec == "" {
		return fmt.Errorf("no schedule: set schedule.reindex or pass --schedule")
	}

	ctx, stop := commandContext(cmd, log)
	defer stop()

	app, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	s, err := scheduler.New(spec, func(ctx context.Context) error {
		_, err := app.Refresh(ctx, false)
		return err
	}, log, scheduler.RunOnStart())
	if err != nil {
		return err
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-hup:
				log.Infow("Received SIGHUP, refreshing now")
				s.Trigger()
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Infow("Watching data sources", "schedule", spec)
	if err := s.Run(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Watch stopped after %d refresh(es), %d failed\n", s.Runs(), s.Failed())
	return nil
}
