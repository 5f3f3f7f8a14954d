package cli

import (
	"github.com/spf13/cobra"

	"github.com/bulkproc/bulkproc/internal/queue"
)

// newDrainCmd creates the "drain" command: run the queue consumer until
// the queue is empty.
func newDrainCmd(app *App) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Process all queued work items",
		Long: `Drain the durable work queue, applying each item's callback to its
record. Items are independent and are processed concurrently; delivery
is at-least-once, so callbacks should be idempotent. Per-item failures
are counted and logged but never stop the drain.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeDrain(cmd, app, workers)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0,
		"Consumer pool size (default from config)")

	return cmd
}

func executeDrain(cmd *cobra.Command, app *App, workers int) error {
	log := app.log

	if workers < 1 {
		workers = app.cfg.Workers
	}

	q, err := queue.Open(app.cfg.QueuePath, log)
	if err != nil {
		return err
	}
	defer q.Close()

	consumer := queue.NewConsumer(
		q, app.cfg.QueueName, app.backend.Store, app.backend.Callbacks, workers, log)
	agg, err := consumer.Drain(cmd.Context())
	if err != nil {
		return err
	}

	cmd.Printf("Drained: %d succeeded, %d failed.\n", agg.Success, agg.Errors)
	return nil
}
