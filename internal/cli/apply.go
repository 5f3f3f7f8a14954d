package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bulkproc/bulkproc/internal/batch"
	"github.com/bulkproc/bulkproc/internal/entity"
	"github.com/bulkproc/bulkproc/internal/queue"
	"github.com/bulkproc/bulkproc/internal/selector"
)

// applyParams holds the flag values of the apply command.
type applyParams struct {
	ids      string
	bundles  string
	fields   []string
	size     int
	queue    bool
	efqClass string
	yes      bool
}

// newApplyCmd creates the "apply" command: resolve a selection, confirm
// with the operator, and run the callback inline or enqueue it.
func newApplyCmd(app *App) *cobra.Command {
	var params applyParams

	cmd := &cobra.Command{
		Use:   "apply <entity-type> <callback>",
		Short: "Apply a registered callback to a selected set of records",
		Long: `Apply a registered callback to every record in a selection.

The selection comes from --ids when given; explicit IDs are assumed
operator-verified and suppress --bundles and --fields entirely.
Otherwise a conjunctive filtered query is built from --bundles and
--fields and resolved through the configured query engine.

Inline runs show a summary and ask for confirmation before any work
begins, then process the selection in chunks with progress after each
chunk. With --queue each record is enqueued as a durable work item
instead and no confirmation is asked; run "bulkproc drain" to process
the queue.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeApply(cmd, app, params, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&params.ids, "ids", "",
		"Comma-separated record IDs (suppresses --bundles and --fields)")
	cmd.Flags().StringVar(&params.bundles, "bundles", "",
		"Comma-separated bundle names to select from")
	cmd.Flags().StringSliceVar(&params.fields, "fields", nil,
		"Field conditions as field|operator|value tuples, ANDed in order")
	cmd.Flags().IntVar(&params.size, "size", batch.DefaultChunkSize,
		"Number of records per chunk")
	cmd.Flags().BoolVar(&params.queue, "queue", false,
		"Enqueue one durable work item per record instead of running inline")
	cmd.Flags().StringVar(&params.efqClass, "efq-class", "",
		"Substitute query engine (registered name; default from config)")
	cmd.Flags().BoolVar(&params.yes, "yes", false,
		"Skip the confirmation prompt")

	return cmd
}

func executeApply(cmd *cobra.Command, app *App, params applyParams, entityType, callbackRef string) error {
	ctx := cmd.Context()
	log := app.log

	explicitIDs, err := ParseIDList(params.ids)
	if err != nil {
		return err
	}
	conditions, err := ParseFieldConditions(params.fields)
	if err != nil {
		return err
	}
	criteria := selector.Criteria{
		IDs:        explicitIDs,
		Bundles:    ParseList(params.bundles),
		Conditions: conditions,
	}

	engineName := params.efqClass
	if engineName == "" {
		engineName = app.cfg.Engine
	}

	sel := selector.New(app.backend.Schema, app.backend.Engines, engineName, log)
	ids, err := sel.Resolve(ctx, entityType, criteria)
	if err != nil {
		return err
	}

	chunkSize := params.size
	if !cmd.Flags().Changed("size") && app.cfg.ChunkSize > 0 {
		chunkSize = app.cfg.ChunkSize
	}

	if params.queue {
		return executeEnqueue(cmd, app, ids, entityType, callbackRef)
	}

	// Confirmation gate: inline mutation is not reversible, so block
	// until the operator says go.
	if !params.yes {
		Summarize(cmd.OutOrStdout(), entityType, callbackRef, ids)
		in := cmd.InOrStdin()
		if f, ok := in.(*os.File); ok && !isTerminal(f) {
			cmd.Println("Aborted: confirmation required (use --yes in scripts).")
			return nil
		}
		result := Confirm(cmd.OutOrStdout(), in)
		if !result.Accepted {
			cmd.Println("Aborted.")
			return nil
		}
	}

	runner, err := batch.NewRunner(app.backend.Store, app.backend.Callbacks, chunkSize, log)
	if err != nil {
		return err
	}
	runner.WithProgress(func(p batch.Progress) {
		cmd.Printf("Processed %d of %d records (%d%%)\n", p.Processed, p.Total, p.Percent())
	})

	agg, err := runner.Run(ctx, ids, entityType, callbackRef)
	if err != nil {
		return err
	}

	// Record-level failures are reported in the aggregate only; they do
	// not affect the exit status.
	cmd.Printf("Done: %d succeeded, %d failed.\n", agg.Success, agg.Errors)
	return nil
}

// executeEnqueue is the deferred path: one durable work item per
// selected ID. Queueing is treated as low-risk, so the confirmation
// gate is skipped.
func executeEnqueue(cmd *cobra.Command, app *App, ids []entity.ID, entityType, callbackRef string) error {
	log := app.log

	q, err := queue.Open(app.cfg.QueuePath, log)
	if err != nil {
		return err
	}
	defer q.Close()

	sink := queue.NewSink(q, app.cfg.QueueName, log)
	count, err := sink.EnqueueAll(cmd.Context(), ids, entityType, callbackRef)
	if err != nil {
		return fmt.Errorf("enqueued %d of %d items: %w", count, len(ids), err)
	}

	cmd.Printf("Enqueued %d work item(s) to queue %q.\n", count, app.cfg.QueueName)
	return nil
}
