package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/tasklink/internal/queue"
)

// deadLetterView is the printed form of an archived job.
type deadLetterView struct {
	MsgID      int64           `json:"msg_id"`
	ReadCount  int             `json:"read_count"`
	Reason     string          `json:"reason"`
	Detail     string          `json:"detail,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	ArchivedAt time.Time       `json:"archived_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

func toDeadLetterViews(dead []queue.DeadLetter) []deadLetterView {
	out := make([]deadLetterView, 0, len(dead))
	for _, d := range dead {
		out = append(out, deadLetterView{
			MsgID:      d.MsgID,
			ReadCount:  d.ReadCount,
			Reason:     string(d.Reason),
			Detail:     d.Detail,
			EnqueuedAt: d.EnqueuedAt,
			ArchivedAt: d.ArchivedAt,
			Payload:    d.Payload,
		})
	}
	return out
}

func newDeadLettersCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deadletters",
		Aliases: []string{"dlq"},
		Short:   "Inspect and replay dropped link jobs",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recently archived jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("limit must be positive, got %d", limit)
			}
			return withApplication(cmd.Context(), opts, func(ctx context.Context, app *application) error {
				dead, err := app.jobQueue.ListDeadLetters(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), toDeadLetterViews(dead))
			})
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of entries")

	requeue := &cobra.Command{
		Use:   "requeue <msg-id>",
		Short: "Put an archived job back on the queue with a fresh read count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msgID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || msgID <= 0 {
				return fmt.Errorf("invalid message id %q", args[0])
			}
			return withApplication(cmd.Context(), opts, func(ctx context.Context, app *application) error {
				newID, err := app.jobQueue.Requeue(ctx, msgID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int64{"msg_id": newID})
			})
		},
	}

	cmd.AddCommand(list, requeue)
	return cmd
}
