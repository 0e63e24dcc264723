package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/tasklink/internal/domain"
	"github.com/phrazzld/tasklink/internal/service"
)

func newLinkCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Inspect and manage task links",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <task-id>",
			Short: "Show the issue linked to a task",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApplication(cmd.Context(), opts, func(ctx context.Context, app *application) error {
					link, err := app.linkService.GetLink(ctx, args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), link)
				})
			},
		},
		&cobra.Command{
			Use:   "unlink <task-id>",
			Short: "Forget the link of a task; the issue is left untouched",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApplication(cmd.Context(), opts, func(ctx context.Context, app *application) error {
					if err := app.linkService.Unlink(ctx, args[0]); err != nil {
						return err
					}
					_, err := fmt.Fprintf(cmd.OutOrStdout(), "unlinked %s\n", args[0])
					return err
				})
			},
		},
		newLinkCompleteCmd(opts),
		newLinkStatusCmd(opts),
	)

	return cmd
}

func newLinkCompleteCmd(opts *rootOptions) *cobra.Command {
	var reopen bool

	cmd := &cobra.Command{
		Use:   "complete <task-id> [completed-at]",
		Short: "Record task completion and close the linked issue",
		Long: `Record task completion and mirror it to the linked issue. completed-at
is an epoch timestamp and defaults to now; --reopen records "0" instead,
which reopens the issue.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			completedAt := strconv.FormatInt(time.Now().Unix(), 10)
			if len(args) == 2 {
				completedAt = args[1]
			}
			if reopen {
				completedAt = "0"
			}

			return withApplication(cmd.Context(), opts, func(ctx context.Context, app *application) error {
				link, err := app.linkService.SetTaskCompletion(ctx, args[0], completedAt)
				if link != nil {
					if perr := printJSON(cmd.OutOrStdout(), link); perr != nil {
						return perr
					}
				}
				if errors.Is(err, service.ErrTrackerSync) {
					return fmt.Errorf("task status recorded but the issue was not updated: %w", err)
				}
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&reopen, "reopen", false, "mark the task as not completed")
	return cmd
}

func newLinkStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id> <todo|in_progress|done>",
		Short: "Record the task-side status of a link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd.Context(), opts, func(ctx context.Context, app *application) error {
				return app.linkService.UpdateTaskStatus(ctx, args[0], domain.TaskStatus(args[1]))
			})
		},
	}
}
