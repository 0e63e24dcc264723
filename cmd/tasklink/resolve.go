package main

import (
	"context"

	"github.com/spf13/cobra"
)

type resolution struct {
	TaskIdentity    string `json:"task_identity"`
	TrackerIdentity string `json:"tracker_identity,omitempty"`
	Source          string `json:"source,omitempty"`
	Resolved        bool   `json:"resolved"`
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <task-identity>...",
		Short: "Resolve task-suite identities to tracker usernames",
		Long: `Resolve task-suite identities to tracker usernames through the mapping
cache, the task-suite directory and the email heuristic. Directory and
heuristic hits are written to the cache.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd.Context(), opts, func(ctx context.Context, app *application) error {
				out := make([]resolution, 0, len(args))
				for _, id := range args {
					trackerIdentity, source, ok := app.resolver.ResolveWithSource(ctx, id)
					out = append(out, resolution{
						TaskIdentity:    id,
						TrackerIdentity: trackerIdentity,
						Source:          string(source),
						Resolved:        ok,
					})
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}
