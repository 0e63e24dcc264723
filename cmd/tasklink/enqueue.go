package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/phrazzld/tasklink/internal/domain"
)

// enqueueOptions mirror the fields of a link job.
type enqueueOptions struct {
	file         string
	taskID       string
	taskURL      string
	summary      string
	description  string
	dueTimestamp string
	assignees    []string
	project      string
	createdBy    string
}

func newEnqueueCmd(opts *rootOptions) *cobra.Command {
	eo := &enqueueOptions{}

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a link job for a task",
		Long: `Queue a link job for a task. The job is read from --file (use "-" for
stdin) as JSON, or assembled from flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			job, err := eo.job(cmd.InOrStdin())
			if err != nil {
				return err
			}

			return withApplication(cmd.Context(), opts, func(ctx context.Context, app *application) error {
				msgID, err := app.linkService.EnqueueLink(ctx, job)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int64{"msg_id": msgID})
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&eo.file, "file", "f", "", "read the job as JSON from a file")
	f.StringVar(&eo.taskID, "task-id", "", "task-suite task id")
	f.StringVar(&eo.taskURL, "task-url", "", "task-suite URL of the task")
	f.StringVar(&eo.summary, "summary", "", "task summary, used as the issue title")
	f.StringVar(&eo.description, "description", "", "task description")
	f.StringVar(&eo.dueTimestamp, "due", "", "due time as epoch seconds or milliseconds")
	f.StringSliceVar(&eo.assignees, "assignee", nil, "task-suite identity of an assignee (repeatable)")
	f.StringVarP(&eo.project, "project", "p", "", "tracker project path, e.g. group/app")
	f.StringVar(&eo.createdBy, "created-by", "", "task-suite identity of the creator")

	return cmd
}

// job builds the link job from --file or from the flags.
func (eo *enqueueOptions) job(stdin io.Reader) (domain.LinkJob, error) {
	if eo.file == "" {
		return domain.LinkJob{
			TaskID:                 eo.taskID,
			TaskURL:                eo.taskURL,
			Summary:                eo.summary,
			Description:            eo.description,
			DueTimestamp:           eo.dueTimestamp,
			AssigneeTaskIdentities: eo.assignees,
			TrackerProject:         eo.project,
			CreatedBy:              eo.createdBy,
		}, nil
	}

	var r io.Reader = stdin
	if eo.file != "-" {
		fh, err := os.Open(eo.file)
		if err != nil {
			return domain.LinkJob{}, fmt.Errorf("failed to open job file: %w", err)
		}
		defer func() { _ = fh.Close() }()
		r = fh
	}

	var job domain.LinkJob
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&job); err != nil {
		return domain.LinkJob{}, fmt.Errorf("failed to decode job: %w", err)
	}
	return job, nil
}
