package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bedrockmate/internal/client"
	"bedrockmate/internal/jobs"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Submit and inspect analysis jobs",
}

var (
	submitWorld  string
	submitParams string
	submitWait   bool
	listWorld    string
	listStatus   string
	waitInterval time.Duration
)

var jobSubmitCmd = &cobra.Command{
	Use:   "submit <structures|biome|slime_map>",
	Short: "Submit a job against a world",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := jobs.ParseType(args[0])
		if err != nil {
			return err
		}
		var params json.RawMessage
		if submitParams != "" {
			if !json.Valid([]byte(submitParams)) {
				return errors.New("--params must be a JSON object")
			}
			params = json.RawMessage(submitParams)
		}

		c := newClient()
		ctx, cancel := requestContext(cmd)
		defer cancel()
		worldID, err := resolveWorld(ctx, c, submitWorld)
		if err != nil {
			return err
		}

		j, err := c.SubmitJob(ctx, client.SubmitRequest{WorldID: worldID, JobType: t, Parameters: params})
		if err != nil {
			return err
		}
		if !submitWait {
			if asJSON {
				return printJSON(j)
			}
			fmt.Printf("Submitted %s job %s\n", j.Type, j.ID)
			return nil
		}
		return waitAndPrint(cmd.Context(), c, j.ID)
	},
}

var jobGetCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Show a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()
		j, err := newClient().GetJob(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(j)
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		var status jobs.Status
		if listStatus != "" {
			st, err := jobs.ParseStatus(listStatus)
			if err != nil {
				return err
			}
			status = st
		}
		ctx, cancel := requestContext(cmd)
		defer cancel()
		list, err := newClient().ListJobs(ctx, listWorld, status)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(list)
		}
		for _, j := range list {
			fmt.Printf("%s  %-10s  %-9s  %3d%%  %s\n",
				j.ID, j.Type, j.Status, j.Progress, j.CreatedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var jobWaitCmd = &cobra.Command{
	Use:   "wait <job-id>",
	Short: "Poll a job until it completes or fails",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return waitAndPrint(cmd.Context(), newClient(), args[0])
	},
}

var jobDeleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete a job record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()
		if err := newClient().DeleteJob(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("Job deleted:", args[0])
		return nil
	},
}

func waitAndPrint(parent context.Context, c *client.Client, id string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	j, err := c.WaitForJob(ctx, id, waitInterval, func(j *jobs.Job) {
		if !asJSON && !j.Done() {
			fmt.Printf("%s  %-9s  %3d%%\n", j.ID, j.Status, j.Progress)
		}
	})
	if err != nil {
		return err
	}
	if asJSON || j.Status == jobs.StatusCompleted {
		return printJSON(j)
	}
	return fmt.Errorf("job %s failed: %s", j.ID, j.ErrorMessage)
}

func init() {
	jobSubmitCmd.Flags().StringVar(&submitWorld, "world", "", "World id (defaults to the active world)")
	jobSubmitCmd.Flags().StringVar(&submitParams, "params", "", `Job parameters as JSON, e.g. '{"radius":2000}'`)
	jobSubmitCmd.Flags().BoolVar(&submitWait, "wait", false, "Wait for the job to finish")
	jobListCmd.Flags().StringVar(&listWorld, "world", "", "Filter by world id")
	jobListCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (pending|running|completed|failed)")
	for _, c := range []*cobra.Command{jobSubmitCmd, jobWaitCmd} {
		c.Flags().DurationVar(&waitInterval, "interval", client.DefaultPollInterval, "Polling interval")
	}
	jobCmd.AddCommand(jobSubmitCmd, jobGetCmd, jobListCmd, jobWaitCmd, jobDeleteCmd)
	rootCmd.AddCommand(jobCmd)
}
