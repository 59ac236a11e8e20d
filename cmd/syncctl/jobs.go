package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/timmy/sportsync/internal/app"
	"github.com/timmy/sportsync/internal/domain"
)

var (
	triggerWait  bool
	jobsSyncDefs bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List configured jobs and their last run",
	Args:  cobra.NoArgs,
	RunE:  runJobs,
}

var jobsTriggerCmd = &cobra.Command{
	Use:   "trigger [job-name]",
	Short: "Start a run of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsTrigger,
}

func init() {
	jobsTriggerCmd.Flags().BoolVarP(&triggerWait, "wait", "w", true, "Wait for the run to finish")
	jobsCmd.Flags().BoolVar(&jobsSyncDefs, "sync-definitions", false, "Write job definitions from the config file before listing")

	jobsCmd.AddCommand(jobsTriggerCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, _ []string) error {
	return printJobs(cmd.Context(), current, cmd.OutOrStdout(), jobsSyncDefs)
}

// printJobs lists jobs as stored. Job definitions are only written when
// syncDefs is set.
func printJobs(ctx context.Context, a *app.App, out io.Writer, syncDefs bool) error {
	if syncDefs {
		if err := a.Jobs.EnsureJobs(ctx, a.Config.Jobs); err != nil {
			return err
		}
	}
	jobs, err := a.Jobs.ListJobs(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%-4s %-22s %-11s %-12s %-8s %s\n", "ID", "NAME", "TYPE", "SCHEDULE", "ENABLED", "LAST RUN")
	for _, j := range jobs {
		last := "-"
		if j.LastRun != nil {
			last = fmt.Sprintf("#%d %s %s", j.LastRun.ID, j.LastRun.Status, j.LastRun.StartedAt.Format(time.RFC3339))
		}
		fmt.Fprintf(out, "%-4d %-22s %-11s %-12s %-8t %s\n", j.ID, j.Name, j.EntityType, j.Schedule, j.Enabled, last)
	}
	return nil
}

func runJobsTrigger(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := current.Jobs.EnsureJobs(ctx, current.Config.Jobs); err != nil {
		return err
	}

	jobs, err := current.Jobs.ListJobs(ctx)
	if err != nil {
		return err
	}
	var jobID uint
	for _, j := range jobs {
		if j.Name == args[0] {
			jobID = j.ID
		}
	}
	if jobID == 0 {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, args[0])
	}

	run, err := current.Jobs.TriggerRun(ctx, jobID, domain.RunTriggerManual)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %d started\n", run.ID)
	if !triggerWait {
		return nil
	}

	current.Jobs.Wait()
	run, err = current.Jobs.GetRun(ctx, run.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Run %d %s: ok %d, failed %d, total %d\n", run.ID, run.Status, run.OKCount, run.FailCount, run.TotalCount)
	if run.ErrorSummary != "" {
		fmt.Fprintf(out, "  %s\n", run.ErrorSummary)
	}
	return nil
}
