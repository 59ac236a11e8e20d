package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/service"
)

var (
	batchesName  string
	batchesLimit int
	itemsStatus  string
	itemsPage    int
	itemsPerPage int
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List recent sync batches",
	Args:  cobra.NoArgs,
	RunE:  runBatches,
}

var batchItemsCmd = &cobra.Command{
	Use:   "items [batch-id]",
	Short: "List the items of one batch",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatchItems,
}

func init() {
	batchesCmd.Flags().StringVar(&batchesName, "name", "", "Only batches with this name")
	batchesCmd.Flags().IntVarP(&batchesLimit, "limit", "n", 20, "Maximum batches to list")
	batchItemsCmd.Flags().StringVar(&itemsStatus, "status", "", "Only items with this status")
	batchItemsCmd.Flags().IntVar(&itemsPage, "page", 1, "Page number")
	batchItemsCmd.Flags().IntVar(&itemsPerPage, "per-page", 50, "Items per page")

	batchesCmd.AddCommand(batchItemsCmd)
	rootCmd.AddCommand(batchesCmd)
}

func runBatches(cmd *cobra.Command, _ []string) error {
	batches, err := current.Tracker.ListBatches(cmd.Context(), batchesName, batchesLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(batches) == 0 {
		fmt.Fprintln(out, "No batches.")
		return nil
	}
	fmt.Fprintf(out, "%-6s %-14s %-22s %6s %6s %6s  %s\n", "ID", "NAME", "STATUS", "OK", "FAIL", "TOTAL", "STARTED")
	for _, b := range batches {
		fmt.Fprintf(out, "%-6d %-14s %-22s %6d %6d %6d  %s\n",
			b.ID, b.Name, b.Status(), b.OKCount, b.FailCount, b.TotalCount, b.StartedAt.Format(time.RFC3339))
	}
	return nil
}

func runBatchItems(cmd *cobra.Command, args []string) error {
	var id uint
	if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
		return fmt.Errorf("invalid batch id %q", args[0])
	}

	page, err := current.Tracker.ListItems(cmd.Context(), service.ItemQuery{
		BatchID: id,
		Page:    itemsPage,
		PerPage: itemsPerPage,
		Status:  domain.ItemStatus(itemsStatus),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Batch %d: %d items (page %d)\n", id, page.Total, page.Page)
	for _, it := range page.Items {
		line := fmt.Sprintf("  %-12s %-8s %-8s", it.ExternalID, it.Action, it.Status)
		if it.ErrorMessage != "" {
			line += "  " + it.ErrorMessage
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
