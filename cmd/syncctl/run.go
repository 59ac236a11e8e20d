package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/provider"
	"github.com/timmy/sportsync/internal/service"
)

var runParams []string

var runCmd = &cobra.Command{
	Use:   "run [entity-type]",
	Short: "Sync one entity type now",
	Long:  `Fetches the entity type from the provider, applies it to the local store, and prints the batch outcome.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSync,
}

func init() {
	runCmd.Flags().StringArrayVarP(&runParams, "param", "p", nil, "Provider query parameter as key=value (repeatable)")
	rootCmd.AddCommand(runCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	entityType, err := domain.ParseEntityType(args[0])
	if err != nil {
		return err
	}
	params, err := parseParams(runParams)
	if err != nil {
		return err
	}

	result, err := current.Sync.Run(cmd.Context(), service.SyncRequest{
		EntityType: entityType,
		Params:     params,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Batch %d (%s)\n", result.BatchID, result.EntityType)
	fmt.Fprintf(out, "  ok: %d  failed: %d  total: %d\n", result.OK, result.Fail, result.Total)
	fmt.Fprintf(out, "  created: %d  updated: %d  unchanged: %d\n", result.Created, result.Updated, result.Skipped)
	fmt.Fprintf(out, "  duration: %dms\n", result.DurationMs)
	if result.Cancelled {
		fmt.Fprintln(out, "  cancelled before all records were applied")
	}
	return nil
}

func parseParams(raw []string) (provider.Params, error) {
	params := provider.Params{}
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q, expected key=value", kv)
		}
		params[key] = value
	}
	return params, nil
}
