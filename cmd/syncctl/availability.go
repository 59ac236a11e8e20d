package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/timmy/sportsync/internal/availability"
	"github.com/timmy/sportsync/internal/domain"
)

var (
	availHistorical bool
	availScope      []string
)

var availabilityCmd = &cobra.Command{
	Use:   "availability",
	Short: "Show synced data per entity type",
	Long:  `Prints the fast availability summary as soon as it is ready, then the fixture detail once computed.`,
	Args:  cobra.NoArgs,
	RunE:  runAvailability,
}

func init() {
	availabilityCmd.Flags().BoolVar(&availHistorical, "historical", false, "Include fixtures older than the historical window")
	availabilityCmd.Flags().StringSliceVar(&availScope, "scope", nil, "Entity types to include (default all)")
	rootCmd.AddCommand(availabilityCmd)
}

func runAvailability(cmd *cobra.Command, _ []string) error {
	scope := make([]domain.EntityType, 0, len(availScope))
	for _, s := range availScope {
		scope = append(scope, domain.EntityType(strings.TrimSpace(s)))
	}

	out := cmd.OutOrStdout()
	_, err := availability.Compose(cmd.Context(), current.Availability, scope, availHistorical, func(s *domain.AvailabilitySnapshot) {
		printSnapshot(out, s)
	})
	return err
}

func printSnapshot(out io.Writer, s *domain.AvailabilitySnapshot) {
	label := "summary"
	if s.Enriched {
		label = "detail"
	}
	fmt.Fprintf(out, "Availability (%s) at %s\n", label, s.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "  %-12s %10s %10s  %s\n", "TYPE", "LOCAL", "PROVIDER", "LAST SYNC")
	for _, e := range s.Entities {
		last := "never"
		if e.LastSyncedAt != nil {
			last = e.LastSyncedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(out, "  %-12s %10d %10d  %s\n", e.EntityType, e.LocalRows, e.ProviderRows, last)
	}
	if f := s.Fixtures; f != nil {
		fmt.Fprintf(out, "  fixtures: %d total, %d upcoming, %d past, %d stale, %d leagues\n",
			f.Total, f.Upcoming, f.Past, f.Stale, f.LeaguesCovered)
	}
}
