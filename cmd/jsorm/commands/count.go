package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCountCommand creates the count command.
func NewCountCommand() *cobra.Command {
	var filters []string

	cmd := &cobra.Command{
		Use:   "count TYPE",
		Short: "Count matching records",
		Long:  "Ask the remote service how many records match the filters without fetching them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, registry, err := buildStore(ctx)
			if err != nil {
				return err
			}

			rt, err := resolveType(registry, args[0])
			if err != nil {
				return err
			}

			parsed, err := parseFilters(filters)
			if err != nil {
				return err
			}

			manager := store.Query(rt)
			for key, value := range parsed {
				manager = manager.Filter(key, value)
			}

			count, err := manager.Count(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), count)

			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "filter as key=value (repeatable)")

	return cmd
}
