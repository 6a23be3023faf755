package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/recordlink-io/jsonapi-orm/pkg/jsonapi"
)

// NewGetCommand creates the get command.
func NewGetCommand() *cobra.Command {
	var (
		prefetch    []string
		ignoreCache bool
	)

	cmd := &cobra.Command{
		Use:   "get TYPE ID",
		Short: "Fetch a single record",
		Long:  "Fetch one record by resource type and primary key, serving from the record cache when possible",
		Args:  cobra.ExactArgs(2),
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

			pk, err := strconv.Atoi(args[1])
			if err != nil {
				return err
			}

			manager := store.Query(rt).PrefetchRelated(prefetch...)

			var opts []jsonapi.GetOption
			if ignoreCache {
				opts = append(opts, jsonapi.IgnoreCache())
			}

			record, err := manager.Get(ctx, pk, opts...)
			if err != nil {
				return err
			}

			return renderRecords([]*jsonapi.Record{record}, rt)
		},
	}

	cmd.Flags().StringArrayVar(&prefetch, "prefetch", nil, "relationship paths to prefetch (segments joined by __)")
	cmd.Flags().BoolVar(&ignoreCache, "ignore-cache", false, "bypass the record cache")

	return cmd
}
