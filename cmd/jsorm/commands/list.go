package commands

import (
	"github.com/spf13/cobra"

	"github.com/recordlink-io/jsonapi-orm/pkg/jsonapi"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	var (
		filters  []string
		sortKeys []string
		include  []string
		prefetch []string
		limit    int
	)

	cmd := &cobra.Command{
		Use:     "list TYPE",
		Aliases: []string{"ls"},
		Short:   "List records",
		Long:    "List records of a resource type, fetching pages lazily until the listing ends or the limit is reached",
		Args:    cobra.ExactArgs(1),
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

			manager := store.Query(rt).
				Sort(sortKeys...).
				Include(include...).
				PrefetchRelated(prefetch...)

			for key, value := range parsed {
				manager = manager.Filter(key, value)
			}

			iterator := manager.Iterator(ctx)
			records := make([]*jsonapi.Record, 0)

			for iterator.HasNext() {
				record, iterErr := iterator.Next()
				if iterErr != nil {
					return iterErr
				}

				records = append(records, record)
				if limit > 0 && len(records) >= limit {
					break
				}
			}

			if err := iterator.Err(); err != nil {
				return err
			}

			return renderRecords(records, rt)
		},
	}

	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "filter as key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&sortKeys, "sort", "s", nil, "sort keys, prefix with - for descending")
	cmd.Flags().StringArrayVar(&include, "include", nil, "include paths")
	cmd.Flags().StringArrayVar(&prefetch, "prefetch", nil, "relationship paths to prefetch (segments joined by __)")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many records (0 = all)")

	return cmd
}
