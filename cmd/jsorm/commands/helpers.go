package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/recordlink-io/jsonapi-orm/pkg/jsonapi"
	"github.com/recordlink-io/jsonapi-orm/pkg/ormclient"
)

// Output format constants.
const (
	OutputFormatTable = "table"
	OutputFormatJSON  = "json"
	OutputFormatYAML  = "yaml"
)

// Static errors for command validation.
var (
	ErrUnknownResourceType = errors.New("resource type not declared in config")
	ErrInvalidFilter       = errors.New("filters must be key=value")
	ErrUnknownOutputFormat = errors.New("unknown output format")
)

// buildStore loads the configuration and wires a record store plus the
// registry it was built from.
func buildStore(ctx context.Context) (*jsonapi.Store, *jsonapi.Registry, error) {
	cfg, err := ormclient.LoadConfig(viper.GetString("config"))
	if err != nil {
		return nil, nil, err
	}

	registry, err := cfg.BuildRegistry()
	if err != nil {
		return nil, nil, err
	}

	var logger jsonapi.Logger = jsonapi.NopLogger{}

	if viper.GetBool("verbose") {
		zapLogger, zapErr := zap.NewDevelopment()
		if zapErr != nil {
			return nil, nil, fmt.Errorf("building logger: %w", zapErr)
		}

		logger = ormclient.NewZapLogger(zapLogger)
		cfg.Debug = true
	}

	store, err := ormclient.New(ctx, registry, cfg.ClientConfig(logger))
	if err != nil {
		return nil, nil, err
	}

	return store, registry, nil
}

// resolveType looks up a declared record type by its resource-type tag.
func resolveType(registry *jsonapi.Registry, resourceType string) (*jsonapi.RecordType, error) {
	rt, ok := registry.Resolve(resourceType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResourceType, resourceType)
	}

	return rt, nil
}

// parseFilters converts repeated key=value flags into a filter map.
func parseFilters(pairs []string) (map[string]string, error) {
	filters := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, pair)
		}

		filters[key] = value
	}

	return filters, nil
}

// recordView is the serializable projection of a record used by json/yaml
// output.
type recordView struct {
	Type          string         `json:"type"          yaml:"type"`
	ID            int            `json:"id"            yaml:"id"`
	Attributes    map[string]any `json:"attributes"    yaml:"attributes"`
	Relationships map[string]any `json:"relationships" yaml:"relationships"`
}

func viewOf(record *jsonapi.Record) recordView {
	rt := record.Type()
	view := recordView{
		Type:          rt.ResourceType,
		ID:            record.ID(),
		Attributes:    map[string]any{},
		Relationships: map[string]any{},
	}

	for _, name := range rt.FieldNames() {
		if _, isRel := rt.Relationship(name); isRel {
			if identifiers, ok := record.RelatedIdentifiers(name); ok {
				view.Relationships[name] = identifiers

				continue
			}

			if identifier, ok := record.RelatedIdentifier(name); ok {
				view.Relationships[name] = identifier
			}

			continue
		}

		if value, ok := record.Attr(name); ok {
			view.Attributes[name] = value
		}
	}

	return view
}

// renderRecords prints records in the requested output format.
func renderRecords(records []*jsonapi.Record, rt *jsonapi.RecordType) error {
	views := make([]recordView, len(records))
	for i, record := range records {
		views[i] = viewOf(record)
	}

	switch viper.GetString("output") {
	case OutputFormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		return encoder.Encode(views)

	case OutputFormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)
		defer func() { _ = encoder.Close() }()

		return encoder.Encode(views)

	case OutputFormatTable:
		renderTable(views, rt)

		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownOutputFormat, viper.GetString("output"))
	}
}

func renderTable(views []recordView, rt *jsonapi.RecordType) {
	columns := rt.FieldNames()

	header := make([]any, 0, len(columns)+1)
	header = append(header, "ID")

	for _, column := range columns {
		header = append(header, column)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header(header...)

	for _, view := range views {
		row := make([]any, 0, len(columns)+1)
		row = append(row, fmt.Sprintf("%d", view.ID))

		for _, column := range columns {
			row = append(row, cellValue(view, column))
		}

		_ = table.Append(row...)
	}

	_ = table.Render()
}

func cellValue(view recordView, column string) string {
	if value, ok := view.Attributes[column]; ok {
		return fmt.Sprintf("%v", value)
	}

	value, ok := view.Relationships[column]
	if !ok || value == nil {
		return ""
	}

	switch typed := value.(type) {
	case *jsonapi.Identifier:
		if typed == nil {
			return ""
		}

		return typed.ID
	case []jsonapi.Identifier:
		ids := make([]string, len(typed))
		for i, identifier := range typed {
			ids[i] = identifier.ID
		}

		return strings.Join(ids, ",")
	default:
		return fmt.Sprintf("%v", value)
	}
}
