package jsonapi

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// QueryParams represents the query parameters of a JSON:API request.
type QueryParams struct {
	Filters    map[string]string
	Sort       []string
	Include    []string
	Fields     map[string][]string
	PageSize   int
	PageNumber int
}

// NewQueryParams creates an empty QueryParams.
func NewQueryParams() *QueryParams {
	return &QueryParams{
		Filters: make(map[string]string),
		Fields:  make(map[string][]string),
	}
}

// WithFilter sets a filter value.
func (p *QueryParams) WithFilter(key, value string) *QueryParams {
	if p.Filters == nil {
		p.Filters = make(map[string]string)
	}

	p.Filters[key] = value

	return p
}

// WithSort appends sort fields.
func (p *QueryParams) WithSort(fields ...string) *QueryParams {
	p.Sort = append(p.Sort, fields...)

	return p
}

// WithInclude appends include paths.
func (p *QueryParams) WithInclude(paths ...string) *QueryParams {
	p.Include = append(p.Include, paths...)

	return p
}

// WithFields replaces the sparse fieldset for a resource type.
func (p *QueryParams) WithFields(resourceType string, fields ...string) *QueryParams {
	if p.Fields == nil {
		p.Fields = make(map[string][]string)
	}

	p.Fields[resourceType] = fields

	return p
}

// WithPage sets the page size and number.
func (p *QueryParams) WithPage(size, number int) *QueryParams {
	p.PageSize = size
	p.PageNumber = number

	return p
}

// ToValues converts the parameters to url.Values. Include paths are
// deduplicated and sorted; sort fields are joined in the order given.
func (p *QueryParams) ToValues() url.Values {
	values := url.Values{}

	for key, value := range p.Filters {
		values.Set("filter["+key+"]", value)
	}

	if len(p.Sort) > 0 {
		values.Set("sort", strings.Join(p.Sort, ","))
	}

	if len(p.Include) > 0 {
		values.Set("include", strings.Join(dedupeSorted(p.Include), ","))
	}

	for resourceType, fields := range p.Fields {
		if len(fields) > 0 {
			values.Set("fields["+resourceType+"]", strings.Join(fields, ","))
		}
	}

	if p.PageSize > 0 {
		values.Set("page[size]", strconv.Itoa(p.PageSize))
	}

	if p.PageNumber > 0 {
		values.Set("page[number]", strconv.Itoa(p.PageNumber))
	}

	return values
}

func dedupeSorted(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))

	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}

		seen[item] = struct{}{}
		out = append(out, item)
	}

	sort.Strings(out)

	return out
}
