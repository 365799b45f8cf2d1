// Package query evaluates filter, sort and range parameters over in-memory
// collections for the listing endpoints.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ohler55/ojg/sen"
)

// Filter selects items by a substring of their serialized form and by field
// predicates; an item must satisfy every part that is set
type Filter struct {
	Search string
	Fields []FieldPredicate
}

// FieldPredicate matches when a value at the dotted Path equals one of Any
type FieldPredicate struct {
	Path string
	Any  []any
}

// Sort orders a page by one property
type Sort struct {
	Field string
	Desc  bool
}

// Range is an inclusive 0-based window
type Range struct {
	First int
	Last  int
}

// Params are the parsed listing parameters; nil fields are not applied
type Params struct {
	Filter *Filter
	Sort   *Sort
	Range  *Range
}

// ParamError reports one listing parameter that could not be parsed
type ParamError struct {
	Param string
	Value string
	Err   error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s parameter %q: %v", e.Param, e.Value, e.Err)
}

func (e *ParamError) Unwrap() error { return e.Err }

// Parse parses the raw filter, sort and range values. Every malformed value
// is reported in errs and left nil in Params; the others are still applied.
func Parse(filter, sortValue, rangeValue string) (Params, []error) {
	var p Params
	var errs []error

	if filter != "" {
		f, err := ParseFilter(filter)
		if err != nil {
			errs = append(errs, &ParamError{Param: "filter", Value: filter, Err: err})
		} else {
			p.Filter = f
		}
	}
	if sortValue != "" {
		s, err := ParseSort(sortValue)
		if err != nil {
			errs = append(errs, &ParamError{Param: "sort", Value: sortValue, Err: err})
		} else {
			p.Sort = s
		}
	}
	if rangeValue != "" {
		r, err := ParseRange(rangeValue)
		if err != nil {
			errs = append(errs, &ParamError{Param: "range", Value: rangeValue, Err: err})
		} else {
			p.Range = r
		}
	}
	return p, errs
}

// ParseFilter accepts a quoted string (substring search) or an object of
// fields. Nested objects flatten into dotted paths, the key "q" is a
// substring search over the whole item and array values mean "any of".
func ParseFilter(value string) (*Filter, error) {
	v, err := sen.Parse([]byte(value))
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case string:
		return &Filter{Search: t}, nil
	case map[string]any:
		f := &Filter{}
		flatten("", t, f)
		sort.Slice(f.Fields, func(i, j int) bool { return f.Fields[i].Path < f.Fields[j].Path })
		return f, nil
	default:
		return nil, fmt.Errorf("expected a string or an object, got %T", v)
	}
}

func flatten(prefix string, m map[string]any, f *Filter) {
	for k, v := range m {
		if prefix == "" && k == "q" {
			if s, ok := v.(string); ok {
				f.Search = s
				continue
			}
		}
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			flatten(path, t, f)
		case []any:
			f.Fields = append(f.Fields, FieldPredicate{Path: path, Any: t})
		default:
			f.Fields = append(f.Fields, FieldPredicate{Path: path, Any: []any{t}})
		}
	}
}

// ParseSort accepts ["field", "direction"]. The order is descending unless
// the direction is "asc" in any letter case.
func ParseSort(value string) (*Sort, error) {
	v, err := sen.Parse([]byte(value))
	if err != nil {
		return nil, err
	}
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return nil, fmt.Errorf("expected [field, direction]")
	}
	field, ok := arr[0].(string)
	if !ok || field == "" {
		return nil, fmt.Errorf("sort field must be a non-empty string")
	}
	dir, ok := arr[1].(string)
	if !ok {
		return nil, fmt.Errorf("sort direction must be a string")
	}
	return &Sort{Field: field, Desc: strings.ToLower(dir) != "asc"}, nil
}

// ParseRange accepts [first, last] with 0 <= first <= last
func ParseRange(value string) (*Range, error) {
	v, err := sen.Parse([]byte(value))
	if err != nil {
		return nil, err
	}
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return nil, fmt.Errorf("expected [first, last]")
	}
	first, ok1 := toInt(arr[0])
	last, ok2 := toInt(arr[1])
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("range bounds must be integers")
	}
	if first < 0 || last < first {
		return nil, fmt.Errorf("range [%d, %d] is not a valid window", first, last)
	}
	return &Range{First: first, Last: last}, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
