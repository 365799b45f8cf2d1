package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Result is one page of a listing
type Result[T any] struct {
	Items []T
	First int
	Last  int
	Total int // size of the filtered collection
}

// ContentRange renders the pagination header value, e.g. "descriptors 0-9/42"
func (r Result[T]) ContentRange(resource string) string {
	return fmt.Sprintf("%s %d-%d/%d", resource, r.First, r.Last, r.Total)
}

type entry[T any] struct {
	item T
	raw  string
	doc  any
}

// Apply filters items, slices the range window out of the filtered set and
// sorts that page. Sorting happens after slicing, so a page holds the items
// at the requested positions of the filtered collection, reordered.
func Apply[T any](items []T, p Params) Result[T] {
	entries := make([]entry[T], 0, len(items))
	for _, item := range items {
		e := entry[T]{item: item}
		if b, err := json.Marshal(item); err == nil {
			e.raw = string(b)
			e.doc, _ = oj.Parse(b)
		}
		if p.Filter == nil || p.Filter.matches(e.raw, e.doc) {
			entries = append(entries, e)
		}
	}

	total := len(entries)
	first, last := 0, total-1
	if last < 0 {
		last = 0
	}
	if p.Range != nil {
		first, last = p.Range.First, p.Range.Last
		switch {
		case first >= total:
			entries = entries[:0]
		case last >= total:
			entries = entries[first:]
		default:
			entries = entries[first : last+1]
		}
	}

	if p.Sort != nil {
		sortEntries(entries, *p.Sort)
	}

	page := make([]T, len(entries))
	for i, e := range entries {
		page[i] = e.item
	}
	return Result[T]{Items: page, First: first, Last: last, Total: total}
}

func (f *Filter) matches(raw string, doc any) bool {
	if f.Search != "" && !strings.Contains(raw, f.Search) {
		return false
	}
	for _, pred := range f.Fields {
		if !pred.matches(doc) {
			return false
		}
	}
	return true
}

func (p FieldPredicate) matches(doc any) bool {
	for _, got := range lookup(doc, p.Path) {
		for _, want := range p.Any {
			if equal(got, want) {
				return true
			}
		}
	}
	return false
}

func lookup(doc any, path string) []any {
	x := jp.R()
	for _, seg := range strings.Split(path, ".") {
		x = x.C(seg)
	}
	return x.Get(doc)
}

func sortEntries[T any](entries []entry[T], s Sort) {
	sort.SliceStable(entries, func(i, j int) bool {
		c := compare(head(lookup(entries[i].doc, s.Field)), head(lookup(entries[j].doc, s.Field)))
		if s.Desc {
			return c > 0
		}
		return c < 0
	})
}

func head(values []any) any {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	}
	if n, ok := number(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	opts := oj.DefaultOptions
	opts.Sort = true
	return oj.JSON(v, &opts)
}

// equal compares numbers numerically and everything else by string form,
// so a filter value "5" matches a numeric 5
func equal(got, want any) bool {
	if want == nil {
		return got == nil
	}
	gn, gok := number(got)
	wn, wok := number(want)
	if gok && wok {
		return gn == wn
	}
	return stringify(got) == stringify(want)
}

// compare orders missing values first, numbers numerically, then strings
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	an, aok := number(a)
	bn, bok := number(b)
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	}
	return strings.Compare(stringify(a), stringify(b))
}
