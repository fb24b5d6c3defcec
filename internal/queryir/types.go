package queryir

import (
	"sort"
	"strings"
)

// Filter is a node of the filter tree.
//
// This is a sealed interface - only *SimpleFilter, *CompositeFilter and
// *AggregateFilter implement it. Compilers switch over exactly these
// three variants.
type Filter interface {
	filterNode() // Marker method - seals interface to this package
}

// SimpleFilter compares one field against literal values.
//
// Semantics:
//
//	<field> <operator> <values>
//
// Values holds the converted values (int64, float64, bool, rune, string
// or time.Time); Raw holds the strings they came from, in the same order.
type SimpleFilter struct {
	Field    string
	Operator FilterOperator
	Values   []any
	Raw      []string
}

func (*SimpleFilter) filterNode() {}

// CompositeFilter combines child filters with AND or OR.
//
// Nesting is preserved as written; compilers must not flatten children
// across connectors. An empty AND is always true, an empty OR never.
type CompositeFilter struct {
	Filters   []Filter
	Connector Connector
}

func (*CompositeFilter) filterNode() {}

// AggregateFilter compares an aggregate expression against literal values.
//
// Only valid inside GroupBy.Having. Its field is the aggregate itself,
// so it is not checked against the view's fields.
type AggregateFilter struct {
	Aggregator Aggregator
	Operator   FilterOperator
	Values     []any
	Raw        []string
}

func (*AggregateFilter) filterNode() {}

// Aggregator applies an aggregate function to a field.
type Aggregator struct {
	Field    string
	Operator AggregateOperator
	Alias    string
}

// DefaultAlias returns "<op>_<field>" lowercased.
func DefaultAlias(op AggregateOperator, field string) string {
	return strings.ToLower(string(op) + "_" + field)
}

// OutputAlias returns the alias, or the default alias when none is set.
func (a Aggregator) OutputAlias() string {
	if a.Alias != "" {
		return a.Alias
	}
	return DefaultAlias(a.Operator, a.Field)
}

// GroupBy groups rows by Fields and computes one aggregate per group.
//
// Alias is the output name of the aggregate column and may be referenced
// as a field name inside Having.
type GroupBy struct {
	Fields     []string
	Aggregator Aggregator
	Having     Filter
	Alias      string
}

// OrderBy is one ordering clause. Clauses are applied by ascending Sequence.
type OrderBy struct {
	Field     string
	Direction Direction
	Sequence  int
}

// ProjectBy names a field of the output.
type ProjectBy struct {
	Field   string
	Visible bool
}

// DynaQuery is a normalized query against one view.
type DynaQuery struct {
	TargetView string
	ProjectBys []ProjectBy
	Filter     Filter
	GroupBy    *GroupBy
	OrderBys   []OrderBy
}

// SortedOrderBys returns the ordering clauses sorted by Sequence.
// Ties keep their input order.
func (q *DynaQuery) SortedOrderBys() []OrderBy {
	out := make([]OrderBy, len(q.OrderBys))
	copy(out, q.OrderBys)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Sequence < out[j].Sequence
	})
	return out
}

// VisibleProjections returns the visible projected fields in declared order.
func (q *DynaQuery) VisibleProjections() []string {
	var out []string
	for _, p := range q.ProjectBys {
		if p.Visible {
			out = append(out, p.Field)
		}
	}
	return out
}

// Depth returns the height of a filter tree; nil has depth 0.
func Depth(f Filter) int {
	c, ok := f.(*CompositeFilter)
	if !ok {
		if f == nil {
			return 0
		}
		return 1
	}
	max := 0
	for _, child := range c.Filters {
		if d := Depth(child); d > max {
			max = d
		}
	}
	return max + 1
}
