package queryir

import (
	"fmt"
)

// MaxFilterDepth bounds the nesting of filter trees.
const MaxFilterDepth = 32

// ValidationResult lists the contract violations found in a query.
type ValidationResult struct {
	// Valid is true when Violations is empty.
	Valid bool

	Violations []string
}

// Validate checks the structural contract a compiler relies on:
//  1. Target view is set
//  2. Operators belong to their closed sets and values match arity
//  3. Aggregate filters appear only inside HAVING
//  4. Group alias is set
//  5. Filter trees are no deeper than MaxFilterDepth
//
// Field existence and value types are the normalizer's concern and are
// not rechecked here. Validate is a pure function with no side effects.
func Validate(q *DynaQuery) ValidationResult {
	v := &validator{violations: []string{}}
	v.validateQuery(q)

	return ValidationResult{
		Valid:      len(v.violations) == 0,
		Violations: v.violations,
	}
}

type validator struct {
	violations []string
}

func (v *validator) addViolation(format string, args ...any) {
	v.violations = append(v.violations, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q *DynaQuery) {
	if q == nil {
		v.addViolation("nil query")
		return
	}
	if q.TargetView == "" {
		v.addViolation("empty target view")
	}

	if q.Filter != nil {
		v.validateFilter(q.Filter, false, 1)
	}

	if g := q.GroupBy; g != nil {
		if g.Alias == "" {
			v.addViolation("group by without alias")
		}
		v.validateAggregator(g.Aggregator)
		if g.Having != nil {
			v.validateFilter(g.Having, true, 1)
		}
	}

	for _, o := range q.OrderBys {
		if _, ok := ParseDirection(string(o.Direction)); !ok {
			v.addViolation("order by %s: unknown direction %q", o.Field, o.Direction)
		}
	}
}

func (v *validator) validateFilter(f Filter, having bool, depth int) {
	if depth > MaxFilterDepth {
		v.addViolation("filter tree deeper than %d", MaxFilterDepth)
		return
	}

	switch node := f.(type) {
	case *SimpleFilter:
		if node == nil {
			v.addViolation("nil simple filter")
			return
		}
		v.validateLeaf(node.Field, node.Operator, len(node.Values))
	case *CompositeFilter:
		if node == nil {
			v.addViolation("nil composite filter")
			return
		}
		if _, ok := ParseConnector(string(node.Connector)); !ok {
			v.addViolation("unknown connector %q", node.Connector)
		}
		for _, child := range node.Filters {
			v.validateFilter(child, having, depth+1)
		}
	case *AggregateFilter:
		if node == nil {
			v.addViolation("nil aggregate filter")
			return
		}
		if !having {
			v.addViolation("aggregate filter on %s outside having", node.Aggregator.Field)
		}
		v.validateAggregator(node.Aggregator)
		v.validateLeaf(node.Aggregator.OutputAlias(), node.Operator, len(node.Values))
	default:
		v.addViolation("unknown filter type: %T", f)
	}
}

func (v *validator) validateLeaf(field string, op FilterOperator, n int) {
	if _, ok := ParseFilterOperator(string(op)); !ok {
		v.addViolation("%s: unknown filter operator %q", field, op)
		return
	}
	if err := op.CheckArity(n); err != nil {
		v.addViolation("%s: %v", field, err)
	}
}

func (v *validator) validateAggregator(a Aggregator) {
	if _, ok := ParseAggregateOperator(string(a.Operator)); !ok {
		v.addViolation("unknown aggregate operator %q", a.Operator)
	}
	if a.Field == "" {
		v.addViolation("aggregate without field")
	}
}
