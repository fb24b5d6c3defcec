package queryir

import "fmt"

// FilterOperator is the closed set of leaf comparison operators.
type FilterOperator string

const (
	OpEQ      FilterOperator = "EQ"
	OpNE      FilterOperator = "NE"
	OpLT      FilterOperator = "LT"
	OpLE      FilterOperator = "LE"
	OpGT      FilterOperator = "GT"
	OpGE      FilterOperator = "GE"
	OpLike    FilterOperator = "LIKE"
	OpNotLike FilterOperator = "NOTLIKE"
	OpIn      FilterOperator = "IN"
	OpNotIn   FilterOperator = "NOTIN"
	OpBetween FilterOperator = "BETWEEN"
	OpIsNull  FilterOperator = "ISNULL"
	OpNotNull FilterOperator = "NOTNULL"
)

var filterOperators = []FilterOperator{
	OpEQ, OpNE, OpLT, OpLE, OpGT, OpGE, OpLike, OpNotLike,
	OpIn, OpNotIn, OpBetween, OpIsNull, OpNotNull,
}

// ParseFilterOperator maps an operator name to its FilterOperator.
func ParseFilterOperator(s string) (FilterOperator, bool) {
	for _, op := range filterOperators {
		if string(op) == s {
			return op, true
		}
	}
	return "", false
}

// CheckArity verifies the number of values the operator is applied to.
//
//	ISNULL, NOTNULL: none
//	BETWEEN:         exactly two
//	IN, NOTIN:       one or more
//	others:          exactly one
func (op FilterOperator) CheckArity(n int) error {
	switch op {
	case OpIsNull, OpNotNull:
		if n != 0 {
			return fmt.Errorf("%s takes no values, got %d", op, n)
		}
	case OpBetween:
		if n != 2 {
			return fmt.Errorf("%s takes exactly 2 values, got %d", op, n)
		}
	case OpIn, OpNotIn:
		if n < 1 {
			return fmt.Errorf("%s takes at least 1 value", op)
		}
	default:
		if n != 1 {
			return fmt.Errorf("%s takes exactly 1 value, got %d", op, n)
		}
	}
	return nil
}

// IsPattern reports whether values are matched as text patterns.
func (op FilterOperator) IsPattern() bool {
	return op == OpLike || op == OpNotLike
}

// Connector joins the children of a CompositeFilter.
type Connector string

const (
	And Connector = "AND"
	Or  Connector = "OR"
)

// ParseConnector maps a connector name to its Connector.
func ParseConnector(s string) (Connector, bool) {
	switch Connector(s) {
	case And, Or:
		return Connector(s), true
	}
	return "", false
}

// AggregateOperator is the closed set of aggregate functions.
type AggregateOperator string

const (
	Sum   AggregateOperator = "SUM"
	Avg   AggregateOperator = "AVG"
	Min   AggregateOperator = "MIN"
	Max   AggregateOperator = "MAX"
	Count AggregateOperator = "COUNT"
)

// ParseAggregateOperator maps an aggregate name to its AggregateOperator.
func ParseAggregateOperator(s string) (AggregateOperator, bool) {
	switch AggregateOperator(s) {
	case Sum, Avg, Min, Max, Count:
		return AggregateOperator(s), true
	}
	return "", false
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection maps a direction name to its Direction.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case Asc, Desc:
		return Direction(s), true
	}
	return "", false
}
