package querysql

import (
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/roach88/dynaquery/internal/dqerr"
	"github.com/roach88/dynaquery/internal/queryir"
	"github.com/roach88/dynaquery/internal/schema"
)

// Wildcard is the SQL pattern character LIKE values are wrapped with.
const Wildcard = "%"

// operand is everything a leaf predicate can be built on: a column or an
// aggregate expression.
type operand interface {
	exp.Comparable
	exp.Inable
	exp.Likeable
	exp.Isable
	exp.Rangeable
}

// filterCompiler translates a filter tree. With group set it compiles a
// HAVING clause, where the group alias stands for the aggregate.
type filterCompiler struct {
	view  *schema.View
	group *queryir.GroupBy
}

func (fc *filterCompiler) compile(f queryir.Filter) (exp.Expression, error) {
	switch n := f.(type) {
	case *queryir.SimpleFilter:
		target, kind, err := fc.target(n.Field)
		if err != nil {
			return nil, err
		}
		if kind == schema.KindTimestamp && len(n.Values) > 0 && !n.Operator.IsPattern() {
			return leaf(instant(target), n.Operator, n.Values, func(v any) any { return instant(param(v)) })
		}
		return leaf(target, n.Operator, n.Values, param)

	case *queryir.AggregateFilter:
		agg, err := aggregate(fc.view, n.Aggregator)
		if err != nil {
			return nil, err
		}
		return leaf(agg, n.Operator, n.Values, param)

	case *queryir.CompositeFilter:
		children := make([]exp.Expression, 0, len(n.Filters))
		for _, child := range n.Filters {
			e, err := fc.compile(child)
			if err != nil {
				return nil, err
			}
			children = append(children, e)
		}
		switch n.Connector {
		case queryir.And:
			if len(children) == 0 {
				return goqu.L("1 = 1"), nil
			}
			return goqu.And(children...), nil
		case queryir.Or:
			if len(children) == 0 {
				return goqu.L("1 = 0"), nil
			}
			return goqu.Or(children...), nil
		}
		return nil, dqerr.Internal("unknown connector %q", n.Connector)

	case nil:
		return nil, dqerr.Internal("nil filter node")
	}
	return nil, dqerr.Internal("unknown filter node %T", f)
}

// target resolves a simple filter's field and its kind. Inside HAVING the
// group alias resolves to the group's aggregate expression.
func (fc *filterCompiler) target(field string) (operand, schema.Kind, error) {
	if fc.group != nil && field == fc.group.Alias {
		agg, err := aggregate(fc.view, fc.group.Aggregator)
		return agg, 0, err
	}
	f, ok := fc.view.Field(field)
	if !ok {
		return nil, 0, dqerr.Internal("filter field %s is not a field of %s", field, fc.view.Name)
	}
	return column(fc.view, f), f.Kind, nil
}

// leaf builds one predicate. bind converts each IR value into the
// parameter the target is compared against.
func leaf(target operand, op queryir.FilterOperator, values []any, bind func(any) any) (exp.Expression, error) {
	if err := op.CheckArity(len(values)); err != nil {
		return nil, dqerr.Internal("%v", err)
	}
	params := make([]any, len(values))
	for i, v := range values {
		params[i] = bind(v)
	}

	switch op {
	case queryir.OpEQ:
		return target.Eq(params[0]), nil
	case queryir.OpNE:
		return target.Neq(params[0]), nil
	case queryir.OpLT:
		return target.Lt(params[0]), nil
	case queryir.OpLE:
		return target.Lte(params[0]), nil
	case queryir.OpGT:
		return target.Gt(params[0]), nil
	case queryir.OpGE:
		return target.Gte(params[0]), nil
	case queryir.OpLike:
		return target.Like(Pattern(params[0])), nil
	case queryir.OpNotLike:
		return target.NotLike(Pattern(params[0])), nil
	case queryir.OpIn:
		return target.In(params), nil
	case queryir.OpNotIn:
		return target.NotIn(params), nil
	case queryir.OpBetween:
		return target.Between(goqu.Range(params[0], params[1])), nil
	case queryir.OpIsNull:
		return target.IsNull(), nil
	case queryir.OpNotNull:
		return target.IsNotNull(), nil
	}
	return nil, dqerr.Internal("unknown filter operator %q", op)
}

// Pattern wraps a LIKE value in wildcards unless it already starts or
// ends with one.
func Pattern(v any) string {
	s := fmt.Sprint(param(v))
	if strings.HasPrefix(s, Wildcard) || strings.HasSuffix(s, Wildcard) {
		return s
	}
	return Wildcard + s + Wildcard
}

// param converts an IR value to the form it is stored in.
func param(v any) any {
	switch t := v.(type) {
	case rune:
		return string(t)
	case time.Time:
		return FormatTime(t)
	}
	return v
}

// TimeLayout is the fixed-width UTC text form timestamps are bound in.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// instant converts a timestamp column or parameter to its Julian day
// number. Stored text may use any ISO-8601 width, so timestamps are
// compared and ordered as instants rather than as strings.
func instant(v any) exp.SQLFunctionExpression {
	return goqu.Func("julianday", v)
}
