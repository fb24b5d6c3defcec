package normalize

import (
	"github.com/roach88/dynaquery/internal/dqerr"
	"github.com/roach88/dynaquery/internal/queryir"
	"github.com/roach88/dynaquery/internal/request"
	"github.com/roach88/dynaquery/internal/schema"
)

// build converts an already validated request. Every slice is copied.
func (s *scope) build(req *request.Request) (*queryir.DynaQuery, error) {
	q := &queryir.DynaQuery{TargetView: s.view.Name}

	for _, p := range req.Projections {
		q.ProjectBys = append(q.ProjectBys, queryir.ProjectBy{Field: p.Field, Visible: p.IsVisible()})
	}

	if req.Filter != nil {
		f, err := s.buildFilter(req.Filter)
		if err != nil {
			return nil, err
		}
		q.Filter = f
	}

	if g := req.Group; g != nil {
		group := &queryir.GroupBy{
			Fields:     append([]string{}, g.Fields...),
			Aggregator: buildAggregator(g.Aggregator),
			Alias:      g.Alias,
		}
		if g.Having != nil {
			having, err := s.buildFilter(g.Having)
			if err != nil {
				return nil, err
			}
			group.Having = having
		}
		q.GroupBy = group
	}

	for _, o := range req.Orders {
		dir, _ := queryir.ParseDirection(o.Operator)
		q.OrderBys = append(q.OrderBys, queryir.OrderBy{Field: o.Field, Direction: dir, Sequence: o.Sequence})
	}

	return q, nil
}

func (s *scope) buildFilter(f *request.Filter) (queryir.Filter, error) {
	switch f.Kind() {
	case request.FilterComposite:
		conn, _ := queryir.ParseConnector(f.Connector)
		out := &queryir.CompositeFilter{Connector: conn, Filters: make([]queryir.Filter, 0, len(f.Filters))}
		for _, child := range f.Filters {
			c, err := s.buildFilter(child)
			if err != nil {
				return nil, err
			}
			out.Filters = append(out.Filters, c)
		}
		return out, nil

	case request.FilterAggregate:
		agg := buildAggregator(f.Aggregator)
		op, _ := queryir.ParseFilterOperator(f.Operator)
		kind := s.aggregateKind(agg)
		values, err := convertValues(agg.Field, kind, nil, op, f.Values)
		if err != nil {
			return nil, err
		}
		return &queryir.AggregateFilter{Aggregator: agg, Operator: op, Values: values, Raw: copyRaw(f.Values)}, nil

	default:
		op, _ := queryir.ParseFilterOperator(f.Operator)
		var kind schema.Kind
		var enum []string
		if field, ok := s.view.Field(f.Field); ok {
			kind, enum = field.Kind, field.Enum
		} else {
			// Only the group alias gets here.
			kind = s.aggregateKind(buildAggregator(s.group.Aggregator))
		}
		values, err := convertValues(f.Field, kind, enum, op, f.Values)
		if err != nil {
			return nil, err
		}
		return &queryir.SimpleFilter{Field: f.Field, Operator: op, Values: values, Raw: copyRaw(f.Values)}, nil
	}
}

// aggregateKind is the kind of an aggregate's result: COUNT is an int,
// AVG a float, the others keep the field's kind.
func (s *scope) aggregateKind(a queryir.Aggregator) schema.Kind {
	switch a.Operator {
	case queryir.Count:
		return schema.KindInt
	case queryir.Avg:
		return schema.KindFloat
	}
	if f, ok := s.view.Field(a.Field); ok {
		return f.Kind
	}
	return schema.KindFloat
}

// convertValues parses raw literals. Pattern operators keep the raw text.
func convertValues(field string, kind schema.Kind, enum []string, op queryir.FilterOperator, raws request.Values) ([]any, error) {
	if op.IsPattern() {
		out := make([]any, len(raws))
		for i, r := range raws {
			out[i] = r
		}
		return out, nil
	}
	values, ok := convert(kind, enum, raws)
	if !ok {
		return nil, dqerr.ValueConversion(field, kind.String())
	}
	return values, nil
}

func buildAggregator(a *request.Aggregator) queryir.Aggregator {
	op, _ := queryir.ParseAggregateOperator(a.Operator)
	alias := a.Alias
	if alias == "" {
		alias = queryir.DefaultAlias(op, a.Field)
	}
	return queryir.Aggregator{Field: a.Field, Operator: op, Alias: alias}
}

func copyRaw(v request.Values) []string {
	return append([]string{}, v...)
}
