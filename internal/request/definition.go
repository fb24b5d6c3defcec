package request

import (
	"fmt"

	"github.com/roach88/dynaquery/internal/canonical"
	"github.com/roach88/dynaquery/internal/queryir"
)

// FromQuery rebuilds the request form of a normalized query, using the raw
// strings the values were parsed from.
func FromQuery(q *queryir.DynaQuery) *Request {
	req := &Request{TargetView: q.TargetView}

	for _, p := range q.ProjectBys {
		visible := p.Visible
		req.Projections = append(req.Projections, Projection{Field: p.Field, Visible: &visible})
	}
	if q.Filter != nil {
		req.Filter = fromFilter(q.Filter)
	}
	if g := q.GroupBy; g != nil {
		req.Group = &Group{
			Fields:     append([]string(nil), g.Fields...),
			Aggregator: fromAggregator(g.Aggregator),
			Alias:      g.Alias,
		}
		if g.Having != nil {
			req.Group.Having = fromFilter(g.Having)
		}
	}
	for _, o := range q.OrderBys {
		req.Orders = append(req.Orders, Order{Field: o.Field, Operator: string(o.Direction), Sequence: o.Sequence})
	}
	return req
}

func fromFilter(f queryir.Filter) *Filter {
	switch node := f.(type) {
	case *queryir.SimpleFilter:
		return &Filter{Field: node.Field, Operator: string(node.Operator), Values: append(Values(nil), node.Raw...)}
	case *queryir.CompositeFilter:
		out := &Filter{Connector: string(node.Connector), Filters: make([]*Filter, 0, len(node.Filters))}
		for _, child := range node.Filters {
			out.Filters = append(out.Filters, fromFilter(child))
		}
		return out
	case *queryir.AggregateFilter:
		return &Filter{
			Aggregator: fromAggregator(node.Aggregator),
			Operator:   string(node.Operator),
			Values:     append(Values(nil), node.Raw...),
		}
	}
	return nil
}

func fromAggregator(a queryir.Aggregator) *Aggregator {
	return &Aggregator{Field: a.Field, Operator: string(a.Operator), Alias: a.Alias}
}

// Definition returns the canonical JSON of the request.
//
// Equal requests produce identical bytes; the result decodes back with
// DecodeJSON.
func (r *Request) Definition() ([]byte, error) {
	obj := map[string]any{}
	if r.TargetView != "" {
		obj["targetView"] = r.TargetView
	}
	if len(r.Projections) > 0 {
		list := make([]any, len(r.Projections))
		for i, p := range r.Projections {
			list[i] = map[string]any{"field": p.Field, "visible": p.IsVisible()}
		}
		obj["projections"] = list
	}
	if r.Filter != nil {
		obj["filter"] = filterObject(r.Filter)
	}
	if g := r.Group; g != nil {
		group := map[string]any{"fields": append([]string{}, g.Fields...)}
		if g.Aggregator != nil {
			group["aggregator"] = aggregatorObject(g.Aggregator)
		}
		if g.Having != nil {
			group["having"] = filterObject(g.Having)
		}
		if g.Alias != "" {
			group["alias"] = g.Alias
		}
		obj["group"] = group
	}
	if len(r.Orders) > 0 {
		list := make([]any, len(r.Orders))
		for i, o := range r.Orders {
			list[i] = map[string]any{"field": o.Field, "operator": o.Operator, "sequence": o.Sequence}
		}
		obj["orders"] = list
	}

	data, err := canonical.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("canonical definition: %w", err)
	}
	return data, nil
}

func filterObject(f *Filter) map[string]any {
	switch f.Kind() {
	case FilterComposite:
		children := make([]any, len(f.Filters))
		for i, child := range f.Filters {
			children[i] = filterObject(child)
		}
		return map[string]any{"connector": f.Connector, "filters": children}
	case FilterAggregate:
		obj := map[string]any{"aggregator": aggregatorObject(f.Aggregator), "operator": f.Operator}
		if len(f.Values) > 0 {
			obj["values"] = []string(f.Values)
		}
		return obj
	default:
		obj := map[string]any{"field": f.Field, "operator": f.Operator}
		if len(f.Values) > 0 {
			obj["values"] = []string(f.Values)
		}
		return obj
	}
}

func aggregatorObject(a *Aggregator) map[string]any {
	obj := map[string]any{"field": a.Field, "operator": a.Operator}
	if a.Alias != "" {
		obj["alias"] = a.Alias
	}
	return obj
}
