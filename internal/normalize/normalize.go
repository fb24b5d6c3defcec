// Package normalize validates client requests against the schema registry
// and converts them into queryir.DynaQuery instances.
//
// Validation runs in a fixed order so the same bad request always fails
// the same way: target view, filter tree, group clause, ordering,
// projections, then value conversion. Values are converted eagerly, so a
// query that normalizes never fails later on a literal.
package normalize

import (
	"github.com/roach88/dynaquery/internal/dqerr"
	"github.com/roach88/dynaquery/internal/queryir"
	"github.com/roach88/dynaquery/internal/request"
	"github.com/roach88/dynaquery/internal/schema"
)

// Normalizer turns requests into IR. It holds no mutable state and is safe
// for concurrent use.
type Normalizer struct {
	registry *schema.Registry
}

// New creates a Normalizer over a registry.
func New(registry *schema.Registry) *Normalizer {
	return &Normalizer{registry: registry}
}

// scope carries what a single normalization needs.
type scope struct {
	view *schema.View
	// alias is the group alias, exempt from field checks inside HAVING.
	alias string
	group *request.Group
}

// Normalize validates req and builds its IR. The request is only read.
func (n *Normalizer) Normalize(req *request.Request) (*queryir.DynaQuery, error) {
	if req == nil {
		return nil, dqerr.UnknownView("")
	}
	view, err := n.registry.View(req.TargetView)
	if err != nil {
		return nil, err
	}
	s := &scope{view: view, group: req.Group}
	if req.Group != nil {
		s.alias = req.Group.Alias
	}

	if req.Filter != nil {
		if err := s.checkFilter(req.Filter, false, 1); err != nil {
			return nil, err
		}
	}
	if req.Group != nil {
		if err := s.checkGroup(req.Group); err != nil {
			return nil, err
		}
	}
	for _, o := range req.Orders {
		if err := s.checkOrder(o); err != nil {
			return nil, err
		}
	}
	for _, p := range req.Projections {
		if _, ok := view.Field(p.Field); !ok {
			return nil, dqerr.UnknownField(view.Name, p.Field)
		}
	}

	return s.build(req)
}

func (s *scope) checkFilter(f *request.Filter, having bool, depth int) error {
	if f == nil {
		return dqerr.InvalidFilter("", "filter node is empty")
	}
	if depth > queryir.MaxFilterDepth {
		return dqerr.InvalidFilter("", "filter tree is deeper than %d", queryir.MaxFilterDepth)
	}

	switch f.Kind() {
	case request.FilterComposite:
		if _, ok := queryir.ParseConnector(f.Connector); !ok {
			return dqerr.InvalidFilter("", "unknown connector %q", f.Connector)
		}
		for _, child := range f.Filters {
			if err := s.checkFilter(child, having, depth+1); err != nil {
				return err
			}
		}
		return nil

	case request.FilterAggregate:
		if !having {
			return dqerr.InvalidFilter(f.Aggregator.Field, "aggregate filters are only allowed in having")
		}
		if err := s.checkAggregator(f.Aggregator); err != nil {
			return err
		}
		return checkOperator(f.Aggregator.Field, f.Operator, len(f.Values))

	default:
		if !(having && s.alias != "" && f.Field == s.alias) {
			if _, ok := s.view.Field(f.Field); !ok {
				return dqerr.UnknownField(s.view.Name, f.Field)
			}
		}
		return checkOperator(f.Field, f.Operator, len(f.Values))
	}
}

func checkOperator(field, name string, n int) error {
	op, ok := queryir.ParseFilterOperator(name)
	if !ok {
		return dqerr.UnsupportedFilterOperator(field, name)
	}
	if err := op.CheckArity(n); err != nil {
		e := dqerr.InvalidFilter(field, "%v", err)
		e.Operator = name
		return e
	}
	return nil
}

func (s *scope) checkGroup(g *request.Group) error {
	for _, field := range g.Fields {
		if _, ok := s.view.Field(field); !ok {
			return dqerr.UnknownField(s.view.Name, field)
		}
	}
	if g.Aggregator == nil {
		return dqerr.UnsupportedAggregateOperator("", "", "aggregator is required")
	}
	if err := s.checkAggregator(g.Aggregator); err != nil {
		return err
	}
	if g.Alias == "" {
		return dqerr.InvalidAlias()
	}
	for _, field := range g.Fields {
		if field == g.Alias {
			e := dqerr.InvalidAlias()
			e.Message = "group alias collides with a group field"
			e.Field = field
			return e
		}
	}
	if g.Having != nil {
		return s.checkFilter(g.Having, true, 1)
	}
	return nil
}

func (s *scope) checkAggregator(a *request.Aggregator) error {
	op, ok := queryir.ParseAggregateOperator(a.Operator)
	if !ok {
		return dqerr.UnsupportedAggregateOperator(a.Field, a.Operator, "unknown aggregate")
	}
	f, ok := s.view.Field(a.Field)
	if !ok {
		return dqerr.UnknownField(s.view.Name, a.Field)
	}
	if op != queryir.Count && !f.Kind.Numeric() {
		return dqerr.UnsupportedAggregateOperator(a.Field, a.Operator, "field is "+f.Kind.String()+", not numeric")
	}
	return nil
}

func (s *scope) checkOrder(o request.Order) error {
	// A grouped query may also be ordered by its aggregate.
	if s.alias == "" || o.Field != s.alias {
		if _, ok := s.view.Field(o.Field); !ok {
			return dqerr.UnknownField(s.view.Name, o.Field)
		}
	}
	if _, ok := queryir.ParseDirection(o.Operator); !ok {
		return dqerr.UnsupportedSortOperator(o.Field, o.Operator)
	}
	return nil
}
