// Package querysql compiles queryir.DynaQuery instances into SQLite plans.
//
// Compilation is a pure translation pass: joins for every declared
// relation, the filter tree as a WHERE clause, grouping with its aggregate
// and HAVING clause, ordering, and a parallel count. All values are bound
// as parameters, never interpolated.
//
// The compiler does not repeat the normalizer's validation. A query that
// breaks the IR contract is reported as an internal error.
package querysql

import (
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/roach88/dynaquery/internal/dqerr"
	"github.com/roach88/dynaquery/internal/queryir"
	"github.com/roach88/dynaquery/internal/schema"
)

// DialectName is the goqu dialect plans are rendered in.
const DialectName = "sqlite3"

// Compiler translates IR into plans. It is stateless apart from the
// read-only registry and safe for concurrent use.
type Compiler struct {
	registry *schema.Registry
	dialect  goqu.DialectWrapper
}

// NewCompiler creates a compiler over a registry.
func NewCompiler(registry *schema.Registry) *Compiler {
	return &Compiler{registry: registry, dialect: goqu.Dialect(DialectName)}
}

// Compile builds the content plan. Grouped queries are always ShapeTuple.
//
// Entity plans select the whole root row (SELECT DISTINCT root.*); the
// projections only name the output. Ungrouped tuple plans select the
// visible projections, or every field when there are none, plus the root
// key so that distinct roots with equal values stay distinct rows.
//
// Rows are ordered by the query's OrderBys, then by the root key (entity
// plans) or the selected columns (tuple plans) so pages are stable.
func (c *Compiler) Compile(q *queryir.DynaQuery, shape Shape) (*Plan, error) {
	view, err := c.check(q)
	if err != nil {
		return nil, err
	}

	plan := &Plan{View: view, Query: q, Shape: shape}
	var tiebreak []exp.OrderedExpression
	var ds *goqu.SelectDataset

	switch {
	case q.GroupBy != nil:
		plan.Shape = ShapeTuple
		ds, err = c.groupedBase(view, q)
		if err != nil {
			return nil, err
		}
		ds, err = c.grouped(ds, view, q.GroupBy)
		if err != nil {
			return nil, err
		}
		plan.Columns = append(append([]string{}, q.GroupBy.Fields...), q.GroupBy.Alias)
		for _, field := range q.GroupBy.Fields {
			f, _ := view.Field(field)
			tiebreak = append(tiebreak, column(view, f).Asc())
		}

	case shape == ShapeTuple:
		ds, err = c.base(view, q)
		if err != nil {
			return nil, err
		}
		paths := q.VisibleProjections()
		if len(paths) == 0 {
			paths = view.FieldPaths()
		}
		selects := make([]any, 0, len(paths))
		for _, path := range paths {
			f, ok := view.Field(path)
			if !ok {
				return nil, dqerr.Internal("projection %s is not a field of %s", path, view.Name)
			}
			col := column(view, f)
			selects = append(selects, col.As(alias(path)))
			tiebreak = append(tiebreak, col.Asc())
		}
		key := goqu.T(view.Table).Col(view.Key)
		selects = append(selects, key.As(alias(RowKeyColumn)))
		tiebreak = append(tiebreak, key.Asc())
		ds = ds.Select(selects...).Distinct()
		plan.Columns = paths
		plan.Hidden = 1

	default:
		plan.Shape = ShapeEntity
		ds, err = c.base(view, q)
		if err != nil {
			return nil, err
		}
		ds = ds.Select(goqu.T(view.Table).All()).Distinct()
		tiebreak = append(tiebreak, goqu.T(view.Table).Col(view.Key).Asc())
	}

	order, err := c.ordering(view, q)
	if err != nil {
		return nil, err
	}
	plan.dataset = ds.Order(append(order, tiebreak...)...)
	return plan, nil
}

// CompileCount builds the count of distinct logical rows matching q.
//
//	grouped:          COUNT(*) over the grouped query, i.e. the number of groups
//	with projections: COUNT(DISTINCT <root key and projected fields concatenated>)
//	otherwise:        COUNT(DISTINCT root.key)
func (c *Compiler) CompileCount(q *queryir.DynaQuery) (*CountPlan, error) {
	view, err := c.check(q)
	if err != nil {
		return nil, err
	}

	if q.GroupBy != nil {
		ds, err := c.groupedBase(view, q)
		if err != nil {
			return nil, err
		}
		inner, err := c.grouped(ds, view, q.GroupBy)
		if err != nil {
			return nil, err
		}
		outer := c.dialect.From(inner.As("grouped")).Prepared(true).Select(goqu.COUNT(goqu.Star()))
		return &CountPlan{View: view, dataset: outer}, nil
	}

	ds, err := c.base(view, q)
	if err != nil {
		return nil, err
	}
	var key any = goqu.T(view.Table).Col(view.Key)
	if paths := q.VisibleProjections(); len(paths) > 0 {
		cols := make([]any, 0, len(paths)+1)
		cols = append(cols, key)
		for _, path := range paths {
			f, ok := view.Field(path)
			if !ok {
				return nil, dqerr.Internal("projection %s is not a field of %s", path, view.Name)
			}
			cols = append(cols, column(view, f))
		}
		key = concatKey(cols)
	}
	return &CountPlan{View: view, dataset: ds.Select(goqu.COUNT(goqu.DISTINCT(key)))}, nil
}

// CompileRelation builds the load of one relation's rows for the given
// owner key values, ordered by owner and then by the relation's key.
func (c *Compiler) CompileRelation(rel *schema.Relation, keys []any) *RelationPlan {
	t := goqu.T(rel.Table)
	ds := c.dialect.From(t).Prepared(true).
		Where(t.Col(rel.Foreign).In(keys)).
		Order(t.Col(rel.Foreign).Asc(), t.Col(rel.Key).Asc())
	return &RelationPlan{Relation: rel, dataset: ds}
}

// check enforces the IR contract and resolves the target view.
func (c *Compiler) check(q *queryir.DynaQuery) (*schema.View, error) {
	result := queryir.Validate(q)
	if !result.Valid {
		return nil, dqerr.Internal("query breaks the IR contract: %s", strings.Join(result.Violations, "; "))
	}
	view, err := c.registry.View(q.TargetView)
	if err != nil {
		return nil, dqerr.Internal("view %q reached the compiler unregistered", q.TargetView)
	}
	return view, nil
}

// base is the row source of ungrouped plans: the root table, one join
// per declared relation, and the root filter.
func (c *Compiler) base(view *schema.View, q *queryir.DynaQuery) (*goqu.SelectDataset, error) {
	ds := c.from(view, func(*schema.Relation) bool { return true })
	if q.Filter == nil {
		return ds, nil
	}
	where, err := (&filterCompiler{view: view}).compile(q.Filter)
	if err != nil {
		return nil, err
	}
	return ds.Where(where), nil
}

// groupedBase is the row source of grouped plans. A to-many relation is
// joined only when the grouping reads one of its fields, so the aggregate
// sees each root row once per related row it groups over and never once
// per unrelated child. When the filter reads a to-many relation that is
// not joined, matching roots are selected by key through a subquery over
// the fully joined base.
func (c *Compiler) groupedBase(view *schema.View, q *queryir.DynaQuery) (*goqu.SelectDataset, error) {
	read := make(map[string]bool)
	groupRelations(view, q, read)
	joined := func(rel *schema.Relation) bool {
		return rel.Cardinality == schema.ToOne || read[rel.Name]
	}

	ds := c.from(view, joined)
	if q.Filter == nil {
		return ds, nil
	}

	filtered := make(map[string]bool)
	filterRelations(view, q.Filter, filtered)
	direct := true
	for _, rel := range view.Relations {
		if filtered[rel.Name] && !joined(rel) {
			direct = false
		}
	}

	if direct {
		where, err := (&filterCompiler{view: view}).compile(q.Filter)
		if err != nil {
			return nil, err
		}
		return ds.Where(where), nil
	}

	keys, err := c.base(view, q)
	if err != nil {
		return nil, err
	}
	key := goqu.T(view.Table).Col(view.Key)
	return ds.Where(key.In(keys.Select(key))), nil
}

// from is the root table joined to every relation include admits.
// To-many relations are LEFT joined so owners without children survive;
// to-one relations are INNER joined.
func (c *Compiler) from(view *schema.View, include func(*schema.Relation) bool) *goqu.SelectDataset {
	root := goqu.T(view.Table)
	ds := c.dialect.From(root).Prepared(true)

	for _, rel := range view.Relations {
		if !include(rel) {
			continue
		}
		table := goqu.T(rel.Table).As(rel.Name)
		on := goqu.On(goqu.T(rel.Name).Col(rel.Foreign).Eq(root.Col(rel.Local)))
		if rel.Cardinality == schema.ToMany {
			ds = ds.LeftJoin(table, on)
		} else {
			ds = ds.InnerJoin(table, on)
		}
	}
	return ds
}

// groupRelations marks the relations a grouped query reads outside its
// WHERE clause: group fields, the aggregate, HAVING and ordering.
func groupRelations(view *schema.View, q *queryir.DynaQuery, out map[string]bool) {
	g := q.GroupBy
	mark := func(field string) {
		if f, ok := view.Field(field); ok && f.Relation != nil {
			out[f.Relation.Name] = true
		}
	}
	for _, field := range g.Fields {
		mark(field)
	}
	mark(g.Aggregator.Field)
	for _, o := range q.OrderBys {
		mark(o.Field)
	}
	if g.Having != nil {
		filterRelations(view, g.Having, out)
	}
}

// filterRelations marks the relations a filter tree reads.
func filterRelations(view *schema.View, f queryir.Filter, out map[string]bool) {
	var field string
	switch n := f.(type) {
	case *queryir.SimpleFilter:
		field = n.Field
	case *queryir.AggregateFilter:
		field = n.Aggregator.Field
	case *queryir.CompositeFilter:
		for _, child := range n.Filters {
			filterRelations(view, child, out)
		}
		return
	}
	if fd, ok := view.Field(field); ok && fd.Relation != nil {
		out[fd.Relation.Name] = true
	}
}

// grouped selects the grouping keys and the aggregate, each aliased by
// its output name, and applies GROUP BY and HAVING.
func (c *Compiler) grouped(ds *goqu.SelectDataset, view *schema.View, g *queryir.GroupBy) (*goqu.SelectDataset, error) {
	selects := make([]any, 0, len(g.Fields)+1)
	keys := make([]any, 0, len(g.Fields))
	for _, field := range g.Fields {
		f, ok := view.Field(field)
		if !ok {
			return nil, dqerr.Internal("group field %s is not a field of %s", field, view.Name)
		}
		col := column(view, f)
		selects = append(selects, col.As(alias(field)))
		keys = append(keys, col)
	}

	agg, err := aggregate(view, g.Aggregator)
	if err != nil {
		return nil, err
	}
	selects = append(selects, agg.As(alias(g.Alias)))

	ds = ds.Select(selects...)
	if len(keys) > 0 {
		ds = ds.GroupBy(keys...)
	}

	if g.Having != nil {
		fc := &filterCompiler{view: view, group: g}
		having, err := fc.compile(g.Having)
		if err != nil {
			return nil, err
		}
		ds = ds.Having(having)
	}
	return ds, nil
}

// ordering emits one clause per OrderBy in ascending sequence order.
func (c *Compiler) ordering(view *schema.View, q *queryir.DynaQuery) ([]exp.OrderedExpression, error) {
	var out []exp.OrderedExpression
	for _, o := range q.SortedOrderBys() {
		var target exp.Orderable
		if q.GroupBy != nil && o.Field == q.GroupBy.Alias {
			target = alias(o.Field)
		} else {
			f, ok := view.Field(o.Field)
			if !ok {
				return nil, dqerr.Internal("order field %s is not a field of %s", o.Field, view.Name)
			}
			target = column(view, f)
			if f.Kind == schema.KindTimestamp {
				target = instant(column(view, f))
			}
		}
		if o.Direction == queryir.Desc {
			out = append(out, target.Desc())
		} else {
			out = append(out, target.Asc())
		}
	}
	return out, nil
}

// column addresses a field through its owner: the root table or the
// relation's join alias.
func column(view *schema.View, f *schema.Field) exp.IdentifierExpression {
	if f.Relation != nil {
		return goqu.T(f.Relation.Name).Col(f.Column)
	}
	return goqu.T(view.Table).Col(f.Column)
}

// alias is an unqualified identifier. Output names may contain dots, so
// they are not parsed as table.column.
func alias(name string) exp.IdentifierExpression {
	return exp.NewIdentifierExpression("", "", name)
}

// concatKey joins several columns into one distinctness key. Each part is
// prefixed with its length so no two tuples share a key; NULL encodes as
// a bare '-', which no prefixed part starts with.
func concatKey(cols []any) exp.Expression {
	if len(cols) == 1 {
		return cols[0].(exp.Expression)
	}
	parts := make([]string, len(cols))
	args := make([]any, 0, 2*len(cols))
	for i, col := range cols {
		parts[i] = "COALESCE(length(CAST(? AS TEXT)) || ':' || CAST(? AS TEXT), '-')"
		args = append(args, col, col)
	}
	return goqu.L(strings.Join(parts, " || "), args...)
}

func aggregate(view *schema.View, a queryir.Aggregator) (exp.SQLFunctionExpression, error) {
	f, ok := view.Field(a.Field)
	if !ok {
		return nil, dqerr.Internal("aggregate field %s is not a field of %s", a.Field, view.Name)
	}
	col := column(view, f)
	switch a.Operator {
	case queryir.Sum:
		return goqu.SUM(col), nil
	case queryir.Avg:
		return goqu.AVG(col), nil
	case queryir.Min:
		return goqu.MIN(col), nil
	case queryir.Max:
		return goqu.MAX(col), nil
	case queryir.Count:
		return goqu.COUNT(col), nil
	}
	return nil, dqerr.Internal("unknown aggregate operator %q", a.Operator)
}
