package querysql

import (
	"github.com/doug-martin/goqu/v9"

	"github.com/roach88/dynaquery/internal/queryir"
	"github.com/roach88/dynaquery/internal/schema"
)

// Shape is the form a backend returns content rows in.
type Shape int

const (
	// ShapeEntity returns whole root rows, hydrated with their relations.
	ShapeEntity Shape = iota + 1
	// ShapeTuple returns positional tuples named by Plan.Columns.
	ShapeTuple
)

func (s Shape) String() string {
	if s == ShapeTuple {
		return "tuple"
	}
	return "entity"
}

// RowKeyColumn is the alias of the root key a tuple plan selects to keep
// distinct roots apart.
const RowKeyColumn = "__row_key"

// Plan is a compiled content query. Plans are immutable; Page returns a copy.
type Plan struct {
	View  *schema.View
	Query *queryir.DynaQuery
	Shape Shape
	// Columns names the tuple positions of a ShapeTuple plan.
	Columns []string
	// Hidden counts the trailing selected columns that only keep rows
	// distinct. They are not part of the tuple.
	Hidden int

	dataset *goqu.SelectDataset
}

// SQL renders the plan as parameterized SQL.
func (p *Plan) SQL() (string, []any, error) {
	return p.dataset.ToSQL()
}

// Page restricts the plan to one zero-based page. A size of zero or less
// leaves the plan unpaged.
func (p *Plan) Page(number, size int) *Plan {
	if size <= 0 {
		return p
	}
	if number < 0 {
		number = 0
	}
	cp := *p
	cp.dataset = p.dataset.Limit(uint(size)).Offset(uint(number) * uint(size))
	return &cp
}

// CountPlan is a compiled row count over the full unpaged predicate set.
type CountPlan struct {
	View    *schema.View
	dataset *goqu.SelectDataset
}

// SQL renders the count as parameterized SQL returning one integer.
func (c *CountPlan) SQL() (string, []any, error) {
	return c.dataset.ToSQL()
}

// RelationPlan loads the rows of one relation for a set of owner keys.
type RelationPlan struct {
	Relation *schema.Relation
	dataset  *goqu.SelectDataset
}

// SQL renders the relation load as parameterized SQL.
func (r *RelationPlan) SQL() (string, []any, error) {
	return r.dataset.ToSQL()
}
