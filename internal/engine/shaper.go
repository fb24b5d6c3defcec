package engine

import (
	"github.com/roach88/dynaquery/internal/dqerr"
	"github.com/roach88/dynaquery/internal/querysql"
	"github.com/roach88/dynaquery/internal/record"
)

// FieldNames returns the output field names of a plan's records.
func FieldNames(plan *querysql.Plan) []string {
	q := plan.Query
	if g := q.GroupBy; g != nil {
		names := make([]string, 0, len(g.Fields)+1)
		names = append(names, g.Fields...)
		return append(names, g.Alias)
	}
	if names := q.VisibleProjections(); len(names) > 0 {
		return names
	}
	if plan.Shape == querysql.ShapeTuple {
		return append([]string(nil), plan.Columns...)
	}
	return plan.View.MemberNames()
}

// ShapeRow maps a backend row onto names. Tuples are zipped by position;
// entities are read through the view's accessors.
func ShapeRow(plan *querysql.Plan, names []string, row Row) (*record.Record, error) {
	rec := record.New(len(names))

	if row.Entity == nil {
		if len(row.Tuple) != len(names) {
			return nil, dqerr.Internal("tuple has %d values for %d fields", len(row.Tuple), len(names))
		}
		for i, name := range names {
			rec.Set(name, detach(row.Tuple[i]))
		}
		return rec, nil
	}

	for _, name := range names {
		read, ok := plan.View.Accessor(name)
		if !ok {
			return nil, dqerr.Internal("no accessor for %s on %s", name, plan.View.Name)
		}
		rec.Set(name, detach(read(row.Entity)))
	}
	return rec, nil
}

// detach copies collection values so a record never aliases backend
// memory.
func detach(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		copy(out, t)
		return out
	case []*record.Record:
		out := make([]*record.Record, len(t))
		copy(out, t)
		return out
	case []byte:
		out := make([]byte, len(t))
		copy(out, t)
		return out
	}
	return v
}
