package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/dynaquery/internal/dqerr"
	"github.com/roach88/dynaquery/internal/engine"
	"github.com/roach88/dynaquery/internal/queryir"
	"github.com/roach88/dynaquery/internal/querysql"
	"github.com/roach88/dynaquery/internal/schema"
)

// relationChunk bounds the number of owner keys bound into one relation
// load, well below SQLite's host parameter limit.
const relationChunk = 500

// Backend runs compiled plans against the store's tables.
// It implements engine.Backend.
type Backend struct {
	db       *sql.DB
	compiler *querysql.Compiler
	logger   log.Logger
}

var _ engine.Backend = (*Backend)(nil)

// NewBackend creates a Backend over s. The compiler builds the relation
// loads used to hydrate entities.
func NewBackend(s *Store, compiler *querysql.Compiler) *Backend {
	return &Backend{db: s.db, compiler: compiler, logger: s.logger}
}

// Fetch runs a content plan. Tuple plans return positional values typed by
// their columns; entity plans return root rows with every declared
// relation attached.
func (b *Backend) Fetch(ctx context.Context, plan *querysql.Plan) ([]engine.Row, error) {
	query, args, err := plan.SQL()
	if err != nil {
		return nil, dqerr.Internal("render plan for %s: %v", plan.View.Name, err)
	}
	level.Debug(b.logger).Log("msg", "fetch", "view", plan.View.Name, "shape", plan.Shape, "sql", query, "args", len(args))

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", plan.View.Name, err)
	}
	defer rows.Close()

	if plan.Shape == querysql.ShapeTuple {
		return scanTuples(rows, tupleKinds(plan), plan.Hidden)
	}

	roots, err := scanEntities(rows, plan.View.ColumnField)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", plan.View.Name, err)
	}
	if err := b.hydrate(ctx, plan.View, roots); err != nil {
		return nil, err
	}

	out := make([]engine.Row, len(roots))
	for i, r := range roots {
		out[i] = engine.Row{Entity: r.entity}
	}
	return out, nil
}

// Count runs a count plan.
func (b *Backend) Count(ctx context.Context, plan *querysql.CountPlan) (int64, error) {
	query, args, err := plan.SQL()
	if err != nil {
		return 0, dqerr.Internal("render count for %s: %v", plan.View.Name, err)
	}
	level.Debug(b.logger).Log("msg", "count", "view", plan.View.Name, "sql", query, "args", len(args))

	var n int64
	if err := b.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", plan.View.Name, err)
	}
	return n, nil
}

// GrammarCode reports SQLITE_ERROR, the result code SQLite uses for
// statements it cannot prepare (syntax errors, unknown columns), along
// with the extended result code.
func (b *Backend) GrammarCode(err error) (string, bool) {
	var se sqlite3.Error
	if !errors.As(err, &se) || se.Code != sqlite3.ErrError {
		return "", false
	}
	return strconv.Itoa(int(se.ExtendedCode)), true
}

// scanned is an entity plus its raw column values, which relation loads
// join on.
type scanned struct {
	entity *schema.Entity
	raw    map[string]any
}

// scanEntities reads whole table rows. Columns without a declared field
// are kept in raw only.
func scanEntities(rows *sql.Rows, fieldOf func(string) (*schema.Field, bool)) ([]scanned, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var out []scanned
	for rows.Next() {
		values, err := scanValues(rows, len(cols))
		if err != nil {
			return nil, err
		}

		s := scanned{entity: schema.NewEntity(), raw: make(map[string]any, len(cols))}
		for i, col := range cols {
			s.raw[col] = detachRaw(values[i])
			f, ok := fieldOf(col)
			if !ok {
				continue
			}
			v, err := decode(f.Kind, values[i])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col, err)
			}
			s.entity.Values[f.Local] = v
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// scanTuples reads positional rows. The trailing hidden columns are
// scanned and dropped.
func scanTuples(rows *sql.Rows, kinds []schema.Kind, hidden int) ([]engine.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	if len(cols) != len(kinds)+hidden {
		return nil, dqerr.Internal("plan selects %d columns, %d expected", len(cols), len(kinds)+hidden)
	}

	out := []engine.Row{}
	for rows.Next() {
		values, err := scanValues(rows, len(cols))
		if err != nil {
			return nil, err
		}
		tuple := make([]any, len(kinds))
		for i, raw := range values[:len(kinds)] {
			v, err := decode(kinds[i], raw)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", cols[i], err)
			}
			tuple[i] = v
		}
		out = append(out, engine.Row{Tuple: tuple})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func scanValues(rows *sql.Rows, n int) ([]any, error) {
	values := make([]any, n)
	ptrs := make([]any, n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	return values, nil
}

// tupleKinds types the columns of a tuple plan. The aggregate column of a
// grouped plan takes the aggregate's result kind.
func tupleKinds(plan *querysql.Plan) []schema.Kind {
	kinds := make([]schema.Kind, len(plan.Columns))
	g := plan.Query.GroupBy
	for i, name := range plan.Columns {
		if g != nil && name == g.Alias {
			kinds[i] = aggregateKind(plan.View, g.Aggregator)
			continue
		}
		if f, ok := plan.View.Field(name); ok {
			kinds[i] = f.Kind
		} else {
			kinds[i] = schema.KindString
		}
	}
	return kinds
}

func aggregateKind(view *schema.View, a queryir.Aggregator) schema.Kind {
	switch a.Operator {
	case queryir.Count:
		return schema.KindInt
	case queryir.Avg:
		return schema.KindFloat
	}
	if f, ok := view.Field(a.Field); ok {
		return f.Kind
	}
	return schema.KindFloat
}

// hydrate loads every declared relation of the roots and attaches the
// related entities. To-many relations with no rows get an empty slice.
func (b *Backend) hydrate(ctx context.Context, view *schema.View, roots []scanned) error {
	for _, rel := range view.Relations {
		owners := map[any][]*schema.Entity{}
		var keys []any
		for _, r := range roots {
			key := r.raw[rel.Local]
			if rel.Cardinality == schema.ToMany {
				r.entity.Related[rel.Name] = []*schema.Entity{}
			}
			if key == nil {
				continue
			}
			if _, seen := owners[key]; !seen {
				keys = append(keys, key)
			}
			owners[key] = append(owners[key], r.entity)
		}

		for start := 0; start < len(keys); start += relationChunk {
			end := min(start+relationChunk, len(keys))
			if err := b.loadRelation(ctx, rel, keys[start:end], owners); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Backend) loadRelation(ctx context.Context, rel *schema.Relation, keys []any, owners map[any][]*schema.Entity) error {
	plan := b.compiler.CompileRelation(rel, keys)
	query, args, err := plan.SQL()
	if err != nil {
		return dqerr.Internal("render relation %s: %v", rel.Name, err)
	}
	level.Debug(b.logger).Log("msg", "load relation", "relation", rel.Name, "sql", query, "keys", len(keys))

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("load relation %s: %w", rel.Name, err)
	}
	defer rows.Close()

	children, err := scanEntities(rows, rel.ColumnField)
	if err != nil {
		return fmt.Errorf("load relation %s: %w", rel.Name, err)
	}

	for _, child := range children {
		for _, owner := range owners[child.raw[rel.Foreign]] {
			if rel.Cardinality == schema.ToOne && len(owner.Related[rel.Name]) > 0 {
				continue
			}
			owner.Related[rel.Name] = append(owner.Related[rel.Name], child.entity)
		}
	}
	return nil
}
