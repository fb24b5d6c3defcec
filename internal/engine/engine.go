package engine

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/roach88/dynaquery/internal/dqerr"
	"github.com/roach88/dynaquery/internal/queryir"
	"github.com/roach88/dynaquery/internal/querysql"
	"github.com/roach88/dynaquery/internal/record"
	"github.com/roach88/dynaquery/internal/schema"
)

// Row is one result row as returned by a backend. Exactly one of Tuple
// and Entity is set, matching the plan's shape.
type Row struct {
	Tuple  []any
	Entity *schema.Entity
}

// Backend runs compiled plans against a store.
type Backend interface {
	// Fetch runs a content plan.
	Fetch(ctx context.Context, plan *querysql.Plan) ([]Row, error)
	// Count runs a count plan.
	Count(ctx context.Context, plan *querysql.CountPlan) (int64, error)
	// GrammarCode reports whether err is the store rejecting the
	// statement's grammar, and the store's diagnostic code if so.
	GrammarCode(err error) (string, bool)
}

// PageRequest selects one zero-based page. A Size of zero or less
// requests every row.
type PageRequest struct {
	Number int `json:"number"`
	Size   int `json:"size"`
}

// Unpaged requests every row.
var Unpaged = PageRequest{}

// Page is one page of shaped records plus the total over all pages.
type Page struct {
	Content []*record.Record `json:"content"`
	Total   int64            `json:"total"`
	Number  int              `json:"number"`
	Size    int              `json:"size"`
}

// Engine runs queries through a compiler and a backend.
// It holds no per-query state and is safe for concurrent use.
type Engine struct {
	compiler *querysql.Compiler
	backend  Backend
	shape    querysql.Shape
	logger   log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. The default discards everything.
func WithLogger(logger log.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithShape sets the shape requested for ungrouped queries.
// The default is querysql.ShapeEntity.
func WithShape(shape querysql.Shape) Option {
	return func(e *Engine) {
		e.shape = shape
	}
}

// New creates an Engine.
func New(compiler *querysql.Compiler, backend Backend, opts ...Option) *Engine {
	e := &Engine{
		compiler: compiler,
		backend:  backend,
		shape:    querysql.ShapeEntity,
		logger:   log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteOne returns the first record matching q. The boolean is false
// when nothing matched.
func (e *Engine) ExecuteOne(ctx context.Context, q *queryir.DynaQuery) (*record.Record, bool, error) {
	plan, err := e.compiler.Compile(q, e.shape)
	if err != nil {
		return nil, false, err
	}

	rows, err := e.fetch(ctx, plan.Page(0, 1))
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	rec, err := ShapeRow(plan, FieldNames(plan), rows[0])
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// ExecuteAll returns one page of records matching q and the total count.
//
// The count plan only runs when the page is full. An empty page has a
// total of zero, and a partial page ends the result, so its total is the
// page offset plus its length.
func (e *Engine) ExecuteAll(ctx context.Context, q *queryir.DynaQuery, page PageRequest) (*Page, error) {
	if page.Number < 0 {
		page.Number = 0
	}

	plan, err := e.compiler.Compile(q, e.shape)
	if err != nil {
		return nil, err
	}

	rows, err := e.fetch(ctx, plan.Page(page.Number, page.Size))
	if err != nil {
		return nil, err
	}

	names := FieldNames(plan)
	content := make([]*record.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := ShapeRow(plan, names, row)
		if err != nil {
			return nil, err
		}
		content = append(content, rec)
	}

	total, err := e.total(ctx, q, page, len(rows))
	if err != nil {
		return nil, err
	}

	level.Debug(e.logger).Log(
		"msg", "query executed",
		"view", q.TargetView,
		"shape", plan.Shape,
		"rows", len(rows),
		"total", total,
		"page", page.Number,
		"size", page.Size,
	)

	return &Page{Content: content, Total: total, Number: page.Number, Size: page.Size}, nil
}

func (e *Engine) total(ctx context.Context, q *queryir.DynaQuery, page PageRequest, n int) (int64, error) {
	switch {
	case n == 0:
		return 0, nil
	case page.Size <= 0:
		return int64(n), nil
	case n < page.Size:
		return int64(page.Number)*int64(page.Size) + int64(n), nil
	}

	plan, err := e.compiler.CompileCount(q)
	if err != nil {
		return 0, err
	}
	total, err := e.backend.Count(ctx, plan)
	if err != nil {
		return 0, e.translate(err)
	}
	return total, nil
}

func (e *Engine) fetch(ctx context.Context, plan *querysql.Plan) ([]Row, error) {
	rows, err := e.backend.Fetch(ctx, plan)
	if err != nil {
		return nil, e.translate(err)
	}
	return rows, nil
}

// translate remaps grammar failures. Other errors pass through unchanged.
func (e *Engine) translate(err error) error {
	code, ok := e.backend.GrammarCode(err)
	if !ok {
		return err
	}
	level.Warn(e.logger).Log("msg", "statement rejected", "diagnostic", code, "err", err)
	return dqerr.QueryGrammar(code, err)
}
