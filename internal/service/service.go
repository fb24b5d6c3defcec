// Package service is the query façade used by every transport.
//
// Each call normalizes a client request against the registry, runs it
// through the engine and, for saved queries, the store. Calls are
// independent: nothing is cached between them, and each gets its own
// request id in the log.
package service

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/roach88/dynaquery/internal/dqerr"
	"github.com/roach88/dynaquery/internal/engine"
	"github.com/roach88/dynaquery/internal/normalize"
	"github.com/roach88/dynaquery/internal/queryir"
	"github.com/roach88/dynaquery/internal/querysql"
	"github.com/roach88/dynaquery/internal/record"
	"github.com/roach88/dynaquery/internal/request"
	"github.com/roach88/dynaquery/internal/schema"
	"github.com/roach88/dynaquery/internal/store"
)

// MaxNameLength is the longest accepted saved query name, in characters.
const MaxNameLength = 20

// Reference identifies a saved query.
type Reference struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
}

// Statement is a rendered SQL statement and its parameters.
type Statement struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args"`
}

// Explanation is what a request compiles to.
type Explanation struct {
	TargetView string    `json:"targetView"`
	Shape      string    `json:"shape"`
	Columns    []string  `json:"columns,omitempty"`
	Content    Statement `json:"content"`
	Count      Statement `json:"count"`
}

// Service runs client requests.
type Service struct {
	registry   *schema.Registry
	normalizer *normalize.Normalizer
	compiler   *querysql.Compiler
	engine     *engine.Engine
	store      *store.Store
	shape      querysql.Shape
	ids        IDGenerator
	logger     log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service's logger. The default discards everything.
func WithLogger(logger log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithIDGenerator sets the request id generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Service) {
		s.ids = ids
	}
}

// WithShape sets the result shape of ungrouped queries.
func WithShape(shape querysql.Shape) Option {
	return func(s *Service) {
		s.shape = shape
	}
}

// New wires a Service over a registry and a store.
func New(registry *schema.Registry, st *store.Store, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		store:    st,
		shape:    querysql.ShapeEntity,
		ids:      UUIDv7Generator{},
		logger:   log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.normalizer = normalize.New(registry)
	s.compiler = querysql.NewCompiler(registry)
	s.engine = engine.New(
		s.compiler,
		store.NewBackend(st, s.compiler),
		engine.WithShape(s.shape),
		engine.WithLogger(s.logger),
	)
	return s
}

// Views returns the registered views in declaration order.
func (s *Service) Views() []*schema.View {
	names := s.registry.Names()
	out := make([]*schema.View, 0, len(names))
	for _, name := range names {
		v, err := s.registry.View(name)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// QueryOne returns the first record matching req. The boolean is false
// when nothing matched.
func (s *Service) QueryOne(ctx context.Context, req *request.Request) (*record.Record, bool, error) {
	logger := s.requestLogger("queryOne")

	q, err := s.normalize(logger, req)
	if err != nil {
		return nil, false, err
	}
	rec, ok, err := s.engine.ExecuteOne(ctx, q)
	if err != nil {
		logFailure(logger, err)
		return nil, false, err
	}
	level.Info(logger).Log("msg", "query executed", "view", q.TargetView, "found", ok)
	return rec, ok, nil
}

// QueryAll returns one page of records matching req.
func (s *Service) QueryAll(ctx context.Context, req *request.Request, page engine.PageRequest) (*engine.Page, error) {
	logger := s.requestLogger("queryAll")

	q, err := s.normalize(logger, req)
	if err != nil {
		return nil, err
	}
	return s.executeAll(ctx, logger, q, page)
}

// QuerySaved runs the saved query with the given id. The stored
// definition is normalized again, so it must still match the registry.
func (s *Service) QuerySaved(ctx context.Context, id int64, page engine.PageRequest) (*engine.Page, error) {
	logger := log.With(s.requestLogger("querySaved"), "saved_id", id)

	sq, err := s.store.FindSavedQuery(ctx, id)
	if err != nil {
		logFailure(logger, err)
		return nil, err
	}
	req, err := request.DecodeJSON([]byte(sq.Definition))
	if err != nil {
		logFailure(logger, err)
		return nil, fmt.Errorf("decode saved query %d: %w", id, err)
	}

	q, err := s.normalize(logger, req)
	if err != nil {
		return nil, err
	}
	return s.executeAll(ctx, logger, q, page)
}

// SaveQuery validates req and stores it under name. When isDefault is
// set it becomes the only default.
func (s *Service) SaveQuery(ctx context.Context, req *request.Request, name string, isDefault bool) (Reference, error) {
	logger := s.requestLogger("saveQuery")

	if err := checkName(name); err != nil {
		logFailure(logger, err)
		return Reference{}, err
	}

	q, err := s.normalize(logger, req)
	if err != nil {
		return Reference{}, err
	}
	def, err := request.FromQuery(q).Definition()
	if err != nil {
		logFailure(logger, err)
		return Reference{}, fmt.Errorf("encode definition: %w", err)
	}

	sq, err := s.store.CreateSavedQuery(ctx, store.SavedQuery{
		Name:       name,
		IsDefault:  isDefault,
		TargetView: q.TargetView,
		Definition: string(def),
	})
	if err != nil {
		logFailure(logger, err)
		return Reference{}, err
	}

	level.Info(logger).Log("msg", "query saved", "id", sq.ID, "name", sq.Name, "default", sq.IsDefault)
	return reference(sq), nil
}

// SetDefault makes the saved query with the given id the only default.
func (s *Service) SetDefault(ctx context.Context, id int64) error {
	logger := log.With(s.requestLogger("setDefault"), "saved_id", id)

	if err := s.store.SetDefault(ctx, id); err != nil {
		logFailure(logger, err)
		return err
	}
	level.Info(logger).Log("msg", "default query set")
	return nil
}

// ListReferences returns every saved query, ordered by id.
func (s *Service) ListReferences(ctx context.Context) ([]Reference, error) {
	all, err := s.store.ListSavedQueries(ctx)
	if err != nil {
		logFailure(s.requestLogger("listReferences"), err)
		return nil, err
	}
	out := make([]Reference, len(all))
	for i, sq := range all {
		out[i] = reference(sq)
	}
	return out, nil
}

// Explain compiles req without running it.
func (s *Service) Explain(req *request.Request, page engine.PageRequest) (*Explanation, error) {
	logger := s.requestLogger("explain")

	q, err := s.normalize(logger, req)
	if err != nil {
		return nil, err
	}

	plan, err := s.compiler.Compile(q, s.shape)
	if err != nil {
		return nil, err
	}
	content, args, err := plan.Page(page.Number, page.Size).SQL()
	if err != nil {
		return nil, dqerr.Internal("render plan: %v", err)
	}

	count, err := s.compiler.CompileCount(q)
	if err != nil {
		return nil, err
	}
	countSQL, countArgs, err := count.SQL()
	if err != nil {
		return nil, dqerr.Internal("render count: %v", err)
	}

	return &Explanation{
		TargetView: q.TargetView,
		Shape:      plan.Shape.String(),
		Columns:    engine.FieldNames(plan),
		Content:    Statement{SQL: content, Args: args},
		Count:      Statement{SQL: countSQL, Args: countArgs},
	}, nil
}

func (s *Service) executeAll(ctx context.Context, logger log.Logger, q *queryir.DynaQuery, page engine.PageRequest) (*engine.Page, error) {
	p, err := s.engine.ExecuteAll(ctx, q, page)
	if err != nil {
		logFailure(logger, err)
		return nil, err
	}
	level.Info(logger).Log("msg", "query executed", "view", q.TargetView, "rows", len(p.Content), "total", p.Total)
	return p, nil
}

func (s *Service) normalize(logger log.Logger, req *request.Request) (*queryir.DynaQuery, error) {
	q, err := s.normalizer.Normalize(req)
	if err != nil {
		logFailure(logger, err)
		return nil, err
	}
	return q, nil
}

func (s *Service) requestLogger(op string) log.Logger {
	return log.With(s.logger, "request_id", s.ids.Generate(), "op", op)
}

// logFailure logs client mistakes at debug level and everything else
// as an error.
func logFailure(logger log.Logger, err error) {
	switch dqerr.CodeOf(err).Category() {
	case dqerr.CategoryClient, dqerr.CategorySchema, dqerr.CategoryNotFound:
		level.Debug(logger).Log("msg", "request rejected", "code", dqerr.CodeOf(err), "err", err)
	default:
		level.Error(logger).Log("msg", "request failed", "err", err)
	}
}

func checkName(name string) error {
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		return dqerr.InvalidName("saved query name is required")
	case n > MaxNameLength:
		return dqerr.InvalidName("saved query name has %d characters, at most %d allowed", n, MaxNameLength)
	}
	return nil
}

func reference(sq store.SavedQuery) Reference {
	return Reference{ID: sq.ID, Name: sq.Name, IsDefault: sq.IsDefault}
}
