package datahub

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/theplant/datahub/criteria"
	"github.com/theplant/datahub/internal/hook"
	"github.com/theplant/datahub/predicate"
	"github.com/theplant/datahub/query"
)

// Source is the record source a Pager runs against. Where and OrderBy return
// a narrowed source and never fail; errors surface from Count and Find.
type Source[T any] interface {
	Where(p *predicate.Predicate[T]) Source[T]
	OrderBy(sorts []criteria.SortCriterion) Source[T]
	Count(ctx context.Context) (int, error)
	// Find materializes records starting at offset. A negative limit returns
	// every remaining record.
	Find(ctx context.Context, offset, limit int) ([]T, error)
}

type Request struct {
	Page     int                        `json:"page"`
	PageSize int                        `json:"pageSize"`
	Filters  []criteria.FilterCriterion `json:"filters,omitempty"`
	Sorts    []criteria.SortCriterion   `json:"sorts,omitempty"`
	RawQuery string                     `json:"rawQuery,omitempty"`
	GetAll   bool                       `json:"getAll,omitempty"`
}

type Result[T any] struct {
	Data       []T `json:"data"`
	TotalCount int `json:"totalCount"`
}

type Pager[T any] interface {
	GetPaged(ctx context.Context, source Source[T], req *Request) (*Result[T], error)
}

type PagerFunc[T any] func(ctx context.Context, source Source[T], req *Request) (*Result[T], error)

func (f PagerFunc[T]) GetPaged(ctx context.Context, source Source[T], req *Request) (*Result[T], error) {
	return f(ctx, source, req)
}

type Option[T any] func(*engine[T])

// WithShape sets the record shape criteria are compiled against.
// It defaults to predicate.ShapeOf[T].
func WithShape[T any](shape *predicate.Shape[T]) Option[T] {
	return func(e *engine[T]) {
		e.shape = shape
	}
}

func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(e *engine[T]) {
		e.logger = logger
	}
}

func WithParser[T any](parser *query.Parser) Option[T] {
	return func(e *engine[T]) {
		e.parser = parser
	}
}

// WithCache compiles predicates through cache. The cache shape replaces the
// engine shape.
func WithCache[T any](cache *predicate.Cache[T]) Option[T] {
	return func(e *engine[T]) {
		e.cache = cache
		e.shape = cache.Shape()
	}
}

// WithComplexityLimits rejects requests whose merged criteria exceed limits.
func WithComplexityLimits[T any](limits *criteria.ComplexityLimits) Option[T] {
	return func(e *engine[T]) {
		e.limits = limits
	}
}

func WithMiddlewares[T any](middlewares ...func(next Pager[T]) Pager[T]) Option[T] {
	return func(e *engine[T]) {
		e.middlewares = append(e.middlewares, middlewares...)
	}
}

type engine[T any] struct {
	shape       *predicate.Shape[T]
	logger      *slog.Logger
	parser      *query.Parser
	cache       *predicate.Cache[T]
	limits      *criteria.ComplexityLimits
	middlewares []func(next Pager[T]) Pager[T]
}

func New[T any](opts ...Option[T]) Pager[T] {
	e := &engine[T]{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.parser == nil {
		e.parser = query.NewParser(query.WithLogger(e.logger))
	}

	var p Pager[T] = PagerFunc[T](e.getPaged)
	if h := hook.Chain(e.middlewares...); h != nil {
		p = h(p)
	}
	return p
}

// GetPaged runs req against source with a Pager built from opts.
func GetPaged[T any](ctx context.Context, source Source[T], req *Request, opts ...Option[T]) (*Result[T], error) {
	return New(opts...).GetPaged(ctx, source, req)
}

func (e *engine[T]) getPaged(ctx context.Context, source Source[T], req *Request) (*Result[T], error) {
	if source == nil {
		return nil, errors.New("source must be set")
	}
	if req == nil {
		return nil, errors.New("request must be set")
	}
	if !req.GetAll {
		if req.Page < 1 {
			return nil, errors.Errorf("page must be greater than 0, got %d", req.Page)
		}
		if req.PageSize < 1 {
			return nil, errors.Errorf("page size must be greater than 0, got %d", req.PageSize)
		}
		if req.Page-1 > math.MaxInt/req.PageSize {
			return nil, errors.Errorf("page %d with page size %d is out of range", req.Page, req.PageSize)
		}
	}

	filters := slices.Clone(req.Filters)
	sorts := slices.Clone(req.Sorts)
	if strings.TrimSpace(req.RawQuery) != "" {
		sc, err := e.parser.Parse(req.RawQuery)
		if err != nil {
			e.logger.ErrorContext(ctx, "ignore raw query", "rawQuery", req.RawQuery, "error", err)
		} else {
			filters = criteria.AppendFilters(filters, sc.Filters...)
			sorts = append(sorts, sc.Sorts...)
		}
	}
	sorts = criteria.NormalizeSorts(sorts)

	if err := criteria.CheckComplexity(filters, sorts, e.limits); err != nil {
		return nil, err
	}

	if len(filters) > 0 {
		p, err := e.compile(filters)
		if err != nil {
			return nil, err
		}
		source = source.Where(p)
	}
	if len(sorts) > 0 {
		source = source.OrderBy(sorts)
	}

	skip := GetSkip(ctx)
	rsp := &Result[T]{}

	if !skip.TotalCount {
		count, err := source.Count(ctx)
		if err != nil {
			return nil, err
		}
		rsp.TotalCount = count
	}

	if !skip.Data {
		offset, limit := 0, -1
		if !req.GetAll {
			offset, limit = (req.Page-1)*req.PageSize, req.PageSize
		}
		data, err := source.Find(ctx, offset, limit)
		if err != nil {
			return nil, err
		}
		if processor := GetRecordProcessor[T](ctx); processor != nil {
			for i, rec := range data {
				if data[i], err = processor(ctx, rec); err != nil {
					return nil, err
				}
			}
		}
		rsp.Data = data
	}

	return rsp, nil
}

func (e *engine[T]) compile(filters []criteria.FilterCriterion) (*predicate.Predicate[T], error) {
	if e.cache != nil {
		return e.cache.Compile(filters)
	}
	shape := e.shape
	if shape == nil {
		var err error
		if shape, err = predicate.ShapeOf[T](); err != nil {
			return nil, err
		}
	}
	return predicate.Compile(shape, filters, predicate.WithLogger(e.logger)), nil
}
