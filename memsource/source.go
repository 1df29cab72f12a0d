// Package memsource is a record source over an in-memory slice.
package memsource

import (
	"context"
	"slices"

	"github.com/pkg/errors"

	"github.com/theplant/datahub"
	"github.com/theplant/datahub/criteria"
	"github.com/theplant/datahub/predicate"
)

type Option[T any] func(*Source[T])

// WithShape sets the shape sort fields are resolved against.
// It defaults to predicate.ShapeOf[T].
func WithShape[T any](shape *predicate.Shape[T]) Option[T] {
	return func(s *Source[T]) {
		s.shape = shape
	}
}

// Source filters and sorts a slice lazily. Where and OrderBy return new
// sources; the backing slice is never modified.
type Source[T any] struct {
	records    []T
	shape      *predicate.Shape[T]
	predicates []*predicate.Predicate[T]
	sorts      []criteria.SortCriterion
}

func New[T any](records []T, opts ...Option[T]) *Source[T] {
	s := &Source[T]{records: records}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source[T]) clone() *Source[T] {
	cp := *s
	cp.predicates = slices.Clone(s.predicates)
	cp.sorts = slices.Clone(s.sorts)
	return &cp
}

func (s *Source[T]) Where(p *predicate.Predicate[T]) datahub.Source[T] {
	cp := s.clone()
	cp.predicates = append(cp.predicates, p)
	return cp
}

// OrderBy replaces any earlier ordering.
func (s *Source[T]) OrderBy(sorts []criteria.SortCriterion) datahub.Source[T] {
	cp := s.clone()
	cp.sorts = slices.Clone(sorts)
	return cp
}

func (s *Source[T]) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Wrap(err, "count")
	}
	if _, err := s.comparator(); err != nil {
		return 0, err
	}
	n := 0
	for _, rec := range s.records {
		if s.match(rec) {
			n++
		}
	}
	return n, nil
}

func (s *Source[T]) Find(ctx context.Context, offset, limit int) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "find")
	}
	if offset < 0 {
		return nil, errors.Errorf("offset must be non-negative, got %d", offset)
	}

	recs := make([]T, 0, len(s.records))
	for _, rec := range s.records {
		if s.match(rec) {
			recs = append(recs, rec)
		}
	}

	cmp, err := s.comparator()
	if err != nil {
		return nil, err
	}
	if cmp != nil {
		slices.SortStableFunc(recs, cmp)
	}

	if offset >= len(recs) {
		return []T{}, nil
	}
	recs = recs[offset:]
	if limit >= 0 && limit < len(recs) {
		recs = recs[:limit]
	}
	return recs, nil
}

func (s *Source[T]) comparator() (func(a, b T) int, error) {
	if len(s.sorts) == 0 {
		return nil, nil
	}
	shape := s.shape
	if shape == nil {
		var err error
		if shape, err = predicate.ShapeOf[T](); err != nil {
			return nil, err
		}
	}
	return predicate.Comparator(shape, s.sorts)
}

func (s *Source[T]) match(rec T) bool {
	for _, p := range s.predicates {
		if !p.Match(rec) {
			return false
		}
	}
	return true
}
