// Package gormsource runs compiled predicates and sorts against a database
// through gorm.
package gormsource

import (
	"context"
	"slices"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/theplant/datahub"
	"github.com/theplant/datahub/criteria"
	"github.com/theplant/datahub/predicate"
)

// Source queries the table of T, or of db.Statement.Model when set.
// Conditions already on db are kept.
type Source[T any] struct {
	db         *gorm.DB
	predicates []*predicate.Predicate[T]
	sorts      []criteria.SortCriterion
}

func New[T any](db *gorm.DB) *Source[T] {
	return &Source[T]{db: db}
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

// query builds the filtered query for ctx and checks that every sort field
// exists, so Count and Find fail alike.
func (s *Source[T]) query(ctx context.Context) (_ *gorm.DB, viaModel bool, _ error) {
	if s.db == nil {
		return nil, false, errors.New("db is nil")
	}
	db := s.db.WithContext(ctx)

	viaModel, err := basedOnModel[T](db)
	if err != nil {
		return nil, false, err
	}
	if !viaModel {
		db = applyModel[T](db)
	}

	if len(s.sorts) > 0 {
		stmt, err := parseStatement(db)
		if err != nil {
			return nil, false, err
		}
		if _, err := orderByClause(stmt, s.sorts); err != nil {
			return nil, false, err
		}
	}

	for _, p := range s.predicates {
		db = db.Scopes(Scope(p))
	}
	return db, viaModel, nil
}

func (s *Source[T]) Count(ctx context.Context) (int, error) {
	db, _, err := s.query(ctx)
	if err != nil {
		return 0, err
	}
	var totalCount int64
	if err := db.Count(&totalCount).Error; err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return int(totalCount), nil
}

func (s *Source[T]) Find(ctx context.Context, offset, limit int) ([]T, error) {
	if offset < 0 {
		return nil, errors.Errorf("offset must be non-negative, got %d", offset)
	}
	db, viaModel, err := s.query(ctx)
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		return []T{}, nil
	}

	db = db.Scopes(OrderScope(s.sorts))
	if offset > 0 {
		db = db.Offset(offset)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}

	if viaModel {
		return findBasedOnModel[T](db)
	}
	recs := []T{}
	if err := db.Find(&recs).Error; err != nil {
		return nil, errors.Wrap(err, "find")
	}
	return recs, nil
}
