package datahub

import (
	"context"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/theplant/datahub/criteria"
)

// EnsurePageLimits clamps page sizes into 1..maxPageSize, using
// defaultPageSize when none is set, and moves pages below 1 to page 1.
// Requests with GetAll are passed through unchanged. The caller's request is
// never modified.
func EnsurePageLimits[T any](defaultPageSize, maxPageSize int) func(next Pager[T]) Pager[T] {
	if defaultPageSize <= 0 {
		panic("defaultPageSize must be greater than 0")
	}
	if maxPageSize < defaultPageSize {
		panic("maxPageSize must be greater than or equal to defaultPageSize")
	}
	return func(next Pager[T]) Pager[T] {
		return PagerFunc[T](func(ctx context.Context, source Source[T], req *Request) (*Result[T], error) {
			if req != nil && !req.GetAll {
				r := *req
				if r.PageSize <= 0 {
					r.PageSize = defaultPageSize
				}
				if r.PageSize > maxPageSize {
					r.PageSize = maxPageSize
				}
				if r.Page < 1 {
					r.Page = 1
				}
				req = &r
			}
			return next.GetPaged(ctx, source, req)
		})
	}
}

// EnsurePrimarySort appends primarySorts as tie-breaks so that paging over
// equal sort keys is deterministic.
func EnsurePrimarySort[T any](primarySorts ...criteria.SortCriterion) func(next Pager[T]) Pager[T] {
	return func(next Pager[T]) Pager[T] {
		return PagerFunc[T](func(ctx context.Context, source Source[T], req *Request) (*Result[T], error) {
			if req != nil {
				r := *req
				r.Sorts = AppendPrimarySort(req.Sorts, primarySorts...)
				req = &r
			}
			return next.GetPaged(ctx, source, req)
		})
	}
}

// AppendPrimarySort appends the sorts of primarySorts whose field is not
// already sorted on. Field names compare case-insensitively. The backing
// array of sorts is never written to.
func AppendPrimarySort(sorts []criteria.SortCriterion, primarySorts ...criteria.SortCriterion) []criteria.SortCriterion {
	if len(primarySorts) == 0 {
		return sorts
	}
	sortFields := lo.SliceToMap(sorts, func(s criteria.SortCriterion) (string, bool) {
		return strings.ToLower(s.FieldName), true
	})
	sorts = slices.Clip(sorts)
	for _, primarySort := range primarySorts {
		if _, ok := sortFields[strings.ToLower(primarySort.FieldName)]; !ok {
			sorts = append(sorts, primarySort)
		}
	}
	return sorts
}

// ValidateColumns rejects explicit filters and sorts that do not name a
// filterable or sortable column. Criteria parsed from RawQuery are not checked.
func ValidateColumns[T any](columns []criteria.ColumnDefinition[T]) func(next Pager[T]) Pager[T] {
	return func(next Pager[T]) Pager[T] {
		return PagerFunc[T](func(ctx context.Context, source Source[T], req *Request) (*Result[T], error) {
			if req != nil {
				if err := criteria.ValidateAgainstColumns(&criteria.SavedCriteria{
					Filters: req.Filters,
					Sorts:   req.Sorts,
				}, columns); err != nil {
					return nil, err
				}
			}
			return next.GetPaged(ctx, source, req)
		})
	}
}
