package predicate

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/theplant/datahub/criteria"
)

// Cache memoizes compiled predicates for one shape, keyed on the serialized
// filter list. Compiled predicates are immutable and shared between callers.
type Cache[T any] struct {
	shape *Shape[T]
	opts  []Option
	lru   *lru.Cache[string, *Predicate[T]]
}

func NewCache[T any](shape *Shape[T], size int, opts ...Option) (*Cache[T], error) {
	l, err := lru.New[string, *Predicate[T]](size)
	if err != nil {
		return nil, errors.Wrap(err, "create predicate cache")
	}
	return &Cache[T]{shape: shape, opts: opts, lru: l}, nil
}

// Compile returns the cached predicate for filters, compiling it on a miss.
func (c *Cache[T]) Compile(filters []criteria.FilterCriterion) (*Predicate[T], error) {
	key, err := criteria.FiltersKey(filters)
	if err != nil {
		return nil, err
	}
	if p, ok := c.lru.Get(key); ok {
		return p, nil
	}
	p := Compile(c.shape, filters, c.opts...)
	c.lru.Add(key, p)
	return p, nil
}

func (c *Cache[T]) Shape() *Shape[T] {
	return c.shape
}

func (c *Cache[T]) Len() int {
	return c.lru.Len()
}
