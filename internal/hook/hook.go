package hook

// Chain composes hooks so that the first hook is the outermost wrapper.
// It returns nil when no non-nil hook is given.
func Chain[T any](hooks ...func(next T) T) func(next T) T {
	var chained func(next T) T
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if h == nil {
			continue
		}
		if chained == nil {
			chained = h
			continue
		}
		inner := chained
		chained = func(next T) T {
			return h(inner(next))
		}
	}
	return chained
}
