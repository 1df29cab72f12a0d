package datahub

import "context"

// Skip lets a caller ask for only part of a Result. A skipped part is left
// at its zero value and the source is not asked for it.
type Skip struct {
	Data, TotalCount bool
}

func (s Skip) All() bool {
	return s.Data && s.TotalCount
}

type ctxKeySkip struct{}

func WithSkip(ctx context.Context, skip Skip) context.Context {
	return context.WithValue(ctx, ctxKeySkip{}, skip)
}

func GetSkip(ctx context.Context) Skip {
	skip, _ := ctx.Value(ctxKeySkip{}).(Skip)
	return skip
}

type ctxKeyRecordProcessor struct{}

// WithRecordProcessor registers a function applied to every returned record,
// e.g. to mask columns the caller may not see.
func WithRecordProcessor[T any](ctx context.Context, processor func(ctx context.Context, rec T) (T, error)) context.Context {
	return context.WithValue(ctx, ctxKeyRecordProcessor{}, processor)
}

func GetRecordProcessor[T any](ctx context.Context) func(ctx context.Context, rec T) (T, error) {
	processor, _ := ctx.Value(ctxKeyRecordProcessor{}).(func(ctx context.Context, rec T) (T, error))
	return processor
}
