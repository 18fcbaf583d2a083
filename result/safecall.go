package result

import (
	"context"
	"fmt"
)

// SafeCall runs op and converts its outcome into a Result. A returned error
// is passed through Classify; a panic is recovered as KindUnknown. SafeCall
// itself never panics.
func SafeCall[T any](ctx context.Context, op func(context.Context) (T, error)) (r Result[T]) {
	defer func() {
		if p := recover(); p != nil {
			r = Failure[T](Unknown(panicError(p)))
		}
	}()

	data, err := op(ctx)
	if err != nil {
		return FromError[T](err)
	}
	return Success(data)
}

func panicError(p any) error {
	if err, ok := p.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", p)
}
