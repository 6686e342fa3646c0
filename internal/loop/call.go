package loop

import "context"

type poster interface {
	Post(fn func()) error
}

// Call runs fn on the loop behind p and waits for its result.
func Call[T any](ctx context.Context, p poster, fn func() T) (T, error) {
	var zero T
	ch := make(chan T, 1)
	if err := p.Post(func() { ch <- fn() }); err != nil {
		return zero, err
	}
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
