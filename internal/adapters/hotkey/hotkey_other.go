//go:build !linux

package hotkey

import "context"

func (r *Reader) Run(ctx context.Context) error {
	return ErrUnsupported
}
