//go:build linux

package hotkey

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

const pollTimeoutMs = 200

// Run reads the device until ctx is done.
func (r *Reader) Run(ctx context.Context) error {
	fd, err := unix.Open(r.device, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("hotkey: open %s: %w", r.device, err)
	}
	defer unix.Close(fd)

	log.Info().Str("module", "adapters.hotkey").Str("device", r.device).Str("key", r.name).Msg("hotkey reader started")

	buf := make([]byte, eventSize*64)
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := unix.Poll(fds, pollTimeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("hotkey: poll: %w", err)
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return fmt.Errorf("hotkey: device %s gone", r.device)
		}
		read, err := unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("hotkey: read: %w", err)
		}
		r.handle(buf[:read])
	}
}
