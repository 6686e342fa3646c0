// Package hotkey reads a global key from a Linux input device and posts a
// trigger to the update loop on every press.
package hotkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/Tutor/internal/core"
	"github.com/rs/zerolog/log"
)

var ErrUnsupported = errors.New("global hotkey not supported on this platform")

const (
	evKey       = 0x01
	keyPress    = 1
	eventSize   = 24
	timevalSize = 16
)

var keyCodes = map[string]uint16{
	"esc": 1, "space": 57,
	"f1": 59, "f2": 60, "f3": 61, "f4": 62, "f5": 63, "f6": 64,
	"f7": 65, "f8": 66, "f9": 67, "f10": 68, "f11": 87, "f12": 88,
}

// ParseKey maps a key name such as "f5" to its evdev code.
func ParseKey(name string) (uint16, error) {
	code, ok := keyCodes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("hotkey: unknown key %q", name)
	}
	return code, nil
}

type inputEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

// parseEvents decodes complete input_event records from buf; a trailing
// partial record is ignored.
func parseEvents(buf []byte) []inputEvent {
	out := make([]inputEvent, 0, len(buf)/eventSize)
	for len(buf) >= eventSize {
		rec := buf[timevalSize:eventSize]
		out = append(out, inputEvent{
			Type:  binary.LittleEndian.Uint16(rec[0:2]),
			Code:  binary.LittleEndian.Uint16(rec[2:4]),
			Value: int32(binary.LittleEndian.Uint32(rec[4:8])),
		})
		buf = buf[eventSize:]
	}
	return out
}

// Reader watches one input device for one key.
type Reader struct {
	device  string
	name    string
	code    uint16
	poster  core.Poster
	trigger func(name string)
}

// NewReader posts trigger(name) to poster whenever key is pressed on device.
func NewReader(device, key string, poster core.Poster, trigger func(name string)) (*Reader, error) {
	if device == "" {
		return nil, errors.New("hotkey: empty device path")
	}
	code, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	return &Reader{device: device, name: strings.ToLower(key), code: code, poster: poster, trigger: trigger}, nil
}

func (r *Reader) handle(buf []byte) {
	for _, ev := range parseEvents(buf) {
		if ev.Type != evKey || ev.Code != r.code || ev.Value != keyPress {
			continue
		}
		name := r.name
		if err := r.poster.Post(func() { r.trigger(name) }); err != nil {
			log.Warn().Err(err).Str("module", "adapters.hotkey").Msg("trigger dropped")
		}
	}
}
