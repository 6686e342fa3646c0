package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	PrefixCursor = "CURSOR_POS:"
	PrefixChat   = "CHAT_MSG:"
)

// hideCoord is what CursorHide looks like on the wire.
const hideCoord = -1

// Encode serializes msg as UTF-8 text "<PREFIX><PAYLOAD>".
func Encode(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case nil:
		return nil, ErrEmptyMessage
	case CursorShow:
		return encodeCursor(m.X, m.Y)
	case *CursorShow:
		if m == nil {
			return nil, ErrEmptyMessage
		}
		return encodeCursor(m.X, m.Y)
	case CursorHide, *CursorHide:
		return encodeCursor(hideCoord, hideCoord)
	case Chat:
		return encodeChat(m)
	case *Chat:
		if m == nil {
			return nil, ErrEmptyMessage
		}
		return encodeChat(*m)
	default:
		return nil, fmt.Errorf("encode %T: %w", msg, ErrUnknownPrefix)
	}
}

func encodeCursor(x, y float64) ([]byte, error) {
	if !finite(x) || !finite(y) {
		return nil, fmt.Errorf("encode cursor (%v,%v): %w", x, y, ErrMalformedCursorPayload)
	}
	b := make([]byte, 0, len(PrefixCursor)+24)
	b = append(b, PrefixCursor...)
	b = strconv.AppendFloat(b, x, 'f', -1, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, y, 'f', -1, 64)
	return b, nil
}

func encodeChat(m Chat) ([]byte, error) {
	if m.Content == "" {
		return nil, ErrEmptyMessage
	}
	var buf bytes.Buffer
	buf.WriteString(PrefixChat)
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode chat: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode parses one control packet. Bytes without a known prefix yield
// ErrUnknownPrefix and no message.
func Decode(data []byte) (Message, error) {
	s := string(data)
	switch {
	case strings.HasPrefix(s, PrefixCursor):
		return decodeCursor(s[len(PrefixCursor):])
	case strings.HasPrefix(s, PrefixChat):
		return decodeChat(data[len(PrefixChat):])
	default:
		return nil, ErrUnknownPrefix
	}
}

func decodeCursor(payload string) (Message, error) {
	xs, ys, ok := strings.Cut(payload, ",")
	if !ok || strings.Contains(ys, ",") {
		return nil, fmt.Errorf("%q: %w", payload, ErrMalformedCursorPayload)
	}
	xs, ys = strings.TrimSpace(xs), strings.TrimSpace(ys)
	if !decimal(xs) || !decimal(ys) {
		return nil, fmt.Errorf("%q: %w", payload, ErrMalformedCursorPayload)
	}
	x, errX := strconv.ParseFloat(xs, 64)
	y, errY := strconv.ParseFloat(ys, 64)
	if errX != nil || errY != nil || !finite(x) || !finite(y) {
		return nil, fmt.Errorf("%q: %w", payload, ErrMalformedCursorPayload)
	}
	if x == hideCoord && y == hideCoord {
		return CursorHide{}, nil
	}
	return CursorShow{X: x, Y: y}, nil
}

// chatWire uses pointers so missing fields can be told apart from zero values.
type chatWire struct {
	Key       *int64  `json:"key"`
	Timestamp *string `json:"timestamp"`
	Content   *string `json:"content"`
}

func decodeChat(payload []byte) (Message, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	var w chatWire
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedChatPayload, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedChatPayload)
	}
	if w.Key == nil || w.Timestamp == nil || w.Content == nil {
		return nil, fmt.Errorf("%w: missing field", ErrMalformedChatPayload)
	}
	if *w.Content == "" {
		return nil, fmt.Errorf("%w: empty content", ErrMalformedChatPayload)
	}
	return Chat{Key: *w.Key, Timestamp: *w.Timestamp, Content: *w.Content}, nil
}

// decimal limits coordinates to plain decimal notation; ParseFloat alone
// would also take hex floats, underscores, Inf and NaN.
func decimal(s string) bool {
	digits := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits = true
		case c == '.' || c == '+' || c == '-' || c == 'e' || c == 'E':
		default:
			return false
		}
	}
	return digits
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
