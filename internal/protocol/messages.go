// Package protocol is the text wire codec of the session control channel.
package protocol

// Kind tags a control message variant.
type Kind int

const (
	KindCursorShow Kind = iota + 1
	KindCursorHide
	KindChat
)

func (k Kind) String() string {
	switch k {
	case KindCursorShow:
		return "cursor_show"
	case KindCursorHide:
		return "cursor_hide"
	case KindChat:
		return "chat"
	default:
		return "unknown"
	}
}

// Message is one control packet. Exactly one variant travels per packet.
type Message interface {
	Kind() Kind
}

// CursorShow places the remote pointer indicator at normalized X, Y.
type CursorShow struct {
	X float64
	Y float64
}

// CursorHide ends a pointer gesture.
type CursorHide struct{}

// Chat is one chat line. Key is unique per sender and deduplicates delivery.
type Chat struct {
	Key       int64  `json:"key"`
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
}

func (CursorShow) Kind() Kind { return KindCursorShow }
func (CursorHide) Kind() Kind { return KindCursorHide }
func (Chat) Kind() Kind       { return KindChat }
