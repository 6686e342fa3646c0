package chat

import (
	"fmt"
	"time"

	"github.com/dkeye/Tutor/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Sender delivers a control message to the peer.
type Sender interface {
	SendControl(msg protocol.Message) error
}

// Subscriber is notified of every newly appended inbound message.
type Subscriber func(protocol.Chat)

// Channel is the chat endpoint of one session. Only inbound messages enter
// the log; local display echoes outbound lines itself.
type Channel struct {
	send   Sender
	log    *Log
	keys   KeySource
	notify Subscriber
	now    func() time.Time
}

func NewChannel(send Sender, notify Subscriber) *Channel {
	return &Channel{send: send, log: NewLog(), notify: notify, now: time.Now}
}

// WithClock replaces the time source for keys and timestamps.
func (c *Channel) WithClock(now func() time.Time) *Channel {
	c.now = now
	return c
}

func (c *Channel) Log() *Log { return c.log }

// Compose builds the outbound message for content without sending it.
func (c *Channel) Compose(content string) protocol.Chat {
	now := c.now()
	return protocol.Chat{
		Key:       c.keys.Next(now),
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Content:   content,
	}
}

// Send reports false on any failure. A caller that already echoed the line
// keeps it; nothing is rolled back.
func (c *Channel) Send(content string) bool {
	_, err := c.SendMessage(content)
	return err == nil
}

// SendMessage is Send with the composed message and the failure cause.
func (c *Channel) SendMessage(content string) (protocol.Chat, error) {
	if content == "" {
		return protocol.Chat{}, protocol.ErrEmptyMessage
	}
	m := c.Compose(content)
	if err := c.send.SendControl(m); err != nil {
		log.Warn().Err(err).Str("module", "app.chat").Int64("key", m.Key).Msg("chat send failed")
		return m, fmt.Errorf("chat send: %w", err)
	}
	log.Debug().Str("module", "app.chat").Int64("key", m.Key).Msg("chat sent")
	return m, nil
}

// Receive decodes raw and delivers it. It reports whether the log grew.
func (c *Channel) Receive(raw []byte) (bool, error) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		return false, err
	}
	m, ok := msg.(protocol.Chat)
	if !ok {
		return false, fmt.Errorf("receive %s: %w", msg.Kind(), protocol.ErrMalformedChatPayload)
	}
	return c.Deliver(m), nil
}

// Deliver appends an already decoded message. Duplicate keys are dropped.
func (c *Channel) Deliver(m protocol.Chat) bool {
	if !c.log.Append(m) {
		log.Debug().Str("module", "app.chat").Int64("key", m.Key).Msg("duplicate chat dropped")
		return false
	}
	if c.notify != nil {
		c.notify(m)
	}
	return true
}
