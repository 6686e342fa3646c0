package core

// Frame is a raw payload pushed to a view client.
type Frame []byte

// SignalConnection abstracts a push channel to one view client.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
