package core

// Frame is one encoded message for a client.
type Frame []byte

// SignalConnection abstracts the messaging transport of one client.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
