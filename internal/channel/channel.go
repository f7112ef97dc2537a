// Package channel provides generic channel interfaces for decoupled
// communication, used for the camera event stream and the visible-set
// updates feed.
package channel

// TrySender is an optional extension for senders that must never block the
// producing side, like the map widget's camera callback.
type TrySender[T any] interface {
	// TrySend sends v unless the channel is full; it reports whether the
	// value was accepted.
	TrySend(v T) bool
}

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	Send(T)
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}
