package channel

// Unbuffered is a rendezvous channel: Send blocks until a receiver takes the
// value. Debug builds use it to surface ordering bugs that buffering hides.
type Unbuffered[T any] struct {
	ch chan T
}

// NewUnbuffered creates a new unbuffered channel.
func NewUnbuffered[T any]() *Unbuffered[T] {
	return &Unbuffered[T]{ch: make(chan T)}
}

// Send blocks until the value is received.
func (u *Unbuffered[T]) Send(v T) {
	u.ch <- v
}

// Receive returns the receive-only channel.
func (u *Unbuffered[T]) Receive() <-chan T {
	return u.ch
}

// Len always returns 0: nothing is ever held.
func (u *Unbuffered[T]) Len() int {
	return 0
}

// Close closes the channel.
func (u *Unbuffered[T]) Close() {
	close(u.ch)
}
