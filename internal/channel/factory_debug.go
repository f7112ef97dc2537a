//go:build debug

package channel

// New returns an unbuffered channel in debug builds, ignoring size, so
// producer and consumer run in lockstep.
func New[T any](size int) Channel[T] {
	return NewUnbuffered[T]()
}
