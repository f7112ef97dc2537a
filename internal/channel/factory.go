//go:build !debug

package channel

// New returns the channel used by release builds: buffered, so camera events
// and update fans never block their producers.
func New[T any](size int) Channel[T] {
	return NewBuffered[T](size)
}
