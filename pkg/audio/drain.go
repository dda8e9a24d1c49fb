package audio

// Drain discards values from ch until it is closed. Streaming APIs in this
// module require their channels to be read to completion; use Drain when the
// remaining values are of no interest.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
