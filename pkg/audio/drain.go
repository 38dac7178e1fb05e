package audio

// Drain discards values from ch until it is closed, so the producing
// goroutine can exit.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
