package ui

// feed hands the latest value from a background goroutine to the update
// loop. It holds at most one value: publishing replaces a value that has not
// been read yet, so a slow reader only ever sees the newest state.
type feed[T any] struct {
	ch chan T
}

func newFeed[T any]() *feed[T] {
	return &feed[T]{ch: make(chan T, 1)}
}

// publish never blocks.
func (f *feed[T]) publish(v T) {
	for {
		select {
		case f.ch <- v:
			return
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

// next blocks until a value is available.
func (f *feed[T]) next() T {
	return <-f.ch
}
