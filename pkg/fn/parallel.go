package fn

import "sync"

// ParMap applies f to each item concurrently and returns the outputs in input
// order. workers <= 0 starts one goroutine per item. ParMap returns only after
// every call to f has returned.
func ParMap[T, U any](items []T, workers int, f func(int, T) U) []U {
	out := make([]U, len(items))
	if len(items) == 0 {
		return out
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, v := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v T) {
			defer func() { <-sem; wg.Done() }()
			out[i] = f(i, v)
		}(i, v)
	}
	wg.Wait()
	return out
}
