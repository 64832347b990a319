package fn

import "iter"

// Map applies f to each element.
func Map[T, U any](items []T, f func(T) U) []U {
	out := make([]U, len(items))
	for i, v := range items {
		out[i] = f(v)
	}
	return out
}

// FilterMap applies f and keeps results where ok is true.
func FilterMap[T, U any](items []T, f func(T) (U, bool)) []U {
	var out []U
	for _, v := range items {
		if u, ok := f(v); ok {
			out = append(out, u)
		}
	}
	return out
}

// Runs yields maximal runs of adjacent items sharing the same key, in input
// order. Items with equal keys that are not adjacent form separate runs, so
// callers sort first when they want one run per key.
func Runs[T any, K comparable](items []T, key func(T) K) iter.Seq2[K, []T] {
	return func(yield func(K, []T) bool) {
		start := 0
		for start < len(items) {
			k := key(items[start])
			end := start + 1
			for end < len(items) && key(items[end]) == k {
				end++
			}
			if !yield(k, items[start:end:end]) {
				return
			}
			start = end
		}
	}
}
