package pure_utils

import (
	"github.com/hashicorp/go-set/v2"
)

// Deduplicate keeps the first occurrence of each element, in the input order.
func Deduplicate[T comparable](items []T) []T {
	seen := set.New[T](len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		if seen.Insert(item) {
			out = append(out, item)
		}
	}
	return out
}
