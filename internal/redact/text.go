package redact

import "github.com/ppiankov/absredact/internal/model"

// Text returns the items outside span, in order. The input is not modified.
// Items are words or anything indexed like them, such as word line offsets.
func Text[T any](items []T, span model.Span) []T {
	out := make([]T, 0, len(items))
	for i, it := range items {
		if !span.Contains(i) {
			out = append(out, it)
		}
	}
	return out
}
