// Package pointers builds and reads optional values on nullable columns.
package pointers

// To returns a pointer to v.
func To[T any](v T) *T { return &v }

// ValueOr dereferences p, or returns def when p is nil.
func ValueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
