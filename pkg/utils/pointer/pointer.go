package pointer

// Ref returns a pointer to the given value.
func Ref[T any](v T) *T {
	return &v
}

// SafeDeref dereferences ptr, or returns the zero value when ptr is nil.
func SafeDeref[T any](ptr *T) T {
	if ptr == nil {
		return *new(T)
	}
	return *ptr
}
