package cmp

// SliceEqWith reports whether a and b have the same elements
// in the same order, compared by eq.
func SliceEqWith[T, U any](a []T, b []U, eq func(T, U) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !eq(a[i], b[i]) {
			return false
		}
	}
	return true
}

// SliceEq is SliceEqWith by ==.
func SliceEq[T comparable](a, b []T) bool {
	return SliceEqWith(a, b, func(x, y T) bool { return x == y })
}

// SliceContentEqWith reports whether a and b contain the same elements,
// ignoring order, compared by eq.
//
// Elements are matched one-to-one; duplicated elements are counted.
func SliceContentEqWith[T, U any](a []T, b []U, eq func(T, U) bool) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
A:
	for _, x := range a {
		for i, y := range b {
			if used[i] || !eq(x, y) {
				continue
			}
			used[i] = true
			continue A
		}
		return false
	}
	return true
}

// SliceContentEq is SliceContentEqWith by ==.
func SliceContentEq[T comparable](a, b []T) bool {
	return SliceContentEqWith(a, b, func(x, y T) bool { return x == y })
}

// MapEqWith reports whether a and b have the same key set and,
// for each key, values equal by eq.
func MapEqWith[K comparable, V, W any](a map[K]V, b map[K]W, eq func(V, W) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !eq(va, vb) {
			return false
		}
	}
	return true
}

// MapEq is MapEqWith by ==.
func MapEq[K, V comparable](a, b map[K]V) bool {
	return MapEqWith(a, b, func(x, y V) bool { return x == y })
}
