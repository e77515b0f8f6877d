package try

// Fataler is anything with Fatal, like *testing.T or *log.Logger.
type Fataler interface {
	Fatal(...any)
}

// Either wraps a (value, error) pair.
type Either[T any] struct {
	value T
	err   error
}

// To wraps the return values of a function call, like
//
//	conf := try.To(LoadConfig(path)).OrFatal(logger)
func To[T any](value T, err error) Either[T] {
	return Either[T]{value: value, err: err}
}

// Get returns the wrapped pair as-is.
func (e Either[T]) Get() (T, error) {
	return e.value, e.err
}

// OrFatal returns the value, or calls f.Fatal with the error.
//
// If f has a Helper method (as *testing.T does), it is called first.
func (e Either[T]) OrFatal(f Fataler) T {
	if e.err != nil {
		if h, ok := f.(interface{ Helper() }); ok {
			h.Helper()
		}
		f.Fatal(e.err)
	}
	return e.value
}

// OrDefault returns the value, or d when the Either holds an error.
func (e Either[T]) OrDefault(d T) T {
	if e.err != nil {
		return d
	}
	return e.value
}
