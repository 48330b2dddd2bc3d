package pure_utils

// Map returns a new slice with the same length as src, with values transformed by f.
func Map[T, U any](src []T, f func(T) U) []U {
	us := make([]U, len(src))
	for i := range src {
		us[i] = f(src[i])
	}
	return us
}

// MapErr is Map for a transformation that can fail. It stops at the first error.
func MapErr[T, U any](src []T, f func(T) (U, error)) ([]U, error) {
	us := make([]U, len(src))
	for i := range src {
		var err error
		if us[i], err = f(src[i]); err != nil {
			return nil, err
		}
	}
	return us, nil
}
