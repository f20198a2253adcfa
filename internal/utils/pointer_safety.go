package utils

// Value dereferences p, returning the zero value when p is nil. Useful for
// optional API fields such as due dates.
func Value[T any](p *T) T {
	if p == nil {
		return *new(T)
	}
	return *p
}

func Ptr[T any](v T) *T {
	return &v
}
