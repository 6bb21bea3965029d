package utils

func Ptr[T any](v T) *T {
	return &v
}

// ClonePtr returns a pointer to a copy of *v, or nil
func ClonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	return Ptr(*v)
}
