package utils

// Ptr returns a pointer to v. Useful for optional config fields where
// nil means "unset" rather than the zero value.
func Ptr[T any](v T) *T {
	return &v
}
