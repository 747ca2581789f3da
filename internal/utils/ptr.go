package utils

import "strings"

func Ptr[T any](v T) *T {
	return &v
}

// StringOrNil trims s and returns nil when nothing is left, for optional TEXT columns.
func StringOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
