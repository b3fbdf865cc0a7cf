// Package ptr builds pointer values for optional criteria fields in tests.
package ptr

import "time"

// To returns a pointer to a copy of v.
func To[T any](v T) *T { return &v }

// Date returns midnight UTC on the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
