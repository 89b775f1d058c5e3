// Licensed under the MIT License.

package sliceutils

// ContainsValue returns true if the slice contains the given value.
func ContainsValue[T comparable](values []T, value T) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
