package util

// Unpack copies the leading elements of a slice into the given variables,
// the way command arguments are split into named parts.
// Variables without a matching element keep their value, surplus elements
// are ignored. Returns how many variables were set.
func Unpack[T any](from []T, into ...*T) int {
	n := min(len(from), len(into))
	for i := range n {
		*into[i] = from[i]
	}
	return n
}
