package repository

import "strconv"

// formatInt renders a positional parameter index for dynamically built queries.
func formatInt(n int) string {
	return strconv.Itoa(n)
}
