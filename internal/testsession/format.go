package testsession

import "fmt"

// LowTimeThreshold is when front ends start warning about the remaining time.
const LowTimeThreshold = 5 * 60

// FormatRemaining renders seconds as m:ss.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// LowOnTime reports whether the remaining time deserves a warning.
func LowOnTime(seconds int) bool {
	return seconds < LowTimeThreshold
}
