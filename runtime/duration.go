package runtime

import (
	"fmt"
	"strings"
	"time"
)

// FormatDuration renders the elapsed time between two instants as a compact
// human string, keeping only the non-zero components: "1h6m40s", "9m10s",
// "30s". Anything under a second renders as "<1s".
func FormatDuration(start, end time.Time) string {
	elapsed := int(end.Sub(start).Seconds())

	hours := elapsed / 3600
	minutes := (elapsed % 3600) / 60
	seconds := elapsed % 60

	var b strings.Builder
	if hours > 0 {
		fmt.Fprintf(&b, "%dh", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%dm", minutes)
	}
	if seconds > 0 {
		fmt.Fprintf(&b, "%ds", seconds)
	}

	if b.Len() == 0 {
		return "<1s"
	}
	return b.String()
}
