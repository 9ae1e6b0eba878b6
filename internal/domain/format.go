package domain

import (
	"fmt"
	"time"
)

// FormatClock renders a duration as m:ss, the way elapsed time and media
// positions are displayed.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
