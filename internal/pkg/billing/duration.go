package billing

import (
	"fmt"
	"time"
)

// FormatSubscriptionDuration renders the time between start and end in the
// largest unit that still has a whole count: days below a week, weeks below
// 30 days, 30-day months below a year, then years. A nil start is "Unknown".
func FormatSubscriptionDuration(start *time.Time, end time.Time) string {
	if start == nil {
		return "Unknown"
	}
	days := int(end.Sub(*start) / (24 * time.Hour))
	if days < 0 {
		days = 0
	}

	switch {
	case days < 7:
		return plural(days, "day")
	case days < 30:
		return plural(days/7, "week")
	case days < 365:
		return plural(days/30, "month")
	default:
		return plural(days/365, "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
