package schedule

import (
	"fmt"

	"github.com/golang-sql/civil"
)

// FormatRelative labels date relative to today by calendar-day difference.
func FormatRelative(date, today civil.Date) string {
	days := date.DaysSince(today)
	switch {
	case days == 0:
		return "Today"
	case days == 1:
		return "Tomorrow"
	case days == -1:
		return "Yesterday"
	case days < 0:
		return fmt.Sprintf("%d days ago", -days)
	default:
		return fmt.Sprintf("In %d days", days)
	}
}
