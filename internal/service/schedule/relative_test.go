package schedule

import (
	"testing"
	"time"

	"github.com/golang-sql/civil"
)

func TestFormatRelative(t *testing.T) {
	t.Parallel()

	today := civil.Date{Year: 2025, Month: time.March, Day: 1}

	tests := []struct {
		date civil.Date
		want string
	}{
		{today, "Today"},
		{today.AddDays(1), "Tomorrow"},
		{today.AddDays(-1), "Yesterday"},
		{today.AddDays(-2), "2 days ago"},
		{today.AddDays(-30), "30 days ago"},
		{today.AddDays(5), "In 5 days"},
		{civil.Date{Year: 2025, Month: time.February, Day: 28}, "Yesterday"},
	}

	for _, tt := range tests {
		if got := FormatRelative(tt.date, today); got != tt.want {
			t.Errorf("FormatRelative(%s) = %q, want %q", tt.date, got, tt.want)
		}
	}
}
