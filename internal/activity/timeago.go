package activity

import (
	"time"

	"github.com/dustin/go-humanize"
)

const absoluteDateLayout = "Jan 2, 2006"

var timeAgoMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "just now", DivBy: time.Second},
	{D: time.Hour, Format: "%dm %s", DivBy: time.Minute},
	{D: 24 * time.Hour, Format: "%dh %s", DivBy: time.Hour},
	{D: 7 * 24 * time.Hour, Format: "%dd %s", DivBy: 24 * time.Hour},
}

// FormatTimeAgo renders how long ago then happened relative to now: minutes,
// hours and days inside a week, the calendar date beyond that.
func FormatTimeAgo(then, now time.Time) string {
	if now.Sub(then) >= 7*24*time.Hour {
		return then.In(now.Location()).Format(absoluteDateLayout)
	}
	if then.After(now) {
		return "just now"
	}
	return humanize.CustomRelTime(then, now, "ago", "from now", timeAgoMagnitudes)
}
