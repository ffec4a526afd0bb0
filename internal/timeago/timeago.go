// Package timeago renders coarse relative ages ("3 ngày trước") in the
// application's display language.
package timeago

import (
	"fmt"
	"time"
)

// JustNow is returned for anything younger than JustNowThreshold.
const JustNow = "vừa xong"

// JustNowThreshold is the age below which a timestamp is "just now".
const JustNowThreshold = 29 * time.Second

type unit struct {
	seconds int64
	label   string
}

// Largest first; the first unit with a non-zero quotient wins.
var units = []unit{
	{31536000, "năm"},
	{2592000, "tháng"},
	{604800, "tuần"},
	{86400, "ngày"},
	{3600, "giờ"},
	{60, "phút"},
	{1, "giây"},
}

// Format returns the age of t relative to now. Timestamps in the future are
// treated as zero elapsed time.
func Format(t, now time.Time) string {
	elapsed := int64(now.Sub(t) / time.Second)
	if elapsed < int64(JustNowThreshold/time.Second) {
		return JustNow
	}
	for _, u := range units {
		if q := elapsed / u.seconds; q > 0 {
			return fmt.Sprintf("%d %s trước", q, u.label)
		}
	}
	return JustNow
}

// Since is Format relative to the current time.
func Since(t time.Time) string {
	return Format(t, time.Now())
}
