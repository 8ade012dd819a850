// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// LoadLocationOrUTC loads an IANA zone name; empty or unknown names resolve to UTC
func LoadLocationOrUTC(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DaysAgo returns the UTC instant n days before now
func DaysAgo(now time.Time, n int) time.Time {
	return now.UTC().AddDate(0, 0, -n)
}
