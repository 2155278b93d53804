package domain

import (
	"fmt"
	"strings"
	"time"
)

// JST is Japan Standard Time, the zone of every Kawabou timestamp.
var JST = time.FixedZone("JST", 9*60*60)

const (
	feedTimestampLayout = "20060102/1504"
	obsTimeLayout       = "2006/01/02 15:04"
)

// FloorTime truncates t to the previous multiple of step within its hour, in JST.
// step must divide an hour evenly.
func FloorTime(t time.Time, step time.Duration) time.Time {
	t = t.In(JST)
	stepMin := int(step / time.Minute)
	if stepMin <= 0 {
		stepMin = 1
	}
	minute := t.Minute() - t.Minute()%stepMin
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, JST)
}

// FeedTimestamp formats t as a feed URL timestamp, e.g. "20260212/1710".
func FeedTimestamp(t time.Time) string {
	return t.In(JST).Format(feedTimestampLayout)
}

// ParseObsTime parses an obslist "obsTime" value such as "2026/02/12 17:10".
func ParseObsTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(obsTimeLayout, strings.TrimSpace(s), JST)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse obs time %q: %w", s, err)
	}
	return t, nil
}

// RegionCodes lists every obslist region: prefectures 0201..4701 followed by
// the four Hokkaido sub-regions.
func RegionCodes() []string {
	codes := make([]string, 0, 50)
	for i := 2; i <= 47; i++ {
		codes = append(codes, fmt.Sprintf("%02d01", i))
	}
	return append(codes, "102", "103", "104", "105")
}

// GeoScanCodes lists the region-level gjson codes 101, 201, .., 4701 scanned
// by the fallback pass.
func GeoScanCodes() []string {
	codes := make([]string, 0, 47)
	for c := 101; c <= 4701; c += 100 {
		codes = append(codes, fmt.Sprintf("%d", c))
	}
	return codes
}
