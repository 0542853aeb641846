// Package datefilter selects remote raw files whose embedded survey date
// falls inside the configured day range.
//
// Raw file names from the NCEI archive embed a date token of the form
// D<YYYY><MMDD> (e.g. "Summer2017-D20170724-T155837.raw"). The token is
// parsed structurally rather than matched as a literal substring, so ranges
// spanning a year boundary behave correctly and accidental substring
// collisions elsewhere in the name cannot match.
package datefilter

import (
	"regexp"
	"time"

	"github.com/seaward/echoflow/internal/models"
)

var dateToken = regexp.MustCompile(`(?:^|[-_/])D(\d{4})(\d{2})(\d{2})(?:[-_.]|$)`)

// FileDate extracts the day stamp embedded in a raw file name. The second
// return value is false when no valid token is present.
func FileDate(key string) (time.Time, bool) {
	m := dateToken.FindStringSubmatch(key)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102", m[1]+m[2]+m[3])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Filter keeps the files whose embedded date lies in [start, end] inclusive,
// at day granularity. Files without a parseable date token are dropped.
func Filter(files []models.RemoteFile, start, end time.Time) []models.RemoteFile {
	startDay := truncateDay(start)
	endDay := truncateDay(end)

	out := make([]models.RemoteFile, 0, len(files))
	for _, f := range files {
		day, ok := FileDate(f.Key)
		if !ok {
			continue
		}
		if day.Before(startDay) || day.After(endDay) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
