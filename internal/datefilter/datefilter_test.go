package datefilter_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaward/echoflow/internal/datefilter"
	"github.com/seaward/echoflow/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFileDate(t *testing.T) {
	got, ok := datefilter.FileDate("data/raw/Summer2017-D20170724-T155837.raw")
	require.True(t, ok)
	assert.Equal(t, day(2017, time.July, 24), got)

	// No token at all.
	_, ok = datefilter.FileDate("cruise-report.raw")
	assert.False(t, ok)

	// Digits that merely contain a D-prefixed run inside a longer word.
	_, ok = datefilter.FileDate("SummerXD20170724Y-T000000.raw")
	assert.False(t, ok)

	// Valid token shape but impossible calendar date.
	_, ok = datefilter.FileDate("Summer2017-D20171301-T000000.raw")
	assert.False(t, ok)
}

func TestFilterRange(t *testing.T) {
	files := []models.RemoteFile{
		{Key: "raw/Summer2017-D20170724-T155837.raw"}, // first day, in
		{Key: "raw/Summer2017-D20170725-T010101.raw"}, // middle, in
		{Key: "raw/Summer2017-D20170726-T235959.raw"}, // last day, in
		{Key: "raw/Summer2017-D20170727-T000000.raw"}, // day after, out
		{Key: "raw/Summer2017-D20170723-T235959.raw"}, // day before, out
		{Key: "raw/Summer2016-D20160725-T120000.raw"}, // wrong year, out
		{Key: "raw/no-token.raw"},                     // unparseable, out
	}

	got := datefilter.Filter(files, day(2017, time.July, 24), day(2017, time.July, 26))
	require.Len(t, got, 3)
	assert.Equal(t, files[0], got[0])
	assert.Equal(t, files[1], got[1])
	assert.Equal(t, files[2], got[2])
}

func TestFilterYearBoundary(t *testing.T) {
	files := []models.RemoteFile{
		{Key: "raw/Winter-D20161230-T000000.raw"},
		{Key: "raw/Winter-D20161231-T120000.raw"},
		{Key: "raw/Winter-D20170101-T000000.raw"},
		{Key: "raw/Winter-D20170103-T000000.raw"},
	}

	got := datefilter.Filter(files, day(2016, time.December, 31), day(2017, time.January, 2))
	require.Len(t, got, 2)
	assert.Equal(t, files[1], got[0])
	assert.Equal(t, files[2], got[1])
}

func TestFilterEmpty(t *testing.T) {
	got := datefilter.Filter(nil, day(2017, time.July, 1), day(2017, time.July, 2))
	assert.Empty(t, got)
}
