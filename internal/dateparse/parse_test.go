package dateparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paris(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		return time.FixedZone("CET", 3600)
	}
	return loc
}

// fixedParser pins "now" to Wednesday 2026-10-14 16:42:17
func fixedParser(t *testing.T) (*Parser, time.Time) {
	loc := paris(t)
	now := time.Date(2026, 10, 14, 16, 42, 17, 500, loc)
	return New(func() time.Time { return now }, loc), now
}

func TestParse_TomorrowWithHour(t *testing.T) {
	p, now := fixedParser(t)

	got, err := p.Parse("demain 15h")
	require.NoError(t, err)

	tomorrow := now.AddDate(0, 0, 1)
	assert.Equal(t, tomorrow.Day(), got.Day())
	assert.Equal(t, 15, got.Hour())
	assert.Equal(t, 0, got.Minute())
	assert.Equal(t, 0, got.Second())
	assert.Equal(t, 0, got.Nanosecond())
}

func TestParse_DefaultsToNineOClock(t *testing.T) {
	p, now := fixedParser(t)

	got, err := p.Parse("Aujourd’hui")
	require.NoError(t, err)
	assert.Equal(t, now.Day(), got.Day())
	assert.Equal(t, 9, got.Hour())
	assert.Equal(t, 0, got.Minute())
}

func TestParse_HourAndMinuteForms(t *testing.T) {
	p, _ := fixedParser(t)

	for input, want := range map[string][2]int{
		"demain 9h30":    {9, 30},
		"demain à 18:05":  {18, 5},
		"demain a 7 h":   {7, 0},
		"après-demain 8h": {8, 0},
	} {
		got, err := p.Parse(input)
		require.NoError(t, err, input)
		assert.Equal(t, want[0], got.Hour(), input)
		assert.Equal(t, want[1], got.Minute(), input)
	}
}

func TestParse_WeekdayIsAlwaysInTheFuture(t *testing.T) {
	p, now := fixedParser(t)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for name, wd := range weekdays {
		got, err := p.Parse(name)
		require.NoError(t, err, name)
		assert.Equal(t, wd, got.Weekday(), name)
		assert.True(t, got.After(today.AddDate(0, 0, 1).Add(-time.Nanosecond)), name)
		assert.True(t, got.Before(today.AddDate(0, 0, 8)), name)
	}

	// now is a Wednesday: "mercredi" means next week
	got, err := p.Parse("mercredi 10h")
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 7).Day(), got.Day())
	assert.Equal(t, 10, got.Hour())
}

func TestParse_Monday(t *testing.T) {
	p, _ := fixedParser(t)
	got, err := p.Parse("lundi prochain")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, got.Weekday())
	assert.Equal(t, 19, got.Day())
}

func TestParse_ExplicitFormats(t *testing.T) {
	p, _ := fixedParser(t)
	loc := p.Location()

	cases := map[string]time.Time{
		"25/12/2026 14:30":     time.Date(2026, 12, 25, 14, 30, 0, 0, loc),
		"25/12/2026":           time.Date(2026, 12, 25, 9, 0, 0, 0, loc),
		"2026-11-03 08:15":     time.Date(2026, 11, 3, 8, 15, 0, 0, loc),
		"2026-11-03T08:15":     time.Date(2026, 11, 3, 8, 15, 0, 0, loc),
		"2026-11-03":           time.Date(2026, 11, 3, 9, 0, 0, 0, loc),
		"2026-11-03T08:15:42Z": time.Date(2026, 11, 3, 8, 15, 0, 0, time.UTC),
	}
	for input, want := range cases {
		got, err := p.Parse(input)
		require.NoError(t, err, input)
		assert.True(t, want.Equal(got), "%s: want %s got %s", input, want, got)
	}
}

func TestParse_Unrecognized(t *testing.T) {
	p, _ := fixedParser(t)

	for _, input := range []string{"", "bientôt", "31/02/2026 10:00", "demain 25h", "2026-13-01 10:00"} {
		_, err := p.Parse(input)
		assert.ErrorIs(t, err, ErrUnrecognized, input)
	}
}
