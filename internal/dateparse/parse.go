// Package dateparse turns French natural-language date expressions, as
// typed to the assistant, into absolute times.
package dateparse

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnrecognized is returned when no rule matches the input
var ErrUnrecognized = errors.New("date non reconnue")

// DefaultHour is used when an expression carries no explicit time
const DefaultHour = 9

var weekdays = map[string]time.Weekday{
	"lundi":    time.Monday,
	"mardi":    time.Tuesday,
	"mercredi": time.Wednesday,
	"jeudi":    time.Thursday,
	"vendredi": time.Friday,
	"samedi":   time.Saturday,
	"dimanche": time.Sunday,
}

var (
	relativeRe = regexp.MustCompile(
		`^(aujourd'hui|aujourdhui|après-demain|apres-demain|demain|lundi|mardi|mercredi|jeudi|vendredi|samedi|dimanche)` +
			`(?:\s+prochain)?(?:\s+(?:à|a))?(?:\s+(\d{1,2})\s*[h:]\s*(\d{2})?)?$`)
	frenchDateRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})(?:\s+(?:à\s+)?(\d{1,2})\s*[h:]\s*(\d{2})?)?$`)
	isoDateRe    = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})[ t](\d{1,2}):(\d{2})$`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// nativeLayouts are tried before the regex fallbacks
var nativeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Parser resolves expressions relative to an injected clock and location
type Parser struct {
	now func() time.Time
	loc *time.Location
}

// New returns a Parser. A nil now uses time.Now, a nil loc uses time.Local.
func New(now func() time.Time, loc *time.Location) *Parser {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &Parser{now: now, loc: loc}
}

// Location returns the timezone results are expressed in
func (p *Parser) Location() *time.Location {
	return p.loc
}

// Parse resolves text to an absolute time.
//
// Relative tokens (aujourd'hui, demain, après-demain, weekday names) come
// first; a weekday always means its next occurrence strictly after today.
// An optional trailing "15h", "15h30" or "15:30" sets the time, otherwise
// 09:00 is used. Seconds are always zero.
func (p *Parser) Parse(text string) (time.Time, error) {
	s := normalize(text)
	if s == "" {
		return time.Time{}, ErrUnrecognized
	}

	if m := relativeRe.FindStringSubmatch(s); m != nil {
		return p.relative(m[1], m[2], m[3])
	}

	// layouts are case sensitive ("T", "Z"), so use the untouched input
	raw := strings.TrimSpace(text)
	for _, layout := range nativeLayouts {
		if t, err := time.ParseInLocation(layout, raw, p.loc); err == nil {
			return t.Truncate(time.Minute), nil
		}
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, p.loc); err == nil {
		return atClock(t, DefaultHour, 0, p.loc), nil
	}

	if m := frenchDateRe.FindStringSubmatch(s); m != nil {
		hour, minute, err := clock(m[4], m[5])
		if err != nil {
			return time.Time{}, err
		}
		return build(m[3], m[2], m[1], hour, minute, p.loc)
	}

	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		hour, minute, err := clock(m[4], m[5])
		if err != nil {
			return time.Time{}, err
		}
		return build(m[1], m[2], m[3], hour, minute, p.loc)
	}

	return time.Time{}, ErrUnrecognized
}

func (p *Parser) relative(token, hourStr, minuteStr string) (time.Time, error) {
	hour, minute, err := clock(hourStr, minuteStr)
	if err != nil {
		return time.Time{}, err
	}

	today := p.now().In(p.loc)
	var offset int
	switch token {
	case "aujourd'hui", "aujourdhui":
		offset = 0
	case "demain":
		offset = 1
	case "après-demain", "apres-demain":
		offset = 2
	default:
		offset = int(weekdays[token] - today.Weekday())
		if offset <= 0 {
			offset += 7
		}
	}

	day := time.Date(today.Year(), today.Month(), today.Day()+offset, 0, 0, 0, 0, p.loc)
	return atClock(day, hour, minute, p.loc), nil
}

// clock parses optional hour/minute strings, defaulting to 09:00
func clock(hourStr, minuteStr string) (int, int, error) {
	if hourStr == "" {
		return DefaultHour, 0, nil
	}
	hour, _ := strconv.Atoi(hourStr)
	minute := 0
	if minuteStr != "" {
		minute, _ = strconv.Atoi(minuteStr)
	}
	if hour > 23 || minute > 59 {
		return 0, 0, ErrUnrecognized
	}
	return hour, minute, nil
}

func build(yearStr, monthStr, dayStr string, hour, minute int, loc *time.Location) (time.Time, error) {
	year, _ := strconv.Atoi(yearStr)
	month, _ := strconv.Atoi(monthStr)
	day, _ := strconv.Atoi(dayStr)

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	// time.Date normalises 31/02 into March; reject instead
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, ErrUnrecognized
	}
	return t, nil
}

func atClock(day time.Time, hour, minute int, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
}

func normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.ReplaceAll(s, "’", "'")
	return spaceRe.ReplaceAllString(s, " ")
}
