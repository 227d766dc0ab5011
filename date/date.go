// Package date resolves the timestamp strings a DM view renders next to
// messages. The forms range from relative shorthands ("2h", "3 days ago")
// over weekday names to fully localized absolute dates, so resolution is
// a ladder of attempts rather than a single layout.
package date

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/goodsign/monday"
)

// ErrUnresolved is returned when a string matches none of the known
// timestamp forms. Callers treat it as "element carried no date".
var ErrUnresolved = errors.New("date: unresolved timestamp")

var relativeRe = regexp.MustCompile(`(?i)^(\d+)\s*(s|sec|seconds?|m|min|minutes?|h|hr|hours?|d|days?|w|weeks?)(\s+ago)?$`)

// absoluteLayouts are tried in order via monday so localized month and
// weekday names parse for the configured locale.
var absoluteLayouts = []string{
	"Jan 2, 2006, 3:04 PM",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02.01.2006",
	"01/02/2006",
}

var yearlessLayouts = []string{
	"Jan 2",
	"January 2",
	"2 Jan",
}

var clockLayouts = []string{
	"3:04 PM",
	"15:04",
}

// Resolver turns raw timestamp strings into absolute times. Now is
// injectable so relative forms are testable without the wall clock.
type Resolver struct {
	Location *time.Location
	Locale   monday.Locale
	Now      func() time.Time
}

func NewResolver(location, language string) (*Resolver, error) {
	loc, err := time.LoadLocation(location)
	if err != nil {
		return nil, fmt.Errorf("date: loading location %q: %w", location, err)
	}
	locale := monday.Locale(monday.LocaleEnUS)
	if language != "" {
		locale = monday.Locale(language)
	}
	return &Resolver{Location: loc, Locale: locale, Now: time.Now}, nil
}

// FromElement resolves the timestamp of a detected timestamp element:
// machine readable attributes win over visible text.
func (r *Resolver) FromElement(s *goquery.Selection) (time.Time, error) {
	if s == nil || s.Length() == 0 {
		return time.Time{}, ErrUnresolved
	}
	if dt, ok := s.Attr("datetime"); ok {
		if t, err := time.Parse(time.RFC3339, dt); err == nil {
			return t.In(r.Location), nil
		}
	}
	for _, attr := range []string{"title", "aria-label"} {
		if v, ok := s.Attr(attr); ok && v != "" {
			if t, err := r.Resolve(v); err == nil {
				return t, nil
			}
		}
	}
	return r.Resolve(s.Text())
}

// Resolve parses a single raw timestamp string.
func (r *Resolver) Resolve(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrUnresolved
	}
	now := r.Now().In(r.Location)

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(r.Location), nil
	}
	if t, ok := r.resolveRelative(s, now); ok {
		return t, nil
	}
	if t, ok := r.resolveDayWord(s, now); ok {
		return t, nil
	}
	if t, ok := r.resolveWeekday(s, now); ok {
		return t, nil
	}
	if t, ok := r.resolveAbsolute(s, now); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnresolved, raw)
}

func (r *Resolver) resolveRelative(s string, now time.Time) (time.Time, bool) {
	m := relativeRe.FindStringSubmatch(s)
	if m == nil {
		lower := strings.ToLower(s)
		if lower == "now" || lower == "just now" {
			return now, true
		}
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	var unit time.Duration
	switch strings.ToLower(m[2])[0] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	}
	return now.Add(-time.Duration(n) * unit), true
}

func (r *Resolver) resolveDayWord(s string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(s)
	var day time.Time
	var rest string
	switch {
	case strings.HasPrefix(lower, "today"):
		day, rest = now, s[len("today"):]
	case strings.HasPrefix(lower, "yesterday"):
		day, rest = now.AddDate(0, 0, -1), s[len("yesterday"):]
	default:
		return time.Time{}, false
	}
	day = midnight(day)
	rest = strings.TrimLeft(strings.TrimSpace(rest), listSeparators)
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return day, true
	}
	for _, layout := range clockLayouts {
		if clock, err := time.Parse(layout, rest); err == nil {
			return day.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute), true
		}
	}
	return day, true
}

const listSeparators = ",@"

// resolveWeekday maps a bare localized weekday name to the most recent
// day with that name, excluding today (a DM view renders today's messages
// with a clock time instead).
func (r *Resolver) resolveWeekday(s string, now time.Time) (time.Time, bool) {
	for i := 1; i <= 7; i++ {
		candidate := now.AddDate(0, 0, -i)
		long := monday.Format(candidate, "Monday", r.Locale)
		short := monday.Format(candidate, "Mon", r.Locale)
		if strings.EqualFold(s, long) || strings.EqualFold(s, short) {
			return midnight(candidate), true
		}
	}
	return time.Time{}, false
}

func (r *Resolver) resolveAbsolute(s string, now time.Time) (time.Time, bool) {
	for _, layout := range absoluteLayouts {
		if t, err := monday.ParseInLocation(layout, s, r.Location, r.Locale); err == nil {
			return t, true
		}
	}
	for _, layout := range yearlessLayouts {
		if t, err := monday.ParseInLocation(layout, s, r.Location, r.Locale); err == nil {
			t = t.AddDate(now.Year(), 0, 0)
			if t.After(now) {
				t = t.AddDate(-1, 0, 0)
			}
			return t, true
		}
	}
	for _, layout := range clockLayouts {
		if clock, err := time.Parse(layout, s); err == nil {
			day := midnight(now)
			return day.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute), true
		}
	}
	return time.Time{}, false
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
