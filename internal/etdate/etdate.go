// Package etdate turns the Estonian date headings used by event listings
// into ISO calendar dates.
package etdate

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"kultuurivoog/internal/textnorm"
)

// ErrUnparsed is returned for text that matches no supported shape or
// names an impossible calendar date.
var ErrUnparsed = errors.New("etdate: unparsed date")

const isoLayout = "2006-01-02"

var months = map[string]time.Month{
	"jaanuar":   time.January,
	"veebruar":  time.February,
	"märts":     time.March,
	"aprill":    time.April,
	"mai":       time.May,
	"juuni":     time.June,
	"juuli":     time.July,
	"august":    time.August,
	"september": time.September,
	"oktoober":  time.October,
	"november":  time.November,
	"detsember": time.December,
}

var (
	numericFull  = regexp.MustCompile(`(?:^|[^\d])(\d{1,2})\.(\d{1,2})\.(\d{4})(?:[^\d]|$)`)
	namedMonth   = regexp.MustCompile(`(?:^|[^\d])(\d{1,2})\.?\s+(\p{L}+)\s+(\d{4})(?:[^\d]|$)`)
	numericShort = regexp.MustCompile(`(?:^|[^\d.])(\d{1,2})\.(\d{1,2})\.?(?:[^\d]|$)`)
)

// Resolve parses raw and returns YYYY-MM-DD. Supported shapes:
//
//	12.02.2026
//	12. veebruar 2026 (also inside longer text)
//	neljapäev, 12 veebruar 2026
//	12.02 (year taken from now; a January date seen in December rolls over)
func Resolve(raw string, now time.Time) (string, error) {
	t, err := ResolveTime(raw, now)
	if err != nil {
		return "", err
	}
	return t.Format(isoLayout), nil
}

// ResolveTime is Resolve returning midnight UTC of the resolved day.
func ResolveTime(raw string, now time.Time) (time.Time, error) {
	s := textnorm.Normalize(raw)
	if s == "" {
		return time.Time{}, ErrUnparsed
	}

	// A shape that matched but named no valid day ends the search so a
	// broken full date is never reread as a short one.
	if all := numericFull.FindAllStringSubmatch(s, -1); all != nil {
		for _, m := range all {
			if t, err := build(m[3], m[2], m[1]); err == nil {
				return t, nil
			}
		}
		return time.Time{}, ErrUnparsed
	}
	if all := namedMonth.FindAllStringSubmatch(s, -1); all != nil {
		for _, m := range all {
			month, ok := months[m[2]]
			if !ok {
				continue
			}
			if t, err := build(m[3], strconv.Itoa(int(month)), m[1]); err == nil {
				return t, nil
			}
		}
		return time.Time{}, ErrUnparsed
	}
	// Candidates may share a separator ("19.00 12.02"), so the scan resumes
	// right after each candidate's month digits.
	for pos := 0; pos < len(s); {
		loc := numericShort.FindStringSubmatchIndex(s[pos:])
		if loc == nil {
			break
		}
		dayS, monthS := s[pos+loc[2]:pos+loc[3]], s[pos+loc[4]:pos+loc[5]]
		pos += loc[5]
		month, err := strconv.Atoi(monthS)
		if err != nil {
			continue
		}
		year := now.Year()
		if now.Month() == time.December && time.Month(month) == time.January {
			year++
		}
		if t, err := build(strconv.Itoa(year), monthS, dayS); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrUnparsed
}

// Tail returns the text that follows a date carrying its own year, such
// as " kell 19.30" in "R 13. märts 2026 kell 19.30". ok is false when raw
// has no full date; a bare dd.mm date cannot be told apart from a clock.
func Tail(raw string) (tail string, ok bool) {
	s := textnorm.Normalize(raw)
	for _, re := range []*regexp.Regexp{numericFull, namedMonth} {
		for _, loc := range re.FindAllStringSubmatchIndex(s, -1) {
			if re == namedMonth {
				if _, known := months[s[loc[4]:loc[5]]]; !known {
					continue
				}
			}
			return s[loc[7]:], true
		}
	}
	return "", false
}

// ParseISO reads a YYYY-MM-DD string as produced by Resolve.
func ParseISO(s string) (time.Time, error) {
	t, err := time.Parse(isoLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrUnparsed
	}
	return t, nil
}

func build(yearS, monthS, dayS string) (time.Time, error) {
	year, err := strconv.Atoi(yearS)
	if err != nil {
		return time.Time{}, ErrUnparsed
	}
	month, err := strconv.Atoi(monthS)
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, ErrUnparsed
	}
	day, err := strconv.Atoi(dayS)
	if err != nil || day < 1 {
		return time.Time{}, ErrUnparsed
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31.02 into March; reject instead.
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, ErrUnparsed
	}
	return t, nil
}
