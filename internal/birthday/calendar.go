// Package birthday provides calendar helpers for stored birthdays: age and
// star sign for display, human-readable dates, and selecting the people whose
// birthday falls on a given local day.
package birthday

import (
	"fmt"
	"time"

	"birthdaybot/internal/types"
)

type zodiacRange struct {
	startMonth time.Month
	startDay   int
	endMonth   time.Month
	endDay     int
	sign       string
}

var zodiac = []zodiacRange{
	{time.January, 20, time.February, 18, "♒ Aquarius"},
	{time.February, 19, time.March, 20, "♓ Pisces"},
	{time.March, 21, time.April, 19, "♈ Aries"},
	{time.April, 20, time.May, 20, "♉ Taurus"},
	{time.May, 21, time.June, 20, "♊ Gemini"},
	{time.June, 21, time.July, 22, "♋ Cancer"},
	{time.July, 23, time.August, 22, "♌ Leo"},
	{time.August, 23, time.September, 22, "♍ Virgo"},
	{time.September, 23, time.October, 22, "♎ Libra"},
	{time.October, 23, time.November, 21, "♏ Scorpio"},
	{time.November, 22, time.December, 21, "♐ Sagittarius"},
	{time.December, 22, time.January, 19, "♑ Capricorn"},
}

// StarSign returns the zodiac sign with its symbol, or "" for an invalid date.
func StarSign(d types.BirthdayDate) string {
	if d.Validate() != nil {
		return ""
	}
	for _, z := range zodiac {
		if inRange(d, z) {
			return z.sign
		}
	}
	return ""
}

func inRange(d types.BirthdayDate, z zodiacRange) bool {
	if z.startMonth == z.endMonth {
		return d.Month == z.startMonth && d.Day >= z.startDay && d.Day <= z.endDay
	}
	return (d.Month == z.startMonth && d.Day >= z.startDay) || (d.Month == z.endMonth && d.Day <= z.endDay)
}

// AgeOn returns the age the person turns on ref's calendar year. The second
// return is false when the birth year is unknown or in the future.
func AgeOn(year *int, ref time.Time) (int, bool) {
	if year == nil {
		return 0, false
	}
	age := ref.Year() - *year
	if age < 0 {
		return 0, false
	}
	return age, true
}

// Words renders a date like "5th of July" or "5th of July, 1990".
func Words(d types.BirthdayDate, year *int) string {
	s := fmt.Sprintf("%s of %s", ordinal(d.Day), d.Month)
	if year != nil {
		s = fmt.Sprintf("%s, %d", s, *year)
	}
	return s
}

func ordinal(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return fmt.Sprintf("%dth", n)
	}
	switch n % 10 {
	case 1:
		return fmt.Sprintf("%dst", n)
	case 2:
		return fmt.Sprintf("%dnd", n)
	case 3:
		return fmt.Sprintf("%drd", n)
	}
	return fmt.Sprintf("%dth", n)
}

// LocalMoment converts ref into the person's timezone. Unknown or empty
// timezones use UTC.
func LocalMoment(ref time.Time, timezone string) time.Time {
	if timezone == "" {
		return ref.UTC()
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return ref.UTC()
	}
	return ref.In(loc)
}

// DueToday returns the records whose birthday falls on ref's day in ref's
// own location, in input order.
func DueToday(records []types.BirthdayRecord, ref time.Time) []types.BirthdayPerson {
	var out []types.BirthdayPerson
	for _, r := range records {
		if r.Date.Matches(ref) {
			out = append(out, types.PersonFromRecord(r))
		}
	}
	return out
}

// DueAtLocalHour returns the records whose local time at ref is the given hour
// on their birthday. This is how the hourly timezone run finds people whose
// morning has just arrived.
func DueAtLocalHour(records []types.BirthdayRecord, ref time.Time, hour int) []types.BirthdayPerson {
	var out []types.BirthdayPerson
	for _, r := range records {
		local := LocalMoment(ref, r.Timezone)
		if local.Hour() == hour && r.Date.Matches(local) {
			out = append(out, types.PersonFromRecord(r))
		}
	}
	return out
}
