package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BirthdayDate is a day-month pair. Birthdays are stored without a year so
// that matching against "today" is year-insensitive.
type BirthdayDate struct {
	Day   int
	Month time.Month
}

// ParseBirthdayDate parses the canonical "DD/MM" storage format.
func ParseBirthdayDate(s string) (BirthdayDate, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return BirthdayDate{}, NewAppError(ErrCodeValidationInvalidDate, fmt.Sprintf("birthday date %q is not in DD/MM format", s), nil)
	}
	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return BirthdayDate{}, NewAppError(ErrCodeValidationInvalidDate, fmt.Sprintf("birthday day %q is not a number", parts[0]), err)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return BirthdayDate{}, NewAppError(ErrCodeValidationInvalidDate, fmt.Sprintf("birthday month %q is not a number", parts[1]), err)
	}
	d := BirthdayDate{Day: day, Month: time.Month(month)}
	if err := d.Validate(); err != nil {
		return BirthdayDate{}, err
	}
	return d, nil
}

// Validate checks the day fits the month. 29 February is accepted since the
// year is unknown.
func (d BirthdayDate) Validate() error {
	if d.Month < time.January || d.Month > time.December {
		return NewAppError(ErrCodeValidationInvalidDate, fmt.Sprintf("month %d out of range", d.Month), nil)
	}
	// 2024 is a leap year, so February allows 29 days.
	maxDay := time.Date(2024, d.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if d.Day < 1 || d.Day > maxDay {
		return NewAppError(ErrCodeValidationInvalidDate, fmt.Sprintf("day %d out of range for %s", d.Day, d.Month), nil)
	}
	return nil
}

// String renders the date in "DD/MM" form.
func (d BirthdayDate) String() string {
	return fmt.Sprintf("%02d/%02d", d.Day, int(d.Month))
}

// Matches reports whether t falls on this day and month, in t's own location.
func (d BirthdayDate) Matches(t time.Time) bool {
	return t.Day() == d.Day && t.Month() == d.Month
}

// BirthdayRecord is a stored birthday as loaded from the birthdays table.
type BirthdayRecord struct {
	UserID    string
	Username  string
	Date      BirthdayDate
	Year      *int
	Timezone  string
	UpdatedAt time.Time
}

// BirthdayPerson is a celebration candidate. It is built by the scheduler from
// stored birthdays at batch start and lives for one pipeline run.
type BirthdayPerson struct {
	UserID   string       `json:"user_id"`
	Username string       `json:"username"`
	Date     BirthdayDate `json:"-"`
	Year     *int         `json:"year,omitempty"`
	Timezone string       `json:"timezone,omitempty"`
}

// TimezoneOrUTC returns the person's timezone, or "UTC" when none is set.
func (p BirthdayPerson) TimezoneOrUTC() string {
	if p.Timezone == "" {
		return "UTC"
	}
	return p.Timezone
}

// DisplayName returns the username, falling back to the user ID.
func (p BirthdayPerson) DisplayName() string {
	if p.Username != "" {
		return p.Username
	}
	return p.UserID
}

// PersonFromRecord converts a stored birthday into a celebration candidate.
func PersonFromRecord(r BirthdayRecord) BirthdayPerson {
	return BirthdayPerson{
		UserID:   r.UserID,
		Username: r.Username,
		Date:     r.Date,
		Year:     r.Year,
		Timezone: r.Timezone,
	}
}

// UserStatus is the live Slack account state of a user.
type UserStatus struct {
	Active      bool
	IsBot       bool
	Deleted     bool
	DisplayName string
}

// DateKey formats t as the YYYY-MM-DD key used for celebration markers. The
// date is taken in t's own location.
func DateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
