package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBirthdayDate(t *testing.T) {
	tests := []struct {
		in      string
		want    BirthdayDate
		wantErr bool
	}{
		{in: "14/03", want: BirthdayDate{Day: 14, Month: time.March}},
		{in: " 01/12 ", want: BirthdayDate{Day: 1, Month: time.December}},
		{in: "29/02", want: BirthdayDate{Day: 29, Month: time.February}},
		{in: "30/02", wantErr: true},
		{in: "31/04", wantErr: true},
		{in: "00/01", wantErr: true},
		{in: "12/13", wantErr: true},
		{in: "12-03", wantErr: true},
		{in: "ab/03", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBirthdayDate(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsCode(err, ErrCodeValidationInvalidDate))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBirthdayDate_StringRoundTrip(t *testing.T) {
	d := BirthdayDate{Day: 5, Month: time.July}
	assert.Equal(t, "05/07", d.String())

	parsed, err := ParseBirthdayDate(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
}

func TestBirthdayDate_MatchesIgnoresYear(t *testing.T) {
	d := BirthdayDate{Day: 14, Month: time.March}

	assert.True(t, d.Matches(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)))
	assert.True(t, d.Matches(time.Date(1990, 3, 14, 23, 59, 0, 0, time.UTC)))
	assert.False(t, d.Matches(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)))
	assert.False(t, d.Matches(time.Date(2026, 4, 14, 0, 0, 0, 0, time.UTC)))
}

func TestBirthdayDate_MatchesUsesMomentLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	d := BirthdayDate{Day: 14, Month: time.March}
	// 20:00 UTC on the 13th is already the 14th in Tokyo.
	moment := time.Date(2026, 3, 13, 20, 0, 0, 0, time.UTC)

	assert.False(t, d.Matches(moment))
	assert.True(t, d.Matches(moment.In(tokyo)))
}

func TestBirthdayPerson_Fallbacks(t *testing.T) {
	p := BirthdayPerson{UserID: "U1"}
	assert.Equal(t, "UTC", p.TimezoneOrUTC())
	assert.Equal(t, "U1", p.DisplayName())

	p.Timezone = "Europe/Paris"
	p.Username = "alice"
	assert.Equal(t, "Europe/Paris", p.TimezoneOrUTC())
	assert.Equal(t, "alice", p.DisplayName())
}
