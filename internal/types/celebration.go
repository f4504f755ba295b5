package types

import (
	"fmt"
	"strings"
	"time"
)

// Mode identifies which scheduler path invoked the pipeline. It selects the
// marking strategy used once people have been posted.
type Mode string

const (
	ModeTimezone Mode = "TIMEZONE"
	ModeSimple   Mode = "SIMPLE"
	ModeMissed   Mode = "MISSED"
	ModeTest     Mode = "TEST"
)

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case ModeTimezone, ModeSimple, ModeMissed, ModeTest:
		return m, nil
	}
	return "", NewAppError(ErrCodeValidationInvalidMode, fmt.Sprintf("unknown celebration mode %q", s), nil)
}

// ReasonCode is the closed set of reasons a candidate can be rejected at
// posting time.
type ReasonCode string

const (
	ReasonBirthdayChangedAway ReasonCode = "birthday_changed_away"
	ReasonBirthdayRemoved     ReasonCode = "birthday_removed"
	ReasonAlreadyCelebrated   ReasonCode = "already_celebrated"
	ReasonLeftChannel         ReasonCode = "left_channel"
	ReasonUserInactive        ReasonCode = "user_inactive"

	// ReasonValidationFailed only appears in a summary histogram, when live
	// data could not be fetched and everyone was passed through.
	ReasonValidationFailed ReasonCode = "validation_failed"
)

// InvalidPerson pairs a rejected candidate with the first check it failed.
type InvalidPerson struct {
	Person BirthdayPerson `json:"person"`
	Reason ReasonCode     `json:"reason"`
}

// ValidationSummary counts a validation batch.
type ValidationSummary struct {
	Total   int                `json:"total"`
	Valid   int                `json:"valid"`
	Invalid int                `json:"invalid"`
	Reasons map[ReasonCode]int `json:"reasons"`
}

// InvalidFraction returns Invalid/Total, or 0 for an empty batch.
func (s ValidationSummary) InvalidFraction() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Invalid) / float64(s.Total)
}

// ValidationOutcome partitions a batch of candidates. Every input person
// appears in exactly one of Valid or Invalid, in input order.
type ValidationOutcome struct {
	Valid   []BirthdayPerson  `json:"valid_people"`
	Invalid []InvalidPerson   `json:"invalid_people"`
	Summary ValidationSummary `json:"summary"`
}

// ValidIDs returns the set of user IDs that passed validation.
func (o ValidationOutcome) ValidIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(o.Valid))
	for _, p := range o.Valid {
		ids[p.UserID] = struct{}{}
	}
	return ids
}

// ImageRef is one generated image and the person it depicts.
type ImageRef struct {
	Data       []byte `json:"-"`
	MIMEType   string `json:"mime_type"`
	Filename   string `json:"filename"`
	Title      string `json:"title"`
	PersonID   string `json:"person_id"`
	PersonName string `json:"person_name"`
}

// GeneratedContent is a draft produced by the generator. PersonalityUsed is
// the voice actually chosen, which may differ from the configured one when the
// configuration asks for a random voice.
type GeneratedContent struct {
	Message         string     `json:"message"`
	Images          []ImageRef `json:"images,omitempty"`
	PersonalityUsed string     `json:"personality_used"`
}

// GenerationOptions are passed through to the generator.
type GenerationOptions struct {
	Personality   string
	IncludeImages bool
	Mode          Mode
}

// ReconcileAction records which branch the reconciliation policy took.
type ReconcileAction string

const (
	ActionProceeded   ReconcileAction = "proceeded"
	ActionFiltered    ReconcileAction = "filtered"
	ActionRegenerated ReconcileAction = "regenerated"
	ActionSkipped     ReconcileAction = "skipped"
)

// PipelineResult is returned by one pipeline invocation.
type PipelineResult struct {
	Success          bool             `json:"success"`
	CelebratedPeople []BirthdayPerson `json:"celebrated_people"`
	FilteredPeople   []InvalidPerson  `json:"filtered_people"`
	MessageSent      bool             `json:"message_sent"`
	ImagesSent       int              `json:"images_sent"`
	Error            string           `json:"error,omitempty"`

	PersonalityUsed string          `json:"personality_used,omitempty"`
	Action          ReconcileAction `json:"action,omitempty"`
	MessageTS       string          `json:"message_ts,omitempty"`
}

// SimpleBucket is the marker bucket used by SIMPLE and MISSED runs. TIMEZONE
// runs use the person's timezone name as the bucket.
const SimpleBucket = ""

// MarkerKey identifies one celebration marker within a day.
type MarkerKey struct {
	UserID string
	Bucket string
}

// CelebrationMarker is a stored "celebrated" record.
type CelebrationMarker struct {
	Date     string    `json:"date"` // YYYY-MM-DD in the reference moment's location
	UserID   string    `json:"user_id"`
	Bucket   string    `json:"bucket,omitempty"`
	Mode     Mode      `json:"mode"`
	MarkedAt time.Time `json:"marked_at"`
}

// CelebrationThread records a posted celebration so replies in its thread can
// be attributed later.
type CelebrationThread struct {
	ChannelID   string    `json:"channel_id"`
	MessageTS   string    `json:"message_ts"`
	UserIDs     []string  `json:"user_ids"`
	Personality string    `json:"personality"`
	RunID       string    `json:"run_id"`
	PostedAt    time.Time `json:"posted_at"`
}

// RaceReport is the persisted validation result of one pipeline run.
type RaceReport struct {
	RunID      string            `json:"run_id"`
	Mode       Mode              `json:"mode"`
	Summary    ValidationSummary `json:"summary"`
	Action     ReconcileAction   `json:"action"`
	RecordedAt time.Time         `json:"recorded_at"`
}
