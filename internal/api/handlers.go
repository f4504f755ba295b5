package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"birthdaybot/internal/birthday"
	"birthdaybot/internal/celebration"
	"birthdaybot/internal/types"
)

// defaultSummaryWindow is used when GET /v1/race-conditions/summary has no
// "since" parameter.
const defaultSummaryWindow = 7 * 24 * time.Hour

// TestCelebrationRequest is the body of POST /v1/celebrations/test.
type TestCelebrationRequest struct {
	UserIDs       []string `json:"user_ids" validate:"required,min=1,max=10,dive,slack_user"`
	ChannelID     string   `json:"channel_id,omitempty" validate:"omitempty,alphanum"`
	Personality   string   `json:"personality,omitempty" validate:"omitempty,personality"`
	IncludeImages *bool    `json:"include_images,omitempty"`
}

// BirthdayRequest is the body of PUT /v1/birthdays/{user_id}.
type BirthdayRequest struct {
	Username string `json:"username" validate:"required,max=80"`
	Date     string `json:"date" validate:"required"`
	Year     *int   `json:"year,omitempty" validate:"omitempty,gte=1900,lte=2100"`
	Timezone string `json:"timezone,omitempty" validate:"omitempty,timezone"`
}

// ImmediateCheckRequest is the body of POST /v1/birthdays/{user_id}/immediate-check.
type ImmediateCheckRequest struct {
	Date string `json:"date" validate:"required"`
}

// BirthdayDTO is the API view of a stored birthday.
type BirthdayDTO struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Date      string    `json:"date"`
	Year      *int      `json:"year,omitempty"`
	Timezone  string    `json:"timezone,omitempty"`
	StarSign  string    `json:"star_sign"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// RegisterBirthdayResponse is returned by PUT /v1/birthdays/{user_id}.
type RegisterBirthdayResponse struct {
	Birthday  BirthdayDTO                 `json:"birthday"`
	Immediate celebration.ImmediateResult `json:"immediate"`
}

func toDTO(rec types.BirthdayRecord) BirthdayDTO {
	return BirthdayDTO{
		UserID:    rec.UserID,
		Username:  rec.Username,
		Date:      rec.Date.String(),
		Year:      rec.Year,
		Timezone:  rec.Timezone,
		StarSign:  birthday.StarSign(rec.Date),
		UpdatedAt: rec.UpdatedAt,
	}
}

// handleTestCelebration runs the pipeline in TEST mode for the given users.
// Users without a stored birthday are celebrated as if it were today. Nothing
// is marked as celebrated.
func (s *Server) handleTestCelebration(w http.ResponseWriter, r *http.Request) {
	var req TestCelebrationRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		Error(w, r, err)
		return
	}

	ctx := r.Context()
	now := s.clock.Now()
	seen := make(map[string]struct{}, len(req.UserIDs))
	people := make([]types.BirthdayPerson, 0, len(req.UserIDs))
	for _, id := range req.UserIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		rec, err := s.birthdays.Get(ctx, id)
		switch {
		case types.IsCode(err, types.ErrCodeNotFoundBirthday):
			people = append(people, types.BirthdayPerson{
				UserID:   id,
				Username: id,
				Date:     types.BirthdayDate{Day: now.Day(), Month: now.Month()},
			})
		case err != nil:
			Error(w, r, err)
			return
		default:
			people = append(people, types.PersonFromRecord(*rec))
		}
	}

	channel := req.ChannelID
	if channel == "" {
		channel = s.defaultChannel
	}
	gen := s.generation
	gen.Mode = types.ModeTest
	if req.Personality != "" {
		gen.Personality = req.Personality
	}
	if req.IncludeImages != nil {
		gen.IncludeImages = *req.IncludeImages
	}

	res := s.celebrations.Celebrate(ctx, people, celebration.Options{
		ChannelID:  channel,
		Mode:       types.ModeTest,
		Reference:  now,
		Generation: gen,
	})
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	JSON(w, r, status, APIResponse{Data: res})
}

func (s *Server) handleGetBirthday(w http.ResponseWriter, r *http.Request) {
	rec, err := s.birthdays.Get(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: toDTO(*rec)})
}

// handlePutBirthday stores a birthday and reports whether it should be
// celebrated immediately.
func (s *Server) handlePutBirthday(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if !slackUserIDPattern.MatchString(userID) {
		Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidPayload, "user_id is not a Slack user ID", nil))
		return
	}

	var req BirthdayRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		Error(w, r, err)
		return
	}
	date, err := types.ParseBirthdayDate(req.Date)
	if err != nil {
		Error(w, r, err)
		return
	}

	now := s.clock.Now()
	rec := types.BirthdayRecord{
		UserID:    userID,
		Username:  req.Username,
		Date:      date,
		Year:      req.Year,
		Timezone:  req.Timezone,
		UpdatedAt: now,
	}
	if err := s.birthdays.Upsert(r.Context(), rec); err != nil {
		Error(w, r, err)
		return
	}

	decision, err := s.immediate.Decide(r.Context(), userID, date, now)
	if err != nil {
		s.logger.Warn("immediate celebration check failed",
			"user_id", userID,
			"error", err,
		)
		decision = celebration.ImmediateResult{Decision: celebration.DecisionNotificationOnly}
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: RegisterBirthdayResponse{Birthday: toDTO(rec), Immediate: decision}})
}

func (s *Server) handleDeleteBirthday(w http.ResponseWriter, r *http.Request) {
	if err := s.birthdays.Delete(r.Context(), chi.URLParam(r, "user_id")); err != nil {
		Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImmediateCheck(w http.ResponseWriter, r *http.Request) {
	var req ImmediateCheckRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		Error(w, r, err)
		return
	}
	date, err := types.ParseBirthdayDate(req.Date)
	if err != nil {
		Error(w, r, err)
		return
	}

	res, err := s.immediate.Decide(r.Context(), chi.URLParam(r, "user_id"), date, s.clock.Now())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: res})
}

// handleRaceSummary aggregates race reports recorded since the "since" query
// parameter (RFC 3339), defaulting to the last seven days.
func (s *Server) handleRaceSummary(w http.ResponseWriter, r *http.Request) {
	since := s.clock.Now().Add(-defaultSummaryWindow)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidPayload, "since must be an RFC 3339 timestamp", err))
			return
		}
		since = parsed
	}

	summary, err := s.races.Summary(r.Context(), since)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: summary})
}
