package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"birthdaybot/internal/celebration"
	"birthdaybot/internal/types"
)

// =============================================================================
// Mock Implementations
// =============================================================================

const testToken = "s3cret-admin-token"

var testNow = time.Date(2026, 7, 5, 9, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type mockCelebrator struct {
	result     types.PipelineResult
	candidates []types.BirthdayPerson
	opts       celebration.Options
	called     bool
}

func (m *mockCelebrator) Celebrate(_ context.Context, candidates []types.BirthdayPerson, opts celebration.Options) types.PipelineResult {
	m.called = true
	m.candidates = candidates
	m.opts = opts
	return m.result
}

type mockBirthdays struct {
	records   map[string]types.BirthdayRecord
	getErr    error
	upserted  []types.BirthdayRecord
	deleted   []string
	upsertErr error
}

func (m *mockBirthdays) Get(_ context.Context, userID string) (*types.BirthdayRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.records[userID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundBirthday, "no birthday stored for "+userID, nil)
	}
	return &rec, nil
}

func (m *mockBirthdays) Upsert(_ context.Context, rec types.BirthdayRecord) error {
	m.upserted = append(m.upserted, rec)
	return m.upsertErr
}

func (m *mockBirthdays) Delete(_ context.Context, userID string) error {
	m.deleted = append(m.deleted, userID)
	return nil
}

type mockDecider struct {
	result   celebration.ImmediateResult
	err      error
	lastUser string
	lastDate types.BirthdayDate
}

func (m *mockDecider) Decide(_ context.Context, userID string, date types.BirthdayDate, _ time.Time) (celebration.ImmediateResult, error) {
	m.lastUser, m.lastDate = userID, date
	return m.result, m.err
}

type mockRaces struct {
	summary   celebration.RaceSummary
	err       error
	lastSince time.Time
}

func (m *mockRaces) Summary(_ context.Context, since time.Time) (celebration.RaceSummary, error) {
	m.lastSince = since
	return m.summary, m.err
}

type mockProbe struct {
	name string
	err  error
}

func (p mockProbe) Name() string                  { return p.name }
func (p mockProbe) Check(_ context.Context) error { return p.err }

type serverFixture struct {
	celebrator *mockCelebrator
	birthdays  *mockBirthdays
	decider    *mockDecider
	races      *mockRaces
	server     *Server
}

func newFixture(t *testing.T, probes ...HealthProbe) *serverFixture {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testToken), bcrypt.MinCost)
	require.NoError(t, err)

	f := &serverFixture{
		celebrator: &mockCelebrator{result: types.PipelineResult{Success: true, MessageSent: true}},
		birthdays:  &mockBirthdays{records: map[string]types.BirthdayRecord{}},
		decider:    &mockDecider{result: celebration.ImmediateResult{Decision: celebration.DecisionNotToday}},
		races:      &mockRaces{},
	}
	f.server, err = NewServer(ServerDeps{
		Celebrations:   f.celebrator,
		Birthdays:      f.birthdays,
		Immediate:      f.decider,
		Races:          f.races,
		Probes:         probes,
		TokenHash:      string(hash),
		DefaultChannel: "CTEST",
		Generation:     types.GenerationOptions{Personality: "standard", IncludeImages: true},
		Version:        "v1.2.3",
		Clock:          fixedClock{testNow},
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return f
}

func (f *serverFixture) do(method, path string, body any, authed bool) *httptest.ResponseRecorder {
	var rdr io.Reader = http.NoBody
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = bytes.NewBufferString(b)
		default:
			raw, _ := json.Marshal(b)
			rdr = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, rdr)
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

// =============================================================================
// Construction, auth and health
// =============================================================================

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(ServerDeps{Logger: slog.Default()})
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/v1/race-conditions/summary", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(types.ErrCodeAuthTokenMissing), decodeError(t, rec).Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/race-conditions/summary", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rr := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, string(types.ErrCodeAuthTokenInvalid), decodeError(t, rr).Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))

	req = httptest.NewRequest(http.MethodGet, "/v1/race-conditions/summary", nil)
	req.Header.Set("Authorization", "Basic abc")
	rr = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rr, req)
	assert.Equal(t, string(types.ErrCodeAuthTokenMissing), decodeError(t, rr).Code)

	rec = f.do(http.MethodGet, "/v1/race-conditions/summary", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExtractBearerToken(t *testing.T) {
	assert.Equal(t, "abc", extractBearerToken("Bearer abc"))
	assert.Equal(t, "abc", extractBearerToken("bearer  abc "))
	assert.Equal(t, "", extractBearerToken("Token abc"))
	assert.Equal(t, "", extractBearerToken("Bear"))
}

func TestHealth(t *testing.T) {
	t.Run("healthy without auth", func(t *testing.T) {
		f := newFixture(t, mockProbe{name: "database"})
		rec := f.do(http.MethodGet, "/health", nil, false)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "v1.2.3", resp.Version)
		assert.Equal(t, "healthy", resp.Components["database"].Status)
	})

	t.Run("failing probe", func(t *testing.T) {
		f := newFixture(t, mockProbe{name: "database", err: errors.New("connection refused")})
		rec := f.do(http.MethodGet, "/health", nil, false)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "connection refused", resp.Components["database"].Message)
	})
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error      { return f(ctx) }
func (f pingFunc) AuthTest(ctx context.Context) error { return f(ctx) }

func TestBuiltinProbes(t *testing.T) {
	down := pingFunc(func(context.Context) error { return errors.New("invalid_auth") })
	up := pingFunc(func(context.Context) error { return nil })

	f := newFixture(t, DatabaseProbe{DB: up}, SlackProbe{Slack: down})
	rec := f.do(http.MethodGet, "/health", nil, false)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Components["database"].Status)
	assert.Equal(t, "invalid_auth", resp.Components["slack"].Message)
}

func TestRecoverer(t *testing.T) {
	f := newFixture(t)
	h := f.server.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), decodeError(t, rec).Code)
}

// =============================================================================
// Handlers
// =============================================================================

func TestTestCelebration(t *testing.T) {
	f := newFixture(t)
	year := 1990
	f.birthdays.records["U100"] = types.BirthdayRecord{
		UserID: "U100", Username: "alice", Date: types.BirthdayDate{Day: 14, Month: time.February}, Year: &year,
	}

	rec := f.do(http.MethodPost, "/v1/celebrations/test", map[string]any{
		"user_ids":       []string{"U100", "U200", "U100"},
		"personality":    "pirate",
		"include_images": false,
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.True(t, f.celebrator.called)
	require.Len(t, f.celebrator.candidates, 2, "duplicates are dropped")
	assert.Equal(t, "alice", f.celebrator.candidates[0].Username)
	assert.Equal(t, types.BirthdayDate{Day: 5, Month: time.July}, f.celebrator.candidates[1].Date, "unknown users celebrate today")

	opts := f.celebrator.opts
	assert.Equal(t, types.ModeTest, opts.Mode)
	assert.Equal(t, types.ModeTest, opts.Generation.Mode)
	assert.Equal(t, "CTEST", opts.ChannelID)
	assert.Equal(t, "pirate", opts.Generation.Personality)
	assert.False(t, opts.Generation.IncludeImages)
}

func TestTestCelebration_FailureIsBadGateway(t *testing.T) {
	f := newFixture(t)
	f.celebrator.result = types.PipelineResult{Error: "slack unavailable"}

	rec := f.do(http.MethodPost, "/v1/celebrations/test", map[string]any{"user_ids": []string{"U100"}}, true)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp struct {
		Data types.PipelineResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "slack unavailable", resp.Data.Error)
}

func TestTestCelebration_Validation(t *testing.T) {
	f := newFixture(t)

	cases := map[string]any{
		"empty body":       "",
		"unknown field":    `{"user_ids":["U100"],"extra":1}`,
		"no users":         map[string]any{"user_ids": []string{}},
		"bad user id":      map[string]any{"user_ids": []string{"alice"}},
		"unknown voice":    map[string]any{"user_ids": []string{"U100"}, "personality": "sommelier"},
		"wrong type":       `{"user_ids":"U100"}`,
		"two json objects": `{"user_ids":["U100"]}{}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/v1/celebrations/test", body, true)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, string(types.ErrCodeValidationInvalidPayload), decodeError(t, rec).Code)
		})
	}
	assert.False(t, f.celebrator.called)
}

func TestTestCelebration_StoreError(t *testing.T) {
	f := newFixture(t)
	f.birthdays.getErr = types.NewAppError(types.ErrCodeInternalDB, "failed to load birthday", errors.New("timeout"))

	rec := f.do(http.MethodPost, "/v1/celebrations/test", map[string]any{"user_ids": []string{"U100"}}, true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeInternalDB), detail.Code)
	assert.NotContains(t, detail.Message, "timeout")
}

func TestPutBirthday(t *testing.T) {
	f := newFixture(t)
	f.decider.result = celebration.ImmediateResult{Decision: celebration.DecisionImmediate}

	rec := f.do(http.MethodPut, "/v1/birthdays/U100", map[string]any{
		"username": "alice",
		"date":     "05/07",
		"timezone": "Europe/Paris",
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, f.birthdays.upserted, 1)
	assert.Equal(t, "U100", f.birthdays.upserted[0].UserID)
	assert.Equal(t, types.BirthdayDate{Day: 5, Month: time.July}, f.birthdays.upserted[0].Date)
	assert.Equal(t, "U100", f.decider.lastUser)

	var resp struct {
		Data RegisterBirthdayResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, celebration.DecisionImmediate, resp.Data.Immediate.Decision)
	assert.Equal(t, "05/07", resp.Data.Birthday.Date)
	assert.Contains(t, resp.Data.Birthday.StarSign, "Cancer")
}

func TestPutBirthday_Invalid(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/v1/birthdays/U100", map[string]any{"username": "alice", "date": "31/02"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidDate), decodeError(t, rec).Code)

	rec = f.do(http.MethodPut, "/v1/birthdays/U100", map[string]any{"username": "alice", "date": "01/02", "timezone": "Mars/Olympus"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPut, "/v1/birthdays/alice", map[string]any{"username": "alice", "date": "01/02"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, f.birthdays.upserted)
}

func TestGetAndDeleteBirthday(t *testing.T) {
	f := newFixture(t)
	f.birthdays.records["U100"] = types.BirthdayRecord{UserID: "U100", Username: "alice", Date: types.BirthdayDate{Day: 14, Month: time.February}}

	rec := f.do(http.MethodGet, "/v1/birthdays/U100", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data BirthdayDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "14/02", resp.Data.Date)
	assert.Contains(t, resp.Data.StarSign, "Aquarius")

	rec = f.do(http.MethodGet, "/v1/birthdays/U999", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodDelete, "/v1/birthdays/U100", nil, true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"U100"}, f.birthdays.deleted)
}

func TestImmediateCheck(t *testing.T) {
	f := newFixture(t)
	f.decider.result = celebration.ImmediateResult{
		Decision: celebration.DecisionNotificationOnly,
		SameDay:  []types.BirthdayPerson{{UserID: "U2", Username: "bob"}},
	}

	rec := f.do(http.MethodPost, "/v1/birthdays/U100/immediate-check", map[string]any{"date": "05/07"}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, types.BirthdayDate{Day: 5, Month: time.July}, f.decider.lastDate)

	var resp struct {
		Data celebration.ImmediateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, celebration.DecisionNotificationOnly, resp.Data.Decision)
	require.Len(t, resp.Data.SameDay, 1)
	assert.Equal(t, "bob", resp.Data.SameDay[0].Username)

	f.decider.err = types.NewAppError(types.ErrCodeInternalDB, "failed to list birthdays", nil)
	rec = f.do(http.MethodPost, "/v1/birthdays/U100/immediate-check", map[string]any{"date": "05/07"}, true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRaceSummary(t *testing.T) {
	f := newFixture(t)
	f.races.summary = celebration.RaceSummary{TotalCelebrations: 4, WithRaceConditions: 1, RaceConditionRate: 0.25}

	rec := f.do(http.MethodGet, "/v1/race-conditions/summary", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.races.lastSince.Equal(testNow.Add(-7*24*time.Hour)))

	var resp struct {
		Data celebration.RaceSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Data.TotalCelebrations)

	rec = f.do(http.MethodGet, "/v1/race-conditions/summary?since=2026-07-01T00:00:00Z", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.races.lastSince.Equal(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)))

	rec = f.do(http.MethodGet, "/v1/race-conditions/summary?since=yesterday", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
