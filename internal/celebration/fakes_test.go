package celebration

import (
	"context"
	"errors"
	"sync"
	"time"

	"birthdaybot/internal/external"
	"birthdaybot/internal/types"
)

var testRef = time.Date(2026, 7, 5, 9, 0, 0, 0, time.UTC)

func person(id string) types.BirthdayPerson {
	return types.BirthdayPerson{UserID: id, Username: "user-" + id, Date: types.BirthdayDate{Day: 5, Month: time.July}}
}

func record(id string, day int, month time.Month) types.BirthdayRecord {
	return types.BirthdayRecord{UserID: id, Username: "user-" + id, Date: types.BirthdayDate{Day: day, Month: month}}
}

func liveToday(ids ...string) map[string]types.BirthdayRecord {
	live := make(map[string]types.BirthdayRecord, len(ids))
	for _, id := range ids {
		live[id] = record(id, 5, time.July)
	}
	return live
}

func set(ids ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// --- stores ---

type fakeBirthdays struct {
	live map[string]types.BirthdayRecord
	err  error
}

func (f *fakeBirthdays) LoadLive(context.Context) (map[string]types.BirthdayRecord, error) {
	return f.live, f.err
}

type markCall struct {
	Date string
	Mode types.Mode
	Keys []types.MarkerKey
}

// memMarkers is an in-memory CelebrationStore with the same idempotent
// semantics as the database table.
type memMarkers struct {
	mu         sync.Mutex
	markers    map[string]map[types.MarkerKey]struct{}
	calls      []markCall
	readErr    error
	markErr    error
	readsCount int
}

func newMemMarkers() *memMarkers {
	return &memMarkers{markers: map[string]map[types.MarkerKey]struct{}{}}
}

func (m *memMarkers) CelebratedOn(_ context.Context, date string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readsCount++
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := map[string]struct{}{}
	for k := range m.markers[date] {
		out[k.UserID] = struct{}{}
	}
	return out, nil
}

func (m *memMarkers) Mark(_ context.Context, date string, mode types.Mode, keys []types.MarkerKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, markCall{Date: date, Mode: mode, Keys: append([]types.MarkerKey(nil), keys...)})
	if m.markErr != nil {
		return m.markErr
	}
	if m.markers[date] == nil {
		m.markers[date] = map[types.MarkerKey]struct{}{}
	}
	for _, k := range keys {
		m.markers[date][k] = struct{}{}
	}
	return nil
}

func (m *memMarkers) TryMark(_ context.Context, date string, _ types.Mode, key types.MarkerKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.markers[date] {
		if k.UserID == key.UserID {
			return false, nil
		}
	}
	if m.markers[date] == nil {
		m.markers[date] = map[types.MarkerKey]struct{}{}
	}
	m.markers[date][key] = struct{}{}
	return true, nil
}

// markedIDs flattens every Mark call into user IDs, in call order.
func (m *memMarkers) markedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, c := range m.calls {
		for _, k := range c.Keys {
			ids = append(ids, k.UserID)
		}
	}
	return ids
}

// --- slack ---

type fakeDirectory struct {
	members     map[string]struct{}
	membersErr  error
	status      map[string]types.UserStatus
	statusErr   map[string]error
	statusCalls int
}

func (f *fakeDirectory) ChannelMembers(context.Context, string) (map[string]struct{}, error) {
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	return f.members, nil
}

func (f *fakeDirectory) UserStatus(_ context.Context, userID string) (types.UserStatus, error) {
	f.statusCalls++
	if err := f.statusErr[userID]; err != nil {
		return types.UserStatus{}, err
	}
	if st, ok := f.status[userID]; ok {
		return st, nil
	}
	return types.UserStatus{Active: true}, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	uploadErr map[string]error // by person ID
	postErr   error
	postPanic any
	// uploadPanic names a person whose image upload panics.
	uploadPanic string
	uploads   []types.ImageRef
	posted    []external.SlackMessage
}

func (f *fakePublisher) UploadImage(_ context.Context, img types.ImageRef) (external.UploadedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, img)
	if f.uploadPanic != "" && img.PersonID == f.uploadPanic {
		panic("upload client exploded")
	}
	if err := f.uploadErr[img.PersonID]; err != nil {
		return external.UploadedFile{}, err
	}
	return external.UploadedFile{ID: "F" + img.PersonID, Title: img.Title, PersonID: img.PersonID}, nil
}

func (f *fakePublisher) PostMessage(_ context.Context, msg external.SlackMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, msg)
	if f.postPanic != nil {
		panic(f.postPanic)
	}
	if f.postErr != nil {
		return "", f.postErr
	}
	return "1783242000.000100", nil
}

// --- generator ---

type fakeGenerator struct {
	calls [][]types.BirthdayPerson
	opts  []types.GenerationOptions
	// results are returned in call order; the last one repeats.
	results []types.GeneratedContent
	errs    []error
	// scores is nil unless a test sets it; Generate writes to it when
	// crashOnCall is true.
	scores      map[string]int
	crashOnCall bool
}

func (f *fakeGenerator) Generate(_ context.Context, people []types.BirthdayPerson, opts types.GenerationOptions) (types.GeneratedContent, error) {
	i := len(f.calls)
	f.calls = append(f.calls, people)
	f.opts = append(f.opts, opts)
	if f.crashOnCall {
		f.scores[opts.Personality]++
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return types.GeneratedContent{}, f.errs[i]
	}
	if len(f.results) == 0 {
		return types.GeneratedContent{Message: "Happy birthday!", PersonalityUsed: "standard"}, nil
	}
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i], nil
}

func draftFor(personality string, people ...types.BirthdayPerson) types.GeneratedContent {
	c := types.GeneratedContent{Message: "Happy birthday everyone!", PersonalityUsed: personality}
	for _, p := range people {
		c.Images = append(c.Images, types.ImageRef{Data: []byte("png"), PersonID: p.UserID, PersonName: p.Username})
	}
	return c
}

// --- telemetry ---

type spyMetrics struct {
	NopMetrics
	mu      sync.Mutex
	runs    []bool
	alerts  int
	reasons map[types.ReasonCode]int
	genDurs []time.Duration
}

func (s *spyMetrics) RecordRun(_ context.Context, _ types.Mode, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, success)
}

func (s *spyMetrics) RecordRaceAlert(context.Context, types.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts++
}

func (s *spyMetrics) RecordRaceCondition(_ context.Context, _ types.Mode, reason types.ReasonCode, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reasons == nil {
		s.reasons = map[types.ReasonCode]int{}
	}
	s.reasons[reason] += count
}

func (s *spyMetrics) RecordGenerationDuration(_ context.Context, _ types.Mode, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.genDurs = append(s.genDurs, d)
}

type memRaceStore struct {
	reports []types.RaceReport
	err     error
}

func (m *memRaceStore) Record(_ context.Context, rep types.RaceReport) error {
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, rep)
	return nil
}

func (m *memRaceStore) ListSince(_ context.Context, since time.Time) ([]types.RaceReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []types.RaceReport
	for _, r := range m.reports {
		if !r.RecordedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

type memThreads struct {
	threads []types.CelebrationThread
	err     error
}

func (m *memThreads) Record(_ context.Context, t types.CelebrationThread) error {
	if m.err != nil {
		return m.err
	}
	m.threads = append(m.threads, t)
	return nil
}

type memEvents struct {
	events []PostedEvent
}

func (m *memEvents) PublishPosted(_ context.Context, evt PostedEvent) error {
	m.events = append(m.events, evt)
	return nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var errBoom = errors.New("boom")
