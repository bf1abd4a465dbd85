package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-core/internal/domain/currency"
	"github.com/alem-hub/academy-core/internal/domain/progress"
	"github.com/alem-hub/academy-core/internal/domain/session"
	"github.com/alem-hub/academy-core/internal/domain/trial"
	"github.com/alem-hub/academy-core/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/academy-core/pkg/timeutil"
)

var (
	testNow     = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	errStubDown = errors.New("stub: unavailable")
)

func newTestClock() *timeutil.ManualClock {
	return timeutil.NewManualClock(testNow)
}

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }

// ══════════════════════════════════════════════════════════════════════════════
// CACHE
// ══════════════════════════════════════════════════════════════════════════════

// stubCache wraps the memory cache with call counters and failure switches.
type stubCache struct {
	*memory.Cache

	mu             sync.Mutex
	gets           int
	sets           int
	deletes        int
	failing        bool
	failingDeletes bool
}

func newStubCache(clock timeutil.Clock) *stubCache {
	return &stubCache{Cache: memory.NewCache(clock)}
}

func (c *stubCache) fail(on bool) {
	c.mu.Lock()
	c.failing = on
	c.mu.Unlock()
}

// failDeletes breaks invalidation only; reads and writes keep working.
func (c *stubCache) failDeletes(on bool) {
	c.mu.Lock()
	c.failingDeletes = on
	c.mu.Unlock()
}

func (c *stubCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	c.gets++
	failing := c.failing
	c.mu.Unlock()
	if failing {
		return errStubDown
	}
	return c.Cache.Get(ctx, key, dest)
}

func (c *stubCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	c.sets++
	failing := c.failing
	c.mu.Unlock()
	if failing {
		return errStubDown
	}
	return c.Cache.Set(ctx, key, value, ttl)
}

func (c *stubCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	c.deletes++
	failing := c.failing || c.failingDeletes
	c.mu.Unlock()
	if failing {
		return errStubDown
	}
	return c.Cache.Delete(ctx, keys...)
}

func (c *stubCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	c.deletes++
	failing := c.failing || c.failingDeletes
	c.mu.Unlock()
	if failing {
		return errStubDown
	}
	return c.Cache.DeleteByPattern(ctx, pattern)
}

func (c *stubCache) calls() (gets, sets int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets, c.sets
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE SOURCE
// ══════════════════════════════════════════════════════════════════════════════

type fakeRateSource struct {
	mu     sync.Mutex
	tables map[string]map[string]float64
	err    error
	calls  int
}

func newFakeRateSource() *fakeRateSource {
	return &fakeRateSource{tables: make(map[string]map[string]float64)}
}

func (f *fakeRateSource) LatestRates(_ context.Context, base string) (*currency.RateTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	rates, ok := f.tables[base]
	if !ok {
		return nil, errStubDown
	}
	return &currency.RateTable{Base: base, Rates: rates, UpdatedAt: testNow}, nil
}

func (f *fakeRateSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORIES
// ══════════════════════════════════════════════════════════════════════════════

type fakeCourseRepo struct {
	courses map[string]*progress.Course
	loads   int
}

func (f *fakeCourseRepo) LoadForStudent(_ context.Context, courseID, _ string) (*progress.Course, error) {
	f.loads++
	c, ok := f.courses[courseID]
	if !ok {
		return nil, progress.ErrCourseNotFound
	}
	return c, nil
}

type fakeSnapshotRepo struct {
	saved []progress.Snapshot
	err   error
}

func (f *fakeSnapshotRepo) Save(_ context.Context, s *progress.Snapshot) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, *s)
	return nil
}

type fakeSettingsRepo struct {
	rows  map[string]*session.AcademySettings
	err   error
	calls int
}

func (f *fakeSettingsRepo) GetByAcademyID(_ context.Context, academyID string) (*session.AcademySettings, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.rows[academyID]
	if !ok {
		return nil, session.ErrSettingsNotFound
	}
	cp := *s
	return &cp, nil
}

type fakeSessionRepo struct {
	sessions map[string]*session.Session
}

func (f *fakeSessionRepo) GetByID(_ context.Context, id string) (*session.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessionRepo) ListTrialSessionsChangedAfter(_ context.Context, after session.ChangeCursor, limit int) ([]*session.Session, error) {
	var out []*session.Session
	for _, s := range f.sessions {
		if s.IsTrial() && after.Before(session.CursorOf(s)) {
			out = append(out, s)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeTrialRepo struct {
	requests     map[string]*trial.Request
	statusWrites int
	linkWrites   int
	completions  int
	errOnGet     error
}

func newFakeTrialRepo(reqs ...*trial.Request) *fakeTrialRepo {
	f := &fakeTrialRepo{requests: make(map[string]*trial.Request)}
	for _, r := range reqs {
		f.requests[r.ID] = r
	}
	return f
}

func (f *fakeTrialRepo) GetByID(_ context.Context, id string) (*trial.Request, error) {
	if f.errOnGet != nil {
		return nil, f.errOnGet
	}
	r, ok := f.requests[id]
	if !ok {
		return nil, trial.ErrTrialRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeTrialRepo) UpdateStatus(_ context.Context, id string, status trial.Status, updatedAt time.Time) error {
	r, ok := f.requests[id]
	if !ok {
		return trial.ErrTrialRequestNotFound
	}
	f.statusWrites++
	r.Status = status
	r.UpdatedAt = updatedAt
	return nil
}

func (f *fakeTrialRepo) LinkSession(_ context.Context, id, sessionID string, updatedAt time.Time) (bool, error) {
	r, ok := f.requests[id]
	if !ok {
		return false, trial.ErrTrialRequestNotFound
	}
	if r.TrialSessionID != nil {
		return false, nil
	}
	f.linkWrites++
	r.TrialSessionID = &sessionID
	r.UpdatedAt = updatedAt
	return true, nil
}

func (f *fakeTrialRepo) SaveCompletion(_ context.Context, req *trial.Request) error {
	if _, ok := f.requests[req.ID]; !ok {
		return trial.ErrTrialRequestNotFound
	}
	f.completions++
	cp := *req
	f.requests[req.ID] = &cp
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LOG CAPTURE
// ══════════════════════════════════════════════════════════════════════════════

type logCapture struct {
	buf *bytes.Buffer
}

func newLogCapture() (*logCapture, *slog.Logger) {
	buf := &bytes.Buffer{}
	l := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return &logCapture{buf: buf}, l
}

func (c *logCapture) entries(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(c.buf.Bytes()))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func (c *logCapture) withMessage(t *testing.T, msg string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, e := range c.entries(t) {
		if e["msg"] == msg {
			out = append(out, e)
		}
	}
	return out
}
