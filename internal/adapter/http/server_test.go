package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bnema/scenefetch/internal/domain"
	"github.com/bnema/scenefetch/internal/service"
)

const testPassword = "P@ssw0rd123"

// waitExecutor runs until the session is cancelled or released.
type waitExecutor struct {
	release chan struct{}
}

func (e *waitExecutor) Execute(ctx context.Context, job service.Job) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-e.release:
		return "/out/" + job.Session.ID + ".mp4", nil
	}
}

type fakeProber struct {
	md  *domain.Metadata
	err error
}

func (f *fakeProber) Probe(ctx context.Context, ref string, _ service.RetryHook) (*domain.Metadata, error) {
	return f.md, f.err
}

type fakeMaintenance struct {
	mu      sync.Mutex
	sweeps  int
	purges  int
	purgeEr error
}

func (f *fakeMaintenance) Sweep(context.Context) service.SweepReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return service.SweepReport{Scanned: 3, Removed: 1, BytesFreed: 2048}
}

func (f *fakeMaintenance) ForceCleanAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purges++
	return f.purgeEr
}

type fakeHistory struct {
	sessions map[string]*domain.Session
}

func (f *fakeHistory) Get(_ context.Context, id string) (*domain.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeHistory) List(_ context.Context, limit int) ([]*domain.Session, error) {
	var out []*domain.Session
	for _, s := range f.sessions {
		out = append(out, s)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeDisk struct{}

func (fakeDisk) FreeBytes(context.Context, string) (uint64, error) { return 1 << 30, nil }

type apiFixture struct {
	srv         *httptest.Server
	queue       *service.QueueManager
	exec        *waitExecutor
	prober      *fakeProber
	maintenance *fakeMaintenance
	token       string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	auth, err := service.NewAuthService("admin", "", string(hash), "test-secret")
	require.NoError(t, err)

	bus := service.NewEventBus()
	exec := &waitExecutor{release: make(chan struct{})}
	queue := service.NewQueueManager(service.QueueConfig{
		ConcurrencyLimit: 1,
		QueueSize:        2,
		TempRoot:         t.TempDir(),
	}, exec, service.NewClassifier(), bus, nil)

	f := &apiFixture{
		queue:       queue,
		exec:        exec,
		prober:      &fakeProber{md: &domain.Metadata{ID: "abc", Title: "Clip"}},
		maintenance: &fakeMaintenance{},
	}
	server := NewServer(Deps{
		Auth:        auth,
		Queue:       queue,
		Events:      bus,
		Prober:      f.prober,
		Maintenance: f.maintenance,
		History: &fakeHistory{sessions: map[string]*domain.Session{
			"archived": {ID: "archived", Status: domain.SessionStatusComplete},
		}},
		Disk:     fakeDisk{},
		TempRoot: "/tmp",
		Version:  "test",
	})
	f.srv = httptest.NewServer(server)

	t.Cleanup(func() {
		f.srv.Close()
		server.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = queue.Shutdown(ctx)
	})

	f.token, err = auth.GenerateToken("admin")
	require.NoError(t, err)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+f.token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestServer_HealthIsPublic(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := f.srv.Client().Get(f.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestServer_RequiresAuth(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "no token"},
		{name: "garbage token", header: "Bearer nope"},
		{name: "wrong scheme", header: "Basic " + f.token},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/api/jobs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := f.srv.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")
		})
	}
}

func TestServer_TokenExchange(t *testing.T) {
	f := newAPIFixture(t)
	client := f.srv.Client()

	resp, err := client.Post(f.srv.URL+"/auth/token", "application/json",
		strings.NewReader(`{"username":"admin","password":"wrong"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = client.Post(f.srv.URL+"/auth/token", "application/json",
		strings.NewReader(fmt.Sprintf(`{"username":"admin","password":%q}`, testPassword)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[tokenResponse](t, resp)
	assert.NotEmpty(t, body.Token)
	assert.True(t, body.ExpiresAt.After(time.Now().Add(6*24*time.Hour)))

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	// The cookie authorises reads but never mutations.
	get, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/api/jobs", nil)
	get.AddCookie(cookie)
	getResp, err := client.Do(get)
	require.NoError(t, err)
	getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)

	post, _ := http.NewRequest(http.MethodPost, f.srv.URL+"/api/jobs", strings.NewReader(`{"url":"https://example.com/v"}`))
	post.AddCookie(cookie)
	postResp, err := client.Do(post)
	require.NoError(t, err)
	postResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, postResp.StatusCode)
}

func TestServer_JobLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/jobs", `{"url":"https://example.com/watch?v=1","options":{"quality":"medium"}}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	created := decode[createJobResponse](t, resp)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "/api/jobs/"+created.ID, resp.Header.Get("Location"))

	require.Eventually(t, func() bool {
		s, err := f.queue.GetStatus(created.ID)
		return err == nil && s.Status == domain.SessionStatusActive
	}, time.Second, 5*time.Millisecond)

	resp = f.do(t, http.MethodGet, "/api/jobs/"+created.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[domain.Session](t, resp)
	assert.Equal(t, domain.QualityMedium, got.Options.Quality)

	resp = f.do(t, http.MethodGet, "/api/jobs?status=active", "")
	list := decode[[]domain.Session](t, resp)
	assert.Len(t, list, 1)

	resp = f.do(t, http.MethodDelete, "/api/jobs/"+created.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cancelled := decode[domain.Session](t, resp)
	assert.Equal(t, domain.SessionStatusCancelled, cancelled.Status)

	resp = f.do(t, http.MethodDelete, "/api/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_CreateJobValidation(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "not json", body: `nope`, want: http.StatusBadRequest},
		{name: "unknown field", body: `{"url":"https://example.com","extra":1}`, want: http.StatusBadRequest},
		{name: "empty url", body: `{"url":""}`, want: http.StatusBadRequest},
		{name: "bad scheme", body: `{"url":"ftp://example.com/v"}`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/api/jobs", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestServer_QueueFull(t *testing.T) {
	f := newAPIFixture(t)

	for range 2 {
		resp := f.do(t, http.MethodPost, "/api/jobs", `{"url":"https://example.com/v"}`)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	resp := f.do(t, http.MethodPost, "/api/jobs", `{"url":"https://example.com/v"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "30", resp.Header.Get("Retry-After"))
}

func TestServer_GetJobFallsBackToHistory(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/api/jobs/archived", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.SessionStatusComplete, decode[domain.Session](t, resp).Status)

	resp = f.do(t, http.MethodGet, "/api/jobs/unknown", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/history?limit=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.Session](t, resp), 1)

	resp = f.do(t, http.MethodGet, "/api/history?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Probe(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/probe", `{"url":"https://example.com/v"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Clip", decode[domain.Metadata](t, resp).Title)

	info := service.NewClassifier().Classify(errors.New("ERROR: Video unavailable"), service.ClassifyContext{Operation: service.OperationProbe})
	f.prober.err = domain.NewClassifiedError(info, errors.New("ERROR: Video unavailable"))
	f.prober.md = nil

	resp = f.do(t, http.MethodPost, "/api/probe", `{"url":"https://example.com/v"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[errorResponse](t, resp)
	require.NotNil(t, body.Detail)
	assert.Equal(t, domain.ErrorKindVideoUnavailable, body.Detail.Kind)
	assert.Equal(t, info.UserMessage, body.Error)
}

func TestServer_StatsAndMaintenance(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[statsResponse](t, resp)
	assert.Equal(t, 1, stats.Queue.ConcurrencyLimit)
	assert.EqualValues(t, 1<<30, stats.FreeBytes)
	assert.Equal(t, "test", stats.Version)

	resp = f.do(t, http.MethodPost, "/api/maintenance/sweep", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[service.SweepReport](t, resp).Removed)

	resp = f.do(t, http.MethodPost, "/api/maintenance/purge", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	f.maintenance.purgeEr = errors.New("boom")
	resp = f.do(t, http.MethodPost, "/api/maintenance/purge", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, 1, f.maintenance.sweeps)
	assert.Equal(t, 2, f.maintenance.purges)
}

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data += strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestServer_EventStream(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/jobs", `{"url":"https://example.com/v"}`)
	id := decode[createJobResponse](t, resp).ID
	require.Eventually(t, func() bool {
		s, err := f.queue.GetStatus(id)
		return err == nil && s.Status == domain.SessionStatusActive
	}, time.Second, 5*time.Millisecond)

	stream := f.do(t, http.MethodGet, "/api/jobs/"+id+"/events", "")
	require.Equal(t, http.StatusOK, stream.StatusCode)
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))
	reader := bufio.NewReader(stream.Body)

	first := readEvent(t, reader)
	assert.Equal(t, "snapshot", first.name)
	var snap domain.Session
	require.NoError(t, json.Unmarshal([]byte(first.data), &snap))
	assert.Equal(t, id, snap.ID)

	require.NoError(t, f.queue.UpdateProgress(id, domain.ProgressUpdate{BytesDone: 10, BytesTotal: 100, Percentage: 10}))
	require.NoError(t, f.queue.CancelJob(id))

	var names []string
	for {
		ev := readEvent(t, reader)
		names = append(names, ev.name)
		if ev.name == string(service.EventCancelled) {
			var payload service.SessionEvent
			require.NoError(t, json.Unmarshal([]byte(ev.data), &payload))
			assert.Equal(t, domain.SessionStatusCancelled, payload.Snapshot.Status)
			break
		}
	}
	assert.Contains(t, names, string(service.EventProgress))

	_, err := reader.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)
}

func TestServer_EventStreamUnknownSession(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/api/jobs/nope/events", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTokenHandler_RateLimits(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	auth, err := service.NewAuthService("admin", "", string(hash), "test-secret")
	require.NoError(t, err)

	limiter := ratelimitFixture(t)
	handler := TokenHandler(auth, limiter, newTracker(), service.NewBackoff(0, 0, 1), false)

	attempt := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"username":"admin","password":"bad"}`))
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, attempt().Code)
	assert.Equal(t, http.StatusUnauthorized, attempt().Code)
	blocked := attempt()
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "192.0.2.1", clientIP(req, false))
	assert.Equal(t, "203.0.113.9", clientIP(req, true))

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", clientIP(req, true))
}
