package web_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"proclens/collector"
	"proclens/metrics"
	"proclens/models"
	"proclens/web"
	"proclens/web/mocks"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *models.Snapshot {
	return &models.Snapshot{
		Processes: []models.ProcessRecord{
			{PID: 42, Name: "postgres", Status: "sleep", CPUTimeMs: 1500, ResidentMemoryKB: 2048},
			{PID: 7, Name: "nginx", Status: "running", CPUTimeMs: 20.5, ResidentMemoryKB: 12, Container: "web"},
		},
		Host: models.HostSummary{
			Hostname:    "box",
			OS:          "linux",
			CPUCores:    4,
			MemoryUsed:  2 << 30,
			MemoryTotal: 8 << 30,
			Uptime:      3600,
		},
		CapturedAt: time.Now(),
	}
}

func newServer(t *testing.T, snap *models.Snapshot, m http.Handler) (*web.Server, *mocks.MockAsker) {
	t.Helper()
	ctrl := gomock.NewController(t)

	store := collector.NewStore()
	if snap != nil {
		store.Publish(snap)
	}
	asker := mocks.NewMockAsker(ctrl)
	srv, err := web.NewServer(store, asker, 5*time.Second, m)
	require.NoError(t, err)
	return srv, asker
}

func do(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func postForm(question string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(url.Values{"question": {question}}.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func postJSON(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestIndex_emptySnapshot(t *testing.T) {
	srv, _ := newServer(t, nil, nil)

	rec := do(srv.Handler(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No processes found or insufficient permissions.")
	assert.Contains(t, rec.Body.String(), `class="warning" >`)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestIndex_rendersProcesses(t *testing.T) {
	assert := assert.New(t)
	srv, _ := newServer(t, testSnapshot(), nil)

	rec := do(srv.Handler(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(body, "ProcLens.ai")
	assert.Contains(body, "postgres")
	assert.Contains(body, "2048.00 K")
	assert.Contains(body, "1500.00")
	assert.Contains(body, "12.00 K")
	assert.Contains(body, "web")
	assert.Contains(body, "box")
	assert.Contains(body, "2GiB")
	assert.Contains(body, "5000")
	assert.Contains(body, `class="warning" hidden`)
}

func TestIndex_unknownPath(t *testing.T) {
	srv, _ := newServer(t, nil, nil)
	rec := do(srv.Handler(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAskForm_redirectsAndRecords(t *testing.T) {
	snap := testSnapshot()
	srv, asker := newServer(t, snap, nil)
	asker.EXPECT().Ask(gomock.Any(), "what uses memory?", snap).Return("postgres does")

	h := srv.Handler()
	rec := do(h, postForm("  what uses memory?  "))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	require.Equal(t, 1, srv.History().Len())

	page := do(h, httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	assert.Contains(t, page, "postgres does")
	assert.Contains(t, page, "what uses memory?")
}

func TestAskForm_blankIgnored(t *testing.T) {
	srv, _ := newServer(t, testSnapshot(), nil)

	for _, q := range []string{"", "   ", "\n\t"} {
		rec := do(srv.Handler(), postForm(q))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
	}
	assert.Zero(t, srv.History().Len())
}

func TestAPIAsk(t *testing.T) {
	assert := assert.New(t)
	srv, asker := newServer(t, testSnapshot(), nil)
	asker.EXPECT().Ask(gomock.Any(), "why?", gomock.Any()).Return("Error: 500 - err")

	rec := do(srv.Handler(), postJSON(`{"question":"why?"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal("application/json", rec.Header().Get("Content-Type"))

	var got models.QueryAnswer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal("why?", got.Question)
	assert.Equal("Error: 500 - err", got.Text)
	assert.False(got.AskedAt.IsZero())
	_, err := uuid.Parse(got.ID)
	assert.NoError(err)
}

func TestAPIAsk_badRequests(t *testing.T) {
	srv, _ := newServer(t, testSnapshot(), nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "blank", body: `{"question":"  "}`},
		{name: "missing", body: `{}`},
		{name: "not json", body: `question=hi`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(srv.Handler(), postJSON(tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Zero(t, srv.History().Len())
}

func TestAPIHistory_order(t *testing.T) {
	srv, asker := newServer(t, testSnapshot(), nil)
	gomock.InOrder(
		asker.EXPECT().Ask(gomock.Any(), "first", gomock.Any()).Return("one"),
		asker.EXPECT().Ask(gomock.Any(), "second", gomock.Any()).Return("two"),
	)

	h := srv.Handler()
	do(h, postJSON(`{"question":"first"}`))
	do(h, postJSON(`{"question":"second"}`))

	rec := do(h, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.QueryAnswer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Text)
	assert.Equal(t, "two", got[1].Text)

	// the page shows the newest answer first
	page := do(h, httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	assert.Less(t, strings.Index(page, "second"), strings.Index(page, "first"))
}

func TestAPIProcesses(t *testing.T) {
	snap := testSnapshot()
	srv, _ := newServer(t, snap, nil)

	rec := do(srv.Handler(), httptest.NewRequest(http.MethodGet, "/api/processes", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, snap.Processes, got.Processes)
	assert.Equal(t, snap.Host, got.Host)
}

func TestHealthz(t *testing.T) {
	srv, _ := newServer(t, nil, nil)
	rec := do(srv.Handler(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "ok"))

	srv, _ = newServer(t, testSnapshot(), nil)
	rec = do(srv.Handler(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Contains(t, rec.Body.String(), "snapshot age")
}

func TestStaticStylesheet(t *testing.T) {
	srv, _ := newServer(t, nil, nil)
	rec := do(srv.Handler(), httptest.NewRequest(http.MethodGet, "/static/style.css", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
	assert.Contains(t, rec.Body.String(), ".response-box")
}

func TestMetricsRoute(t *testing.T) {
	srv, _ := newServer(t, nil, nil)
	rec := do(srv.Handler(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	m := metrics.New()
	m.ObserveTick(3, 1)
	srv, _ = newServer(t, nil, m.Handler())
	rec = do(srv.Handler(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "proclens_collector_snapshot_size 3")
}

func TestAsk_oneQueryAtATime(t *testing.T) {
	srv, asker := newServer(t, testSnapshot(), nil)

	var inFlight, peak int32
	asker.EXPECT().Ask(gomock.Any(), gomock.Any(), gomock.Any()).Times(4).
		DoAndReturn(func(context.Context, string, *models.Snapshot) string {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return "ok"
		})

	h := srv.Handler()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			do(h, postJSON(`{"question":"busy?"}`))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
	assert.Equal(t, 4, srv.History().Len())
}

func TestAsk_abandonedWhileWaiting(t *testing.T) {
	srv, asker := newServer(t, testSnapshot(), nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	asker.EXPECT().Ask(gomock.Any(), "slow", gomock.Any()).
		DoAndReturn(func(context.Context, string, *models.Snapshot) string {
			close(entered)
			<-release
			return "done"
		})

	h := srv.Handler()
	done := make(chan struct{})
	go func() {
		defer close(done)
		do(h, postJSON(`{"question":"slow"}`))
	}()
	<-entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := do(h, postJSON(`{"question":"impatient"}`).WithContext(ctx))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	close(release)
	<-done
	assert.Equal(t, 1, srv.History().Len())
}

func TestListenAndServe_shutsDownOnCancel(t *testing.T) {
	srv, _ := newServer(t, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestListenAndServe_badAddress(t *testing.T) {
	srv, _ := newServer(t, nil, nil)
	err := srv.ListenAndServe(context.Background(), "256.0.0.1:bad")
	assert.Error(t, err)
}
