package devserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/diogo/querychat/internal/api"
	apierrors "github.com/diogo/querychat/internal/errors"
	"github.com/diogo/querychat/internal/widget"
)

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestQuery(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		check      func(t *testing.T, body string)
	}{
		{
			name:       "matching jobs",
			body:       `{"query":"software engineer jobs"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body string) {
				assert.Contains(t, gjson.Get(body, "response_message").String(), "Software Engineer")
				assert.Equal(t, int64(1), gjson.Get(body, "retrieved_jobs.#").Int())
				assert.Equal(t, "software engineer jobs", gjson.Get(body, "conversation_history.0.query").String())
			},
		},
		{
			name:       "no match still replies",
			body:       `{"query":"What is 2+2?"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body string) {
				assert.True(t, gjson.Get(body, "response_message").Exists())
				assert.Equal(t, int64(0), gjson.Get(body, "retrieved_jobs.#").Int())
			},
		},
		{
			name:       "trending jobs",
			body:       `{"query":"what is Trending?"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body string) {
				assert.Equal(t, int64(3), gjson.Get(body, "trending.#").Int())
				assert.Equal(t, "Software Engineer", gjson.Get(body, "trending.0.business_title").String())
				assert.False(t, gjson.Get(body, "trending.0.job_category").Exists())
				assert.False(t, gjson.Get(body, "retrieved_jobs").Exists())
			},
		},
		{
			name:       "trending categories",
			body:       `{"query":"trending category this month"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body string) {
				assert.Equal(t, "Technology, Data & Innovation", gjson.Get(body, "trending.0.job_category").String())
				assert.False(t, gjson.Get(body, "trending.0.business_title").Exists())
			},
		},
		{
			name:       "follow-up without previous jobs",
			body:       `{"query":"tell me more about the first job"}`,
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body string) {
				assert.Contains(t, gjson.Get(body, "response_message").String(), "previous query")
				assert.False(t, gjson.Get(body, "error").Exists())
			},
		},
		{
			name:       "follow-up with last_jobs",
			body:       `{"query":"Tell me more","last_jobs":[{"business_title":"Librarian","agency":"Public Library","work_location":"Bronx, NY"}]}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body string) {
				assert.Contains(t, gjson.Get(body, "response_message").String(), "Librarian at Public Library")
			},
		},
		{
			name:       "empty query",
			body:       `{"query":""}`,
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body string) {
				assert.JSONEq(t, `{"error":"Query is missing"}`, body)
			},
		},
		{
			name:       "missing query",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not JSON",
			body:       `query=hi`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, New().Routes(), tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tt.check != nil {
				tt.check(t, rec.Body.String())
			}
		})
	}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func historyQueries(t *testing.T, h http.Handler) []string {
	t.Helper()
	rec := get(t, h, "/history")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []string
	for _, q := range gjson.Get(rec.Body.String(), "conversation_history.#.query").Array() {
		out = append(out, q.String())
	}
	return out
}

func TestQuery_ResetContext(t *testing.T) {
	h := New().Routes()

	post(t, h, `{"query":"data analyst"}`)
	post(t, h, `{"query":"systems administrator"}`)
	assert.Equal(t, []string{"data analyst", "systems administrator"}, historyQueries(t, h))

	post(t, h, `{"query":"software","reset_context":true}`)
	assert.Equal(t, []string{"software"}, historyQueries(t, h))
}

func TestHistory_Empty(t *testing.T) {
	rec := get(t, New().Routes(), "/history")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"conversation_history":[]}`, rec.Body.String())
}

func TestHistory_KeepsRetrievedJobs(t *testing.T) {
	h := New().Routes()
	post(t, h, `{"query":"software engineer"}`)

	rec := get(t, h, "/history")
	body := rec.Body.String()
	assert.Equal(t, "Software Engineer", gjson.Get(body, "conversation_history.0.retrieved_jobs.0.business_title").String())
}

func TestQuery_FollowUpUsesHistory(t *testing.T) {
	h := New().Routes()
	post(t, h, `{"query":"data analyst"}`)
	post(t, h, `{"query":"What is 2+2?"}`)

	rec := post(t, h, `{"query":"tell me more"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, gjson.Get(rec.Body.String(), "response_message").String(), "Data Analyst at Department of Health")
	assert.Equal(t, []string{"data analyst", "What is 2+2?"}, historyQueries(t, h), "follow-ups are not recorded")
}

func TestTrending(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantJobs   int64
	}{
		{"default top_k", "/trending", http.StatusOK, 3},
		{"top_k limits", "/trending?top_k=2", http.StatusOK, 2},
		{"top_k above size", "/trending?top_k=50", http.StatusOK, 3},
		{"top_k zero", "/trending?top_k=0", http.StatusBadRequest, 0},
		{"top_k not a number", "/trending?top_k=many", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, New().Routes(), tt.target)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			body := rec.Body.String()
			assert.Equal(t, tt.wantJobs, gjson.Get(body, "trending_jobs.#").Int())
			assert.Equal(t, tt.wantJobs, gjson.Get(body, "trending_categories.#").Int())
			assert.Equal(t, "Software Engineer", gjson.Get(body, "trending_jobs.0.business_title").String())
			assert.Equal(t, "Health", gjson.Get(body, "trending_categories.1.job_category").String())
		})
	}
}

func TestWriteTimeoutCoversLatency(t *testing.T) {
	assert.Equal(t, baseWriteTimeout, writeTimeout(0))
	assert.Equal(t, baseWriteTimeout+90*time.Second, writeTimeout(90*time.Second))
	assert.Greater(t, writeTimeout(2*time.Minute), 2*time.Minute)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	New().Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", gjson.Get(rec.Body.String(), "status").String())
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	New().Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/query", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// The real transport and controller against the dev backend
func TestEndToEnd(t *testing.T) {
	ts := httptest.NewServer(New().Routes())
	defer ts.Close()

	client, err := api.NewClient(api.WithBaseURL(ts.URL), api.WithTimeout(5*time.Second))
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Ping(context.Background()))

	ctrl := widget.New(client)
	res := ctrl.SendMessage(context.Background(), "data analyst roles")
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Response.Matches)

	entries := ctrl.Transcript().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "data analyst roles", entries[0].Text)
	assert.Contains(t, entries[1].Text, "Data Analyst")
}

// A 400 that carries response_message is still a reply
func TestEndToEnd_FollowUpWithoutContext(t *testing.T) {
	ts := httptest.NewServer(New().Routes())
	defer ts.Close()

	client, err := api.NewClient(api.WithBaseURL(ts.URL), api.WithTimeout(5*time.Second))
	require.NoError(t, err)
	defer client.Close()

	ctrl := widget.New(client)
	res := ctrl.SendMessage(context.Background(), "tell me more about the first job")
	require.NoError(t, res.Err)
	assert.Equal(t, http.StatusBadRequest, res.Response.StatusCode)

	entries := ctrl.Transcript().Entries()
	require.Len(t, entries, 2)
	assert.Contains(t, entries[1].Text, "previous query")
}

func TestEndToEnd_Latency(t *testing.T) {
	ts := httptest.NewServer(New(WithLatency(200 * time.Millisecond)).Routes())
	defer ts.Close()

	client, err := api.NewClient(api.WithBaseURL(ts.URL), api.WithTimeout(20*time.Millisecond))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Query(context.Background(), "slow")
	require.Error(t, err)
	assert.True(t, apierrors.IsTimeoutError(err))
}

func TestRun_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New().Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
