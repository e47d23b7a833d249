package web

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sweeper/internal/config"
	"github.com/JonMunkholm/sweeper/internal/core"
	"github.com/JonMunkholm/sweeper/internal/history"
)

type testServer struct {
	t   *testing.T
	srv *Server
	cfg *config.Config
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Rate.Enabled = false
	for _, m := range mutate {
		m(cfg)
	}
	svc, err := core.NewService(cfg, history.NewMemory(100))
	require.NoError(t, err)
	return &testServer{t: t, srv: NewServer(svc, cfg), cfg: cfg}
}

func (ts *testServer) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	ts.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) json(method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(ts.t, err)
		r = bytes.NewReader(data)
	}
	return ts.do(method, path, r, "application/json")
}

func (ts *testServer) session() string {
	ts.t.Helper()
	rec := ts.json(http.MethodPost, "/api/sessions", nil)
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp sessionResponse
	require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(ts.t, resp.ID)
	return resp.ID
}

func (ts *testServer) upload(sid string, files map[string]string, order ...string) ingestResponse {
	ts.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range order {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(ts.t, err)
		_, err = part.Write([]byte(files[name]))
		require.NoError(ts.t, err)
	}
	require.NoError(ts.t, mw.Close())

	rec := ts.do(http.MethodPost, "/api/sessions/"+sid+"/files", &buf, mw.FormDataContentType())
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp ingestResponse
	require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestHealthAndDashboard(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Data Sweeper")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestFullPipeline(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.session()
	base := "/api/sessions/" + sid

	report := ts.upload(sid, map[string]string{
		"people.csv": "name,age\nA,25\nB,35\nB,35\nC,40\n",
		"notes.txt":  "hello",
	}, "people.csv", "notes.txt")
	assert.Equal(t, 1, report.Accepted)
	assert.Equal(t, 1, report.Rejected)
	require.NotNil(t, report.Files[0].File)
	require.NotNil(t, report.Files[1].Error)
	assert.Equal(t, "FILE006", report.Files[1].Error.Code)

	fid := report.Files[0].File.ID
	fileBase := base + "/files/" + fid

	rec := ts.json(http.MethodPost, fileBase+"/dedupe", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var step core.StepResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &step))
	assert.Equal(t, 1, step.RowsAffected)

	rec = ts.json(http.MethodPost, fileBase+"/filter", filterRequest{Expression: "age > 30"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &step))
	assert.Equal(t, 2, step.File.Rows)

	rec = ts.json(http.MethodPost, fileBase+"/rename", renameRequest{Mapping: map[string]string{"age": "Age"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, fileBase+"?rows=1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var preview core.Preview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.Equal(t, []string{"name", "Age"}, preview.Head.Columns)
	assert.Equal(t, [][]string{{"B", "35"}}, preview.Head.Rows)

	rec = ts.do(http.MethodGet, fileBase+"/stats", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.json(http.MethodPost, fileBase+"/convert", convertRequest{Format: "csv"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var exp core.ExportRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exp))
	assert.Equal(t, "people.csv", exp.Name)

	rec = ts.do(http.MethodGet, base+"/exports/"+exp.ID.String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "name,Age\nB,35\nC,40\n", rec.Body.String())
	assert.Equal(t, `attachment; filename=people.csv`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	rec = ts.do(http.MethodGet, base+"/archive", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "people.csv", zr.File[0].Name)

	rec = ts.do(http.MethodGet, base+"/history?limit=3", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		Events []history.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist.Events, 3)
	assert.Equal(t, history.ActionPackage, hist.Events[0].Action)
}

func TestHistoryIsSessionScoped(t *testing.T) {
	ts := newTestServer(t)

	first := ts.session()
	ts.upload(first, map[string]string{"payroll.csv": "name,salary\nAda,100\n"}, "payroll.csv")
	fid := ts.upload(first, map[string]string{"staff.csv": "name\nAda\n"}, "staff.csv").Files[0].File.ID
	rec := ts.json(http.MethodPost, "/api/sessions/"+first+"/files/"+fid+"/filter", filterRequest{Expression: "name == 'Ada'"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	second := ts.session()
	rec = ts.do(http.MethodGet, "/api/sessions/"+second+"/history", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "payroll.csv")
	assert.NotContains(t, body, first)
	assert.NotContains(t, body, second)
	assert.NotContains(t, body, "sessionId")

	var hist struct {
		Events []history.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist.Events, 1)
	assert.Equal(t, history.ActionSessionStart, hist.Events[0].Action)

	rec = ts.do(http.MethodGet, "/api/sessions/"+first+"/history", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "payroll.csv")
	assert.Contains(t, rec.Body.String(), `"detail":"name == ?"`)
	assert.NotContains(t, rec.Body.String(), "Ada")

	// The cross-session listing does not exist without API keys.
	rec = ts.do(http.MethodGet, "/api/history", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/sessions/nope/history", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SES001", decodeError(t, rec).Code)
}

func TestDownloadFilenameEncoding(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.session()
	base := "/api/sessions/" + sid

	for _, tt := range []struct {
		upload string
		header string
		want   string
	}{
		{"q1 report.csv", `attachment; filename="q1 report.csv"`, "q1 report.csv"},
		{`say "hi".csv`, `attachment; filename="say \"hi\".csv"`, `say "hi".csv`},
		{"résumé.csv", `attachment; filename*=utf-8''r%C3%A9sum%C3%A9.csv`, "résumé.csv"},
	} {
		t.Run(tt.want, func(t *testing.T) {
			report := ts.upload(sid, map[string]string{tt.upload: "a\n1\n"}, tt.upload)
			require.NotNil(t, report.Files[0].File, "%+v", report.Files[0].Error)

			rec := ts.json(http.MethodPost, base+"/files/"+report.Files[0].File.ID+"/convert", convertRequest{Format: "csv"})
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			var exp core.ExportRecord
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exp))

			rec = ts.do(http.MethodGet, base+"/exports/"+exp.ID.String(), nil, "")
			require.Equal(t, http.StatusOK, rec.Code)
			header := rec.Header().Get("Content-Disposition")
			assert.Equal(t, tt.header, header)

			disp, params, err := mime.ParseMediaType(header)
			require.NoError(t, err)
			assert.Equal(t, "attachment", disp)
			assert.Equal(t, tt.want, params["filename"])
		})
	}
}

func TestEmptyArchiveIsConflict(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.session()

	rec := ts.do(http.MethodGet, "/api/sessions/"+sid+"/archive", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "EXP002", body.Code)
	assert.Equal(t, "warning", body.Level)
}

func TestInvalidFilter(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.session()
	report := ts.upload(sid, map[string]string{"a.csv": "x\n1\n"}, "a.csv")
	fid := report.Files[0].File.ID

	rec := ts.json(http.MethodPost, "/api/sessions/"+sid+"/files/"+fid+"/filter", filterRequest{Expression: "x >"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "XFM001", decodeError(t, rec).Code)

	rec = ts.do(http.MethodPost, "/api/sessions/"+sid+"/files/"+fid+"/filter", strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/sessions/nope/files", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SES001", decodeError(t, rec).Code)

	sid := ts.session()
	rec = ts.do(http.MethodGet, "/api/sessions/"+sid+"/files/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "XFM003", decodeError(t, rec).Code)

	rec = ts.do(http.MethodGet, "/api/sessions/"+sid+"/exports/not-a-number", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "EXP003", decodeError(t, rec).Code)
}

func TestUnsupportedConvertFormat(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.session()
	report := ts.upload(sid, map[string]string{"a.csv": "x\n1\n"}, "a.csv")

	rec := ts.json(http.MethodPost, "/api/sessions/"+sid+"/files/"+report.Files[0].File.ID+"/convert", convertRequest{Format: "pdf"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE006", decodeError(t, rec).Code)
}

func TestUploadWithoutFiles(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.session()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "x"))
	require.NoError(t, mw.Close())

	rec := ts.do(http.MethodPost, "/api/sessions/"+sid+"/files", &buf, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE004", decodeError(t, rec).Code)
}

func TestEndSession(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.session()

	rec := ts.do(http.MethodDelete, "/api/sessions/"+sid, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/sessions/"+sid, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.Security.RequireAPIKey = true
		c.Security.APIKeys = []string{"secret"}
	})

	rec := ts.do(http.MethodGet, "/api/status", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-API-Key", "secret")
	out := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)

	// Pages stay public.
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/healthz", nil, "").Code)

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/history", nil, "").Code)
	req = httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("X-API-Key", "secret")
	out = httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)
	assert.Contains(t, out.Body.String(), `"events"`)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.Rate.Enabled = true
		c.Rate.RequestsPerMinute = 2
	})

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/healthz", nil, "").Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/healthz", nil, "").Code)

	rec := ts.do(http.MethodGet, "/api/status", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.Security.CORSOrigins = []string{"https://app.example.com"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/status", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHTMXErrorFragment(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/nope/files", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `class="alert alert-error"`)
	assert.Contains(t, rec.Body.String(), "SES001")
}

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(1, rateWindow)
	now := rl.now()
	rl.now = func() time.Time { return now }

	ok, _ := rl.allow("a")
	assert.True(t, ok)
	ok, wait := rl.allow("a")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))

	ok, _ = rl.allow("b")
	assert.True(t, ok, "limits are per client")

	now = now.Add(rateWindow + time.Second)
	ok, _ = rl.allow("a")
	assert.True(t, ok, "window resets")
}
