package www

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/angas/solarforecast-go/cache"
	"github.com/angas/solarforecast-go/config"
	"github.com/angas/solarforecast-go/database"
	"github.com/angas/solarforecast-go/forecast"
	"github.com/angas/solarforecast-go/pipeline"
	"github.com/angas/solarforecast-go/www/chartjs"
	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeLogs struct {
	entries []database.LogEntryRow
	minLvl  slog.Level
	page    int
}

func (f *fakeLogs) GetLogEntries(_ context.Context, minLvl slog.Level, page, pageSize int) ([]database.LogEntryRow, error) {
	f.minLvl, f.page = minLvl, page
	if len(f.entries) > pageSize {
		return f.entries[:pageSize], nil
	}
	return f.entries, nil
}

// solarCSV spans two calendar years so the monthly pivot has gaps.
func solarCSV(n int) string {
	var b strings.Builder
	b.WriteString("Date and Time,Expected Value kWh,PR %\n")
	start := time.Date(2022, 12, 1, 12, 0, 0, 0, time.UTC)
	for i := range n {
		fmt.Fprintf(&b, "%s,%d,80\n", start.AddDate(0, 0, i).Format("2006-01-02 15:04"), 10+i%5)
	}
	return b.String()
}

type testServer struct {
	*httptest.Server
	svc    *pipeline.Service
	logs   *fakeLogs
	client *http.Client
	hub    *Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	c := cache.New(discard, cache.NewMemoryStore(), forecast.NewAdditive(forecast.DefaultAdditiveOptions()), "")
	svc := pipeline.New(discard, c, nil, 60)
	logs := &fakeLogs{}

	days := 7
	cnfg := &config.AppConfig{
		Api:      config.AppConfigApi{SessionKey: "0123456789abcdef0123456789abcdef"},
		Forecast: config.AppConfigForecast{DefaultWindowDays: &days},
	}
	s, err := NewServer(discard, svc, logs, cnfg, "test")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go s.hub.Run(ctx)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testServer{Server: srv, svc: svc, logs: logs, client: &http.Client{Jar: jar}, hub: s.hub}
}

func (ts *testServer) get(t *testing.T, path string) (int, string) {
	t.Helper()
	res, err := ts.client.Get(ts.URL + path)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, string(body)
}

func (ts *testServer) upload(t *testing.T, field, filename, content string) (int, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	res, err := ts.client.Post(ts.URL+"/upload", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer res.Body.Close()
	out, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, string(out)
}

func TestEndpointsWithoutData(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.get(t, "/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Upload a CSV")

	for _, path := range []string{"/chart/energy", "/chart/monthly", "/chart/forecast", "/chart/components", "/api/window"} {
		code, _ := ts.get(t, path)
		assert.Equal(t, http.StatusNotFound, code, path)
	}

	code, body = ts.get(t, "/summary")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "next 7 days")

	res, err := ts.client.Post(ts.URL+"/retrain", "", nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	code, _ = ts.get(t, "/upload")
	assert.Equal(t, http.StatusMethodNotAllowed, code)

	code, _ = ts.get(t, "/static/app.js")
	assert.Equal(t, http.StatusOK, code)
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.upload(t, "file", "solar.csv", solarCSV(45))
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body, "solar.csv")
	assert.Contains(t, body, "fitted")

	report, ok := ts.svc.Latest()
	require.True(t, ok)
	assert.Len(t, report.Series, 45)

	code, body = ts.get(t, "/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "solar.csv")

	code, body = ts.upload(t, "file", "again.csv", solarCSV(45))
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "loaded from cache")

	res, err := ts.client.Post(ts.URL+"/retrain", "", nil)
	require.NoError(t, err)
	out, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(out), "Retrained")
}

func TestUploadRejected(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name     string
		field    string
		content  string
		contains string
	}{
		{"missing column", "file", "Date and Time,PR %\n2023-01-01 12:00,80\n", "Expected Value kWh"},
		{"bad number", "file", "Date and Time,Expected Value kWh,PR %\n2023-01-01 12:00,abc,80\n", "abc"},
		{"not a number", "file", "Date and Time,Expected Value kWh,PR %\n2023-01-01 12:00,NaN,80\n", "NaN"},
		{"bad timestamp", "file", "Date and Time,Expected Value kWh,PR %\nyesterday,1,80\n", "yesterday"},
		{"only zero rows", "file", "Date and Time,Expected Value kWh,PR %\n2023-01-01 12:00,0,0\n", "no data"},
		{"wrong field", "data", solarCSV(3), "missing CSV file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := ts.upload(t, tt.field, "bad.csv", tt.content)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Contains(t, body, tt.contains)
		})
	}

	_, ok := ts.svc.Latest()
	assert.False(t, ok)
}

func TestCharts(t *testing.T) {
	ts := newTestServer(t)
	code, _ := ts.upload(t, "file", "solar.csv", solarCSV(45))
	require.Equal(t, http.StatusOK, code)

	chart := func(name string) chartjs.Chart {
		code, body := ts.get(t, "/chart/"+name)
		require.Equal(t, http.StatusOK, code)
		var c chartjs.Chart
		require.NoError(t, json.Unmarshal([]byte(body), &c))
		return c
	}

	energy := chart("energy")
	assert.Equal(t, chartjs.TypeLine, energy.Type)
	assert.Len(t, energy.Data.Labels, 45)
	assert.Equal(t, "2022-12-01", energy.Data.Labels[0])
	require.Len(t, energy.Data.Datasets, 1)
	assert.InDelta(t, 8.0, *energy.Data.Datasets[0].Data[0], 1e-9)

	monthly := chart("monthly")
	assert.Equal(t, chartjs.TypeBar, monthly.Type)
	assert.Len(t, monthly.Data.Labels, 12)
	require.Len(t, monthly.Data.Datasets, 2)
	assert.Equal(t, "2022", monthly.Data.Datasets[0].Label)
	assert.Nil(t, monthly.Data.Datasets[0].Data[0], "january 2022 has no readings")
	assert.NotNil(t, monthly.Data.Datasets[0].Data[11])
	assert.NotNil(t, monthly.Data.Datasets[1].Data[0])
	assert.Nil(t, monthly.Data.Datasets[1].Data[5])

	fc := chart("forecast")
	assert.Len(t, fc.Data.Labels, 45+60)
	require.Len(t, fc.Data.Datasets, 4)
	assert.NotNil(t, fc.Data.Datasets[0].Data[44])
	assert.Nil(t, fc.Data.Datasets[0].Data[45], "no actual value after the last observation")
	assert.Equal(t, "-1", fc.Data.Datasets[3].Fill)

	comps := chart("components")
	require.NotEmpty(t, comps.Data.Datasets)
	assert.Equal(t, "trend", comps.Data.Datasets[0].Label)

	code, body := ts.get(t, "/monthly")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "<td>2022</td>")
	assert.Contains(t, body, "<td>-</td>")
}

func TestForecastChartRange(t *testing.T) {
	ts := newTestServer(t)
	code, _ := ts.upload(t, "file", "solar.csv", solarCSV(45))
	require.Equal(t, http.StatusOK, code)

	code, body := ts.get(t, "/chart/forecast?from=2023-01-10&to=2023-01-19")
	require.Equal(t, http.StatusOK, code, body)
	var fc chartjs.Chart
	require.NoError(t, json.Unmarshal([]byte(body), &fc))
	require.Len(t, fc.Data.Labels, 10)
	assert.Equal(t, "2023-01-10", fc.Data.Labels[0])
	assert.Equal(t, "2023-01-19", fc.Data.Labels[9])
	for _, ds := range fc.Data.Datasets {
		assert.Len(t, ds.Data, 10, ds.Label)
	}
	assert.NotNil(t, fc.Data.Datasets[0].Data[4])
	assert.Nil(t, fc.Data.Datasets[0].Data[5])

	code, body = ts.get(t, "/chart/forecast?from=2023-03-01")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal([]byte(body), &fc))
	assert.Len(t, fc.Data.Labels, 15)

	for _, q := range []string{"from=yesterday", "to=2023-13-01", "from=2023-02-01&to=2023-01-01"} {
		code, _ := ts.get(t, "/chart/forecast?"+q)
		assert.Equal(t, http.StatusBadRequest, code, q)
	}
}

func TestSummaryRemembersDays(t *testing.T) {
	ts := newTestServer(t)
	code, _ := ts.upload(t, "file", "solar.csv", solarCSV(45))
	require.Equal(t, http.StatusOK, code)

	code, body := ts.get(t, "/summary")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "(7 days)")
	assert.Contains(t, body, "2023-01-15 to 2023-01-21")

	for _, days := range []string{"0", "366", "-3", "ten"} {
		code, body := ts.get(t, "/summary?days="+days)
		assert.Equal(t, http.StatusBadRequest, code, days)
		assert.Contains(t, body, "between 1 and 365")
	}

	code, body = ts.get(t, "/summary?days=90")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "(90 days)")
	assert.Contains(t, body, "only 60 predictions")

	code, body = ts.get(t, "/summary")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "(90 days)")
}

func TestWindowAPI(t *testing.T) {
	ts := newTestServer(t)
	code, _ := ts.upload(t, "file", "solar.csv", solarCSV(45))
	require.Equal(t, http.StatusOK, code)
	report, _ := ts.svc.Latest()

	var w windowResponse
	code, body := ts.get(t, "/api/window?days=10")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal([]byte(body), &w))
	assert.Equal(t, report.ID, w.ReportID)
	assert.Equal(t, "2023-01-15", w.Start)
	assert.Equal(t, "2023-01-24", w.End)
	assert.Equal(t, 10, w.Entries)
	assert.False(t, w.Truncated)

	expected, err := report.Window(10)
	require.NoError(t, err)
	assert.InDelta(t, expected.Total, w.Total, 1e-9)

	code, body = ts.get(t, "/api/window?days=5&start=2023-01-01")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal([]byte(body), &w))
	assert.Equal(t, "2023-01-01", w.Start)
	assert.Equal(t, 5, w.Entries)

	code, _ = ts.get(t, "/api/window?days=0")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = ts.get(t, "/api/window?start=01/01/2023")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLog(t *testing.T) {
	ts := newTestServer(t)
	ts.logs.entries = []database.LogEntryRow{
		{Timestamp: time.Now(), Level: slog.LevelWarn, Message: "disk almost full", Attrs: `{"free":"1%"}`},
	}

	code, body := ts.get(t, "/log")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "<title>Log</title>")

	code, body = ts.get(t, "/log?page=2&pageSize=10&level=warn")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "disk almost full")
	assert.Equal(t, slog.LevelWarn, ts.logs.minLvl)
	assert.Equal(t, 2, ts.logs.page)

	code, _ = ts.get(t, "/log?page=1&level=loud")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t)
	ts.get(t, "/summary")

	code, body := ts.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `solarforecast_http_requests_total{handler="summary",method="GET"}`)
}

func TestWebsocketNotifiesReports(t *testing.T) {
	ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return ts.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	code, _ := ts.upload(t, "file", "solar.csv", solarCSV(20))
	require.Equal(t, http.StatusOK, code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var event ReportEvent
	require.NoError(t, json.Unmarshal(msg, &event))
	report, _ := ts.svc.Latest()
	assert.Equal(t, "report", event.Event)
	assert.Equal(t, report.ID, event.ID)
	assert.Equal(t, "solar.csv", event.Source)
	assert.Equal(t, string(cache.OriginFitted), event.Origin)
}
