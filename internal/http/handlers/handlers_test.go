package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-report-bot/internal/collector"
	"github.com/tbourn/go-report-bot/internal/domain"
	"github.com/tbourn/go-report-bot/internal/report"
	"github.com/tbourn/go-report-bot/internal/services"
)

// ---------- stubs ----------

type stubRecSvc struct {
	gotDay      string
	gotPage     int
	gotPageSize int
	items       []domain.Record
	total       int64
	err         error
	count       int64
	maxTS       *time.Time
	statsErr    error
}

func (s *stubRecSvc) ListPage(_ context.Context, day string, page, pageSize int) ([]domain.Record, int64, error) {
	s.gotDay, s.gotPage, s.gotPageSize = day, page, pageSize
	return s.items, s.total, s.err
}

func (s *stubRecSvc) Stats(context.Context, string) (int64, *time.Time, error) {
	return s.count, s.maxTS, s.statsErr
}

type stubReportSvc struct {
	r     report.Report
	parts []string
	err   error
}

func (s stubReportSvc) Today(context.Context) (report.Report, []string, error) {
	return s.r, s.parts, s.err
}

type stubCollectSvc struct {
	res collector.PassResult
	err error
}

func (s stubCollectSvc) Collect(context.Context) (collector.PassResult, error) { return s.res, s.err }

func newRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/records", h.ListRecords)
	r.GET("/report/today", h.TodayReport)
	r.POST("/collect", h.Collect)
	return r
}

func do(r http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

// ---------- records ----------

func TestListRecords_PaginationAndClamp(t *testing.T) {
	ts := time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC)
	rec := &stubRecSvc{
		items: []domain.Record{{ID: "r1", Code: "20250101"}},
		total: 45, count: 45, maxTS: &ts,
	}
	r := newRouter(New(rec, stubReportSvc{}, stubCollectSvc{}))

	w := do(r, http.MethodGet, "/records?day=2025-01-01&page=2&page_size=500", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if rec.gotDay != "2025-01-01" || rec.gotPage != 2 || rec.gotPageSize != 100 {
		t.Fatalf("unexpected service args: day=%q page=%d size=%d", rec.gotDay, rec.gotPage, rec.gotPageSize)
	}
	var resp ListRecordsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(resp.Records) != 1 || resp.Pagination.Total != 45 || resp.Pagination.TotalPages != 1 || resp.Pagination.HasNext {
		t.Fatalf("unexpected response: %+v", resp)
	}
	want := fmt.Sprintf(`W/"records:2025-01-01:45:%d"`, ts.UnixNano())
	if got := w.Header().Get("ETag"); got != want {
		t.Fatalf("ETag = %q; want %q", got, want)
	}
}

func TestListRecords_NotModified(t *testing.T) {
	rec := &stubRecSvc{count: 0}
	r := newRouter(New(rec, stubReportSvc{}, stubCollectSvc{}))

	w := do(r, http.MethodGet, "/records", nil)
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	w = do(r, http.MethodGet, "/records", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("status=%d; want 304", w.Code)
	}
}

func TestListRecords_BadDay(t *testing.T) {
	rec := &stubRecSvc{statsErr: services.ErrInvalidDay}
	r := newRouter(New(rec, stubReportSvc{}, stubCollectSvc{}))
	w := do(r, http.MethodGet, "/records?day=hom-nay", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d; want 400", w.Code)
	}
}

func TestListRecords_StoreError(t *testing.T) {
	rec := &stubRecSvc{statsErr: errors.New("db down"), err: errors.New("db down")}
	r := newRouter(New(rec, stubReportSvc{}, stubCollectSvc{}))
	w := do(r, http.MethodGet, "/records", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d; want 500", w.Code)
	}
	if w.Header().Get("ETag") != "" {
		t.Fatalf("no ETag expected when stats failed")
	}
	var er ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &er)
	if er.Code != ErrCodeListFailed {
		t.Fatalf("code=%q; want %q", er.Code, ErrCodeListFailed)
	}
}

// ---------- report ----------

func TestTodayReport_JSONAndText(t *testing.T) {
	rs := stubReportSvc{
		r:     report.Report{Day: "2025-01-01", RosterSize: 3, Percent: 67},
		parts: []string{"BÁO CÁO 5S - 01/01/2025", "part two"},
	}
	r := newRouter(New(&stubRecSvc{}, rs, stubCollectSvc{}))

	w := do(r, http.MethodGet, "/report/today", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var resp TodayReportResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Report.Percent != 67 || len(resp.Messages) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	w = do(r, http.MethodGet, "/report/today?format=text", nil)
	if !strings.HasPrefix(w.Body.String(), "BÁO CÁO 5S") || !strings.Contains(w.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("unexpected text response: %q (%s)", w.Body.String(), w.Header().Get("Content-Type"))
	}
}

func TestTodayReport_Error(t *testing.T) {
	r := newRouter(New(&stubRecSvc{}, stubReportSvc{err: errors.New("roster unreadable")}, stubCollectSvc{}))
	w := do(r, http.MethodGet, "/report/today", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d; want 500", w.Code)
	}
}

// ---------- collect ----------

func TestCollect_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		svc  stubCollectSvc
		want int
	}{
		{"ok", stubCollectSvc{res: collector.PassResult{Accepted: 1, Fetched: 2}}, http.StatusOK},
		{"busy", stubCollectSvc{err: services.ErrCollectBusy}, http.StatusConflict},
		{"transport", stubCollectSvc{err: fmt.Errorf("%w: fetch updates: timeout", collector.ErrTransport)}, http.StatusBadGateway},
		{"store", stubCollectSvc{err: fmt.Errorf("%w: read cursor", collector.ErrStore)}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(New(&stubRecSvc{}, stubReportSvc{}, tc.svc))
			w := do(r, http.MethodPost, "/collect", nil)
			if w.Code != tc.want {
				t.Fatalf("status=%d; want %d (body %s)", w.Code, tc.want, w.Body.String())
			}
		})
	}

	r := newRouter(New(&stubRecSvc{}, stubReportSvc{}, stubCollectSvc{res: collector.PassResult{Accepted: 1, Fetched: 2}}))
	var resp CollectResponse
	if err := json.Unmarshal(do(r, http.MethodPost, "/collect", nil).Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Accepted != 1 || resp.Fetched != 2 {
		t.Fatalf("unexpected body: %+v", resp)
	}
}
