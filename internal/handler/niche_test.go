package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5"

	"github.com/mathieu-neron/nichescope/internal/cluster"
	"github.com/mathieu-neron/nichescope/internal/middleware"
	"github.com/mathieu-neron/nichescope/internal/model"
	"github.com/mathieu-neron/nichescope/internal/service"
	"github.com/mathieu-neron/nichescope/internal/youtube"
)

const (
	ownerID    = "3f2b8c9e-1d4a-4e6b-9f0a-2c5d7e8f9a1b"
	strangerID = "abcdef0123456789"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type stubSource struct{ videos []model.Video }

func (s stubSource) SearchVideos(context.Context, string, youtube.SearchOptions) ([]model.Video, error) {
	return s.videos, nil
}

type memHistory struct{ runs map[string]*model.AnalysisRun }

func (m *memHistory) Save(_ context.Context, run *model.AnalysisRun) error {
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *memHistory) FindByID(_ context.Context, id string) (*model.AnalysisRun, error) {
	run, ok := m.runs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *run
	cp.Niches = append([]model.NicheAnalysis(nil), run.Niches...)
	return &cp, nil
}

func (m *memHistory) ListByUser(_ context.Context, userID string, _, _ int) ([]model.AnalysisSummary, error) {
	out := []model.AnalysisSummary{}
	for _, r := range m.runs {
		if r.UserID == userID {
			out = append(out, model.AnalysisSummary{ID: r.ID, Query: r.Query})
		}
	}
	return out, nil
}

func (m *memHistory) Delete(_ context.Context, id, userID string) error {
	if r, ok := m.runs[id]; !ok || r.UserID != userID {
		return pgx.ErrNoRows
	}
	delete(m.runs, id)
	return nil
}

func (m *memHistory) UpdateNiches(context.Context, string, []model.NicheAnalysis, time.Time) error {
	return nil
}

func (m *memHistory) NotifyRefresh(context.Context, string) error { return nil }

func daysAgo(d int) time.Time { return now.AddDate(0, 0, -d) }

func newTestApp(videos []model.Video) (*fiber.App, *memHistory) {
	history := &memHistory{runs: map[string]*model.AnalysisRun{}}
	svc := service.NewNicheService(
		stubSource{videos: videos},
		cluster.NewChain(cluster.NewKeywordClusterer()),
		service.NewMetricsServiceAt(now),
		history,
		service.NewCacheServiceWithClient(nil),
		nil,
	)
	h := NewNicheHandler(svc)

	app := fiber.New()
	api := app.Group("/api/niches")
	requireUser := middleware.RequireUser()
	api.Post("/score", h.Score)
	api.Post("/analyze", requireUser, h.Analyze)
	api.Get("/history", requireUser, h.History)
	api.Get("/history/:id", requireUser, h.GetRun)
	api.Delete("/history/:id", requireUser, h.DeleteRun)
	api.Post("/history/:id/refresh", requireUser, h.Refresh)
	return app, history
}

func do(t *testing.T, app *fiber.App, method, path, userID, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, body)
	}
	return env.Error.Code
}

func TestScoreEndpoint(t *testing.T) {
	app, _ := newTestApp(nil)

	published := daysAgo(10).Format(time.RFC3339)
	older := daysAgo(40).Format(time.RFC3339)
	body := `{"videos":[
		{"id":"v1","channelId":"a","viewCount":1000,"subscriberCount":5000,"publishedAt":"` + published + `"},
		{"id":"v2","channelId":"b","viewCount":2000,"subscriberCount":200000,"publishedAt":"` + older + `"}
	]}`

	status, data := do(t, app, http.MethodPost, "/api/niches/score", "", body)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, body = %s", status, data)
	}

	var resp model.ScoreResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Videos) != 2 || resp.Videos[0].VPH <= 0 {
		t.Errorf("videos not enriched: %+v", resp.Videos)
	}
	m := resp.Metrics
	if m.UniqueChannels != 2 || m.SaturationScore != 50 || m.TrendScore != -50 || m.TotalViews != 3000 {
		t.Errorf("unexpected metrics: %+v", m)
	}
}

func TestScoreEndpoint_BadRequests(t *testing.T) {
	app, _ := newTestApp(nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"videos":`, "INVALID_BODY"},
		{"empty list", `{"videos":[]}`, "MISSING_FIELDS"},
		{"too many", `{"videos":[` + strings.TrimSuffix(strings.Repeat(`{"id":"x"},`, middleware.MaxScoreVideos+1), ",") + `]}`, "TOO_MANY_VIDEOS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := do(t, app, http.MethodPost, "/api/niches/score", "", tt.body)
			if status != fiber.StatusBadRequest {
				t.Errorf("status = %d, want 400", status)
			}
			if got := errorCode(t, data); got != tt.code {
				t.Errorf("code = %s, want %s", got, tt.code)
			}
		})
	}
}

func analyzeVideos() []model.Video {
	return []model.Video{
		{ID: "aaaaaaaaaa1", Title: "Minecraft Survival Guide for Beginners", ChannelID: "c1", ViewCount: 90000, SubscriberCount: 5000, PublishedAt: daysAgo(3)},
		{ID: "aaaaaaaaaa2", Title: "Hardcore Minecraft Survival: Day 100", ChannelID: "c2", ViewCount: 400000, SubscriberCount: 250000, PublishedAt: daysAgo(20)},
		{ID: "aaaaaaaaaa3", Title: "Minecraft survival base tour", ChannelID: "c1", ViewCount: 30000, SubscriberCount: 5000, PublishedAt: daysAgo(45)},
		{ID: "bbbbbbbbbb1", Title: "Sourdough bread recipe at home", ChannelID: "c3", ViewCount: 12000, SubscriberCount: 8000, PublishedAt: daysAgo(5)},
		{ID: "bbbbbbbbbb2", Title: "Easy sourdough starter recipe", ChannelID: "c4", ViewCount: 7000, SubscriberCount: 60000, PublishedAt: daysAgo(12)},
	}
}

func TestAnalyzeAndHistoryFlow(t *testing.T) {
	app, history := newTestApp(analyzeVideos())

	status, data := do(t, app, http.MethodPost, "/api/niches/analyze", "", `{"query":"minecraft"}`)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("anonymous analyze status = %d, want 401", status)
	}

	status, data = do(t, app, http.MethodPost, "/api/niches/analyze", ownerID, `{"query":"  minecraft  ","specificity":"Sub-Niche"}`)
	if status != fiber.StatusOK {
		t.Fatalf("analyze status = %d, body = %s", status, data)
	}
	var run model.AnalysisRun
	if err := json.Unmarshal(data, &run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.Query != "minecraft" || run.Specificity != model.SpecificitySub || len(run.Niches) != 2 {
		t.Fatalf("unexpected run: query=%q spec=%q niches=%d", run.Query, run.Specificity, len(run.Niches))
	}
	if _, ok := history.runs[run.ID]; !ok {
		t.Fatal("run not persisted")
	}

	status, data = do(t, app, http.MethodGet, "/api/niches/history/"+run.ID+"?sort=channels&minOpportunity=1", ownerID, "")
	if status != fiber.StatusOK {
		t.Fatalf("get status = %d, body = %s", status, data)
	}
	var got model.AnalysisRun
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := 1; i < len(got.Niches); i++ {
		if got.Niches[i-1].Metrics.UniqueChannels > got.Niches[i].Metrics.UniqueChannels {
			t.Error("niches should be sorted by channel count ascending")
		}
	}

	if status, _ := do(t, app, http.MethodGet, "/api/niches/history/"+run.ID, strangerID, ""); status != fiber.StatusNotFound {
		t.Errorf("stranger get status = %d, want 404", status)
	}
	if status, data := do(t, app, http.MethodGet, "/api/niches/history/"+run.ID+"?sort=random", ownerID, ""); status != fiber.StatusBadRequest {
		t.Errorf("bad sort status = %d, body = %s", status, data)
	}

	status, _ = do(t, app, http.MethodPost, "/api/niches/history/"+run.ID+"/refresh", ownerID, "")
	if status != fiber.StatusAccepted {
		t.Errorf("refresh status = %d, want 202", status)
	}

	status, _ = do(t, app, http.MethodDelete, "/api/niches/history/"+run.ID, ownerID, "")
	if status != fiber.StatusOK {
		t.Errorf("delete status = %d, want 200", status)
	}
	status, data = do(t, app, http.MethodDelete, "/api/niches/history/"+run.ID, ownerID, "")
	if status != fiber.StatusNotFound || errorCode(t, data) != "NOT_FOUND" {
		t.Errorf("second delete status = %d, body = %s", status, data)
	}
}

func TestAnalyze_Validation(t *testing.T) {
	app, _ := newTestApp(analyzeVideos())

	for _, body := range []string{`{"query":""}`, `{"query":"ok","specificity":"nano"}`, `{"query":"ok","maxResults":9000}`} {
		status, data := do(t, app, http.MethodPost, "/api/niches/analyze", ownerID, body)
		if status != fiber.StatusBadRequest || errorCode(t, data) != "INVALID_FIELD" {
			t.Errorf("body %s: status = %d, data = %s", body, status, data)
		}
	}
}

func TestAnalyze_NoVideos(t *testing.T) {
	app, _ := newTestApp(nil)

	status, data := do(t, app, http.MethodPost, "/api/niches/analyze", ownerID, `{"query":"nothing here"}`)
	if status != fiber.StatusNotFound || errorCode(t, data) != "NO_VIDEOS" {
		t.Errorf("status = %d, body = %s", status, data)
	}
}

func TestGetRun_InvalidID(t *testing.T) {
	app, _ := newTestApp(nil)

	status, _ := do(t, app, http.MethodGet, "/api/niches/history/not-a-uuid", ownerID, "")
	if status != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestSanitizeEndpoint(t *testing.T) {
	tests := map[string]string{
		"/api/niches/history/abc":         "/api/niches/history/:id",
		"/api/niches/history/abc/refresh": "/api/niches/history/:id/refresh",
		"/api/competitors/UC1":            "/api/competitors/:channelId",
		"/api/competitors/UC1/snapshots":  "/api/competitors/:channelId/snapshots",
		"/api/niches/score":               "/api/niches/score",
	}
	for in, want := range tests {
		if got := sanitizeEndpoint(in); got != want {
			t.Errorf("sanitizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}
