package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/lumenworks/ideaengine/internal/agent"
	"github.com/lumenworks/ideaengine/internal/bus"
	"github.com/lumenworks/ideaengine/internal/campaign"
	"github.com/lumenworks/ideaengine/internal/config"
	"github.com/lumenworks/ideaengine/internal/engine"
	"github.com/lumenworks/ideaengine/internal/ideas"
	"github.com/lumenworks/ideaengine/internal/schedule"
)

type memKV struct {
	data map[string]string
}

func newMemKV() *memKV { return &memKV{data: make(map[string]string)} }

func (m *memKV) Get(key string) (string, error) { return m.data[key], nil }
func (m *memKV) Set(key, value string) error {
	m.data[key] = value
	return nil
}
func (m *memKV) SetMany(pairs map[string]string) error {
	for k, v := range pairs {
		m.data[k] = v
	}
	return nil
}

type scriptedInvoker struct {
	envelopes map[string]*agent.Envelope
}

func (f *scriptedInvoker) Invoke(_ context.Context, _, agentID string) (*agent.Envelope, error) {
	if env, ok := f.envelopes[agentID]; ok {
		return env, nil
	}
	return &agent.Envelope{Success: false, Error: "unscripted"}, nil
}

func batchPayload(count int) *agent.Envelope {
	ideaList := make([]any, 0, count)
	for i := 0; i < count; i++ {
		ideaList = append(ideaList, map[string]any{
			"title":                fmt.Sprintf("Idea %d", i+1),
			"prompt_suggestion":    "Do the thing.",
			"tools":                []any{"Gmail"},
			"hours_saved_per_week": 2.0,
			"category":             "Productivity",
			"benefit_statement":    "Saves time.",
		})
	}
	data, _ := json.Marshal(map[string]any{
		"ideas":                 ideaList,
		"campaign_subject_line": "Fresh Ideas",
		"total_ideas":           count,
	})
	return &agent.Envelope{Success: true, Response: &agent.Payload{Result: string(data)}}
}

func testServer(t *testing.T, inv agent.Invoker, withSchedule bool) (*httptest.Server, *engine.Engine, *schedule.Service) {
	t.Helper()
	cfg := config.DefaultConfig()
	kv := newMemKV()
	n := 0
	newID := func() string { n++; return fmt.Sprintf("id-%d", n) }
	eng := engine.NewWithOptions(cfg, inv, campaign.NewLedger(kv, newID), campaign.NewCounter(kv), engine.Options{
		Now:     func() time.Time { return time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC) },
		NewID:   newID,
		Notices: bus.NewNoticeBus(16),
	})

	var sched *schedule.Service
	if withSchedule {
		sched = schedule.NewService(cfg.Schedule, filepath.Join(t.TempDir(), "schedule.json"))
		if err := sched.Start(context.Background()); err != nil {
			t.Fatalf("schedule Start: %v", err)
		}
		t.Cleanup(sched.Stop)
	}

	srv := NewServer(cfg, eng, sched)
	mux, err := srv.routes()
	if err != nil {
		t.Fatalf("routes: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.broadcastNotices(ctx)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, eng, sched
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func postJSON(t *testing.T, url string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp
}

func TestServeIndex(t *testing.T) {
	ts, _, _ := testServer(t, &scriptedInvoker{}, false)
	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("GET / status = %d, want 200", resp.StatusCode)
	}
}

func TestGenerateAndState(t *testing.T) {
	inv := &scriptedInvoker{envelopes: map[string]*agent.Envelope{
		config.DefaultManagerAgentID: batchPayload(3),
	}}
	ts, _, _ := testServer(t, inv, false)

	var batch ideas.Batch
	resp := postJSON(t, ts.URL+"/api/generate", nil, &batch)
	if resp.StatusCode != 200 {
		t.Fatalf("generate status = %d", resp.StatusCode)
	}
	if len(batch.Ideas) != 3 {
		t.Errorf("ideas = %d, want 3", len(batch.Ideas))
	}

	var state stateResponse
	getJSON(t, ts.URL+"/api/state", &state)
	if state.Status != engine.StatusGenerated {
		t.Errorf("status = %q", state.Status)
	}
	if state.SubjectLine != "Fresh Ideas" {
		t.Errorf("subject = %q", state.SubjectLine)
	}
	if len(state.Categories) != 1 || state.Categories[0] != "Productivity" {
		t.Errorf("categories = %v", state.Categories)
	}
}

func TestGenerateFailureMapsToBadGateway(t *testing.T) {
	inv := &scriptedInvoker{envelopes: map[string]*agent.Envelope{
		config.DefaultManagerAgentID: {Success: false, Error: "quota"},
	}}
	ts, _, _ := testServer(t, inv, false)

	resp := postJSON(t, ts.URL+"/api/generate", nil, nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestSendValidationMapsToBadRequest(t *testing.T) {
	ts, _, _ := testServer(t, &scriptedInvoker{}, false)

	resp := postJSON(t, ts.URL+"/api/send", sendRequest{Recipients: "  "}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty recipients status = %d, want 400", resp.StatusCode)
	}
	resp = postJSON(t, ts.URL+"/api/send", sendRequest{Recipients: "a@x.com"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("no ideas status = %d, want 400", resp.StatusCode)
	}
}

func TestGenerateThenSendFlow(t *testing.T) {
	inv := &scriptedInvoker{envelopes: map[string]*agent.Envelope{
		config.DefaultManagerAgentID: batchPayload(2),
		config.DefaultEmailAgentID: {
			Success:  true,
			Response: &agent.Payload{Result: `{"email_sent": true, "recipient_count": 2}`},
		},
	}}
	ts, _, _ := testServer(t, inv, false)

	postJSON(t, ts.URL+"/api/generate", nil, nil)
	var result engine.SendResult
	resp := postJSON(t, ts.URL+"/api/send", sendRequest{Recipients: "a@x.com, b@x.com"}, &result)
	if resp.StatusCode != 200 {
		t.Fatalf("send status = %d", resp.StatusCode)
	}
	if result.Record.Status != campaign.StatusSent {
		t.Errorf("record status = %q", result.Record.Status)
	}

	var records []campaign.Record
	getJSON(t, ts.URL+"/api/campaigns", &records)
	if len(records) != 1 || records[0].Status != campaign.StatusSent {
		t.Errorf("campaigns = %+v", records)
	}
}

func TestCampaignsFilterAndSampleMode(t *testing.T) {
	ts, _, _ := testServer(t, &scriptedInvoker{}, false)

	var plain []campaign.Record
	getJSON(t, ts.URL+"/api/campaigns", &plain)
	if len(plain) != 0 {
		t.Errorf("plain campaigns = %d, want 0", len(plain))
	}

	var sampled []campaign.Record
	getJSON(t, ts.URL+"/api/campaigns?sample=1", &sampled)
	if len(sampled) != len(campaign.SampleCampaigns) {
		t.Errorf("sampled campaigns = %d, want %d", len(sampled), len(campaign.SampleCampaigns))
	}

	var filtered []campaign.Record
	getJSON(t, ts.URL+"/api/campaigns?sample=1&category=Finance", &filtered)
	for _, rec := range filtered {
		found := false
		for _, idea := range rec.Ideas {
			if idea.Category == "Finance" {
				found = true
			}
		}
		if !found {
			t.Errorf("record %s has no Finance idea", rec.ID)
		}
	}
}

func TestResendEndpoints(t *testing.T) {
	inv := &scriptedInvoker{envelopes: map[string]*agent.Envelope{
		config.DefaultManagerAgentID: batchPayload(1),
	}}
	ts, eng, _ := testServer(t, inv, false)

	postJSON(t, ts.URL+"/api/generate", nil, nil)
	recs := eng.History("", "all", false)
	if len(recs) != 1 {
		t.Fatalf("records = %d", len(recs))
	}

	var rec campaign.Record
	resp := postJSON(t, ts.URL+"/api/campaigns/"+recs[0].ID+"/resend", nil, &rec)
	if resp.StatusCode != 200 {
		t.Errorf("resend status = %d", resp.StatusCode)
	}
	if rec.ID != recs[0].ID {
		t.Errorf("resend returned %q, want %q", rec.ID, recs[0].ID)
	}

	resp = postJSON(t, ts.URL+"/api/campaigns/ghost/resend", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown resend status = %d, want 404", resp.StatusCode)
	}

	textResp, err := http.Get(ts.URL + "/api/campaigns/" + recs[0].ID + "/text")
	if err != nil {
		t.Fatal(err)
	}
	defer textResp.Body.Close()
	if ct := textResp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
}

func TestEditAndRemoveIdeaEndpoints(t *testing.T) {
	inv := &scriptedInvoker{envelopes: map[string]*agent.Envelope{
		config.DefaultManagerAgentID: batchPayload(2),
	}}
	ts, eng, _ := testServer(t, inv, false)
	postJSON(t, ts.URL+"/api/generate", nil, nil)

	ideaID := eng.View(false).Ideas[0].ID
	patch := map[string]any{"title": "Renamed"}
	body, _ := json.Marshal(patch)
	req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/api/ideas/"+ideaID, bytes.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("patch status = %d", resp.StatusCode)
	}
	if got := eng.View(false).Ideas[0].Title; got != "Renamed" {
		t.Errorf("title = %q", got)
	}

	del, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/ideas/"+ideaID, nil)
	resp, err = http.DefaultClient.Do(del)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	if got := len(eng.View(false).Ideas); got != 1 {
		t.Errorf("ideas = %d, want 1", got)
	}
}

func TestScheduleEndpoints(t *testing.T) {
	ts, _, _ := testServer(t, &scriptedInvoker{}, true)

	var schedResp scheduleResponse
	resp := getJSON(t, ts.URL+"/api/schedule", &schedResp)
	if resp.StatusCode != 200 {
		t.Fatalf("schedule status = %d", resp.StatusCode)
	}
	if schedResp.Schedule.ID != "daily-ideas" {
		t.Errorf("schedule id = %q", schedResp.Schedule.ID)
	}

	var paused schedule.Schedule
	postJSON(t, ts.URL+"/api/schedule/pause", nil, &paused)
	if paused.IsActive {
		t.Error("schedule still active after pause")
	}

	var resumed schedule.Schedule
	postJSON(t, ts.URL+"/api/schedule/resume", nil, &resumed)
	if !resumed.IsActive {
		t.Error("schedule inactive after resume")
	}
}

func TestScheduleEndpointsWithoutService(t *testing.T) {
	ts, _, _ := testServer(t, &scriptedInvoker{}, false)
	resp := getJSON(t, ts.URL+"/api/schedule", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestNoticeBroadcastOverWebSocket(t *testing.T) {
	inv := &scriptedInvoker{envelopes: map[string]*agent.Envelope{
		config.DefaultManagerAgentID: batchPayload(1),
	}}
	ts, _, _ := testServer(t, inv, false)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	defer conn.CloseNow()

	time.Sleep(100 * time.Millisecond)
	postJSON(t, ts.URL+"/api/generate", nil, nil)

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("ws read: %v", err)
	}
	var notice bus.Notice
	if err := json.Unmarshal(data, &notice); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if notice.Level != bus.LevelSuccess {
		t.Errorf("level = %q, want success", notice.Level)
	}
	if !strings.Contains(notice.Text, "Generated 1 fresh ideas") {
		t.Errorf("text = %q", notice.Text)
	}
}
