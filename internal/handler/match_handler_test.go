package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/freeeve/minimalists/api/internal/auth"
	"github.com/freeeve/minimalists/api/internal/service"
)

func newTestMatchHandler(t *testing.T, opts service.Options) (*MatchHandler, *service.MatchService) {
	t.Helper()
	svc := service.NewMatchService(nil, nil, nil, auth.NewJWTManager("test-secret", time.Hour), opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		svc.Stop(ctx)
	})
	return NewMatchHandler(svc), svc
}

func reqWithSeat(method, path, body string, seat *auth.Seat) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if seat != nil {
		req = req.WithContext(auth.WithSeat(req.Context(), *seat))
	}
	return req
}

func createHumanMatch(t *testing.T, h *MatchHandler) service.CreatedMatch {
	t.Helper()
	req := reqWithSeat(http.MethodPost, "/matches", `{"name":"duel","factions":[{"policy":"human"},{"policy":"idle"}],"neutrals":2}`, nil)
	rec := httptest.NewRecorder()
	h.CreateMatch(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created service.CreatedMatch
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return created
}

func TestCreateMatch(t *testing.T) {
	h, _ := newTestMatchHandler(t, service.Options{MaxDuration: time.Hour})
	created := createHumanMatch(t, h)
	if created.ID == "" {
		t.Error("expected a match id")
	}
	if created.Seats["red"] == "" {
		t.Errorf("expected a red seat token, got %v", created.Seats)
	}
}

func TestCreateMatchBadRequests(t *testing.T) {
	h, _ := newTestMatchHandler(t, service.Options{})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"no factions", `{"name":"x"}`},
		{"one faction", `{"factions":[{"policy":"easy"}]}`},
		{"missing policy", `{"factions":[{"policy":"easy"},{"name":"b"}]}`},
		{"bad color", `{"factions":[{"policy":"easy","color":"red"},{"policy":"easy"}]}`},
		{"unknown policy", `{"factions":[{"policy":"easy"},{"policy":"genius"}]}`},
		{"too many neutrals", `{"factions":[{"policy":"easy"},{"policy":"easy"}],"neutrals":500}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.CreateMatch(rec, reqWithSeat(http.MethodPost, "/matches", tt.body, nil))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestListMatches(t *testing.T) {
	h, _ := newTestMatchHandler(t, service.Options{MaxDuration: time.Hour})

	rec := httptest.NewRecorder()
	h.ListMatches(rec, reqWithSeat(http.MethodGet, "/matches", "", nil))
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("expected [], got %s", body)
	}

	created := createHumanMatch(t, h)
	rec = httptest.NewRecorder()
	h.ListMatches(rec, reqWithSeat(http.MethodGet, "/matches", "", nil))
	var live []service.MatchSummary
	json.Unmarshal(rec.Body.Bytes(), &live)
	if len(live) != 1 || live[0].ID != created.ID {
		t.Errorf("expected the created match, got %+v", live)
	}
}

func TestHistoryWithoutArchive(t *testing.T) {
	h, _ := newTestMatchHandler(t, service.Options{})
	rec := httptest.NewRecorder()
	h.History(rec, reqWithSeat(http.MethodGet, "/matches/history?limit=5", "", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty list, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestGetMatch(t *testing.T) {
	h, _ := newTestMatchHandler(t, service.Options{MaxDuration: time.Hour})
	created := createHumanMatch(t, h)

	req := reqWithSeat(http.MethodGet, "/matches/"+created.ID, "", nil)
	req.SetPathValue("id", created.ID)
	rec := httptest.NewRecorder()
	h.GetMatch(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snap struct {
		Constructs []json.RawMessage `json:"constructs"`
	}
	json.Unmarshal(rec.Body.Bytes(), &snap)
	if len(snap.Constructs) != 4 {
		t.Errorf("expected 4 constructs, got %d", len(snap.Constructs))
	}

	req = reqWithSeat(http.MethodGet, "/matches/nope", "", nil)
	req.SetPathValue("id", "nope")
	rec = httptest.NewRecorder()
	h.GetMatch(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestSubmitCommand(t *testing.T) {
	h, _ := newTestMatchHandler(t, service.Options{MaxDuration: time.Hour})
	created := createHumanMatch(t, h)
	red := &auth.Seat{MatchID: created.ID, FactionID: "red"}

	tests := []struct {
		name     string
		seat     *auth.Seat
		pathID   string
		body     string
		code     int
		accepted bool
	}{
		{"no seat", nil, created.ID, `{"type":"upgrade","source":"home-red"}`, http.StatusUnauthorized, false},
		{"other match", &auth.Seat{MatchID: "other", FactionID: "red"}, created.ID, `{"type":"upgrade","source":"home-red"}`, http.StatusForbidden, false},
		{"ai seat", &auth.Seat{MatchID: created.ID, FactionID: "blue"}, created.ID, `{"type":"upgrade","source":"home-blue"}`, http.StatusForbidden, false},
		{"invalid type", red, created.ID, `{"type":"nuke","source":"home-red"}`, http.StatusBadRequest, false},
		{"send without target", red, created.ID, `{"type":"send","source":"home-red"}`, http.StatusBadRequest, false},
		{"accepted send", red, created.ID, `{"type":"send","source":"home-red","target":"home-blue","fraction":0.5}`, http.StatusOK, true},
		{"rejected foreign source", red, created.ID, `{"type":"send","source":"home-blue","target":"home-red"}`, http.StatusOK, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := reqWithSeat(http.MethodPost, "/matches/"+tt.pathID+"/commands", tt.body, tt.seat)
			req.SetPathValue("id", tt.pathID)
			rec := httptest.NewRecorder()
			h.SubmitCommand(rec, req)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
			if rec.Code != http.StatusOK {
				return
			}
			var res service.CommandResult
			json.Unmarshal(rec.Body.Bytes(), &res)
			if res.Accepted != tt.accepted {
				t.Errorf("expected accepted=%v, got %+v", tt.accepted, res)
			}
		})
	}
}

func TestPauseResume(t *testing.T) {
	h, _ := newTestMatchHandler(t, service.Options{MaxDuration: time.Hour})
	created := createHumanMatch(t, h)
	seat := &auth.Seat{MatchID: created.ID, FactionID: "red"}

	call := func(fn http.HandlerFunc) int {
		req := reqWithSeat(http.MethodPost, "/matches/"+created.ID, "", seat)
		req.SetPathValue("id", created.ID)
		rec := httptest.NewRecorder()
		fn(rec, req)
		return rec.Code
	}

	if code := call(h.Pause); code != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d", code)
	}
	if code := call(h.Pause); code != http.StatusConflict {
		t.Errorf("double pause: expected 409, got %d", code)
	}
	if code := call(h.Resume); code != http.StatusOK {
		t.Errorf("resume: expected 200, got %d", code)
	}
	if code := call(h.Resume); code != http.StatusConflict {
		t.Errorf("double resume: expected 409, got %d", code)
	}
}

func TestTooManyMatches(t *testing.T) {
	h, _ := newTestMatchHandler(t, service.Options{MaxLive: 1, MaxDuration: time.Hour})
	createHumanMatch(t, h)

	rec := httptest.NewRecorder()
	h.CreateMatch(rec, reqWithSeat(http.MethodPost, "/matches", `{"factions":[{"policy":"idle"},{"policy":"idle"}]}`, nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
