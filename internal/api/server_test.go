package api

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"troupe/internal/auth"
	"troupe/internal/config"
	"troupe/internal/game"
	"troupe/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	catalog, err := game.NewCatalog(game.DefaultRoster())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	bal := game.DefaultBalance()
	bal.StarterGirlID = "mira"
	st := store.NewMemory()
	svc := game.NewService(st, catalog, bal, nil).
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }).
		WithRand(rand.New(rand.NewSource(11)))
	srv := New(config.APIConfig{}, nil, auth.NewManager(st), svc)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var out map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return resp, out
}

func startPlayer(t *testing.T, ts *httptest.Server, playerID string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/players", "", map[string]string{"player_id": playerID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status=%d body=%v", resp.StatusCode, body)
	}
	var token string
	if err := json.Unmarshal(body["token"], &token); err != nil {
		t.Fatalf("token: %v", err)
	}
	return token
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestStartIssuesUsableToken(t *testing.T) {
	ts := newTestServer(t)
	token := startPlayer(t, ts, "alice")
	if !strings.HasPrefix(token, "alice.") {
		t.Fatalf("token=%q", token)
	}

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/profile", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile status=%d body=%v", resp.StatusCode, body)
	}
	var p game.Profile
	raw, _ := json.Marshal(body)
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatalf("profile decode: %v", err)
	}
	if p.PlayerID != "alice" || p.Currency != 500 || len(p.Collection) != 1 {
		t.Fatalf("profile=%+v", p)
	}
}

func TestStartDuplicateConflicts(t *testing.T) {
	ts := newTestServer(t)
	startPlayer(t, ts, "alice")
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/players", "", map[string]string{"player_id": "alice"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status=%d want 409", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/v1/profile", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token status=%d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/v1/profile", "alice.bogus", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status=%d", resp.StatusCode)
	}
}

func TestRollEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := startPlayer(t, ts, "alice")

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/gacha/roll", token, map[string]int{"times": 3})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%v", resp.StatusCode, body)
	}
	var res game.GachaResult
	raw, _ := json.Marshal(body)
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Pulls) != 3 || res.Cost != 300 || res.Currency != 200 {
		t.Fatalf("result=%+v", res)
	}

	// 200 coins left, a 3-draw costs 300.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/gacha/roll", token, map[string]int{"times": 3})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("broke status=%d want 400", resp.StatusCode)
	}
}

func TestRollRejectsUnknownFields(t *testing.T) {
	ts := newTestServer(t)
	token := startPlayer(t, ts, "alice")
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/gacha/roll", token, map[string]int{"count": 3})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", resp.StatusCode)
	}
}

func TestMarketAndWorkFlow(t *testing.T) {
	ts := newTestServer(t)
	token := startPlayer(t, ts, "alice")

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/market", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("market status=%d", resp.StatusCode)
	}
	var set game.MarketSet
	raw, _ := json.Marshal(body)
	if err := json.Unmarshal(raw, &set); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(set.Postings) == 0 {
		t.Fatalf("empty board")
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/market/work", token,
		map[string]string{"job_id": "J99", "girl_uid": "mira-1"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown job status=%d want 404", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/market/work", token,
		map[string]string{"job_id": set.Postings[0].JobID, "girl_uid": "mira-1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("work status=%d body=%v", resp.StatusCode, body)
	}
	var res game.WorkResult
	raw, _ = json.Marshal(body)
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Stamina != 11 {
		t.Fatalf("stamina=%d want 11", res.Stamina)
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/market/regenerate", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("regenerate status=%d", resp.StatusCode)
	}
	var fresh game.MarketSet
	raw, _ = json.Marshal(body)
	if err := json.Unmarshal(raw, &fresh); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(fresh.Postings) != len(set.Postings) {
		t.Fatalf("fresh=%d want %d", len(fresh.Postings), len(set.Postings))
	}
}

func TestUpgradeAndDismantleEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := startPlayer(t, ts, "alice")

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/girls/mira-1/upgrade", token,
		map[string]string{"tier": "girl"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upgrade status=%d body=%v", resp.StatusCode, body)
	}
	var up game.UpgradeResult
	raw, _ := json.Marshal(body)
	if err := json.Unmarshal(raw, &up); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if up.Report.Level != 2 || up.Cost != 165 {
		t.Fatalf("upgrade=%+v", up)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/girls/nobody-1/dismantle", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown girl status=%d want 404", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/girls/mira-1/dismantle", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dismantle status=%d body=%v", resp.StatusCode, body)
	}
	var dm game.DismantleResult
	raw, _ = json.Marshal(body)
	if err := json.Unmarshal(raw, &dm); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dm.Payout != 50+2*20 {
		t.Fatalf("payout=%d", dm.Payout)
	}
}
