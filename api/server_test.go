package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wricardo/mcp-training/memorygame/currency"
	"github.com/wricardo/mcp-training/memorygame/game/config"
	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/service"
	"github.com/wricardo/mcp-training/memorygame/game/session"
	"github.com/wricardo/mcp-training/memorygame/transport/websocket"
)

// MockGameService implements service.GameService for testing
type MockGameService struct {
	CreateSessionFunc   func(ctx context.Context, configName string) (*service.SessionInfo, error)
	GetSessionFunc      func(ctx context.Context, sessionID string) (*service.SessionInfo, error)
	ListSessionsFunc    func(ctx context.Context) ([]*service.SessionInfo, error)
	DeleteSessionFunc   func(ctx context.Context, sessionID string) error
	SelectCardFunc      func(ctx context.Context, sessionID string, index int, reset bool) (*service.SelectResult, error)
	ResetFunc           func(ctx context.Context, sessionID string) (*engine.GameState, error)
	GetGameStateFunc    func(ctx context.Context, sessionID string) (*engine.GameState, error)
	GetEventHistoryFunc func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error)
	ListConfigsFunc     func(ctx context.Context) ([]*service.ConfigInfo, error)
	LoadConfigFunc      func(ctx context.Context, configName string) (*engine.GameConfig, error)
	SaveConfigFunc      func(ctx context.Context, configName string, cfg *engine.GameConfig) error
}

func (m *MockGameService) CreateSession(ctx context.Context, configName string) (*service.SessionInfo, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, configName)
	}
	return &service.SessionInfo{ID: "test-session", ConfigName: configName, CreatedAt: time.Now()}, nil
}

func (m *MockGameService) GetSession(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return &service.SessionInfo{ID: sessionID, ConfigName: "test-config", CreatedAt: time.Now()}, nil
}

func (m *MockGameService) ListSessions(ctx context.Context) ([]*service.SessionInfo, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx)
	}
	return []*service.SessionInfo{}, nil
}

func (m *MockGameService) DeleteSession(ctx context.Context, sessionID string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockGameService) SelectCard(ctx context.Context, sessionID string, index int, reset bool) (*service.SelectResult, error) {
	if m.SelectCardFunc != nil {
		return m.SelectCardFunc(ctx, sessionID, index, reset)
	}
	return &service.SelectResult{Accepted: true, Index: index, GameState: &engine.GameState{Status: engine.Playing}}, nil
}

func (m *MockGameService) Reset(ctx context.Context, sessionID string) (*engine.GameState, error) {
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, sessionID)
	}
	return &engine.GameState{Status: engine.Playing}, nil
}

func (m *MockGameService) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	if m.GetGameStateFunc != nil {
		return m.GetGameStateFunc(ctx, sessionID)
	}
	return &engine.GameState{}, nil
}

func (m *MockGameService) GetEventHistory(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
	if m.GetEventHistoryFunc != nil {
		return m.GetEventHistoryFunc(ctx, sessionID, opts)
	}
	return &service.HistoryResponse{Events: []engine.Event{}, Page: opts.Page, PageSize: opts.Limit}, nil
}

func (m *MockGameService) ListConfigs(ctx context.Context) ([]*service.ConfigInfo, error) {
	if m.ListConfigsFunc != nil {
		return m.ListConfigsFunc(ctx)
	}
	return []*service.ConfigInfo{}, nil
}

func (m *MockGameService) LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error) {
	if m.LoadConfigFunc != nil {
		return m.LoadConfigFunc(ctx, configName)
	}
	return engine.DefaultGameConfig(), nil
}

func (m *MockGameService) SaveConfig(ctx context.Context, configName string, cfg *engine.GameConfig) error {
	if m.SaveConfigFunc != nil {
		return m.SaveConfigFunc(ctx, configName, cfg)
	}
	return nil
}

// fakeCurrency implements CurrencyService for testing
type fakeCurrency struct {
	err      error
	rate     float64
	lastDate string
}

func (f *fakeCurrency) Currencies(ctx context.Context) ([]currency.Currency, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []currency.Currency{{Code: "EUR", Name: "Euro"}, {Code: "USD", Name: "United States Dollar"}}, nil
}

func (f *fakeCurrency) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return amount * f.rate, nil
}

func (f *fakeCurrency) ConvertOnDate(ctx context.Context, amount float64, from, to, date string) (float64, error) {
	f.lastDate = date
	return f.Convert(ctx, amount, from, to)
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
}

func TestCreateSession(t *testing.T) {
	var got string
	mock := &MockGameService{
		CreateSessionFunc: func(ctx context.Context, configName string) (*service.SessionInfo, error) {
			got = configName
			if configName == "missing" {
				return nil, fmt.Errorf("config 'missing' not found: %w", service.ErrConfigNotFound)
			}
			return &service.SessionInfo{ID: "ab12", ConfigName: configName}, nil
		},
	}
	server := NewServer(mock, nil)

	t.Run("with config_id", func(t *testing.T) {
		w := doRequest(t, server, "POST", "/api/sessions", map[string]string{"config_id": "animals"})
		if w.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d", w.Code)
		}
		if got != "animals" {
			t.Errorf("Expected config animals, got %s", got)
		}
		var info service.SessionInfo
		decode(t, w, &info)
		if info.ID != "ab12" {
			t.Errorf("Expected ID ab12, got %s", info.ID)
		}
	})

	t.Run("legacy config_name", func(t *testing.T) {
		doRequest(t, server, "POST", "/api/sessions", map[string]string{"config_name": "planets"})
		if got != "planets" {
			t.Errorf("Expected config planets, got %s", got)
		}
	})

	t.Run("empty body uses default", func(t *testing.T) {
		w := doRequest(t, server, "POST", "/api/sessions", nil)
		if w.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d", w.Code)
		}
		if got != "" {
			t.Errorf("Expected empty config name, got %s", got)
		}
	})

	t.Run("unknown config", func(t *testing.T) {
		w := doRequest(t, server, "POST", "/api/sessions", map[string]string{"config_id": "missing"})
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})
}

func TestListSessions(t *testing.T) {
	now := time.Now()
	mock := &MockGameService{
		ListSessionsFunc: func(ctx context.Context) ([]*service.SessionInfo, error) {
			return []*service.SessionInfo{
				{ID: "old", CreatedAt: now.Add(-3 * time.Hour), LastAccessedAt: now.Add(-time.Minute)},
				{ID: "mid", CreatedAt: now.Add(-2 * time.Hour), LastAccessedAt: now.Add(-time.Hour)},
				{ID: "new", CreatedAt: now.Add(-time.Hour), LastAccessedAt: now},
			}, nil
		},
	}
	server := NewServer(mock, nil)

	tests := []struct {
		name  string
		query string
		want  []string
		total int
	}{
		{"default accessed desc", "", []string{"new", "old", "mid"}, 3},
		{"created asc", "?sort=created&order=asc", []string{"old", "mid", "new"}, 3},
		{"limited", "?sort=created&limit=1", []string{"new"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, server, "GET", "/api/sessions"+tt.query, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			var resp struct {
				Count    int                    `json:"count"`
				Total    int                    `json:"total"`
				Sessions []*service.SessionInfo `json:"sessions"`
			}
			decode(t, w, &resp)
			if resp.Total != tt.total || resp.Count != len(tt.want) {
				t.Errorf("Expected count %d total %d, got %d/%d", len(tt.want), tt.total, resp.Count, resp.Total)
			}
			for i, id := range tt.want {
				if resp.Sessions[i].ID != id {
					t.Errorf("Position %d: expected %s, got %s", i, id, resp.Sessions[i].ID)
				}
			}
		})
	}
}

func TestGetAndDeleteSession(t *testing.T) {
	mock := &MockGameService{
		GetSessionFunc: func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
			if sessionID == "gone" {
				return nil, fmt.Errorf("session not found: %w", session.ErrSessionNotFound)
			}
			return &service.SessionInfo{ID: sessionID}, nil
		},
		DeleteSessionFunc: func(ctx context.Context, sessionID string) error {
			if sessionID == "gone" {
				return session.ErrSessionNotFound
			}
			return nil
		},
	}
	server := NewServer(mock, nil)

	if w := doRequest(t, server, "GET", "/api/sessions/ab12", nil); w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w := doRequest(t, server, "GET", "/api/sessions/gone", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
	if w := doRequest(t, server, "DELETE", "/api/sessions/ab12", nil); w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w := doRequest(t, server, "DELETE", "/api/sessions/gone", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestSelect(t *testing.T) {
	var gotIndex int
	var gotReset bool
	mock := &MockGameService{
		SelectCardFunc: func(ctx context.Context, sessionID string, index int, reset bool) (*service.SelectResult, error) {
			gotIndex, gotReset = index, reset
			switch {
			case sessionID == "gone":
				return nil, fmt.Errorf("session not found: %w", session.ErrSessionNotFound)
			case index >= 12:
				return nil, fmt.Errorf("%w: %d", engine.ErrCardIndexOutOfRange, index)
			}
			return &service.SelectResult{
				Accepted:  index != 5,
				Index:     index,
				GameState: &engine.GameState{Status: engine.Playing, Attempts: 1},
			}, nil
		},
	}
	server := NewServer(mock, nil)

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
	}{
		{"accepted", "/api/sessions/ab12/select", map[string]interface{}{"index": 0}, http.StatusOK},
		{"ignored is still ok", "/api/sessions/ab12/select", map[string]interface{}{"index": 5}, http.StatusOK},
		{"with reset", "/api/sessions/ab12/select", map[string]interface{}{"index": 2, "reset": true}, http.StatusOK},
		{"out of range", "/api/sessions/ab12/select", map[string]interface{}{"index": 12}, http.StatusBadRequest},
		{"missing index", "/api/sessions/ab12/select", map[string]interface{}{}, http.StatusBadRequest},
		{"invalid body", "/api/sessions/ab12/select", "{", http.StatusBadRequest},
		{"unknown session", "/api/sessions/gone/select", map[string]interface{}{"index": 1}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, server, "POST", tt.path, tt.body)
			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}

	doRequest(t, server, "POST", "/api/sessions/ab12/select", map[string]interface{}{"index": 7, "reset": true})
	if gotIndex != 7 || !gotReset {
		t.Errorf("Expected index 7 with reset, got %d/%v", gotIndex, gotReset)
	}
}

func TestReset(t *testing.T) {
	mock := &MockGameService{
		ResetFunc: func(ctx context.Context, sessionID string) (*engine.GameState, error) {
			if sessionID == "gone" {
				return nil, session.ErrSessionNotFound
			}
			return &engine.GameState{Status: engine.Playing, RunID: "run-2"}, nil
		},
	}
	server := NewServer(mock, nil)

	w := doRequest(t, server, "POST", "/api/sessions/ab12/reset", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp struct {
		State engine.GameState `json:"state"`
	}
	decode(t, w, &resp)
	if resp.State.RunID != "run-2" {
		t.Errorf("Expected run-2, got %s", resp.State.RunID)
	}

	if w := doRequest(t, server, "POST", "/api/sessions/gone/reset", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestGetEvents(t *testing.T) {
	var got service.HistoryOptions
	mock := &MockGameService{
		GetEventHistoryFunc: func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
			got = opts
			return &service.HistoryResponse{Events: []engine.Event{{Type: engine.EventRender}}, TotalEvents: 1}, nil
		},
	}
	server := NewServer(mock, nil)

	w := doRequest(t, server, "GET", "/api/sessions/ab12/events", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if got.Page != 1 || got.Limit != 20 || got.Order != "desc" || got.IncludeTicks {
		t.Errorf("Unexpected default options: %+v", got)
	}

	doRequest(t, server, "GET", "/api/sessions/ab12/events?page=3&limit=5&order=asc&ticks=true", nil)
	if got.Page != 3 || got.Limit != 5 || got.Order != "asc" || !got.IncludeTicks {
		t.Errorf("Unexpected parsed options: %+v", got)
	}

	doRequest(t, server, "GET", "/api/sessions/ab12/events?page=-1&limit=abc&order=sideways", nil)
	if got.Page != 1 || got.Limit != 20 || got.Order != "desc" {
		t.Errorf("Invalid values should fall back to defaults: %+v", got)
	}
}

func TestConfigs(t *testing.T) {
	var savedID string
	mock := &MockGameService{
		ListConfigsFunc: func(ctx context.Context) ([]*service.ConfigInfo, error) {
			return []*service.ConfigInfo{{ConfigID: "classic", Name: "Classic", Pairs: 6}}, nil
		},
		LoadConfigFunc: func(ctx context.Context, name string) (*engine.GameConfig, error) {
			if name != "classic" {
				return nil, service.ErrConfigNotFound
			}
			return engine.DefaultGameConfig(), nil
		},
		SaveConfigFunc: func(ctx context.Context, name string, cfg *engine.GameConfig) error {
			savedID = name
			if len(cfg.Cards) < 2 {
				return fmt.Errorf("%w: too few cards", config.ErrInvalidConfig)
			}
			return nil
		},
	}
	server := NewServer(mock, nil)

	t.Run("list", func(t *testing.T) {
		w := doRequest(t, server, "GET", "/api/configs", nil)
		var configs []*service.ConfigInfo
		decode(t, w, &configs)
		if len(configs) != 1 || configs[0].ConfigID != "classic" {
			t.Errorf("Unexpected configs: %+v", configs)
		}
	})

	t.Run("get", func(t *testing.T) {
		if w := doRequest(t, server, "GET", "/api/configs/classic", nil); w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
		if w := doRequest(t, server, "GET", "/api/configs/nope", nil); w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})

	t.Run("create derives config id from name", func(t *testing.T) {
		body := map[string]interface{}{
			"name":        "My Set",
			"description": "Mine",
			"cards":       []map[string]string{{"name": "A"}, {"name": "B"}},
		}
		w := doRequest(t, server, "POST", "/api/configs", body)
		if w.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
		}
		if savedID != "my_set" {
			t.Errorf("Expected config ID my_set, got %s", savedID)
		}
	})

	t.Run("create rejects invalid set", func(t *testing.T) {
		body := map[string]interface{}{"name": "Tiny", "cards": []map[string]string{{"name": "A"}}}
		if w := doRequest(t, server, "POST", "/api/configs", body); w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("create requires name", func(t *testing.T) {
		if w := doRequest(t, server, "POST", "/api/configs", map[string]string{}); w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})
}

func TestCurrencyEndpoints(t *testing.T) {
	fake := &fakeCurrency{rate: 1.1}
	server := NewServer(&MockGameService{}, nil, WithCurrency(fake))

	t.Run("list", func(t *testing.T) {
		w := doRequest(t, server, "GET", "/api/currencies", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var resp struct {
			Count      int                 `json:"count"`
			Currencies []currency.Currency `json:"currencies"`
		}
		decode(t, w, &resp)
		if resp.Count != 2 || resp.Currencies[0].Code != "EUR" {
			t.Errorf("Unexpected currencies: %+v", resp)
		}
	})

	t.Run("convert", func(t *testing.T) {
		w := doRequest(t, server, "GET", "/api/convert?amount=100&from=eur&to=usd", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp map[string]interface{}
		decode(t, w, &resp)
		if resp["text"] != "100 EUR = 110.00 USD" {
			t.Errorf("Unexpected text: %v", resp["text"])
		}
	})

	t.Run("convert on date", func(t *testing.T) {
		w := doRequest(t, server, "GET", "/api/convert?amount=2&from=EUR&to=USD&date=2024-01-31", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		if fake.lastDate != "2024-01-31" {
			t.Errorf("Expected historical conversion, got date %q", fake.lastDate)
		}
	})

	t.Run("bad input", func(t *testing.T) {
		for _, path := range []string{
			"/api/convert?amount=abc&from=EUR&to=USD",
			"/api/convert?amount=1&from=EUR",
		} {
			if w := doRequest(t, server, "GET", path, nil); w.Code != http.StatusBadRequest {
				t.Errorf("%s: expected status 400, got %d", path, w.Code)
			}
		}
	})

	t.Run("invalid date", func(t *testing.T) {
		failing := NewServer(&MockGameService{}, nil, WithCurrency(&fakeCurrency{err: fmt.Errorf("%w: tomorrow", currency.ErrInvalidDate)}))
		if w := doRequest(t, failing, "GET", "/api/convert?amount=1&from=EUR&to=USD&date=2999-01-01", nil); w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("remote failure", func(t *testing.T) {
		remote := &currency.RemoteError{Op: currency.OpConvert, StatusCode: 500, Err: errors.New("boom")}
		failing := NewServer(&MockGameService{}, nil, WithCurrency(&fakeCurrency{err: remote}))
		if w := doRequest(t, failing, "GET", "/api/convert?amount=1&from=EUR&to=USD", nil); w.Code != http.StatusBadGateway {
			t.Errorf("Expected status 502, got %d", w.Code)
		}
		if w := doRequest(t, failing, "GET", "/api/currencies", nil); w.Code != http.StatusBadGateway {
			t.Errorf("Expected status 502, got %d", w.Code)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		bare := NewServer(&MockGameService{}, nil)
		if w := doRequest(t, bare, "GET", "/api/currencies", nil); w.Code != http.StatusNotImplemented {
			t.Errorf("Expected status 501, got %d", w.Code)
		}
	})
}

func TestHealthAndMetrics(t *testing.T) {
	server := NewServer(&MockGameService{}, nil)

	w := doRequest(t, server, "GET", "/health", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("Unexpected health response: %d %s", w.Code, w.Body.String())
	}

	w = doRequest(t, server, "GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "memorygame_sessions_created_total") {
		t.Error("Expected memorygame collectors in metrics output")
	}
}

func TestWebSocketEndpoint(t *testing.T) {
	mock := &MockGameService{
		GetSessionFunc: func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
			return nil, session.ErrSessionNotFound
		},
	}
	server := NewServer(mock, websocket.NewHub())

	if w := doRequest(t, server, "GET", "/ws", nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without session, got %d", w.Code)
	}
	if w := doRequest(t, server, "GET", "/ws?session=nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown session, got %d", w.Code)
	}
}

func TestEndToEnd(t *testing.T) {
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	defer zerolog.SetGlobalLevel(prev)

	configManager, err := config.NewManager("../configs")
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}
	clock := engine.NewManualClock()
	sessions := session.NewManager(session.WithEngineOptions(engine.WithClock(clock)))
	defer sessions.Close()
	server := NewServer(service.NewGameService(sessions, configManager), nil)

	w := doRequest(t, server, "POST", "/api/sessions", map[string]string{"config_id": "quick"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var info service.SessionInfo
	decode(t, w, &info)
	if info.GameState.TotalCards != 4 {
		t.Fatalf("Expected 4 cards, got %d", info.GameState.TotalCards)
	}
	for _, card := range info.GameState.Cards {
		if card.Identity != "" {
			t.Error("Face-down identities must not be exposed")
		}
	}

	sess, err := sessions.Get(info.ID)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	positions := make(map[string][]int)
	for i, card := range sess.Engine.Board().Cards() {
		positions[card.Identity()] = append(positions[card.Identity()], i)
	}

	selectPath := "/api/sessions/" + info.ID + "/select"
	for _, pair := range positions {
		for _, index := range pair {
			w := doRequest(t, server, "POST", selectPath, map[string]int{"index": index})
			var result service.SelectResult
			decode(t, w, &result)
			if !result.Accepted {
				t.Fatalf("Selection of %d should be accepted: %s", index, result.Message)
			}
		}
		clock.Advance(350 * time.Millisecond)
	}
	clock.Advance(engine.PollInterval)

	w = doRequest(t, server, "GET", "/api/sessions/"+info.ID+"/state", nil)
	var state engine.GameState
	decode(t, w, &state)
	if state.Status != engine.Won {
		t.Fatalf("Expected won, got %s", state.Status)
	}
	if state.Attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", state.Attempts)
	}
	if state.Message != "Done in 2 attempts" {
		t.Errorf("Unexpected victory message: %s", state.Message)
	}

	w = doRequest(t, server, "GET", "/api/sessions/"+info.ID+"/events?limit=1", nil)
	var history service.HistoryResponse
	decode(t, w, &history)
	if len(history.Events) != 1 || history.Events[0].Type != engine.EventVictory {
		t.Errorf("Expected latest event to be victory, got %+v", history.Events)
	}

	// Further selections are ignored with an explanation
	w = doRequest(t, server, "POST", selectPath, map[string]int{"index": 0})
	var ignored service.SelectResult
	decode(t, w, &ignored)
	if ignored.Accepted || !strings.Contains(ignored.Message, "already won") {
		t.Errorf("Expected ignored selection after win, got %+v", ignored)
	}
}
