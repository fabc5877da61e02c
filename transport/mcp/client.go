package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/memorygame/currency"
	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Memory Match Game",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Memory Match Game - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Every card on the board has exactly one twin. Turn cards face-up two at a
time; a matching pair stays face-up, a mismatch flips back after a short
delay. Match every pair to win, using as few attempts as possible.

AVAILABLE TOOLS:
- create_session: Create new game session
- list_sessions: List all active sessions
- get_session: Get session details
- game_state: Get the board, attempts and elapsed time
- select_card: Turn a card face-up by index
- reset_game: Shuffle and start over
- event_history: View what happened (flips, matches, mismatches)
- list_configs: List available card sets
- game_instructions: Get comprehensive game instructions and rules
- list_currencies: Currencies supported by the converter
- convert_currency: Convert an amount at the latest or a historical rate

TIP: a card's face is only visible while it is face-up. Remember what you see.`),
	)

	c.registerTools()
}

func sessionIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session with optional card set selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Card set to use, see list_configs (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the current board. Face-down cards show as [?]",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "select_card",
		Description: "Turn the card at index face-up. The second card of a pair is compared after the flip delay",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"index": map[string]interface{}{
					"type":        "integer",
					"description": "Zero-based board position, row by row",
				},
				"reset": map[string]interface{}{
					"type":        "boolean",
					"description": "Start a new run before selecting (optional)",
				},
			},
			Required: []string{"session_id", "index"},
		},
	}, c.handleSelectCard)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_game",
		Description: "Shuffle the cards and start a new run",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "event_history",
		Description: "Get the session's engine events with pagination",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number (default 1)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Events per page (default 20, max 100)",
				},
				"order": map[string]interface{}{
					"type":        "string",
					"description": "asc or desc (default desc)",
				},
				"include_ticks": map[string]interface{}{
					"type":        "boolean",
					"description": "Include clock ticks (default false)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleEventHistory)

	// Configuration
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available card sets",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get comprehensive game instructions and rules",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)

	// Currency
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_currencies",
		Description: "List the currencies supported by the converter",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListCurrencies)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "convert_currency",
		Description: "Convert an amount between currencies at the latest rate, or at the rate of a past date",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"amount": map[string]interface{}{
					"type":        "number",
					"description": "Amount to convert",
				},
				"from": map[string]interface{}{
					"type":        "string",
					"description": "Source currency code, e.g. EUR",
				},
				"to": map[string]interface{}{
					"type":        "string",
					"description": "Target currency code, e.g. USD",
				},
				"date": map[string]interface{}{
					"type":        "string",
					"description": "Historical date YYYY-MM-DD, not in the future (optional)",
				},
			},
			Required: []string{"amount", "from", "to"},
		},
	}, c.handleConvertCurrency)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiCall makes an HTTP request to the REST API
func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg reads a JSON number argument; ok is false when it is absent
func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	body := map[string]interface{}{}
	if configID := stringArg(args, "config_id"); configID != "" {
		body["config_id"] = configID
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nConfig: %s\n\n%s", info.ID, info.ConfigName, formatGameState(info.GameState))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		status := ""
		if s.GameState != nil {
			status = fmt.Sprintf(", %s, %d attempts", s.GameState.Status, s.GameState.Attempts)
		}
		result += fmt.Sprintf("- %s (Config: %s, Created: %s%s)\n",
			s.ID, s.ConfigName, s.CreatedAt.Format("15:04:05"), status)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request.GetArguments(), "session_id")

	var info service.SessionInfo
	if err := c.apiCall(ctx, "GET", "/api/sessions/"+url.PathEscape(sessionID), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&info)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request.GetArguments(), "session_id")

	var state engine.GameState
	if err := c.apiCall(ctx, "GET", "/api/sessions/"+url.PathEscape(sessionID)+"/state", nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleSelectCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := stringArg(args, "session_id")
	index, ok := intArg(args, "index")
	if !ok {
		return mcp.NewToolResultError("index is required"), nil
	}
	reset, _ := args["reset"].(bool)

	body := map[string]interface{}{
		"index": index,
		"reset": reset,
	}

	var result service.SelectResult
	if err := c.apiCall(ctx, "POST", "/api/sessions/"+url.PathEscape(sessionID)+"/select", body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSelectResult(&result)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request.GetArguments(), "session_id")

	var response struct {
		Message string            `json:"message"`
		State   *engine.GameState `json:"state"`
	}

	if err := c.apiCall(ctx, "POST", "/api/sessions/"+url.PathEscape(sessionID)+"/reset", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("%s\n\n%s", response.Message, formatGameState(response.State))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleEventHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := stringArg(args, "session_id")

	params := url.Values{}
	if page, ok := intArg(args, "page"); ok {
		params.Set("page", strconv.Itoa(page))
	}
	if limit, ok := intArg(args, "limit"); ok {
		params.Set("limit", strconv.Itoa(limit))
	}
	if order := stringArg(args, "order"); order != "" {
		params.Set("order", order)
	}
	if ticks, _ := args["include_ticks"].(bool); ticks {
		params.Set("ticks", "true")
	}

	path := "/api/sessions/" + url.PathEscape(sessionID) + "/events"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := "Available Card Sets:\n\n"
	for _, cfg := range configs {
		result += fmt.Sprintf("• %s (config_id: %s)\n  %s\n  %d pairs, %d cards in %d columns, flip %vms\n\n",
			cfg.Name, cfg.ConfigID, cfg.Description, cfg.Pairs, cfg.Cards, cfg.Columns, cfg.FlipDurationMs)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `Memory Match Game - Complete Instructions

GAME OBJECTIVE:
Find every pair of identical cards. The game is won when all cards are matched.

BOARD:
• Cards are numbered from 0, row by row. game_state prints the grid.
• [?] is a face-down card, [Name] a face-up card, (Name) a matched card.
• Every card face appears exactly twice.

TURNS:
• select_card turns one card face-up.
• After the second card of a pair, one attempt is counted and the two cards
  are compared once the flip delay (flip_duration_ms) has passed.
• Match: both cards stay face-up for the rest of the run.
• Mismatch: both cards turn face-down again after another flip delay.
• While two cards are being compared, further selections are ignored.
• Selecting a card that is already face-up or matched is ignored.

CLOCK:
• Elapsed time counts in whole seconds from the start of the run and stops at
  the moment of victory.

STRATEGY:
• The face of a card is only visible while it is face-up, so keep notes of
  every face you see in select_card results and in event_history.
• Turn an unknown card first. If its twin is already known, select the twin.
• Fewer attempts is better. A perfect memory needs at most about 1.5 attempts
  per pair on average.

TOOLS:
• create_session / list_sessions / get_session
• game_state, select_card, reset_game
• event_history (card_flipped, match, mismatch, flip_back, victory, ...)
• list_configs to pick a card set
• list_currencies / convert_currency for the exchange-rate helper`

	return mcp.NewToolResultText(instructions), nil
}

func (c *Client) handleListCurrencies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count      int                 `json:"count"`
		Currencies []currency.Currency `json:"currencies"`
	}
	if err := c.apiCall(ctx, "GET", "/api/currencies", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Supported currencies (%d):\n", response.Count)
	for _, cur := range response.Currencies {
		sb.WriteString(cur.String())
		sb.WriteByte('\n')
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleConvertCurrency(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	var amount float64
	switch v := args["amount"].(type) {
	case float64:
		amount = v
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return mcp.NewToolResultError("amount must be a number"), nil
		}
		amount = parsed
	default:
		return mcp.NewToolResultError("amount is required"), nil
	}

	params := url.Values{}
	params.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))
	params.Set("from", stringArg(args, "from"))
	params.Set("to", stringArg(args, "to"))
	if date := stringArg(args, "date"); date != "" {
		params.Set("date", date)
	}

	var response struct {
		Text string `json:"text"`
	}
	if err := c.apiCall(ctx, "GET", "/api/convert?"+params.Encode(), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response.Text), nil
}

// Formatting helpers

func formatSessionInfo(info *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\nLast accessed: %s\n\n%s",
		info.ID, info.ConfigName,
		info.CreatedAt.Format(time.RFC3339), info.LastAccessedAt.Format(time.RFC3339),
		formatGameState(info.GameState))
}

// formatGameState renders the board as a grid followed by the run summary
func formatGameState(state *engine.GameState) string {
	if state == nil {
		return "No game state"
	}

	var sb strings.Builder
	if state.ConfigName != "" {
		fmt.Fprintf(&sb, "Card set: %s\n", state.ConfigName)
	}
	fmt.Fprintf(&sb, "Status: %s | Attempts: %d | Time: %s | Matched: %d/%d\n",
		state.Status, state.Attempts, state.Elapsed, state.MatchedCards, state.TotalCards)
	if state.PendingCards > 0 {
		fmt.Fprintf(&sb, "Cards being compared: %d\n", state.PendingCards)
	}
	if state.Warning != "" {
		fmt.Fprintf(&sb, "Warning: %s\n", state.Warning)
	}
	sb.WriteString("\n")
	sb.WriteString(formatBoard(state))

	if state.Message != "" {
		fmt.Fprintf(&sb, "\n%s\n", state.Message)
	}
	if state.Victory {
		fmt.Fprintf(&sb, "\nVICTORY! All %d pairs found in %d attempts (%s)\n",
			engine.CountPairs(state.TotalCards), state.Attempts, state.Elapsed)
	}
	return sb.String()
}

func formatBoard(state *engine.GameState) string {
	columns := state.Columns
	if columns <= 0 {
		columns = len(state.Cards)
	}

	var sb strings.Builder
	for i, card := range state.Cards {
		label := "[?]"
		switch {
		case card.Matched:
			label = "(" + card.Identity + ")"
		case card.Flipped:
			label = "[" + card.Identity + "]"
		}
		fmt.Fprintf(&sb, "%2d %-14s", card.Index, label)
		if (i+1)%columns == 0 || i == len(state.Cards)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func formatSelectResult(result *service.SelectResult) string {
	var sb strings.Builder
	if result.Accepted {
		fmt.Fprintf(&sb, "Selected card %d", result.Index)
		if result.GameState != nil && result.Index >= 0 && result.Index < len(result.GameState.Cards) {
			if identity := result.GameState.Cards[result.Index].Identity; identity != "" {
				fmt.Fprintf(&sb, ": %s", identity)
			}
		}
		sb.WriteString("\n")
	} else {
		fmt.Fprintf(&sb, "Selection of card %d ignored: %s\n", result.Index, result.Message)
	}

	for _, ev := range result.Events {
		if line := formatEvent(ev); line != "" {
			sb.WriteString("  " + line + "\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(formatGameState(result.GameState))
	return sb.String()
}

func formatEvent(ev engine.Event) string {
	switch ev.Type {
	case engine.EventCardFlipped:
		return fmt.Sprintf("card %v flipped", ev.Cards)
	case engine.EventPairCompleted:
		return fmt.Sprintf("pair %v complete, attempt %d, comparing after the flip delay", ev.Cards, ev.Attempts)
	case engine.EventMatch:
		return fmt.Sprintf("match %v", ev.Cards)
	case engine.EventMismatch:
		return fmt.Sprintf("mismatch %v", ev.Cards)
	case engine.EventFlipBack:
		return fmt.Sprintf("cards %v turned face-down", ev.Cards)
	case engine.EventVictory:
		return fmt.Sprintf("victory after %d attempts", ev.Attempts)
	case engine.EventReset:
		return "new run started"
	case engine.EventWarning:
		return "warning: " + ev.Message
	case engine.EventTick:
		return fmt.Sprintf("tick %s", engine.FormatElapsed(ev.ElapsedSeconds))
	}
	return ""
}

func formatHistory(history *service.HistoryResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Events (page %d/%d, total %d):\n", history.Page, history.TotalPages, history.TotalEvents)
	for _, ev := range history.Events {
		line := formatEvent(ev)
		if line == "" {
			line = string(ev.Type)
		}
		fmt.Fprintf(&sb, "[%s] %s\n", engine.FormatElapsed(ev.ElapsedSeconds), line)
	}
	if history.HasNext {
		fmt.Fprintf(&sb, "More events on page %d\n", history.Page+1)
	}
	return sb.String()
}
