// Command autoplay plays memory game sessions over the REST API with a
// perfect-memory strategy and reports the attempts each game took.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/service"
	"github.com/wricardo/mcp-training/memorygame/game/strategy"
)

// Client talks to one session of the game server
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s %s failed: %s - %s", method, path, resp.Status, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	return nil
}

func (c *Client) sessionPath(suffix string) string {
	return "/api/sessions/" + url.PathEscape(c.sessionID) + suffix
}

// CreateSession starts a new session and makes it the client's session
func (c *Client) CreateSession(ctx context.Context, configID string) (*service.SessionInfo, error) {
	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}

	var info service.SessionInfo
	if err := c.do(ctx, http.MethodPost, "/api/sessions", body, &info); err != nil {
		return nil, err
	}
	c.sessionID = info.ID
	return &info, nil
}

func (c *Client) GetState(ctx context.Context) (*engine.GameState, error) {
	var state engine.GameState
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/state"), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) Select(ctx context.Context, index int) (*service.SelectResult, error) {
	var result service.SelectResult
	body := map[string]interface{}{"index": index}
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/select"), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Reset(ctx context.Context) (*engine.GameState, error) {
	var resp struct {
		Message string            `json:"message"`
		State   *engine.GameState `json:"state"`
	}
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/reset"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.State, nil
}

// Player drives a session with a Memory strategy
type Player struct {
	client *Client
	memory *strategy.Memory
	poll   time.Duration
	// MaxSelections bounds a single game
	MaxSelections int
}

func NewPlayer(client *Client, poll time.Duration) *Player {
	return &Player{
		client:        client,
		memory:        strategy.NewMemory(),
		poll:          poll,
		MaxSelections: 1000,
	}
}

var errTooManySelections = errors.New("selection limit reached")

// Play selects cards until the current run is won and returns the final state
func (p *Player) Play(ctx context.Context) (*engine.GameState, error) {
	state, err := p.client.GetState(ctx)
	if err != nil {
		return nil, err
	}
	p.memory.Reset()

	for selections := 0; state.Status == engine.Playing; {
		if selections >= p.MaxSelections {
			return state, errTooManySelections
		}
		p.memory.Observe(state)

		index := p.memory.Next(len(state.Cards))
		if index < 0 {
			// Every pair is matched; the victory check has not run yet
			if state, err = p.refresh(ctx); err != nil {
				return nil, err
			}
			continue
		}

		result, err := p.client.Select(ctx, index)
		if err != nil {
			return nil, err
		}
		selections++
		state = result.GameState

		if !result.Accepted {
			log.Debug().Int("index", index).Str("reason", result.Message).Msg("selection ignored")
			if state, err = p.settle(ctx); err != nil {
				return nil, err
			}
			continue
		}

		p.memory.Selected(index)
		p.memory.Observe(state)
		log.Debug().Int("index", index).Str("face", state.Cards[index].Identity).Msg("card turned")

		if !p.memory.Waiting() {
			if state, err = p.settle(ctx); err != nil {
				return nil, err
			}
		}
	}
	return state, nil
}

// settle polls until no card is waiting to be compared or flipped back
func (p *Player) settle(ctx context.Context) (*engine.GameState, error) {
	for {
		state, err := p.refresh(ctx)
		if err != nil {
			return nil, err
		}
		if state.Status != engine.Playing || settled(state) {
			return state, nil
		}
	}
}

func (p *Player) refresh(ctx context.Context) (*engine.GameState, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(p.poll):
	}
	state, err := p.client.GetState(ctx)
	if err == nil {
		p.memory.Observe(state)
	}
	return state, err
}

func settled(state *engine.GameState) bool {
	if state.PendingCards > 0 {
		return false
	}
	for _, card := range state.Cards {
		if card.Flipped && !card.Matched {
			return false
		}
	}
	return true
}

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("v") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	client := NewClient(cmd.String("url"))
	log.Info().Str("url", cmd.String("url")).Msg("connecting to game server")

	if id := cmd.String("continue"); id != "" {
		client.sessionID = id
		if _, err := client.GetState(ctx); err != nil {
			return fmt.Errorf("failed to resume session %s: %w", id, err)
		}
		log.Info().Str("session", id).Msg("resuming session")
	} else {
		info, err := client.CreateSession(ctx, cmd.String("config"))
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		log.Info().Str("session", info.ID).Str("config", info.ConfigName).Msg("session created")
	}

	player := NewPlayer(client, cmd.Duration("poll"))
	for game := 1; game <= cmd.Int("games"); game++ {
		state, err := client.Reset(ctx)
		if err != nil {
			return fmt.Errorf("failed to reset: %w", err)
		}
		log.Info().Int("game", game).Int("cards", state.TotalCards).Msg("game started")

		state, err = player.Play(ctx)
		if err != nil {
			return fmt.Errorf("game %d: %w", game, err)
		}
		log.Info().
			Int("game", game).
			Int("attempts", state.Attempts).
			Str("time", state.Elapsed).
			Msg(state.Message)
	}

	log.Info().Str("session", client.sessionID).Msg("done")
	return nil
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "autoplay",
		Usage: "Play memory game sessions with perfect memory",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Game server URL", Sources: cli.EnvVars("GAME_URL")},
			&cli.StringFlag{Name: "config", Usage: "Card set to play (config_id)"},
			&cli.StringFlag{Name: "continue", Usage: "Resume playing an existing session by ID"},
			&cli.IntFlag{Name: "games", Value: 1, Usage: "Number of games to play"},
			&cli.DurationFlag{Name: "poll", Value: 100 * time.Millisecond, Usage: "State polling interval"},
			&cli.BoolFlag{Name: "v", Usage: "Verbose output"},
		},
		Action: run,
	}
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("autoplay failed")
	}
}
