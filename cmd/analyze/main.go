// Command analyze prints quick, human-readable heuristics about the card sets
// in a configs directory: pairs, board layout, flip duration, and how many
// attempts and seconds a player with perfect memory needs, measured over
// simulated games.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/memorygame/game/config"
	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/service"
	"github.com/wricardo/mcp-training/memorygame/game/strategy"
)

// Report summarises one card set
type Report struct {
	ConfigID       string
	Name           string
	Pairs          int
	Cards          int
	Columns        int
	Rows           int
	FlipDurationMs float64
	Warning        string

	Games       int
	MinAttempts int
	MaxAttempts int
	AvgAttempts float64
	AvgSeconds  float64
}

// analyzeConfig builds a report for a card set from games simulated with
// consecutive seeds starting at seed
func analyzeConfig(info *service.ConfigInfo, cfg *engine.GameConfig, games int, seed int64) (*Report, error) {
	report := &Report{
		ConfigID:       info.ConfigID,
		Name:           cfg.Name,
		Pairs:          info.Pairs,
		Cards:          info.Cards,
		Columns:        info.Columns,
		Rows:           engine.GridRows(info.Cards, info.Columns),
		FlipDurationMs: cfg.FlipDurationMs,
		Games:          games,
	}
	if ms, warning := engine.ClampFlipDuration(cfg.FlipDurationMs); warning != nil {
		report.FlipDurationMs = ms
		report.Warning = warning.Error()
	}

	totalAttempts, totalSeconds := 0, 0
	for i := 0; i < games; i++ {
		result, err := strategy.Simulate(cfg, seed+int64(i))
		if err != nil {
			return nil, fmt.Errorf("game %d: %w", i+1, err)
		}
		if i == 0 || result.Attempts < report.MinAttempts {
			report.MinAttempts = result.Attempts
		}
		if result.Attempts > report.MaxAttempts {
			report.MaxAttempts = result.Attempts
		}
		totalAttempts += result.Attempts
		totalSeconds += result.ElapsedSeconds
	}
	if games > 0 {
		report.AvgAttempts = float64(totalAttempts) / float64(games)
		report.AvgSeconds = float64(totalSeconds) / float64(games)
	}
	return report, nil
}

// printReport writes a report in the same shape for every card set
func printReport(w io.Writer, r *Report) {
	fmt.Fprintf(w, "\n=== Analyzing %s ===\n", r.ConfigID)
	fmt.Fprintf(w, "Name: %s\n", r.Name)
	fmt.Fprintf(w, "Pairs: %d (%d cards)\n", r.Pairs, r.Cards)
	fmt.Fprintf(w, "Board: %d rows x %d columns\n", r.Rows, r.Columns)
	fmt.Fprintf(w, "Flip duration: %vms\n", r.FlipDurationMs)
	if r.Warning != "" {
		fmt.Fprintf(w, "⚠️  WARNING: %s\n", r.Warning)
	}
	if r.Games == 0 {
		return
	}
	fmt.Fprintf(w, "Perfect memory over %d games:\n", r.Games)
	fmt.Fprintf(w, "   Attempts: min %d, avg %.1f, max %d (never more than %d)\n",
		r.MinAttempts, r.AvgAttempts, r.MaxAttempts, 2*r.Pairs-1)
	fmt.Fprintf(w, "   Time: avg %s\n", engine.FormatElapsed(int(r.AvgSeconds+0.5)))
}

func run(ctx context.Context, cmd *cli.Command) error {
	manager, err := config.NewManager(cmd.String("config-dir"))
	if err != nil {
		return err
	}

	configs, err := manager.ListConfigs()
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		return fmt.Errorf("no card sets found in %s", cmd.String("config-dir"))
	}

	games := cmd.Int("games")
	for _, info := range configs {
		cfg, err := manager.LoadConfig(info.ConfigID)
		if err != nil {
			log.Error().Err(err).Str("config", info.ConfigID).Msg("failed to load card set")
			continue
		}
		report, err := analyzeConfig(info, cfg, games, cmd.Int64("seed"))
		if err != nil {
			log.Error().Err(err).Str("config", info.ConfigID).Msg("simulation failed")
			continue
		}
		printReport(cmd.Root().Writer, report)
	}
	return nil
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Print layout and difficulty heuristics for every card set",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing card sets", Sources: cli.EnvVars("CONFIG_DIR")},
			&cli.IntFlag{Name: "games", Value: 200, Usage: "Simulated games per card set"},
			&cli.Int64Flag{Name: "seed", Value: 1, Usage: "Seed of the first simulated shuffle"},
		},
		Action: run,
	}
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("analyze failed")
	}
}
