package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// GameConfig describes a card set and the messages shown while playing it
type GameConfig struct {
	Name           string  `json:"name" yaml:"name"`
	Description    string  `json:"description" yaml:"description"`
	FlipDurationMs float64 `json:"flip_duration_ms" yaml:"flip_duration_ms"`
	Cards          []Face  `json:"cards" yaml:"cards"`
	Messages       struct {
		Welcome  string `json:"welcome" yaml:"welcome"`
		Victory  string `json:"victory" yaml:"victory"`
		Match    string `json:"match" yaml:"match"`
		Mismatch string `json:"mismatch" yaml:"mismatch"`
	} `json:"messages" yaml:"messages"`
}

// ConfigurationWarning reports a configuration value that was replaced by a
// safe default instead of failing construction
type ConfigurationWarning struct {
	Field    string
	Value    float64
	Replaced float64
}

func (w *ConfigurationWarning) Error() string {
	return fmt.Sprintf("%s %v outside [%d, %d], using %v",
		w.Field, w.Value, MinFlipDurationMs, MaxFlipDurationMs, w.Replaced)
}

// ClampFlipDuration returns a usable flip duration in milliseconds. NaN and
// values outside [MinFlipDurationMs, MaxFlipDurationMs] fall back to the
// minimum and produce a warning.
func ClampFlipDuration(ms float64) (float64, *ConfigurationWarning) {
	if math.IsNaN(ms) || ms < MinFlipDurationMs || ms > MaxFlipDurationMs {
		return MinFlipDurationMs, &ConfigurationWarning{
			Field:    "flip_duration_ms",
			Value:    ms,
			Replaced: MinFlipDurationMs,
		}
	}
	return ms, nil
}

// DefaultGameConfig returns the built-in programming languages card set
func DefaultGameConfig() *GameConfig {
	config := &GameConfig{
		Name:           "Classic",
		Description:    "Six programming languages, twelve cards",
		FlipDurationMs: DefaultFlipDurationMs,
	}
	for _, name := range []string{"Python", "JavaScript", "Java", "CSharp", "Go", "Ruby"} {
		config.Cards = append(config.Cards, Face{Name: name, Image: "./img/" + name + ".svg"})
	}
	config.Messages.Welcome = "Find all the pairs!"
	config.Messages.Victory = "Congratulations! You won in %d attempts"
	config.Messages.Match = "It's a match!"
	config.Messages.Mismatch = "Not a match, try again"
	return config
}

// ValidateGameConfig validates a card set for playability
func ValidateGameConfig(config *GameConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	if len(config.Cards) < MinPairs {
		return fmt.Errorf("config validation: at least %d cards are required, got %d", MinPairs, len(config.Cards))
	}
	if len(config.Cards) > MaxPairs {
		return fmt.Errorf("config validation: at most %d cards are allowed, got %d", MaxPairs, len(config.Cards))
	}

	seen := make(map[string]bool, len(config.Cards))
	for i, card := range config.Cards {
		name := strings.TrimSpace(card.Name)
		if name == "" {
			return fmt.Errorf("config validation: card %d has no name", i+1)
		}
		if seen[name] {
			return fmt.Errorf("config validation: duplicate card name '%s'", name)
		}
		seen[name] = true
	}

	if config.Messages.Victory == "" {
		return fmt.Errorf("config validation: messages.victory is required")
	}
	if !strings.Contains(config.Messages.Victory, "%d") {
		return fmt.Errorf("config validation: messages.victory must contain %%d for attempts")
	}

	return nil
}

// ParseGameConfig decodes a card set. Files ending in .yaml or .yml are read
// as YAML, everything else as JSON.
func ParseGameConfig(filename string, data []byte) (*GameConfig, error) {
	var config GameConfig
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, err
		}
	}
	config.applyMessageDefaults()
	return &config, nil
}

// LoadGameConfig loads and validates a card set from disk
func LoadGameConfig(filename string) (*GameConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseGameConfig(filename, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", filename, err)
	}

	if err := ValidateGameConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config '%s': %w", filename, err)
	}

	return config, nil
}

// Faces returns the distinct card faces of the set
func (c *GameConfig) Faces() []Face {
	faces := make([]Face, len(c.Cards))
	copy(faces, c.Cards)
	return faces
}

// VictoryMessage formats the victory text with the attempt count
func (c *GameConfig) VictoryMessage(attempts int) string {
	return fmt.Sprintf(c.Messages.Victory, attempts)
}

func (c *GameConfig) applyMessageDefaults() {
	defaults := DefaultGameConfig().Messages
	if c.Messages.Welcome == "" {
		c.Messages.Welcome = defaults.Welcome
	}
	if c.Messages.Victory == "" {
		c.Messages.Victory = defaults.Victory
	}
	if c.Messages.Match == "" {
		c.Messages.Match = defaults.Match
	}
	if c.Messages.Mismatch == "" {
		c.Messages.Mismatch = defaults.Mismatch
	}
}
