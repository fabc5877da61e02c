package engine

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampFlipDuration(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
		warns    bool
	}{
		{"zero", 0, 350, true},
		{"negative", -10, 350, true},
		{"too large", 4000, 350, true},
		{"NaN", math.NaN(), 350, true},
		{"infinity", math.Inf(1), 350, true},
		{"lower bound", 350, 350, false},
		{"just above lower bound", 351, 351, false},
		{"default", 1000, 1000, false},
		{"just below upper bound", 2999, 2999, false},
		{"upper bound", 3000, 3000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warning := ClampFlipDuration(tt.input)
			assert.Equal(t, tt.expected, got)
			if tt.warns {
				require.NotNil(t, warning)
				assert.Equal(t, "flip_duration_ms", warning.Field)
				assert.Contains(t, warning.Error(), "using 350")
			} else {
				assert.Nil(t, warning)
			}
		})
	}
}

func TestValidateGameConfig(t *testing.T) {
	t.Run("default config is valid", func(t *testing.T) {
		require.NoError(t, ValidateGameConfig(DefaultGameConfig()))
	})

	t.Run("out of range flip duration is not an error", func(t *testing.T) {
		config := DefaultGameConfig()
		config.FlipDurationMs = 10
		assert.NoError(t, ValidateGameConfig(config))
	})

	tests := []struct {
		name   string
		mutate func(*GameConfig)
	}{
		{"missing name", func(c *GameConfig) { c.Name = "" }},
		{"missing description", func(c *GameConfig) { c.Description = "" }},
		{"single card", func(c *GameConfig) { c.Cards = c.Cards[:1] }},
		{"duplicate card", func(c *GameConfig) { c.Cards[1].Name = c.Cards[0].Name }},
		{"blank card name", func(c *GameConfig) { c.Cards[0].Name = "  " }},
		{"victory without count", func(c *GameConfig) { c.Messages.Victory = "You won" }},
		{"missing victory", func(c *GameConfig) { c.Messages.Victory = "" }},
		{"too many cards", func(c *GameConfig) {
			c.Cards = nil
			for i := 0; i <= MaxPairs; i++ {
				c.Cards = append(c.Cards, Face{Name: string(rune('A'+i%26)) + string(rune('a'+i/26))})
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultGameConfig()
			tt.mutate(config)
			assert.Error(t, ValidateGameConfig(config))
		})
	}

	assert.Error(t, ValidateGameConfig(nil))
}

func TestLoadGameConfig(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "fruits.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{
		"name": "Fruits",
		"description": "Fruit pairs",
		"flip_duration_ms": 800,
		"cards": [{"name": "Apple"}, {"name": "Pear"}]
	}`), 0644))

	yamlPath := filepath.Join(dir, "animals.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`name: Animals
description: Animal pairs
flip_duration_ms: 500
cards:
  - name: Cat
    image: ./img/cat.svg
  - name: Dog
messages:
  victory: "Done after %d tries"
`), 0644))

	t.Run("json", func(t *testing.T) {
		config, err := LoadGameConfig(jsonPath)
		require.NoError(t, err)
		assert.Equal(t, "Fruits", config.Name)
		assert.Equal(t, 800.0, config.FlipDurationMs)
		assert.Len(t, config.Cards, 2)
		// Missing messages fall back to defaults
		assert.Equal(t, DefaultGameConfig().Messages.Victory, config.Messages.Victory)
	})

	t.Run("yaml", func(t *testing.T) {
		config, err := LoadGameConfig(yamlPath)
		require.NoError(t, err)
		assert.Equal(t, "Animals", config.Name)
		assert.Equal(t, "./img/cat.svg", config.Cards[0].Image)
		assert.Equal(t, "Done after 3 tries", config.VictoryMessage(3))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadGameConfig(filepath.Join(dir, "nope.json"))
		assert.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
		_, err := LoadGameConfig(bad)
		assert.Error(t, err)
	})
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "00:00", FormatElapsed(0))
	assert.Equal(t, "00:59", FormatElapsed(59))
	assert.Equal(t, "01:00", FormatElapsed(60))
	assert.Equal(t, "10:05", FormatElapsed(605))
	assert.Equal(t, "00:00", FormatElapsed(-4))
	assert.Equal(t, 6, CountPairs(12))
	assert.Equal(t, 3, GridRows(12, 4))
	assert.Equal(t, 2, GridRows(6, 4))
}
