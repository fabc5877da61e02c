// Command validate provides a small CLI that validates card set files (JSON
// or YAML) in a configs directory, ../configs by default. It checks:
//   - File structure and required fields
//   - Card count between the minimum and maximum number of pairs
//   - Card names present and unique
//   - The victory message, when set, carries a %d placeholder for attempts
//   - Flip duration within the range the engine accepts
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
)

// Config mirrors the schema of a card set file. Messages are kept as a map
// so missing keys can be told apart from empty ones.
type Config struct {
	Name           string            `json:"name" yaml:"name"`
	Description    string            `json:"description" yaml:"description"`
	FlipDurationMs *float64          `json:"flip_duration_ms" yaml:"flip_duration_ms"`
	Cards          []engine.Face     `json:"cards" yaml:"cards"`
	Messages       map[string]string `json:"messages" yaml:"messages"`
}

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// parseConfig decodes a card set by file extension and reports which format
// was used
func parseConfig(filePath string, data []byte) (*Config, string, error) {
	var config Config
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		return &config, "YAML", yaml.Unmarshal(data, &config)
	default:
		return &config, "JSON", json.Unmarshal(data, &config)
	}
}

// validateConfig loads and validates a single card set file
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	config, format, err := parseConfig(filePath, data)
	if err != nil {
		result.fail("Invalid %s: %v", format, err)
		return result
	}

	if strings.TrimSpace(config.Name) == "" {
		result.fail("name is required")
	}
	if strings.TrimSpace(config.Description) == "" {
		result.fail("description is required")
	}

	// Validate cards
	switch {
	case len(config.Cards) == 0:
		result.fail("Card list is empty")
	case len(config.Cards) < engine.MinPairs:
		result.fail("At least %d cards are required, got %d", engine.MinPairs, len(config.Cards))
	case len(config.Cards) > engine.MaxPairs:
		result.fail("At most %d cards are allowed, got %d", engine.MaxPairs, len(config.Cards))
	}

	seen := make(map[string]int, len(config.Cards))
	for i, card := range config.Cards {
		name := strings.TrimSpace(card.Name)
		if name == "" {
			result.fail("Card %d has no name", i+1)
			continue
		}
		if first, ok := seen[name]; ok {
			result.fail("Duplicate card '%s' at positions %d and %d", name, first, i+1)
			continue
		}
		seen[name] = i + 1
	}

	// Validate messages
	// Missing messages fall back to the built-in text
	if victory, ok := config.Messages["victory"]; ok && !strings.Contains(victory, "%d") {
		result.fail("Message victory must contain %%d for the attempt count")
	}

	// Flip duration is optional; out of range values are clamped by the engine
	var flipInfo string
	if config.FlipDurationMs == nil {
		flipInfo = fmt.Sprintf("✓ Flip duration: default %dms", engine.DefaultFlipDurationMs)
	} else if ms, warning := engine.ClampFlipDuration(*config.FlipDurationMs); warning != nil {
		result.fail("flip_duration_ms %v outside [%d, %d]", *config.FlipDurationMs, engine.MinFlipDurationMs, engine.MaxFlipDurationMs)
	} else {
		flipInfo = fmt.Sprintf("✓ Flip duration: %vms", ms)
	}

	// Add informational data
	if result.Valid {
		cards := len(config.Cards) * 2
		columns := engine.ColumnCount(cards)
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Name: %s", config.Name))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Pairs: %d", len(config.Cards)))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Board: %d cards, %d rows x %d columns", cards, engine.GridRows(cards, columns), columns))
		result.Errors = append(result.Errors, flipInfo)
		for _, key := range requiredMessages {
			if _, ok := config.Messages[key]; !ok {
				result.Errors = append(result.Errors, fmt.Sprintf("✓ Message %s: default", key))
			}
		}
	}

	return result
}

// requiredMessages lists the messages a game shows
var requiredMessages = []string{"welcome", "victory", "match", "mismatch"}

// findConfigs returns every card set file in dir
func findConfigs(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.json", "*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// main scans the configs directory (first argument, ../configs by default)
// and validates each file, printing a concise report and exiting with
// non-zero status if any are invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	files, err := findConfigs(configDir)
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No card sets found in %s\n", configDir)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Println("  ❌ " + err)
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All card sets are valid!")
	} else {
		fmt.Println("❌ Some card sets have errors")
		os.Exit(1)
	}
}
