package engine

import "fmt"

// FormatElapsed renders seconds as zero-padded mm:ss. Minutes keep counting
// past 99.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// CountPairs returns the number of pairs a board of n cards holds
func CountPairs(n int) int {
	return n / 2
}

// GridRows returns the number of rows needed to lay out n cards in columns
func GridRows(n, columns int) int {
	if columns <= 0 {
		return 0
	}
	return (n + columns - 1) / columns
}

// RemainingPairs returns how many pairs are still face-down in state
func RemainingPairs(state *GameState) int {
	return CountPairs(state.TotalCards - state.MatchedCards)
}
