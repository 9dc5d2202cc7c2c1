package trust

import "fmt"

// Engine computes trust scores from accumulated playtime and commendations.
// Base is the configured starting score every player gets.
type Engine struct {
	Base int
}

func NewEngine(base int) *Engine {
	return &Engine{Base: base}
}

// Score maps playtime in minutes and a commendation count to a percentage.
// One point per full hour played, three points per commend, clamped to
// [0, 100].
func (engine *Engine) Score(playtimeMinutes int, commends int) int {
	score := playtimeMinutes/60 + engine.Base + commends*3
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// FormatPlaytime renders raw minutes as days/hours/minutes for display.
// Zero or negative playtime renders as the "None" sentinel. Units carry
// exactly: 720 minutes is 12 hours, never a rounded half day, so the
// three fields always re-add to the input.
func FormatPlaytime(playtimeMinutes int) string {
	if playtimeMinutes <= 0 {
		return "None"
	}
	days := playtimeMinutes / 1440
	hours := (playtimeMinutes / 60) % 24
	minutes := playtimeMinutes % 60
	return fmt.Sprintf("%d Days, %d Hours & %d Minutes", days, hours, minutes)
}
