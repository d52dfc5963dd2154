package priority

import (
	"fmt"
	"strings"
)

// ApplyBoosts implements the post-LLM half of spec §4.6: starting from
// baseScore (or 50 if absent), add Priority.Boost() for each user-configured
// hint that applied, clamp to [0,100], and append a human-readable
// "[User override: +N for ...]" suffix per boost applied.
func ApplyBoosts(baseScore *int, reasoning string, hints Hints) (int, string) {
	score := 50
	if baseScore != nil {
		score = *baseScore
	}

	var suffixes []string
	if hints.UserConfiguredSenderPriority {
		boost := hints.SenderPriority.Boost()
		score += boost
		suffixes = append(suffixes, fmt.Sprintf("[User override: +%d for sender priority]", boost))
	}
	if hints.UserConfiguredTypePriority {
		boost := hints.TypePriority.Boost()
		score += boost
		suffixes = append(suffixes, fmt.Sprintf("[User override: +%d for email type priority]", boost))
	}

	score = clampInt(score, 0, 100)

	if len(suffixes) > 0 {
		if reasoning != "" {
			reasoning = reasoning + " " + strings.Join(suffixes, " ")
		} else {
			reasoning = strings.Join(suffixes, " ")
		}
	}
	return score, reasoning
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
