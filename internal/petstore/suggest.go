package petstore

import (
	"sort"

	"github.com/xrash/smetrics"
)

const (
	suggestionThreshold = 0.7
	maxSuggestions      = 3
)

// Suggest returns up to three candidates whose Jaro similarity to name exceeds 0.7,
// best match first. Ties are broken alphabetically.
func Suggest(name string, candidates []string) []string {
	type scored struct {
		name  string
		score float64
	}

	var matches []scored
	for _, candidate := range candidates {
		if candidate == name {
			continue
		}
		if score := smetrics.Jaro(name, candidate); score > suggestionThreshold {
			matches = append(matches, scored{name: candidate, score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].name < matches[j].name
	})

	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}
	suggestions := make([]string, len(matches))
	for i, m := range matches {
		suggestions[i] = m.name
	}
	return suggestions
}
