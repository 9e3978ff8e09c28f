package survey

import (
	"sort"

	"github.com/aliuyar1234/nr01desk/internal/instrument"
)

// Scores is the derived part of a response.
type Scores struct {
	Dimensions map[string]float64
	// Missing lists dimensions with no answered question. They score 0 and
	// are reported here so a genuine zero can be told apart.
	Missing []string
	Overall float64
}

// CalculateDimensionScores averages the answers present for each dimension.
// Unanswered questions are left out of the mean rather than imputed.
func CalculateDimensionScores(inst *instrument.Instrument, answers Answers) (map[string]float64, []string) {
	scores := make(map[string]float64, len(inst.Dimensions))
	var missing []string

	for _, dim := range inst.Dimensions {
		sum, n := 0, 0
		for _, q := range dim.Questions {
			if v, ok := answers[q.ID]; ok {
				sum += v
				n++
			}
		}
		if n == 0 {
			scores[dim.Name] = 0
			missing = append(missing, dim.Name)
			continue
		}
		scores[dim.Name] = float64(sum) / float64(n)
	}

	return scores, missing
}

// OverallScore is the mean of all dimension scores, 0 for an empty map.
func OverallScore(dimensionScores map[string]float64) float64 {
	if len(dimensionScores) == 0 {
		return 0
	}
	// Sum in key order so the result does not depend on map iteration.
	names := make([]string, 0, len(dimensionScores))
	for name := range dimensionScores {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0.0
	for _, name := range names {
		total += dimensionScores[name]
	}
	return total / float64(len(dimensionScores))
}

// Score computes dimension and overall scores for a set of answers.
func Score(inst *instrument.Instrument, answers Answers) Scores {
	dims, missing := CalculateDimensionScores(inst, answers)
	return Scores{
		Dimensions: dims,
		Missing:    missing,
		Overall:    OverallScore(dims),
	}
}
