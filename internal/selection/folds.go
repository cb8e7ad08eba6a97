package selection

import "sort"

const (
	minEvents      = 4
	minTrainEvents = 3
)

// Fold trains on every event before Validate and validates on Validate.
type Fold struct {
	Train    []int
	Validate int
}

// Folds builds expanding-window folds over the distinct event keys. Fewer
// than four events yield no folds. The first fold trains on
// max(3, n/3) events.
func Folds(eventKeys []int) []Fold {
	seen := make(map[int]bool, len(eventKeys))
	keys := make([]int, 0, len(eventKeys))
	for _, k := range eventKeys {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Ints(keys)
	n := len(keys)
	if n < minEvents {
		return nil
	}
	start := n / 3
	if start < minTrainEvents {
		start = minTrainEvents
	}
	folds := make([]Fold, 0, n-start)
	for i := start; i < n; i++ {
		folds = append(folds, Fold{Train: append([]int(nil), keys[:i]...), Validate: keys[i]})
	}
	return folds
}
