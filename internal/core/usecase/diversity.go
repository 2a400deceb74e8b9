package usecase

// SimilarityFunc returns pairwise similarity between pool items i and j.
type SimilarityFunc func(i, j int) float64

// SelectDiverse greedily picks up to k indices maximizing
// relevance - sum(|similarity to already chosen|). A pool of size <= k is
// returned unchanged without a single similarity call, so callers can
// defer building the similarity matrix until it is actually needed.
func SelectDiverse(scores []float64, sim SimilarityFunc, k int) []int {
	n := len(scores)
	if k <= 0 {
		return nil
	}
	if n <= k {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	chosen := make([]int, 0, k)
	used := make([]bool, n)
	for len(chosen) < k {
		best := -1
		bestGain := 0.0
		for i := 0; i < n; i++ {
			if used[i] {
				continue
			}
			gain := scores[i]
			for _, j := range chosen {
				s := sim(i, j)
				if s < 0 {
					s = -s
				}
				gain -= s
			}
			if best == -1 || gain > bestGain {
				best = i
				bestGain = gain
			}
		}
		if best == -1 {
			break
		}
		used[best] = true
		chosen = append(chosen, best)
	}
	return chosen
}
