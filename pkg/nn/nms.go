package nn

import (
	"sort"
)

// NonMaxSuppression returns the indices of the boxes to retain, in descending
// score order. Greedy: the highest scoring box always survives, and any
// lower-scoring box with IoU >= iouThreshold against a survivor is dropped.
// Candidate counts here are tiny (a few dozen at most after thresholding),
// so we don't bother with a spatial index.
func NonMaxSuppression(boxes []Rect, scores []float32, iouThreshold float32) []int {
	order := make([]int, len(boxes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	retain := make([]int, 0, len(boxes))
	suppressed := make([]bool, len(boxes))
	for _, i := range order {
		if suppressed[i] {
			continue
		}
		retain = append(retain, i)
		for _, j := range order {
			if j == i || suppressed[j] {
				continue
			}
			if boxes[i].IOU(boxes[j]) >= iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return retain
}
