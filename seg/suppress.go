package seg

import (
	"sort"

	"github.com/microwink/microwink-go/common"
)

// Suppressor selects which candidates survive non-maximum suppression.
// Implementations must be pure functions of their arguments.
type Suppressor interface {
	// Suppress returns the indices of boxes to retain, ordered by
	// descending score. Boxes are corner form, all in the same space.
	// An empty candidate set returns an empty index set, not an error.
	Suppress(boxes []common.Box, scores []float32, confThreshold, iouThreshold float32) []int
}

// GreedySuppressor implements standard greedy NMS: repeatedly keep the
// highest-scoring remaining candidate and discard every remaining candidate
// whose IoU with it exceeds the threshold. Ties on equal score break by
// ascending original index, which keeps the result deterministic.
type GreedySuppressor struct{}

// GreedySuppressor implements Suppressor.
var _ Suppressor = GreedySuppressor{}

// Suppress runs greedy NMS over the candidate set.
func (GreedySuppressor) Suppress(boxes []common.Box, scores []float32, confThreshold, iouThreshold float32) []int {
	if len(boxes) == 0 {
		return nil
	}

	order := make([]int, 0, len(boxes))
	for i, s := range scores {
		if s > confThreshold {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	keep := make([]int, 0, len(order))
	removed := make([]bool, len(boxes))
	for pos, i := range order {
		if removed[i] {
			continue
		}
		keep = append(keep, i)
		for _, j := range order[pos+1:] {
			if removed[j] {
				continue
			}
			if boxes[i].IoU(boxes[j]) > iouThreshold {
				removed[j] = true
			}
		}
	}
	return keep
}
