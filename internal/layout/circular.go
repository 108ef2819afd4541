package layout

import (
	"math"

	"netlayers/internal/domain"
	"netlayers/internal/topology"
)

// Circular places nodes evenly on the unit circle in id order
type Circular struct{}

// Name returns the algorithm name used in requests
func (Circular) Name() string { return AlgorithmCircular }

// Compute returns positions on the unit circle, starting at angle 0
func (Circular) Compute(g topology.Graph) map[int]domain.Position {
	n := len(g.NodeIDs)
	out := make(map[int]domain.Position, n)
	if n == 1 {
		out[g.NodeIDs[0]] = domain.Position{}
		return out
	}
	step := 2 * math.Pi / float64(n)
	for i, id := range g.NodeIDs {
		angle := float64(i) * step
		out[id] = domain.Position{X: math.Cos(angle), Y: math.Sin(angle)}
	}
	return out
}
