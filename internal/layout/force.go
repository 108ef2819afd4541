package layout

import (
	"math"
	"math/rand/v2"

	"netlayers/internal/domain"
	"netlayers/internal/topology"
)

// Force-directed defaults
const (
	DefaultK          = 1.0
	DefaultIterations = 50
)

// ForceDirected is a Fruchterman-Reingold spring layout. Edges attract with
// d²/k, every pair repels with k²/d, and the step size cools linearly from
// a tenth of the initial spread to zero.
type ForceDirected struct {
	K          float64
	Iterations int

	// Seed makes runs reproducible when non-zero
	Seed uint64
}

// NewForceDirected creates a layout with k=1 and 50 iterations
func NewForceDirected(seed uint64) *ForceDirected {
	return &ForceDirected{K: DefaultK, Iterations: DefaultIterations, Seed: seed}
}

// Name returns the algorithm name used in requests
func (fd *ForceDirected) Name() string { return AlgorithmForce }

// Compute returns normalized positions in [-1,1]² for every node of g,
// isolated nodes included
func (fd *ForceDirected) Compute(g topology.Graph) map[int]domain.Position {
	n := len(g.NodeIDs)
	out := make(map[int]domain.Position, n)
	if n == 0 {
		return out
	}
	if n == 1 {
		out[g.NodeIDs[0]] = domain.Position{X: 0, Y: 0}
		return out
	}

	k := fd.K
	if k <= 0 {
		k = DefaultK
	}
	iterations := fd.Iterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}

	index := make(map[int]int, n)
	for i, id := range g.NodeIDs {
		index[id] = i
	}
	adj := make([][]bool, n)
	for i := range adj {
		adj[i] = make([]bool, n)
	}
	for _, e := range g.Edges {
		a, okA := index[e.A]
		b, okB := index[e.B]
		if !okA || !okB {
			continue
		}
		adj[a][b], adj[b][a] = true, true
	}

	rng := fd.newRand()
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := range xs {
		xs[i] = rng.Float64()
		ys[i] = rng.Float64()
	}

	t := math.Max(spread(xs), spread(ys)) * 0.1
	dt := t / float64(iterations+1)

	dispX := make([]float64, n)
	dispY := make([]float64, n)
	for iter := 0; iter < iterations; iter++ {
		for i := 0; i < n; i++ {
			dispX[i], dispY[i] = 0, 0
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				dx := xs[i] - xs[j]
				dy := ys[i] - ys[j]
				d := math.Max(math.Hypot(dx, dy), 0.01)

				// delta * (k²/d² - A·d/k): repulsion k²/d less attraction d²/k
				f := k * k / (d * d)
				if adj[i][j] {
					f -= d / k
				}
				dispX[i] += dx * f
				dispY[i] += dy * f
			}
		}

		for i := 0; i < n; i++ {
			length := math.Max(math.Hypot(dispX[i], dispY[i]), 0.01)
			xs[i] += dispX[i] * t / length
			ys[i] += dispY[i] * t / length
		}
		t -= dt
	}

	rescale(xs, ys)
	for i, id := range g.NodeIDs {
		out[id] = domain.Position{X: xs[i], Y: ys[i]}
	}
	return out
}

func (fd *ForceDirected) newRand() *rand.Rand {
	if fd.Seed != 0 {
		return rand.New(rand.NewPCG(fd.Seed, fd.Seed))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func spread(v []float64) float64 {
	lo, hi := v[0], v[0]
	for _, x := range v[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return hi - lo
}

// rescale centers the coordinates on their mean and divides by the largest
// absolute coordinate, so the result fills [-1,1]²
func rescale(xs, ys []float64) {
	n := float64(len(xs))
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= n
	my /= n

	lim := 0.0
	for i := range xs {
		xs[i] -= mx
		ys[i] -= my
		lim = math.Max(lim, math.Max(math.Abs(xs[i]), math.Abs(ys[i])))
	}
	if lim == 0 {
		return
	}
	for i := range xs {
		xs[i] /= lim
		ys[i] /= lim
	}
}
