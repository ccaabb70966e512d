package classifier

import (
	"math"
	"slices"
)

// DefaultNeighbours is the k used by the membership attack
const DefaultNeighbours = 5

type knn struct {
	k      int
	x      [][]float64
	y      []bool
	lo, hi []float64
}

// fitKNN stores min-max scaled training vectors
func fitKNN(x [][]float64, y []bool, k int) *knn {
	m := &knn{k: min(k, len(x)), y: y}
	m.lo, m.hi = bounds(x)
	m.x = make([][]float64, len(x))
	for i, row := range x {
		m.x[i] = m.scale(row)
	}
	return m
}

func bounds(x [][]float64) ([]float64, []float64) {
	lo := slices.Clone(x[0])
	hi := slices.Clone(x[0])
	for _, row := range x[1:] {
		for j, v := range row {
			lo[j] = math.Min(lo[j], v)
			hi[j] = math.Max(hi[j], v)
		}
	}
	return lo, hi
}

func (m *knn) scale(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		if span := m.hi[j] - m.lo[j]; span > 0 {
			out[j] = (v - m.lo[j]) / span
		}
	}
	return out
}

func (m *knn) predict(x []float64) Prediction {
	q := m.scale(x)

	type neighbour struct {
		dist  float64
		label bool
	}
	ns := make([]neighbour, len(m.x))
	for i, row := range m.x {
		d := 0.0
		for j := range row {
			diff := row[j] - q[j]
			d += diff * diff
		}
		ns[i] = neighbour{dist: d, label: m.y[i]}
	}
	slices.SortStableFunc(ns, func(a, b neighbour) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		}
		return 0
	})

	votes := 0
	for _, n := range ns[:m.k] {
		if n.label {
			votes++
		}
	}

	label := 2*votes > m.k
	if 2*votes == m.k {
		// even split, the nearest neighbour decides
		label = ns[0].label
	}
	agree := votes
	if !label {
		agree = m.k - votes
	}
	return Prediction{Label: label, Confidence: float64(agree) / float64(m.k)}
}
