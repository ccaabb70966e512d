package classifier

import "math"

const (
	logisticIterations   = 500
	logisticLearningRate = 0.1
	logisticL2           = 1e-3
)

type logistic struct {
	mean, std []float64
	weights   []float64
	bias      float64
}

// fitLogistic runs batch gradient descent on standardized features
func fitLogistic(x [][]float64, y []bool) *logistic {
	n, dim := len(x), len(x[0])
	m := &logistic{
		mean:    make([]float64, dim),
		std:     make([]float64, dim),
		weights: make([]float64, dim),
	}

	for _, row := range x {
		for j, v := range row {
			m.mean[j] += v
		}
	}
	for j := range m.mean {
		m.mean[j] /= float64(n)
	}
	for _, row := range x {
		for j, v := range row {
			m.std[j] += (v - m.mean[j]) * (v - m.mean[j])
		}
	}
	for j := range m.std {
		m.std[j] = math.Sqrt(m.std[j] / float64(n))
		if m.std[j] == 0 {
			m.std[j] = 1
		}
	}

	z := make([][]float64, n)
	for i, row := range x {
		z[i] = m.standardize(row)
	}

	grad := make([]float64, dim)
	for iter := 0; iter < logisticIterations; iter++ {
		clear(grad)
		gradBias := 0.0
		for i, row := range z {
			target := 0.0
			if y[i] {
				target = 1
			}
			diff := m.probability(row) - target
			for j, v := range row {
				grad[j] += diff * v
			}
			gradBias += diff
		}
		for j := range m.weights {
			m.weights[j] -= logisticLearningRate * (grad[j]/float64(n) + logisticL2*m.weights[j])
		}
		m.bias -= logisticLearningRate * gradBias / float64(n)
	}
	return m
}

func (m *logistic) standardize(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - m.mean[j]) / m.std[j]
	}
	return out
}

func (m *logistic) probability(z []float64) float64 {
	s := m.bias
	for j, v := range z {
		s += m.weights[j] * v
	}
	return 1 / (1 + math.Exp(-s))
}

func (m *logistic) predict(x []float64) Prediction {
	p := m.probability(m.standardize(x))
	if p >= 0.5 {
		return Prediction{Label: true, Confidence: p}
	}
	return Prediction{Label: false, Confidence: 1 - p}
}
