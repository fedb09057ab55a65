package ml

import "math"

// Classifier is the capability shared by all ensemble members: score a
// standardized feature vector with a class-1 (dropout) probability.
type Classifier interface {
	PredictProba(scaled []float64) float64
}

// LogisticParams parameterizes the linear probabilistic member.
type LogisticParams struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

type logisticClassifier struct {
	p LogisticParams
}

func (c logisticClassifier) PredictProba(scaled []float64) float64 {
	z := c.p.Bias
	for i, w := range c.p.Weights {
		if i < len(scaled) {
			z += w * scaled[i]
		}
	}
	return sigmoid(z)
}

func sigmoid(z float64) float64 {
	// Clamp the exponent so extreme margins stay finite.
	if z > 30 {
		return 1
	}
	if z < -30 {
		return 0
	}
	return 1 / (1 + math.Exp(-z))
}

// TreeNode is one node of a CART decision tree. Leaves carry the class-1
// fraction seen at training time.
type TreeNode struct {
	Leaf      bool      `json:"leaf"`
	Prob      float64   `json:"prob,omitempty"`
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *TreeNode `json:"left,omitempty"`
	Right     *TreeNode `json:"right,omitempty"`
}

func (n *TreeNode) predict(scaled []float64) float64 {
	for !n.Leaf {
		if n.Feature < len(scaled) && scaled[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Prob
}

// ForestParams parameterizes the tree-ensemble member: a bagged set of
// CART trees whose leaf probabilities are averaged.
type ForestParams struct {
	Trees []*TreeNode `json:"trees"`
}

type forestClassifier struct {
	p ForestParams
}

func (c forestClassifier) PredictProba(scaled []float64) float64 {
	if len(c.p.Trees) == 0 {
		return 0.5
	}
	var sum float64
	for _, t := range c.p.Trees {
		sum += t.predict(scaled)
	}
	return sum / float64(len(c.p.Trees))
}
