package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"edutrack/internal/features"
)

// LabeledStudent is one historical training example: the raw records the
// extractor ran on in production, plus the known outcome.
type LabeledStudent struct {
	Records    features.StudentRecords `json:"records"`
	DroppedOut bool                    `json:"droppedOut"`
}

// TrainerConfig tunes the offline training pipeline. The seed pins every
// random choice (shuffle, bootstrap, feature subsets) so a training run is
// reproducible from its inputs.
type TrainerConfig struct {
	HoldoutFraction float64 `yaml:"holdoutFraction"`
	Seed            int64   `yaml:"seed"`
	Epochs          int     `yaml:"epochs"`
	LearningRate    float64 `yaml:"learningRate"`
	L2              float64 `yaml:"l2"`
	Trees           int     `yaml:"trees"`
	MaxDepth        int     `yaml:"maxDepth"`
	MinLeafSamples  int     `yaml:"minLeafSamples"`
}

// DefaultTrainerConfig returns the tuning used in production runs.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		HoldoutFraction: 0.2,
		Seed:            42,
		Epochs:          500,
		LearningRate:    0.1,
		L2:              0.01,
		Trees:           25,
		MaxDepth:        4,
		MinLeafSamples:  2,
	}
}

// Trainer fits new model artifacts from labeled historical data. It runs
// out-of-band from assessment serving and holds no lock shared with the
// read path; its only interaction with serving is handing a finished
// artifact to the promotion gate.
type Trainer struct {
	cfg       TrainerConfig
	extractor *features.Extractor
}

// NewTrainer builds a trainer using the same extractor configuration the
// serving path uses, so training-time and inference-time features agree.
func NewTrainer(cfg TrainerConfig, extractor *features.Extractor) *Trainer {
	if cfg.HoldoutFraction <= 0 || cfg.HoldoutFraction >= 1 {
		cfg.HoldoutFraction = DefaultTrainerConfig().HoldoutFraction
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = DefaultTrainerConfig().Epochs
	}
	if cfg.Trees <= 0 {
		cfg.Trees = DefaultTrainerConfig().Trees
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultTrainerConfig().MaxDepth
	}
	if cfg.MinLeafSamples <= 0 {
		cfg.MinLeafSamples = DefaultTrainerConfig().MinLeafSamples
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = DefaultTrainerConfig().LearningRate
	}
	return &Trainer{cfg: cfg, extractor: extractor}
}

// Train extracts features from every labeled example, fits the scaler and
// both ensemble members on a training split, and evaluates holdout AUC.
// The returned artifact is in the Staged state; promotion is a separate,
// gated step.
func (t *Trainer) Train(examples []LabeledStudent) (*ModelArtifact, error) {
	rows, labels, skipped := t.extractAll(examples)
	if len(rows) < 10 {
		return nil, fmt.Errorf("training requires at least 10 usable examples, have %d (%d skipped)", len(rows), skipped)
	}

	rng := rand.New(rand.NewSource(t.cfg.Seed))
	perm := rng.Perm(len(rows))
	holdout := int(float64(len(rows)) * t.cfg.HoldoutFraction)
	if holdout < 1 {
		holdout = 1
	}

	trainIdx := perm[holdout:]
	testIdx := perm[:holdout]

	scaler := fitScaler(rows, trainIdx)
	trainX, trainY := standardizeRows(rows, labels, trainIdx, scaler)
	testX, testY := standardizeRows(rows, labels, testIdx, scaler)

	logistic := fitLogistic(trainX, trainY, t.cfg, rng)
	forest := fitForest(trainX, trainY, t.cfg, rng)

	artifact := &ModelArtifact{
		Version:       time.Now().UTC().Format("20060102-150405") + "-" + uuid.NewString()[:8],
		SchemaVersion: features.SchemaVersion,
		Scaler:        scaler,
		Logistic:      logistic,
		Forest:        forest,
		State:         StateStaged,
	}

	scores := make([]float64, len(testX))
	for i, x := range testX {
		var sum float64
		members := artifact.Members()
		for _, m := range members {
			sum += m.PredictProba(x)
		}
		scores[i] = sum / float64(len(members))
	}

	artifact.Trained = TrainingMetadata{
		TrainedAt:       time.Now().UTC(),
		TrainingSamples: len(trainIdx),
		HoldoutSamples:  len(testIdx),
		HoldoutAUC:      aucScore(scores, testY),
		Seed:            t.cfg.Seed,
	}

	log.Info().
		Str("model_version", artifact.Version).
		Int("training_samples", len(trainIdx)).
		Int("holdout_samples", len(testIdx)).
		Int("skipped_examples", skipped).
		Float64("holdout_auc", artifact.Trained.HoldoutAUC).
		Msg("model artifact staged")

	return artifact, nil
}

// extractAll runs the feature extractor over every example, dropping the
// ones with nothing to assess.
func (t *Trainer) extractAll(examples []LabeledStudent) ([]features.Vector, []float64, int) {
	rows := make([]features.Vector, 0, len(examples))
	labels := make([]float64, 0, len(examples))
	skipped := 0
	for _, ex := range examples {
		v, err := t.extractor.Extract(ex.Records)
		if err != nil {
			skipped++
			continue
		}
		rows = append(rows, v)
		label := 0.0
		if ex.DroppedOut {
			label = 1.0
		}
		labels = append(labels, label)
	}
	return rows, labels, skipped
}

// fitScaler computes per-field means and standard deviations over the
// training split, using only observed values for each field. The means are
// also the training-time imputation values for missing fields.
func fitScaler(rows []features.Vector, idx []int) ScalerParams {
	means := make([]float64, features.NumFields)
	stds := make([]float64, features.NumFields)
	for f := 0; f < features.NumFields; f++ {
		observed := make([]float64, 0, len(idx))
		for _, i := range idx {
			if !rows[i].Missing[f] {
				observed = append(observed, rows[i].Values[f])
			}
		}
		if len(observed) == 0 {
			stds[f] = 0
			continue
		}
		means[f] = stat.Mean(observed, nil)
		if len(observed) > 1 {
			stds[f] = math.Sqrt(stat.Variance(observed, nil))
		}
	}
	return ScalerParams{Means: means, Stds: stds}
}

func standardizeRows(rows []features.Vector, labels []float64, idx []int, scaler ScalerParams) ([][]float64, []float64) {
	x := make([][]float64, len(idx))
	y := make([]float64, len(idx))
	for n, i := range idx {
		row := make([]float64, features.NumFields)
		for f := 0; f < features.NumFields; f++ {
			raw := rows[i].Values[f]
			if rows[i].Missing[f] {
				raw = scaler.Means[f]
			}
			row[f] = scaler.Transform(f, raw)
		}
		x[n] = row
		y[n] = labels[i]
	}
	return x, y
}

// fitLogistic runs batch gradient descent with L2 regularization.
func fitLogistic(x [][]float64, y []float64, cfg TrainerConfig, _ *rand.Rand) LogisticParams {
	d := features.NumFields
	w := make([]float64, d)
	b := 0.0
	n := float64(len(x))

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		grad := make([]float64, d)
		gradB := 0.0
		for i, row := range x {
			p := sigmoid(dot(w, row) + b)
			err := p - y[i]
			for f := 0; f < d; f++ {
				grad[f] += err * row[f]
			}
			gradB += err
		}
		for f := 0; f < d; f++ {
			w[f] -= cfg.LearningRate * (grad[f]/n + cfg.L2*w[f])
		}
		b -= cfg.LearningRate * gradB / n
	}
	return LogisticParams{Weights: w, Bias: b}
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// fitForest bags cfg.Trees CART trees over bootstrap resamples, with a
// random feature subset considered at each split.
func fitForest(x [][]float64, y []float64, cfg TrainerConfig, rng *rand.Rand) ForestParams {
	trees := make([]*TreeNode, cfg.Trees)
	for t := 0; t < cfg.Trees; t++ {
		idx := make([]int, len(x))
		for i := range idx {
			idx[i] = rng.Intn(len(x))
		}
		trees[t] = growTree(x, y, idx, cfg, rng, 0)
	}
	return ForestParams{Trees: trees}
}

func growTree(x [][]float64, y []float64, idx []int, cfg TrainerConfig, rng *rand.Rand, depth int) *TreeNode {
	pos := 0.0
	for _, i := range idx {
		pos += y[i]
	}
	prob := pos / float64(len(idx))

	if depth >= cfg.MaxDepth || len(idx) < 2*cfg.MinLeafSamples || prob == 0 || prob == 1 {
		return &TreeNode{Leaf: true, Prob: prob}
	}

	feature, threshold, ok := bestSplit(x, y, idx, cfg, rng)
	if !ok {
		return &TreeNode{Leaf: true, Prob: prob}
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < cfg.MinLeafSamples || len(right) < cfg.MinLeafSamples {
		return &TreeNode{Leaf: true, Prob: prob}
	}

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      growTree(x, y, left, cfg, rng, depth+1),
		Right:     growTree(x, y, right, cfg, rng, depth+1),
	}
}

// bestSplit scans a random subset of features for the Gini-optimal split.
func bestSplit(x [][]float64, y []float64, idx []int, cfg TrainerConfig, rng *rand.Rand) (int, float64, bool) {
	nFeatures := features.NumFields
	subset := rng.Perm(nFeatures)[:maxInt(1, int(math.Sqrt(float64(nFeatures))))]

	bestGini := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	for _, f := range subset {
		values := make([]float64, len(idx))
		for n, i := range idx {
			values[n] = x[i][f]
		}
		sort.Float64s(values)
		for n := 1; n < len(values); n++ {
			if values[n] == values[n-1] {
				continue
			}
			threshold := (values[n] + values[n-1]) / 2
			g := splitGini(x, y, idx, f, threshold)
			if g < bestGini {
				bestGini = g
				bestFeature = f
				bestThreshold = threshold
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func splitGini(x [][]float64, y []float64, idx []int, feature int, threshold float64) float64 {
	var ln, lp, rn, rp float64
	for _, i := range idx {
		if x[i][feature] <= threshold {
			ln++
			lp += y[i]
		} else {
			rn++
			rp += y[i]
		}
	}
	total := ln + rn
	return ln/total*gini(lp, ln) + rn/total*gini(rp, rn)
}

func gini(pos, n float64) float64 {
	if n == 0 {
		return 0
	}
	p := pos / n
	return 2 * p * (1 - p)
}

// aucScore computes the area under the ROC curve for holdout scores.
func aucScore(scores []float64, labels []float64) float64 {
	type pair struct {
		score float64
		pos   bool
	}
	pairs := make([]pair, len(scores))
	for i := range scores {
		pairs[i] = pair{scores[i], labels[i] > 0.5}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score < pairs[j].score })

	y := make([]float64, len(pairs))
	classes := make([]bool, len(pairs))
	anyPos, anyNeg := false, false
	for i, p := range pairs {
		y[i] = p.score
		classes[i] = p.pos
		if p.pos {
			anyPos = true
		} else {
			anyNeg = true
		}
	}
	// A single-class holdout has no ranking to measure.
	if !anyPos || !anyNeg {
		return 0.5
	}

	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
