package learner

import (
	"math"
	"skirmish/world"

	"golang.org/x/exp/rand"
)

const (
	DefaultLearningRate = 0.0001
	DefaultDiscount     = 0.9
)

type Option func(e *Estimator)

func WithLearningRate(rate float64) Option {
	return func(e *Estimator) {
		if rate > 0 {
			e.learningRate = rate
		}
	}
}

func WithDiscount(discount float64) Option {
	return func(e *Estimator) {
		if discount >= 0 && discount <= 1 {
			e.discount = discount
		}
	}
}

// WithNormalization scales the weights to unit length after every update.
func WithNormalization(normalize bool) Option {
	return func(e *Estimator) {
		e.normalize = normalize
	}
}

// WithWeights starts from previously learned weights instead of random ones.
func WithWeights(weights []float64) Option {
	return func(e *Estimator) {
		if len(weights) == len(e.weights) {
			copy(e.weights, weights)
			e.maskDisabled()
		}
	}
}

// Estimator is a linear Q-function over a FeatureSet.
type Estimator struct {
	features     *FeatureSet
	weights      []float64
	learningRate float64
	discount     float64
	normalize    bool
}

func NewEstimator(rng *rand.Rand, features *FeatureSet, options ...Option) *Estimator {
	if features == nil {
		panic("estimator needs a feature set")
	}
	e := &Estimator{ // Default values
		features:     features,
		weights:      make([]float64, features.Len()),
		learningRate: DefaultLearningRate,
		discount:     DefaultDiscount,
		normalize:    true,
	}
	for i := range e.weights {
		e.weights[i] = randomWeight(rng)
	}
	e.maskDisabled()
	for _, option := range options {
		option(e)
	}
	return e
}

// randomWeight draws from the open interval (-1, 1).
func randomWeight(rng *rand.Rand) float64 {
	for {
		w := rng.Float64()*2 - 1
		if w != -1 {
			return w
		}
	}
}

func (e *Estimator) maskDisabled() {
	for i := range e.weights {
		if !e.features.Enabled(Feature(i)) {
			e.weights[i] = 0
		}
	}
}

// Value is the dot product of weights and features.
func Value(weights, features []float64) float64 {
	if len(weights) != len(features) {
		panic("weights and features differ in length")
	}
	sum := 0.0
	for i, w := range weights {
		sum += w * features[i]
	}
	return sum
}

func (e *Estimator) Value(features []float64) float64 {
	return Value(e.weights, features)
}

// Evaluate computes the value of a pairing.
func (e *Estimator) Evaluate(p Pairing) float64 {
	return e.Value(e.features.Compute(p))
}

func (e *Estimator) Features() *FeatureSet {
	return e.features
}

func (e *Estimator) Weights() []float64 {
	weights := make([]float64, len(e.weights))
	copy(weights, e.weights)
	return weights
}

func (e *Estimator) Normalizes() bool {
	return e.normalize
}

// Update applies one temporal-difference step toward
// reward + discount*maxFuture and returns the td error.
func (e *Estimator) Update(prev []float64, reward, maxFuture float64) float64 {
	td := reward + e.discount*maxFuture - e.Value(prev)
	for i := range e.weights {
		e.weights[i] += e.learningRate * td * prev[i]
	}
	if e.normalize {
		normalize(e.weights)
	}
	return td
}

// normalize scales weights to unit L2 norm; a zero vector is left alone.
func normalize(weights []float64) bool {
	sum := 0.0
	for _, w := range weights {
		sum += w * w
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return false
	}
	for i := range weights {
		weights[i] /= norm
	}
	return true
}

// Candidate is a hostile unit the actor could attack.
type Candidate struct {
	ID  world.UnitID
	HP  int
	Pos world.Position
}

// Best returns the candidate with the strictly greatest value, keeping the
// first one on ties. The first candidate is taken whatever its value. The
// attacker count of each candidate comes from tally.
func (e *Estimator) Best(actorHP int, actorPos world.Position, candidates []Candidate, tally Tally) (world.UnitID, float64, bool) {
	if len(candidates) == 0 {
		return 0, 0, false
	}
	bestID := candidates[0].ID
	bestValue := e.Evaluate(pairing(actorHP, actorPos, candidates[0], tally))
	for _, c := range candidates[1:] {
		if v := e.Evaluate(pairing(actorHP, actorPos, c, tally)); v > bestValue {
			bestID = c.ID
			bestValue = v
		}
	}
	return bestID, bestValue, true
}

// MaxValue is the bootstrap target for Update; it is 0 when no candidates
// remain.
func (e *Estimator) MaxValue(actorHP int, actorPos world.Position, candidates []Candidate, tally Tally) (world.UnitID, float64) {
	id, value, ok := e.Best(actorHP, actorPos, candidates, tally)
	if !ok {
		return 0, 0
	}
	return id, value
}

func pairing(actorHP int, actorPos world.Position, c Candidate, tally Tally) Pairing {
	return Pairing{
		ActorHP:   actorHP,
		ActorPos:  actorPos,
		TargetHP:  c.HP,
		TargetPos: c.Pos,
		Attackers: tally.Count(c.ID),
	}
}

// Tally counts attackers assigned to each hostile during one pass.
type Tally map[world.UnitID]int

func (t Tally) Add(id world.UnitID) {
	t[id]++
}

func (t Tally) Count(id world.UnitID) int {
	return t[id]
}
