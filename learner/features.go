package learner

import (
	"fmt"
	"skirmish/world"
)

// Feature indexes the canonical feature vector.
type Feature int

const (
	Bias Feature = iota
	Distance
	TargetHP
	ActorHP
	Attackers
	ActorX
	ActorY
	NumFeatures
)

var featureNames = [NumFeatures]string{
	"bias", "distance", "target_hp", "actor_hp", "attackers", "actor_x", "actor_y",
}

func (f Feature) String() string {
	if f < 0 || f >= NumFeatures {
		return fmt.Sprintf("feature(%d)", int(f))
	}
	return featureNames[f]
}

// ParseFeature maps a configuration name to its feature.
func ParseFeature(name string) (Feature, error) {
	for i, n := range featureNames {
		if n == name {
			return Feature(i), nil
		}
	}
	return 0, fmt.Errorf("unknown feature %q", name)
}

// Pairing describes one friendly unit attacking one hostile unit.
type Pairing struct {
	ActorHP   int
	ActorPos  world.Position
	TargetHP  int
	TargetPos world.Position
	Attackers int // Friendly units already committed to the target
}

// FeatureSet computes feature vectors. Disabled features always read 0 so
// every configuration shares the same vector layout.
type FeatureSet struct {
	enabled [NumFeatures]bool
}

// NewFeatureSet enables the first size canonical features (all of them when
// size is out of range) minus the disabled ones.
func NewFeatureSet(size int, disabled ...Feature) *FeatureSet {
	if size <= 0 || size > int(NumFeatures) {
		size = int(NumFeatures)
	}
	fs := &FeatureSet{}
	for i := 0; i < size; i++ {
		fs.enabled[i] = true
	}
	for _, f := range disabled {
		if f >= 0 && f < NumFeatures {
			fs.enabled[f] = false
		}
	}
	return fs
}

func (fs *FeatureSet) Enabled(f Feature) bool {
	return f >= 0 && f < NumFeatures && fs.enabled[f]
}

// Len is the length of every computed vector.
func (fs *FeatureSet) Len() int {
	return int(NumFeatures)
}

func (fs *FeatureSet) Compute(p Pairing) []float64 {
	raw := [NumFeatures]float64{
		Bias:      1,
		Distance:  float64(world.Chebyshev(p.ActorPos, p.TargetPos)),
		TargetHP:  float64(p.TargetHP),
		ActorHP:   float64(p.ActorHP),
		Attackers: float64(p.Attackers),
		ActorX:    float64(p.ActorPos.X),
		ActorY:    float64(p.ActorPos.Y),
	}
	features := make([]float64, NumFeatures)
	for i := range raw {
		if fs.enabled[i] {
			features[i] = raw[i]
		}
	}
	return features
}
