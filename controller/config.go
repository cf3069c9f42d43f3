package controller

import (
	"skirmish/learner"
	"skirmish/schedule"
)

const DefaultEpisodes = 200

// Config holds the hyperparameters of one training run.
type Config struct {
	Episodes         int // Episodes to play before Done; non-positive means DefaultEpisodes
	LearningRate     float64
	Discount         float64
	Epsilon          float64
	Features         int // Number of canonical features enabled; non-positive means all
	DisabledFeatures []learner.Feature
	Normalize        bool
	Seed             uint64
	Train            string // Schedule condition for training episodes
	Report           string // Schedule condition for batch reports
}

func DefaultConfig() Config {
	return Config{
		Episodes:     DefaultEpisodes,
		LearningRate: learner.DefaultLearningRate,
		Discount:     learner.DefaultDiscount,
		Epsilon:      learner.DefaultEpsilon,
		Features:     int(learner.NumFeatures),
		Normalize:    true,
		Seed:         1,
		Train:        schedule.DefaultTrain,
		Report:       schedule.DefaultReport,
	}
}

func (c Config) episodes() int {
	if c.Episodes <= 0 {
		return DefaultEpisodes
	}
	return c.Episodes
}
