package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"skirmish/controller"
	"skirmish/engine"
	"skirmish/learner"
	"skirmish/schedule"
)

type Config struct {
	Episodes         int      `yaml:"episodes"`
	LearningRate     float64  `yaml:"learning_rate"`
	Discount         float64  `yaml:"discount"`
	Epsilon          float64  `yaml:"epsilon"`
	Features         int      `yaml:"features"`
	DisabledFeatures []string `yaml:"disabled_features"`
	NormalizeWeights bool     `yaml:"normalize_weights"`
	Seed             uint64   `yaml:"seed"`

	Schedule Schedule `yaml:"schedule"`
	Output   Output   `yaml:"output"`

	Scenario string `yaml:"scenario"` // Path to a scenario file; empty means the default
	Listen   string `yaml:"listen"`   // Serve the controller over a websocket instead of simulating
}

type Schedule struct {
	Train  string `yaml:"train"`
	Report string `yaml:"report"`
}

type Output struct {
	Dir    string `yaml:"dir"`
	Name   string `yaml:"name"`
	CSV    bool   `yaml:"csv"`
	SQLite string `yaml:"sqlite"` // Database path relative to Dir; empty disables the index
	Trace  bool   `yaml:"trace"`
}

func Default() Config {
	return Config{
		Episodes:         controller.DefaultEpisodes,
		LearningRate:     learner.DefaultLearningRate,
		Discount:         learner.DefaultDiscount,
		Epsilon:          learner.DefaultEpsilon,
		Features:         int(learner.NumFeatures),
		NormalizeWeights: true,
		Seed:             1,
		Schedule: Schedule{
			Train:  schedule.DefaultTrain,
			Report: schedule.DefaultReport,
		},
		Output: Output{
			Dir:  ".",
			Name: "skirmish",
			CSV:  true,
		},
	}
}

// Load reads a YAML file over the defaults and normalizes the result.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.Scenario != "" && !filepath.IsAbs(cfg.Scenario) {
		cfg.Scenario = filepath.Join(filepath.Dir(path), cfg.Scenario)
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize replaces out-of-range values with their defaults, logging a
// warning for each.
func (c *Config) Normalize() {
	d := Default()
	if c.Episodes <= 0 {
		log.Warn().Msgf("episodes %d is not positive, using %d", c.Episodes, d.Episodes)
		c.Episodes = d.Episodes
	}
	if c.LearningRate <= 0 || math.IsNaN(c.LearningRate) || math.IsInf(c.LearningRate, 0) {
		log.Warn().Msgf("learning rate %v is invalid, using %v", c.LearningRate, d.LearningRate)
		c.LearningRate = d.LearningRate
	}
	if c.Discount < 0 || c.Discount > 1 || math.IsNaN(c.Discount) {
		log.Warn().Msgf("discount %v is outside [0, 1], using %v", c.Discount, d.Discount)
		c.Discount = d.Discount
	}
	if c.Epsilon < 0 || c.Epsilon > 1 || math.IsNaN(c.Epsilon) {
		log.Warn().Msgf("epsilon %v is outside [0, 1], using %v", c.Epsilon, d.Epsilon)
		c.Epsilon = d.Epsilon
	}
	if c.Features <= 0 || c.Features > int(learner.NumFeatures) {
		log.Warn().Msgf("feature count %d is outside [1, %d], using all", c.Features, learner.NumFeatures)
		c.Features = d.Features
	}
	valid := c.DisabledFeatures[:0]
	for _, name := range c.DisabledFeatures {
		if _, err := learner.ParseFeature(name); err != nil {
			log.Warn().Err(err).Msg("ignoring disabled feature")
			continue
		}
		valid = append(valid, name)
	}
	c.DisabledFeatures = valid
	if _, err := schedule.New(c.Schedule.Train, c.Schedule.Report); err != nil {
		log.Warn().Err(err).Msg("invalid schedule, using the default one")
		c.Schedule = d.Schedule
	}
	if c.Output.Name == "" {
		c.Output.Name = d.Output.Name
	}
	if c.Output.Dir == "" {
		c.Output.Dir = d.Output.Dir
	}
}

// Controller converts the file configuration into controller settings.
func (c Config) Controller() controller.Config {
	disabled := make([]learner.Feature, 0, len(c.DisabledFeatures))
	for _, name := range c.DisabledFeatures {
		if f, err := learner.ParseFeature(name); err == nil {
			disabled = append(disabled, f)
		}
	}
	return controller.Config{
		Episodes:         c.Episodes,
		LearningRate:     c.LearningRate,
		Discount:         c.Discount,
		Epsilon:          c.Epsilon,
		Features:         c.Features,
		DisabledFeatures: disabled,
		Normalize:        c.NormalizeWeights,
		Seed:             c.Seed,
		Train:            c.Schedule.Train,
		Report:           c.Schedule.Report,
	}
}

// LoadScenario returns the configured scenario, or the default one.
func (c Config) LoadScenario() (engine.Scenario, error) {
	if c.Scenario == "" {
		return engine.DefaultScenario(), nil
	}
	return engine.LoadScenario(c.Scenario)
}
