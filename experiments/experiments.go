package experiments

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"

	"skirmish/controller"
	"skirmish/engine"
	"skirmish/experiments/metrics"
	"skirmish/learner"
)

// Episodes is the length of every run; a multiple of ten so the last batch
// is reported.
var Episodes = 200

func baseline(id int) metrics.RunConfig {
	return metrics.RunConfig{
		ID:           id,
		Episodes:     Episodes,
		LearningRate: learner.DefaultLearningRate,
		Discount:     learner.DefaultDiscount,
		Epsilon:      learner.DefaultEpsilon,
		Features:     int(learner.NumFeatures),
		Normalize:    true,
	}
}

// RunNormalizationExperiment compares learning with and without scaling the
// weights to unit length after each update, over a few learning rates.
func RunNormalizationExperiment(root string, scenario engine.Scenario) (string, error) {
	configs := []metrics.RunConfig{}
	id := 1
	for _, rate := range []float64{0.0001, 0.001, 0.01} {
		for _, normalize := range []bool{true, false} {
			rc := baseline(id)
			rc.LearningRate = rate
			rc.Normalize = normalize
			configs = append(configs, rc)
			id++
		}
	}
	return runExperiment("normalization", root, configs, scenario)
}

func RunEpsilonExperiment(root string, scenario engine.Scenario) (string, error) {
	configs := []metrics.RunConfig{}
	for i, epsilon := range []float64{0, 0.02, 0.05, 0.1, 0.2} {
		rc := baseline(i + 1)
		rc.Epsilon = epsilon
		configs = append(configs, rc)
	}
	return runExperiment("epsilon", root, configs, scenario)
}

// RunFeatureExperiment grows the feature vector one canonical feature at a
// time.
func RunFeatureExperiment(root string, scenario engine.Scenario) (string, error) {
	configs := []metrics.RunConfig{}
	for n := 1; n <= int(learner.NumFeatures); n++ {
		rc := baseline(n)
		rc.Features = n
		configs = append(configs, rc)
	}
	return runExperiment("features", root, configs, scenario)
}

// runExperiment trains one controller per config on the local simulator and
// stores the results under root/experiments/name/<timestamp>, returning that
// directory.
func runExperiment(name, root string, configs []metrics.RunConfig, scenario engine.Scenario) (string, error) {
	writer, err := metrics.NewWriter(root, name)
	if err != nil {
		return "", fmt.Errorf("failed to create experiment writer: %w", err)
	}

	log.Info().Msgf("starting %s experiment...", name)

	episodeRecords := []metrics.EpisodeRecord{}
	batchRecords := []metrics.BatchRecord{}
	for i, rc := range configs {
		log.Info().Msgf("starting run %d of %d with config=%+v...", i+1, len(configs), rc)

		records, err := runConfig(name, writer.Dir(), rc, scenario)
		if err != nil {
			return "", fmt.Errorf("run %d: %w", rc.ID, err)
		}
		logThroughput(rc, records)
		for _, m := range records.Episodes {
			episodeRecords = append(episodeRecords, metrics.EpisodeRecord{Run: rc.ID, EpisodeMetric: m})
		}
		for _, b := range records.Batches {
			batchRecords = append(batchRecords, metrics.BatchRecord{Run: rc.ID, BatchMetric: b})
		}

		log.Info().Msgf("completed run %d of %d", i+1, len(configs))
	}

	log.Info().Msgf("completed %s experiment", name)

	if err := writer.WriteRunConfigs(configs); err != nil {
		return "", err
	}
	log.Info().Msg("stored run configs")

	if err := writer.WriteEpisodeRecords(episodeRecords); err != nil {
		return "", err
	}
	log.Info().Msg("stored episode records")

	if err := writer.WriteBatchRecords(batchRecords); err != nil {
		return "", err
	}
	log.Info().Msg("stored batch records")

	return writer.Dir(), nil
}

func runConfig(name, dir string, rc metrics.RunConfig, scenario engine.Scenario) (*metrics.Records, error) {
	index, err := metrics.OpenSQLite(filepath.Join(dir, "index.db"), fmt.Sprintf("%s-%d", name, rc.ID))
	if err != nil {
		return nil, err
	}
	defer index.Close()

	records := &metrics.Records{}
	seed := uint64(rc.ID)
	ctrl, err := controller.New(controllerConfig(rc),
		controller.WithCollector(metrics.NewCollector()),
		controller.WithRecorder(metrics.Recorders{records, index}),
		controller.WithRand(rand.New(rand.NewSource(seed))),
	)
	if err != nil {
		return nil, err
	}
	sim := engine.NewLocal(resize(scenario, rc.Units), rand.New(rand.NewSource(seed<<32)))
	if err := engine.Run(context.Background(), sim, ctrl); err != nil {
		return nil, err
	}
	return records, nil
}

func controllerConfig(rc metrics.RunConfig) controller.Config {
	cfg := controller.DefaultConfig()
	cfg.Episodes = rc.Episodes
	cfg.LearningRate = rc.LearningRate
	cfg.Discount = rc.Discount
	cfg.Epsilon = rc.Epsilon
	cfg.Features = rc.Features
	cfg.Normalize = rc.Normalize
	cfg.Seed = uint64(rc.ID)
	return cfg
}
