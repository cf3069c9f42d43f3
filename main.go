package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"

	"skirmish/config"
	"skirmish/controller"
	"skirmish/engine"
	"skirmish/experiments"
	"skirmish/experiments/metrics"
	"skirmish/server"
	"skirmish/trace"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	episodes := flag.Int("episodes", 0, "Episodes to play, overriding the configuration")
	listen := flag.String("listen", "", "Serve the controller on this address instead of simulating")
	connect := flag.String("connect", "", "Drive a controller served at this websocket url with the local simulator")
	experiment := flag.String("experiment", "", "Run an experiment: normalization, epsilon, features or throughput")
	debug := flag.Bool("debug", false, "Log every episode")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load configuration")
		}
	}
	if *episodes > 0 {
		cfg.Episodes = *episodes
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	scenario, err := cfg.LoadScenario()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load scenario")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case *experiment != "":
		runExperiment(*experiment, cfg, scenario)
	case *connect != "":
		drive(ctx, *connect, cfg, scenario)
	default:
		train(ctx, cfg, scenario)
	}
}

func runExperiment(name string, cfg config.Config, scenario engine.Scenario) {
	experiments.Episodes = cfg.Episodes
	run := map[string]func(string, engine.Scenario) (string, error){
		"normalization": experiments.RunNormalizationExperiment,
		"epsilon":       experiments.RunEpsilonExperiment,
		"features":      experiments.RunFeatureExperiment,
		"throughput":    experiments.RunThroughputExperiment,
	}[name]
	if run == nil {
		log.Fatal().Msgf("unknown experiment %q", name)
	}
	dir, err := run(cfg.Output.Dir, scenario)
	if err != nil {
		log.Fatal().Err(err).Msgf("%s experiment failed", name)
	}
	log.Info().Msgf("results written to %s", dir)
}

// drive plays the local simulator against a remote controller.
func drive(ctx context.Context, url string, cfg config.Config, scenario engine.Scenario) {
	remote, err := engine.Dial(ctx, url)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	defer remote.Close()

	sim := engine.NewLocal(scenario, rand.New(rand.NewSource(cfg.Seed)))
	if err := engine.Run(ctx, sim, remote); err != nil {
		log.Fatal().Err(err).Msg("run failed")
	}
}

// train runs the controller, either against the local simulator or behind a
// websocket when a listen address is configured.
func train(ctx context.Context, cfg config.Config, scenario engine.Scenario) {
	writer, err := metrics.NewWriter(cfg.Output.Dir, cfg.Output.Name)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create output directory")
	}

	records := &metrics.Records{}
	recorders := metrics.Recorders{records}
	if cfg.Output.SQLite != "" {
		index, err := metrics.OpenSQLite(filepath.Join(cfg.Output.Dir, cfg.Output.SQLite), filepath.Base(writer.Dir()))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open run index")
		}
		defer index.Close()
		recorders = append(recorders, index)
	}

	var tracer trace.Tracer = trace.Nop{}
	if cfg.Output.Trace {
		tracer = trace.NewWriter(filepath.Join(writer.Dir(), "trace"), "trace", trace.DefaultBatch)
	}
	defer tracer.Close()

	ctrl, err := controller.New(cfg.Controller(),
		controller.WithCollector(metrics.NewCollector()),
		controller.WithRecorder(recorders),
		controller.WithTracer(tracer),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create controller")
	}

	if cfg.Listen != "" {
		if err := server.ListenAndServe(ctx, cfg.Listen, ctrl); err != nil {
			log.Error().Err(err).Msg("server stopped")
		}
		log.Info().Msgf("final weights: %v", ctrl.Weights())
		return
	}

	log.Info().Msgf("training for %d episodes", cfg.Episodes)
	sim := engine.NewLocal(scenario, rand.New(rand.NewSource(cfg.Seed+1)))
	if err := engine.Run(ctx, sim, ctrl); err != nil {
		log.Error().Err(err).Msg("run stopped")
	}

	if cfg.Output.CSV {
		if err := writeRecords(writer, cfg, records); err != nil {
			log.Fatal().Err(err).Msg("failed to write records")
		}
		log.Info().Msgf("records written to %s", writer.Dir())
	}
	log.Info().Msgf("final weights: %v", ctrl.Weights())
}

func writeRecords(writer *metrics.Writer, cfg config.Config, records *metrics.Records) error {
	ctrl := cfg.Controller()
	run := metrics.RunConfig{
		ID:           1,
		Episodes:     ctrl.Episodes,
		LearningRate: ctrl.LearningRate,
		Discount:     ctrl.Discount,
		Epsilon:      ctrl.Epsilon,
		Features:     ctrl.Features,
		Normalize:    ctrl.Normalize,
	}
	if err := writer.WriteRunConfigs([]metrics.RunConfig{run}); err != nil {
		return err
	}
	episodes := make([]metrics.EpisodeRecord, len(records.Episodes))
	for i, m := range records.Episodes {
		episodes[i] = metrics.EpisodeRecord{Run: run.ID, EpisodeMetric: m}
	}
	if err := writer.WriteEpisodeRecords(episodes); err != nil {
		return err
	}
	batches := make([]metrics.BatchRecord, len(records.Batches))
	for i, b := range records.Batches {
		batches[i] = metrics.BatchRecord{Run: run.ID, BatchMetric: b}
	}
	return writer.WriteBatchRecords(batches)
}
