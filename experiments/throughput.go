package experiments

import (
	"time"

	"github.com/rs/zerolog/log"

	"skirmish/engine"
	"skirmish/experiments/metrics"
	"skirmish/world"
)

// ThroughputEpisodes is short; only tick rates are of interest.
const ThroughputEpisodes = 10

// RunThroughputExperiment measures processed ticks per second as both armies
// grow.
func RunThroughputExperiment(root string, scenario engine.Scenario) (string, error) {
	configs := []metrics.RunConfig{}
	for i, units := range []int{1, 2, 4, 8, 16, 32, 64} {
		rc := baseline(i + 1)
		rc.Episodes = ThroughputEpisodes
		rc.Units = units
		configs = append(configs, rc)
	}
	return runExperiment("throughput", root, configs, scenario)
}

// resize lines up units per side along facing columns, keeping the hp of
// the scenario's first deployment of each side.
func resize(s engine.Scenario, units int) engine.Scenario {
	if units <= 0 {
		return s
	}
	friendlyHP, hostileHP := s.Friendly[0].HP, s.Hostile[0].HP
	s.Height = max(s.Height, units)
	s.Friendly = make([]engine.Deployment, units)
	s.Hostile = make([]engine.Deployment, units)
	for i := 0; i < units; i++ {
		s.Friendly[i] = engine.Deployment{HP: friendlyHP, Pos: world.Position{X: 0, Y: i}}
		s.Hostile[i] = engine.Deployment{HP: hostileHP, Pos: world.Position{X: s.Width - 1, Y: i}}
	}
	return s
}

// ticksPerSecond summarizes the episode records of one run.
func ticksPerSecond(episodes []metrics.EpisodeMetric) float64 {
	ticks := 0
	var elapsed time.Duration
	for _, m := range episodes {
		ticks += m.Ticks
		elapsed += m.Duration
	}
	if elapsed <= 0 {
		return 0
	}
	return float64(ticks) / elapsed.Seconds()
}

func logThroughput(rc metrics.RunConfig, records *metrics.Records) {
	if rc.Units == 0 {
		return
	}
	log.Info().Msgf("%d units per side: %.0f ticks/s", rc.Units, ticksPerSecond(records.Episodes))
}
