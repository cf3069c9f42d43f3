package controller

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"

	"skirmish/experiments/metrics"
	"skirmish/learner"
	"skirmish/schedule"
	"skirmish/trace"
	"skirmish/world"
)

var (
	// ErrNoEpisode is returned when there is no episode to start or terminate.
	ErrNoEpisode     = errors.New("no episode in progress")
	ErrNoObservation = errors.New("nil observation")
	ErrWeightCount   = errors.New("wrong number of weights")
)

type Option func(c *Controller)

func WithCollector(collector metrics.Collector) Option {
	return func(c *Controller) {
		if collector != nil {
			c.collector = collector
		}
	}
}

func WithRecorder(recorder metrics.Recorder) Option {
	return func(c *Controller) {
		if recorder != nil {
			c.recorder = recorder
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Controller) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithStore loads initial weights from store and saves them after every
// batch report.
func WithStore(store learner.Store) Option {
	return func(c *Controller) {
		if store != nil {
			c.store = store
		}
	}
}

func WithRand(rng *rand.Rand) Option {
	return func(c *Controller) {
		if rng != nil {
			c.rng = rng
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// EpisodeResult summarizes a finished episode. Batch is set when the episode
// closed an evaluation batch.
type EpisodeResult struct {
	Episode int                   `json:"episode"`
	Phase   string                `json:"phase"`
	Reward  float64               `json:"reward"`
	Metric  metrics.EpisodeMetric `json:"metric"`
	Batch   *metrics.BatchMetric  `json:"batch,omitempty"`
}

// Controller plays episodes one tick at a time, learning a linear value
// function over friendly/hostile pairings. It is not safe for concurrent use.
type Controller struct {
	cfg       Config
	rng       *rand.Rand
	estimator *learner.Estimator
	policy    *learner.Policy
	schedule  *schedule.Schedule
	collector metrics.Collector
	recorder  metrics.Recorder
	tracer    trace.Tracer
	store     learner.Store
	logger    zerolog.Logger

	// Current episode
	snap   *world.Snapshot
	phase  schedule.Phase
	tick   int
	reward float64

	// Across episodes
	episode   int
	evalTotal float64
	evalCount int
}

func New(cfg Config, options ...Option) (*Controller, error) {
	c := &Controller{ // Default values
		cfg:       cfg,
		collector: metrics.NewDummyCollector(),
		recorder:  metrics.Recorders{},
		tracer:    trace.Nop{},
		store:     learner.NopStore{},
		logger:    log.Logger,
	}
	for _, option := range options {
		option(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(cfg.Seed))
	}

	s, err := schedule.New(cfg.Train, cfg.Report)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	c.schedule = s

	weights, err := c.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load weights: %w", err)
	}
	features := learner.NewFeatureSet(cfg.Features, cfg.DisabledFeatures...)
	if weights != nil && len(weights) != features.Len() {
		return nil, fmt.Errorf("stored weights have %d entries, want %d: %w", len(weights), features.Len(), ErrWeightCount)
	}
	c.estimator = learner.NewEstimator(c.rng, features,
		learner.WithLearningRate(cfg.LearningRate),
		learner.WithDiscount(cfg.Discount),
		learner.WithNormalization(cfg.Normalize),
		learner.WithWeights(weights),
	)
	c.policy = learner.NewPolicy(c.estimator, c.rng, learner.WithEpsilon(cfg.Epsilon))
	return c, nil
}

// Step processes one observation and returns the attack commands to issue.
// The first observation of an episode always yields an assignment; later
// observations yield nil when nothing relevant changed.
func (c *Controller) Step(obs world.Observation) (world.Commands, error) {
	if obs == nil {
		return nil, ErrNoObservation
	}
	if c.snap == nil {
		return c.begin(obs)
	}

	c.tick++
	c.collector.AddTick()
	if !c.changed(obs) {
		return nil, nil
	}

	entry := c.analyze(obs)
	commands := c.policy.Assign(c.snap, c.explores())
	c.collector.AddDecision()

	entry.Commands = commands
	if err := c.tracer.Trace(entry); err != nil {
		return nil, fmt.Errorf("trace tick %d: %w", c.tick, err)
	}
	return commands, nil
}

func (c *Controller) begin(obs world.Observation) (world.Commands, error) {
	if len(obs.LiveIDs(world.Friendly)) == 0 {
		return nil, ErrNoEpisode
	}
	phase, err := c.schedule.Phase(c.episode)
	if err != nil {
		return nil, fmt.Errorf("episode %d: %w", c.episode, err)
	}

	c.phase = phase
	c.tick = 0
	c.reward = 0
	c.snap = world.NewSnapshot(obs)
	c.collector.Start(c.episode, phase.String())
	c.collector.AddTick()

	commands := c.policy.Assign(c.snap, c.explores())
	c.collector.AddDecision()

	err = c.tracer.Trace(trace.Entry{
		Episode:  c.episode,
		Tick:     c.tick,
		Phase:    phase.String(),
		Commands: commands,
	})
	if err != nil {
		return nil, fmt.Errorf("trace tick %d: %w", c.tick, err)
	}
	return commands, nil
}

func (c *Controller) explores() bool {
	return c.phase == schedule.Training
}

// changed reports whether any friendly unit or its target was hurt, killed,
// or is waiting for an assignment, or a friendly unit appeared.
func (c *Controller) changed(obs world.Observation) bool {
	hostilesLeft := len(obs.LiveIDs(world.Hostile)) > 0
	for _, id := range obs.LiveIDs(world.Friendly) {
		if !c.snap.Tracked(world.Friendly, id) && hostilesLeft {
			return true
		}
	}
	for _, id := range c.snap.IDs(world.Friendly) {
		hp, _ := c.snap.HP(world.Friendly, id)
		u, alive := obs.Unit(id)
		if !alive || u.HP != hp {
			return true
		}

		target, assigned := c.snap.Target(id)
		if !assigned {
			if hostilesLeft {
				return true
			}
			continue
		}
		targetHP, tracked := c.snap.HP(world.Hostile, target)
		t, live := obs.Unit(target)
		if !tracked || !live || t.HP != targetHP {
			return true
		}
	}
	return false
}

// analyze rewards every friendly unit for what happened since the last
// processed tick, updates the weights when training, and purges dead units
// before refreshing the snapshot from obs.
func (c *Controller) analyze(obs world.Observation) trace.Entry {
	entry := trace.Entry{
		Episode:  c.episode,
		Tick:     c.tick,
		Phase:    c.phase.String(),
		Rewards:  make(map[world.UnitID]float64),
		TDErrors: make(map[world.UnitID]float64),
	}

	learning := c.phase == schedule.Training
	hostiles := learner.ObservedCandidates(obs)
	tally := make(learner.Tally)
	features := c.estimator.Features()

	for _, id := range c.snap.IDs(world.Friendly) {
		hp, _ := c.snap.HP(world.Friendly, id)
		pos, _ := c.snap.Position(world.Friendly, id)
		u, alive := obs.Unit(id)

		var outcome Outcome
		if alive {
			outcome.HPLoss = hp - u.HP
		} else {
			outcome.Died = true
		}

		target, assigned := c.snap.Target(id)
		var targetHP int
		var targetPos world.Position
		tracked := false
		if assigned {
			targetHP, tracked = c.snap.HP(world.Hostile, target)
			targetPos, _ = c.snap.Position(world.Hostile, target)
		}
		if tracked {
			if t, live := obs.Unit(target); live {
				outcome.TargetHPLoss = targetHP - t.HP
			} else {
				outcome.TargetDied = true
			}
		}

		reward := Reward(outcome)
		c.reward += reward
		entry.Rewards[id] = reward

		if learning && tracked {
			prev := features.Compute(learner.Pairing{
				ActorHP:   hp,
				ActorPos:  pos,
				TargetHP:  targetHP,
				TargetPos: targetPos,
				Attackers: c.snap.CountAttackers(target),
			})
			actorHP, actorPos := hp, pos
			if alive {
				actorHP, actorPos = u.HP, u.Pos
			}
			best, maxFuture := c.estimator.MaxValue(actorHP, actorPos, hostiles, tally)
			if len(hostiles) > 0 {
				tally.Add(best)
			}
			td := c.estimator.Update(prev, reward, maxFuture)
			c.collector.AddUpdate(td)
			entry.TDErrors[id] = td
		}

		if !alive {
			c.snap.MarkForRemoval(world.Friendly, id)
			entry.Swept = append(entry.Swept, id)
		}
		if outcome.TargetDied && !c.snap.Marked(world.Hostile, target) {
			c.snap.MarkForRemoval(world.Hostile, target)
			entry.Swept = append(entry.Swept, target)
		}
	}

	// Hostile units killed while nobody targeted them.
	for _, id := range c.snap.IDs(world.Hostile) {
		if _, live := obs.Unit(id); !live && !c.snap.Marked(world.Hostile, id) {
			c.snap.MarkForRemoval(world.Hostile, id)
			entry.Swept = append(entry.Swept, id)
		}
	}

	c.snap.Sweep()
	c.snap.Refresh(obs)
	return entry
}

// Terminate closes the episode. A non-nil final observation is analyzed
// first so the last tick's rewards count. Evaluation rewards are folded into
// the batch average, which is reported on the schedule's report episodes.
func (c *Controller) Terminate(obs world.Observation) (EpisodeResult, error) {
	if c.snap == nil {
		return EpisodeResult{}, ErrNoEpisode
	}

	if obs != nil {
		c.tick++
		c.collector.AddTick()
		entry := c.analyze(obs)
		entry.Terminal = true
		if err := c.tracer.Trace(entry); err != nil {
			return EpisodeResult{}, fmt.Errorf("trace tick %d: %w", c.tick, err)
		}
	}

	metric := c.collector.Complete(c.reward)
	result := EpisodeResult{
		Episode: c.episode,
		Phase:   c.phase.String(),
		Reward:  c.reward,
		Metric:  metric,
	}

	if c.phase == schedule.Evaluation {
		c.evalTotal += c.reward
		c.evalCount++
	}

	report, err := c.schedule.Report(c.episode)
	if err != nil {
		return EpisodeResult{}, fmt.Errorf("episode %d: %w", c.episode, err)
	}
	if report {
		batch := c.fold()
		result.Batch = &batch
	}

	if err := c.recorder.RecordEpisode(metric); err != nil {
		return EpisodeResult{}, fmt.Errorf("record episode %d: %w", c.episode, err)
	}
	if result.Batch != nil {
		if err := c.recorder.RecordBatch(*result.Batch); err != nil {
			return EpisodeResult{}, fmt.Errorf("record batch %d: %w", c.episode, err)
		}
		if err := c.store.Save(c.estimator.Weights()); err != nil {
			return EpisodeResult{}, fmt.Errorf("save weights: %w", err)
		}
	}

	c.logger.Debug().Msgf("episode %d (%s) finished after %d ticks with reward %.2f", c.episode, c.phase, c.tick, c.reward)
	c.episode++
	c.snap = nil
	return result, nil
}

// fold closes the evaluation batch and resets the rolling total.
func (c *Controller) fold() metrics.BatchMetric {
	average := 0.0
	if c.evalCount > 0 {
		average = c.evalTotal / float64(c.evalCount)
	}
	batch := metrics.BatchMetric{
		Episode:       c.episode,
		GamesPlayed:   c.episode + 1,
		Evaluated:     c.evalCount,
		AverageReward: average,
		Weights:       c.estimator.Weights(),
	}
	c.logger.Info().Msgf("games played: %d, average reward: %.3f", batch.GamesPlayed, batch.AverageReward)
	c.evalTotal = 0
	c.evalCount = 0
	return batch
}

// Done reports whether the configured number of episodes has been played.
func (c *Controller) Done() bool {
	return c.episode >= c.cfg.episodes()
}

// Episode is the index of the current (or next) episode.
func (c *Controller) Episode() int {
	return c.episode
}

// InEpisode reports whether an episode has started and not terminated.
func (c *Controller) InEpisode() bool {
	return c.snap != nil
}

func (c *Controller) Phase() schedule.Phase {
	return c.phase
}

func (c *Controller) Weights() []float64 {
	return c.estimator.Weights()
}

func (c *Controller) Epsilon() float64 {
	return c.policy.Epsilon()
}
