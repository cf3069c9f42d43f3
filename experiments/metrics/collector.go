package metrics

import (
	"math"
	"time"
)

type EpisodeMetric struct {
	Episode     int
	Phase       string
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	Ticks       int // Ticks observed, including quiescent ones
	Decisions   int // Ticks that ran the assignment policy
	Updates     int // Weight updates applied
	MeanTDError float64
	Reward      float64
}

// BatchMetric is reported once per evaluation batch.
type BatchMetric struct {
	Episode       int // Episode that closed the batch
	GamesPlayed   int
	Evaluated     int
	AverageReward float64
	Weights       []float64
}

type Collector interface {
	Start(episode int, phase string)
	AddTick()
	AddDecision()
	AddUpdate(tdError float64)
	Complete(reward float64) EpisodeMetric
}

type collector struct {
	episode   int
	phase     string
	startTime time.Time
	ticks     int
	decisions int
	updates   int
	tdSum     float64
}

func NewCollector() Collector {
	return &collector{}
}

func (m *collector) Start(episode int, phase string) {
	*m = collector{
		episode:   episode,
		phase:     phase,
		startTime: time.Now(),
	}
}

func (m *collector) AddTick() {
	m.ticks++
}

func (m *collector) AddDecision() {
	m.decisions++
}

func (m *collector) AddUpdate(tdError float64) {
	m.updates++
	m.tdSum += math.Abs(tdError)
}

func (m *collector) Complete(reward float64) EpisodeMetric {
	end := time.Now()
	mean := 0.0
	if m.updates > 0 {
		mean = m.tdSum / float64(m.updates)
	}
	return EpisodeMetric{
		Episode:     m.episode,
		Phase:       m.phase,
		StartTime:   m.startTime,
		EndTime:     end,
		Duration:    end.Sub(m.startTime),
		Ticks:       m.ticks,
		Decisions:   m.decisions,
		Updates:     m.updates,
		MeanTDError: mean,
		Reward:      reward,
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start(episode int, phase string) {}
func (m *dummyCollector) AddTick()                        {}
func (m *dummyCollector) AddDecision()                    {}
func (m *dummyCollector) AddUpdate(tdError float64)       {}
func (m *dummyCollector) Complete(reward float64) EpisodeMetric {
	return EpisodeMetric{Reward: reward}
}

// Recorder receives finished episodes and batch reports.
type Recorder interface {
	RecordEpisode(m EpisodeMetric) error
	RecordBatch(b BatchMetric) error
}

// Records keeps everything in memory, e.g. for writing CSV files at the end
// of a run.
type Records struct {
	Episodes []EpisodeMetric
	Batches  []BatchMetric
}

func (r *Records) RecordEpisode(m EpisodeMetric) error {
	r.Episodes = append(r.Episodes, m)
	return nil
}

func (r *Records) RecordBatch(b BatchMetric) error {
	r.Batches = append(r.Batches, b)
	return nil
}

// Recorders fans records out to several recorders, stopping at the first
// error.
type Recorders []Recorder

func (rs Recorders) RecordEpisode(m EpisodeMetric) error {
	for _, r := range rs {
		if err := r.RecordEpisode(m); err != nil {
			return err
		}
	}
	return nil
}

func (rs Recorders) RecordBatch(b BatchMetric) error {
	for _, r := range rs {
		if err := r.RecordBatch(b); err != nil {
			return err
		}
	}
	return nil
}
