package metrics

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	t.Run("summarizing an episode", func(t *testing.T) {
		c := NewCollector()
		c.Start(3, "training")
		c.AddTick()
		c.AddTick()
		c.AddTick()
		c.AddDecision()
		c.AddUpdate(2)
		c.AddUpdate(-4)

		got := c.Complete(-12.5)

		require.Equal(t, 3, got.Episode)
		require.Equal(t, "training", got.Phase)
		require.Equal(t, 3, got.Ticks)
		require.Equal(t, 1, got.Decisions)
		require.Equal(t, 2, got.Updates)
		require.InDelta(t, 3.0, got.MeanTDError, 1e-12, "Mean should use absolute td errors")
		require.Equal(t, -12.5, got.Reward)
	})

	t.Run("resetting on start", func(t *testing.T) {
		c := NewCollector()
		c.Start(0, "training")
		c.AddTick()
		c.Start(1, "evaluation")

		got := c.Complete(0)

		require.Equal(t, 0, got.Ticks)
		require.Equal(t, 1, got.Episode)
	})

	t.Run("dummy collector keeps only the reward", func(t *testing.T) {
		c := NewDummyCollector()
		c.Start(5, "training")
		c.AddTick()

		require.Equal(t, EpisodeMetric{Reward: 7}, c.Complete(7))
	})
}

func TestRecorders(t *testing.T) {
	t.Run("fanning out to every recorder", func(t *testing.T) {
		a, b := &Records{}, &Records{}
		rs := Recorders{a, b}

		require.NoError(t, rs.RecordEpisode(EpisodeMetric{Episode: 1}))
		require.NoError(t, rs.RecordBatch(BatchMetric{Episode: 9}))

		require.Len(t, a.Episodes, 1)
		require.Len(t, b.Batches, 1)
	})
}

func TestWriter(t *testing.T) {
	t.Run("writing csv files with headers", func(t *testing.T) {
		w, err := NewWriter(t.TempDir(), "unit")
		require.NoError(t, err)

		require.NoError(t, w.WriteRunConfigs([]RunConfig{{ID: 1, Episodes: 10, LearningRate: 0.001, Discount: 0.9, Epsilon: 0.02, Features: 7, Normalize: true}}))
		require.NoError(t, w.WriteEpisodeRecords([]EpisodeRecord{{Run: 1, EpisodeMetric: EpisodeMetric{Episode: 0, Phase: "training", Reward: -3.5}}}))
		require.NoError(t, w.WriteBatchRecords([]BatchRecord{{Run: 1, BatchMetric: BatchMetric{Episode: 9, GamesPlayed: 10, Evaluated: 5, AverageReward: 42, Weights: []float64{0.5, -0.5}}}}))

		rows := readCSV(t, filepath.Join(w.Dir(), "batch_records.csv"))
		require.Len(t, rows, 2)
		require.Equal(t, []string{"1", "9", "10", "5", "42", "0.5 -0.5"}, rows[1])

		rows = readCSV(t, filepath.Join(w.Dir(), "episode_records.csv"))
		require.Len(t, rows, 2)
		require.Equal(t, "training", rows[1][2])
		require.Equal(t, "-3.5", rows[1][9])

		rows = readCSV(t, filepath.Join(w.Dir(), "run_configs.csv"))
		require.Equal(t, []string{"1", "10", "0.001", "0.9", "0.02", "7", "true", "0"}, rows[1])
	})
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestSQLiteIndex(t *testing.T) {
	t.Run("storing and reading back batches", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "runs", "index.db")
		idx, err := OpenSQLite(path, "run-a")
		require.NoError(t, err)
		defer idx.Close()

		require.NoError(t, idx.RecordEpisode(EpisodeMetric{Episode: 0, Phase: "training", Reward: 1}))
		require.NoError(t, idx.RecordEpisode(EpisodeMetric{Episode: 1, Phase: "training", Reward: 2}))
		require.NoError(t, idx.RecordBatch(BatchMetric{Episode: 19, GamesPlayed: 10, Evaluated: 5, AverageReward: 3, Weights: []float64{1, 0}}))
		require.NoError(t, idx.RecordBatch(BatchMetric{Episode: 9, GamesPlayed: 0, Evaluated: 5, AverageReward: -1, Weights: []float64{0, 1}}))

		n, err := idx.EpisodeCount()
		require.NoError(t, err)
		require.Equal(t, 2, n)

		batches, err := idx.Batches()
		require.NoError(t, err)
		require.Len(t, batches, 2)
		require.Equal(t, 9, batches[0].Episode)
		require.Equal(t, []float64{0, 1}, batches[0].Weights)
		require.Equal(t, 3.0, batches[1].AverageReward)
	})

	t.Run("keeping runs apart", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index.db")
		a, err := OpenSQLite(path, "a")
		require.NoError(t, err)
		require.NoError(t, a.RecordEpisode(EpisodeMetric{Episode: 0}))
		require.NoError(t, a.Close())

		b, err := OpenSQLite(path, "b")
		require.NoError(t, err)
		defer b.Close()

		n, err := b.EpisodeCount()
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("rejecting an empty path", func(t *testing.T) {
		_, err := OpenSQLite("", "a")
		require.Error(t, err)
	})
}
