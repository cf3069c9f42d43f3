package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type RunConfig struct {
	ID           int
	Episodes     int
	LearningRate float64
	Discount     float64
	Epsilon      float64
	Features     int
	Normalize    bool
	Units        int // Units per side; 0 keeps the scenario as is
}

type EpisodeRecord struct {
	Run int // RunConfig.ID
	EpisodeMetric
}

type BatchRecord struct {
	Run int // RunConfig.ID
	BatchMetric
}

type Writer struct {
	baseDir string
}

// NewWriter creates experiments/<name>/<timestamp> under root.
func NewWriter(root, name string) (*Writer, error) {
	timestamp := time.Now().UTC().Format("20060102T150405Z")
	baseDir := filepath.Join(root, "experiments", name, timestamp)
	err := os.MkdirAll(baseDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &Writer{
		baseDir: baseDir,
	}, nil
}

func (w *Writer) Dir() string {
	return w.baseDir
}

func (w *Writer) WriteRunConfigs(configs []RunConfig) error {
	header := []string{"id", "episodes", "learning_rate", "discount", "epsilon", "features", "normalize", "units"}
	rows := make([][]string, 0, len(configs))
	for _, config := range configs {
		rows = append(rows, []string{
			strconv.Itoa(config.ID),
			strconv.Itoa(config.Episodes),
			formatFloat(config.LearningRate),
			formatFloat(config.Discount),
			formatFloat(config.Epsilon),
			strconv.Itoa(config.Features),
			strconv.FormatBool(config.Normalize),
			strconv.Itoa(config.Units),
		})
	}
	if err := w.write("run_configs.csv", header, rows); err != nil {
		return fmt.Errorf("failed to write run configs: %w", err)
	}
	return nil
}

func (w *Writer) WriteEpisodeRecords(records []EpisodeRecord) error {
	header := []string{"run", "episode", "phase", "start_time", "duration", "ticks", "decisions", "updates", "mean_td_error", "reward"}
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			strconv.Itoa(record.Run),
			strconv.Itoa(record.Episode),
			record.Phase,
			record.StartTime.Format(time.RFC3339),
			record.Duration.String(),
			strconv.Itoa(record.Ticks),
			strconv.Itoa(record.Decisions),
			strconv.Itoa(record.Updates),
			formatFloat(record.MeanTDError),
			formatFloat(record.Reward),
		})
	}
	if err := w.write("episode_records.csv", header, rows); err != nil {
		return fmt.Errorf("failed to write episode records: %w", err)
	}
	return nil
}

func (w *Writer) WriteBatchRecords(records []BatchRecord) error {
	header := []string{"run", "episode", "games_played", "evaluated", "average_reward", "weights"}
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			strconv.Itoa(record.Run),
			strconv.Itoa(record.Episode),
			strconv.Itoa(record.GamesPlayed),
			strconv.Itoa(record.Evaluated),
			formatFloat(record.AverageReward),
			formatWeights(record.Weights),
		})
	}
	if err := w.write("batch_records.csv", header, rows); err != nil {
		return fmt.Errorf("failed to write batch records: %w", err)
	}
	return nil
}

func (w *Writer) write(filename string, header []string, rows [][]string) error {
	f, err := os.Create(filepath.Join(w.baseDir, filename))
	if err != nil {
		return err
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatWeights(weights []float64) string {
	parts := make([]string, len(weights))
	for i, w := range weights {
		parts[i] = formatFloat(w)
	}
	return strings.Join(parts, " ")
}
