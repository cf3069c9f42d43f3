package schedule

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Default expressions: batches of five training episodes followed by five
// evaluation episodes, reported after every evaluation batch.
const (
	DefaultTrain  = "episode % 10 < 5"
	DefaultReport = "episode % 10 == 9"
)

type Phase int

const (
	Training Phase = iota
	Evaluation
)

func (p Phase) String() string {
	if p == Training {
		return "training"
	}
	return "evaluation"
}

// Schedule decides per episode whether the controller learns and when batch
// averages are reported. Conditions are expr programs over `episode`.
type Schedule struct {
	trainSrc  string
	reportSrc string
	train     *vm.Program
	report    *vm.Program
}

func New(train, report string) (*Schedule, error) {
	if train == "" {
		train = DefaultTrain
	}
	if report == "" {
		report = DefaultReport
	}
	trainProg, err := compile(train)
	if err != nil {
		return nil, fmt.Errorf("train condition: %w", err)
	}
	reportProg, err := compile(report)
	if err != nil {
		return nil, fmt.Errorf("report condition: %w", err)
	}
	return &Schedule{
		trainSrc:  train,
		reportSrc: report,
		train:     trainProg,
		report:    reportProg,
	}, nil
}

// Default returns the five-train/five-evaluate schedule.
func Default() *Schedule {
	s, err := New(DefaultTrain, DefaultReport)
	if err != nil {
		panic(err)
	}
	return s
}

func compile(src string) (*vm.Program, error) {
	return expr.Compile(src, expr.Env(env(0)), expr.AsBool())
}

func env(episode int) map[string]any {
	return map[string]any{"episode": episode}
}

// Phase returns whether the episode trains or evaluates.
func (s *Schedule) Phase(episode int) (Phase, error) {
	train, err := run(s.train, episode)
	if err != nil {
		return Evaluation, fmt.Errorf("train condition %q: %w", s.trainSrc, err)
	}
	if train {
		return Training, nil
	}
	return Evaluation, nil
}

// Report returns whether the batch average is reported after the episode.
func (s *Schedule) Report(episode int) (bool, error) {
	report, err := run(s.report, episode)
	if err != nil {
		return false, fmt.Errorf("report condition %q: %w", s.reportSrc, err)
	}
	return report, nil
}

func (s *Schedule) String() string {
	return fmt.Sprintf("train when %q, report when %q", s.trainSrc, s.reportSrc)
}

func run(program *vm.Program, episode int) (bool, error) {
	out, err := vm.Run(program, env(episode))
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition returned %T, want bool", out)
	}
	return b, nil
}
