package controller

const (
	DeathPenalty = 100.0
	KillBonus    = 100.0
	StepPenalty  = 0.1
)

// Outcome is what happened to one friendly unit and its target between two
// processed ticks.
type Outcome struct {
	Died         bool
	HPLoss       int
	TargetDied   bool
	TargetHPLoss int
}

// Reward scores an outcome: losing health or dying costs, damaging or killing
// the target pays, and every processed tick costs StepPenalty.
func Reward(o Outcome) float64 {
	reward := 0.0
	if o.Died {
		reward -= DeathPenalty
	} else {
		reward -= float64(o.HPLoss)
	}
	if o.TargetDied {
		reward += KillBonus
	} else {
		reward += float64(o.TargetHPLoss)
	}
	return reward - StepPenalty
}
