package learner

import (
	"skirmish/world"

	"golang.org/x/exp/rand"
)

const DefaultEpsilon = 0.02

type PolicyOption func(p *Policy)

// WithEpsilon sets the probability of picking a random target.
func WithEpsilon(epsilon float64) PolicyOption {
	return func(p *Policy) {
		if epsilon >= 0 && epsilon <= 1 {
			p.epsilon = epsilon
		}
	}
}

// Policy assigns one hostile target per friendly unit, epsilon-greedily.
type Policy struct {
	estimator *Estimator
	rng       *rand.Rand
	epsilon   float64
}

func NewPolicy(estimator *Estimator, rng *rand.Rand, options ...PolicyOption) *Policy {
	p := &Policy{
		estimator: estimator,
		rng:       rng,
		epsilon:   DefaultEpsilon,
	}
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *Policy) Epsilon() float64 {
	return p.epsilon
}

// Assign picks a target for every friendly unit in the snapshot and records
// it there. Units are decided in roster order and each choice counts as an
// attacker for the units decided after it. Exploration only happens when
// explore is set.
func (p *Policy) Assign(snap *world.Snapshot, explore bool) world.Commands {
	hostiles := Candidates(snap)
	if len(hostiles) == 0 {
		return nil
	}

	commands := make(world.Commands)
	tally := make(Tally)
	for _, id := range snap.IDs(world.Friendly) {
		hp, ok := snap.HP(world.Friendly, id)
		if !ok {
			continue
		}
		pos, _ := snap.Position(world.Friendly, id)

		var target world.UnitID
		if explore && p.rng.Float64() < p.epsilon {
			target = hostiles[p.rng.Intn(len(hostiles))].ID
		} else {
			target, _, _ = p.estimator.Best(hp, pos, hostiles, tally)
		}

		tally.Add(target)
		snap.SetTarget(id, target)
		commands[id] = target
	}
	return commands
}

// Candidates lists the tracked hostile units with their last-known state.
func Candidates(snap *world.Snapshot) []Candidate {
	var candidates []Candidate
	for _, id := range snap.IDs(world.Hostile) {
		hp, ok := snap.HP(world.Hostile, id)
		if !ok {
			continue
		}
		pos, _ := snap.Position(world.Hostile, id)
		candidates = append(candidates, Candidate{ID: id, HP: hp, Pos: pos})
	}
	return candidates
}

// ObservedCandidates lists the live hostile units of an observation.
func ObservedCandidates(obs world.Observation) []Candidate {
	var candidates []Candidate
	for _, id := range obs.LiveIDs(world.Hostile) {
		u, ok := obs.Unit(id)
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{ID: id, HP: u.HP, Pos: u.Pos})
	}
	return candidates
}
