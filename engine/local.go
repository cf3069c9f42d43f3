package engine

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/exp/rand"
	"gopkg.in/yaml.v3"

	"skirmish/world"
)

var (
	ErrUnknownUnit   = errors.New("unknown friendly unit")
	ErrInvalidTarget = errors.New("target is not a live hostile unit")
)

// Deployment places one unit at the start of an episode.
type Deployment struct {
	HP  int            `yaml:"hp"`
	Pos world.Position `yaml:"pos"`
}

// Scenario describes a local skirmish.
type Scenario struct {
	Width     int          `yaml:"width"`
	Height    int          `yaml:"height"`
	Friendly  []Deployment `yaml:"friendly"`
	Hostile   []Deployment `yaml:"hostile"`
	MinDamage int          `yaml:"min_damage"`
	MaxDamage int          `yaml:"max_damage"`
	MaxTurns  int          `yaml:"max_turns"`
	Jitter    int          `yaml:"jitter"` // Random offset added to deploy positions
}

// DefaultScenario is five friendly units against five hostile ones across
// a small field.
func DefaultScenario() Scenario {
	s := Scenario{
		Width:     16,
		Height:    16,
		MinDamage: 2,
		MaxDamage: 6,
		MaxTurns:  500,
		Jitter:    1,
	}
	for i := 0; i < 5; i++ {
		s.Friendly = append(s.Friendly, Deployment{HP: 60, Pos: world.Position{X: 2, Y: 4 + 2*i}})
		s.Hostile = append(s.Hostile, Deployment{HP: 60, Pos: world.Position{X: 13, Y: 4 + 2*i}})
	}
	return s
}

func LoadScenario(path string) (Scenario, error) {
	s := DefaultScenario()
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("scenario %s: %w", path, err)
	}
	return s, s.Validate()
}

func (s Scenario) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("scenario field must be positive, got %dx%d", s.Width, s.Height)
	}
	if len(s.Friendly) == 0 || len(s.Hostile) == 0 {
		return errors.New("scenario needs units on both sides")
	}
	if len(s.Friendly) >= HostileBase {
		return fmt.Errorf("at most %d friendly units", HostileBase-1)
	}
	if s.MinDamage < 0 || s.MaxDamage < s.MinDamage {
		return fmt.Errorf("invalid damage range [%d, %d]", s.MinDamage, s.MaxDamage)
	}
	for _, d := range append(append([]Deployment(nil), s.Friendly...), s.Hostile...) {
		if d.HP <= 0 {
			return fmt.Errorf("unit at %v has no hp", d.Pos)
		}
	}
	return nil
}

// HostileBase is added to the index of hostile units to form their ids.
const HostileBase = 100

// Local simulates a skirmish in process. Friendly units keep attacking their
// last commanded target; hostile units attack the nearest friendly unit.
type Local struct {
	scenario Scenario
	rng      *rand.Rand

	units  map[world.UnitID]*world.Unit
	sides  map[world.UnitID]world.Side
	order  []world.UnitID
	orders map[world.UnitID]world.UnitID
	turn   int
}

func NewLocal(scenario Scenario, rng *rand.Rand) *Local {
	if scenario.MaxTurns <= 0 {
		scenario.MaxTurns = DefaultScenario().MaxTurns
	}
	return &Local{
		scenario: scenario,
		rng:      rng,
	}
}

func (l *Local) Reset(episode int) (world.Observation, error) {
	if err := l.scenario.Validate(); err != nil {
		return nil, err
	}
	l.units = make(map[world.UnitID]*world.Unit)
	l.sides = make(map[world.UnitID]world.Side)
	l.orders = make(map[world.UnitID]world.UnitID)
	l.order = nil
	l.turn = 0

	for i, d := range l.scenario.Friendly {
		l.deploy(world.UnitID(i+1), world.Friendly, d)
	}
	for i, d := range l.scenario.Hostile {
		l.deploy(world.UnitID(HostileBase+i), world.Hostile, d)
	}
	return l.frame(), nil
}

func (l *Local) deploy(id world.UnitID, side world.Side, d Deployment) {
	pos := d.Pos
	if j := l.scenario.Jitter; j > 0 {
		pos.X += l.rng.Intn(2*j+1) - j
		pos.Y += l.rng.Intn(2*j+1) - j
	}
	l.units[id] = &world.Unit{ID: id, HP: d.HP, Pos: l.clamp(pos)}
	l.sides[id] = side
	l.order = append(l.order, id)
}

func (l *Local) clamp(p world.Position) world.Position {
	p.X = min(max(p.X, 0), l.scenario.Width-1)
	p.Y = min(max(p.Y, 0), l.scenario.Height-1)
	return p
}

func (l *Local) live(id world.UnitID, side world.Side) bool {
	u, ok := l.units[id]
	return ok && u.HP > 0 && l.sides[id] == side
}

func (l *Local) Advance(commands world.Commands) (world.Observation, bool, error) {
	if l.units == nil {
		return nil, false, errors.New("advance before reset")
	}
	for id, target := range commands {
		if !l.live(id, world.Friendly) {
			return nil, false, fmt.Errorf("unit %d: %w", id, ErrUnknownUnit)
		}
		if !l.live(target, world.Hostile) {
			return nil, false, fmt.Errorf("unit %d attacking %d: %w", id, target, ErrInvalidTarget)
		}
		l.orders[id] = target
	}

	// Moves and damage are decided on the state at the start of the turn
	// and applied together.
	moves := make(map[world.UnitID]world.Position)
	damage := make(map[world.UnitID]int)
	for _, id := range l.order {
		u := l.units[id]
		if u.HP <= 0 {
			continue
		}
		target, ok := l.targetOf(id)
		if !ok {
			continue
		}
		t := l.units[target]
		if world.Chebyshev(u.Pos, t.Pos) > 1 {
			moves[id] = step(u.Pos, t.Pos)
			continue
		}
		damage[target] += l.roll()
	}
	for id, pos := range moves {
		l.units[id].Pos = pos
	}
	for id, d := range damage {
		l.units[id].HP -= d
	}
	l.turn++

	terminal := len(l.liveIDs(world.Friendly)) == 0 ||
		len(l.liveIDs(world.Hostile)) == 0 ||
		l.turn >= l.scenario.MaxTurns
	return l.frame(), terminal, nil
}

// targetOf is the commanded target of a friendly unit, or the nearest
// friendly unit for a hostile one.
func (l *Local) targetOf(id world.UnitID) (world.UnitID, bool) {
	if l.sides[id] == world.Friendly {
		target, ok := l.orders[id]
		if !ok || !l.live(target, world.Hostile) {
			return 0, false
		}
		return target, true
	}

	pos := l.units[id].Pos
	best, bestDist := world.UnitID(0), -1
	for _, f := range l.liveIDs(world.Friendly) {
		if d := world.Chebyshev(pos, l.units[f].Pos); bestDist < 0 || d < bestDist {
			best, bestDist = f, d
		}
	}
	return best, bestDist >= 0
}

func (l *Local) roll() int {
	lo, hi := l.scenario.MinDamage, l.scenario.MaxDamage
	return lo + l.rng.Intn(hi-lo+1)
}

// step moves one square toward to, diagonals included.
func step(from, to world.Position) world.Position {
	return world.Position{X: from.X + sign(to.X-from.X), Y: from.Y + sign(to.Y-from.Y)}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func (l *Local) liveIDs(side world.Side) []world.UnitID {
	var ids []world.UnitID
	for _, id := range l.order {
		if l.live(id, side) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Turn is the number of ticks advanced in the current episode.
func (l *Local) Turn() int {
	return l.turn
}

func (l *Local) frame() *world.Frame {
	f := &world.Frame{}
	for _, id := range l.order {
		u := l.units[id]
		if u.HP <= 0 {
			continue
		}
		if l.sides[id] == world.Friendly {
			f.Friendly = append(f.Friendly, *u)
		} else {
			f.Hostile = append(f.Hostile, *u)
		}
	}
	return f
}
