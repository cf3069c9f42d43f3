package world

import "slices"

// roster holds the last-known state of one side.
type roster struct {
	ids     []UnitID
	hp      map[UnitID]int
	pos     map[UnitID]Position
	pending map[UnitID]struct{}
}

func newRoster() *roster {
	return &roster{
		hp:      make(map[UnitID]int),
		pos:     make(map[UnitID]Position),
		pending: make(map[UnitID]struct{}),
	}
}

func (r *roster) track(id UnitID) {
	if !slices.Contains(r.ids, id) {
		r.ids = append(r.ids, id)
	}
}

// Snapshot is the controller's record of the previous tick. It is mutated in
// place every tick; dead units are marked during the reward pass and purged
// together by Sweep.
type Snapshot struct {
	sides   [2]*roster
	targets map[UnitID]UnitID // Friendly unit -> hostile unit it attacks
}

// NewSnapshot builds the episode's first snapshot from the initial observation.
func NewSnapshot(obs Observation) *Snapshot {
	s := &Snapshot{
		sides:   [2]*roster{newRoster(), newRoster()},
		targets: make(map[UnitID]UnitID),
	}
	for _, side := range []Side{Friendly, Hostile} {
		for _, id := range obs.LiveIDs(side) {
			u, ok := obs.Unit(id)
			if !ok {
				continue
			}
			s.SetHP(side, id, u.HP)
			s.SetPosition(side, id, u.Pos)
		}
	}
	return s
}

func (s *Snapshot) side(side Side) *roster {
	if side == Hostile {
		return s.sides[Hostile]
	}
	return s.sides[Friendly]
}

// IDs returns the tracked units of a side in observation order.
func (s *Snapshot) IDs(side Side) []UnitID {
	return slices.Clone(s.side(side).ids)
}

// Tracked reports whether the unit is still present in the snapshot.
func (s *Snapshot) Tracked(side Side, id UnitID) bool {
	_, ok := s.side(side).hp[id]
	return ok
}

func (s *Snapshot) HP(side Side, id UnitID) (int, bool) {
	hp, ok := s.side(side).hp[id]
	return hp, ok
}

func (s *Snapshot) Position(side Side, id UnitID) (Position, bool) {
	pos, ok := s.side(side).pos[id]
	return pos, ok
}

// Target returns the hostile unit a friendly unit is attacking, or false if
// it has not been assigned one.
func (s *Snapshot) Target(id UnitID) (UnitID, bool) {
	target, ok := s.targets[id]
	return target, ok
}

func (s *Snapshot) SetHP(side Side, id UnitID, hp int) {
	r := s.side(side)
	r.track(id)
	delete(r.hp, id)
	r.hp[id] = hp
}

func (s *Snapshot) SetPosition(side Side, id UnitID, pos Position) {
	r := s.side(side)
	r.track(id)
	delete(r.pos, id)
	r.pos[id] = pos
}

func (s *Snapshot) SetTarget(id, target UnitID) {
	s.side(Friendly).track(id)
	delete(s.targets, id)
	s.targets[id] = target
}

// MarkForRemoval queues a unit for the next Sweep. Marking twice is a no-op.
func (s *Snapshot) MarkForRemoval(side Side, id UnitID) {
	s.side(side).pending[id] = struct{}{}
}

// Marked reports whether the unit is queued for removal.
func (s *Snapshot) Marked(side Side, id UnitID) bool {
	_, ok := s.side(side).pending[id]
	return ok
}

// Sweep purges every marked unit from all per-unit state of its side.
func (s *Snapshot) Sweep() {
	for _, side := range []Side{Friendly, Hostile} {
		r := s.side(side)
		if len(r.pending) == 0 {
			continue
		}
		r.ids = slices.DeleteFunc(r.ids, func(id UnitID) bool {
			_, marked := r.pending[id]
			return marked
		})
		for id := range r.pending {
			delete(r.hp, id)
			delete(r.pos, id)
			if side == Friendly {
				delete(s.targets, id)
			}
		}
		clear(r.pending)
	}
}

// CountAttackers returns how many friendly units currently target hostile.
func (s *Snapshot) CountAttackers(hostile UnitID) int {
	count := 0
	for _, target := range s.targets {
		if target == hostile {
			count++
		}
	}
	return count
}

// Refresh copies health and position of every tracked unit that is still
// live in obs, then starts tracking units that appeared since, in
// observation order. Health of tracked units only ever decreases.
func (s *Snapshot) Refresh(obs Observation) {
	for _, side := range []Side{Friendly, Hostile} {
		r := s.side(side)
		for _, id := range r.ids {
			u, ok := obs.Unit(id)
			if !ok {
				continue
			}
			if hp, tracked := r.hp[id]; !tracked || u.HP < hp {
				s.SetHP(side, id, u.HP)
			}
			s.SetPosition(side, id, u.Pos)
		}
		for _, id := range obs.LiveIDs(side) {
			if s.Tracked(side, id) {
				continue
			}
			u, ok := obs.Unit(id)
			if !ok {
				continue
			}
			s.SetHP(side, id, u.HP)
			s.SetPosition(side, id, u.Pos)
		}
	}
}
