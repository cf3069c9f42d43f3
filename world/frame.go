package world

// Frame is a concrete Observation that can travel over the wire.
type Frame struct {
	Friendly []Unit `json:"friendly"`
	Hostile  []Unit `json:"hostile"`
}

func (f *Frame) LiveIDs(side Side) []UnitID {
	units := f.units(side)
	ids := make([]UnitID, 0, len(units))
	for _, u := range units {
		if u.HP > 0 {
			ids = append(ids, u.ID)
		}
	}
	return ids
}

func (f *Frame) Unit(id UnitID) (Unit, bool) {
	for _, side := range []Side{Friendly, Hostile} {
		for _, u := range f.units(side) {
			if u.ID == id && u.HP > 0 {
				return u, true
			}
		}
	}
	return Unit{}, false
}

func (f *Frame) units(side Side) []Unit {
	if side == Friendly {
		return f.Friendly
	}
	return f.Hostile
}

// Capture copies any Observation into a Frame.
func Capture(obs Observation) *Frame {
	f := &Frame{}
	for _, id := range obs.LiveIDs(Friendly) {
		if u, ok := obs.Unit(id); ok {
			f.Friendly = append(f.Friendly, u)
		}
	}
	for _, id := range obs.LiveIDs(Hostile) {
		if u, ok := obs.Unit(id); ok {
			f.Hostile = append(f.Hostile, u)
		}
	}
	return f
}
