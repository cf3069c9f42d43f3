package world

// Side identifies which group a unit fights for.
type Side int

const (
	Friendly Side = iota
	Hostile
)

func (s Side) String() string {
	switch s {
	case Friendly:
		return "friendly"
	case Hostile:
		return "hostile"
	default:
		return "unknown"
	}
}

// UnitID is assigned by the engine and stays stable for the unit's lifetime.
type UnitID int

// Position is a cell on the battle grid.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Unit is what the engine reports about a live unit.
type Unit struct {
	ID  UnitID   `json:"id"`
	HP  int      `json:"hp"`
	Pos Position `json:"pos"`
}

// Observation is the per-tick view exposed by the engine. Unit reports false
// for any id that is not live this tick. Unit takes no side, so ids must be
// unique across both sides, not only within one.
type Observation interface {
	LiveIDs(side Side) []UnitID
	Unit(id UnitID) (Unit, bool)
}

// Commands maps each friendly unit to the hostile unit it should attack.
type Commands map[UnitID]UnitID

// Chebyshev returns the number of 8-directional steps between two cells.
func Chebyshev(a, b Position) int {
	return max(abs(a.X-b.X), abs(a.Y-b.Y))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
