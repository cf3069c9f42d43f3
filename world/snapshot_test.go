package world

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestFrame() *Frame {
	return &Frame{
		Friendly: []Unit{
			{ID: 1, HP: 10, Pos: Position{X: 0, Y: 0}},
			{ID: 2, HP: 10, Pos: Position{X: 0, Y: 1}},
		},
		Hostile: []Unit{
			{ID: 10, HP: 10, Pos: Position{X: 5, Y: 0}},
			{ID: 11, HP: 8, Pos: Position{X: 5, Y: 3}},
		},
	}
}

func TestChebyshev(t *testing.T) {
	t.Run("taking the larger axis difference", func(t *testing.T) {
		require.Equal(t, 4, Chebyshev(Position{X: 1, Y: 1}, Position{X: 5, Y: 3}))
		require.Equal(t, 3, Chebyshev(Position{X: 0, Y: 0}, Position{X: -2, Y: 3}))
	})

	t.Run("symmetric and zero only for the same cell", func(t *testing.T) {
		cells := []Position{{0, 0}, {1, 0}, {-3, 7}, {4, 4}, {2, -9}}
		for _, a := range cells {
			for _, b := range cells {
				require.Equal(t, Chebyshev(a, b), Chebyshev(b, a), "Distance should be symmetric")
				require.Equal(t, a == b, Chebyshev(a, b) == 0, "Distance should be zero iff cells match")
			}
		}
	})
}

func TestNewSnapshot(t *testing.T) {
	t.Run("tracking every live unit in observation order", func(t *testing.T) {
		snap := NewSnapshot(newTestFrame())

		require.Equal(t, []UnitID{1, 2}, snap.IDs(Friendly))
		require.Equal(t, []UnitID{10, 11}, snap.IDs(Hostile))

		hp, ok := snap.HP(Hostile, 11)
		require.True(t, ok)
		require.Equal(t, 8, hp)

		pos, ok := snap.Position(Friendly, 2)
		require.True(t, ok)
		require.Equal(t, Position{X: 0, Y: 1}, pos)

		_, ok = snap.Target(1)
		require.False(t, ok, "Units start unassigned")
	})

	t.Run("keeping sides apart", func(t *testing.T) {
		snap := NewSnapshot(newTestFrame())

		_, ok := snap.HP(Friendly, 10)
		require.False(t, ok, "Hostile ids should not appear on the friendly side")
		_, ok = snap.Position(Hostile, 1)
		require.False(t, ok, "Friendly ids should not appear on the hostile side")
	})
}

func TestSnapshotSetters(t *testing.T) {
	t.Run("overwriting without duplicating roster entries", func(t *testing.T) {
		snap := NewSnapshot(newTestFrame())

		snap.SetHP(Friendly, 1, 7)
		snap.SetHP(Friendly, 1, 6)
		snap.SetPosition(Friendly, 1, Position{X: 3, Y: 3})

		hp, _ := snap.HP(Friendly, 1)
		pos, _ := snap.Position(Friendly, 1)
		require.Equal(t, 6, hp)
		require.Equal(t, Position{X: 3, Y: 3}, pos)
		require.Equal(t, []UnitID{1, 2}, snap.IDs(Friendly))
	})
}

func TestSnapshotSweep(t *testing.T) {
	t.Run("purging marked units", func(t *testing.T) {
		snap := NewSnapshot(newTestFrame())
		snap.SetTarget(1, 10)

		snap.MarkForRemoval(Friendly, 1)
		snap.MarkForRemoval(Hostile, 10)
		require.True(t, snap.Marked(Friendly, 1))

		// Marked units stay readable until the sweep
		_, ok := snap.HP(Friendly, 1)
		require.True(t, ok, "Marked unit should keep its last-known values")

		snap.Sweep()

		_, ok = snap.HP(Friendly, 1)
		require.False(t, ok)
		_, ok = snap.Position(Friendly, 1)
		require.False(t, ok)
		_, ok = snap.Target(1)
		require.False(t, ok)
		_, ok = snap.HP(Hostile, 10)
		require.False(t, ok)
		_, ok = snap.Position(Hostile, 10)
		require.False(t, ok)
		require.Equal(t, []UnitID{2}, snap.IDs(Friendly))
		require.Equal(t, []UnitID{11}, snap.IDs(Hostile))
		require.False(t, snap.Marked(Friendly, 1), "Pending set should be cleared")
	})

	t.Run("marking twice and sweeping twice", func(t *testing.T) {
		snap := NewSnapshot(newTestFrame())

		snap.MarkForRemoval(Hostile, 11)
		snap.MarkForRemoval(Hostile, 11)
		snap.Sweep()
		snap.Sweep()

		require.Equal(t, []UnitID{10}, snap.IDs(Hostile))
		require.Equal(t, []UnitID{1, 2}, snap.IDs(Friendly))
		require.True(t, snap.Tracked(Hostile, 10))
	})
}

func TestSnapshotCountAttackers(t *testing.T) {
	t.Run("counting friendly units per target", func(t *testing.T) {
		snap := NewSnapshot(newTestFrame())
		snap.SetTarget(1, 10)
		snap.SetTarget(2, 10)

		require.Equal(t, 2, snap.CountAttackers(10))
		require.Equal(t, 0, snap.CountAttackers(11))
	})

	t.Run("reassigning moves exactly one attacker", func(t *testing.T) {
		snap := NewSnapshot(newTestFrame())
		snap.SetTarget(1, 10)
		snap.SetTarget(2, 10)

		snap.SetTarget(2, 11)

		require.Equal(t, 1, snap.CountAttackers(10))
		require.Equal(t, 1, snap.CountAttackers(11))
	})
}

func TestSnapshotRefresh(t *testing.T) {
	t.Run("lowering health and moving each side in its own records", func(t *testing.T) {
		snap := NewSnapshot(newTestFrame())
		next := newTestFrame()
		next.Friendly[0].HP = 4
		next.Friendly[0].Pos = Position{X: 1, Y: 1}
		next.Hostile[1].Pos = Position{X: 4, Y: 2}

		snap.Refresh(next)

		hp, _ := snap.HP(Friendly, 1)
		require.Equal(t, 4, hp)
		pos, _ := snap.Position(Friendly, 1)
		require.Equal(t, Position{X: 1, Y: 1}, pos)
		pos, _ = snap.Position(Hostile, 11)
		require.Equal(t, Position{X: 4, Y: 2}, pos)
		_, ok := snap.Position(Hostile, 1)
		require.False(t, ok, "Friendly moves should never touch hostile records")
	})

	t.Run("never raising health", func(t *testing.T) {
		snap := NewSnapshot(newTestFrame())
		next := newTestFrame()
		next.Hostile[0].HP = 12

		snap.Refresh(next)

		hp, _ := snap.HP(Hostile, 10)
		require.Equal(t, 10, hp)
	})

	t.Run("keeping last-known values of units missing from the observation", func(t *testing.T) {
		snap := NewSnapshot(newTestFrame())
		next := newTestFrame()
		next.Friendly = next.Friendly[1:]

		snap.Refresh(next)

		hp, ok := snap.HP(Friendly, 1)
		require.True(t, ok)
		require.Equal(t, 10, hp)
	})
}

func TestSnapshotRefreshNewcomers(t *testing.T) {
	t.Run("tracking units that joined since the last refresh", func(t *testing.T) {
		snap := NewSnapshot(newTestFrame())
		next := newTestFrame()
		next.Friendly = append(next.Friendly, Unit{ID: 3, HP: 6, Pos: Position{X: 0, Y: 2}})
		next.Hostile = append(next.Hostile, Unit{ID: 12, HP: 9, Pos: Position{X: 5, Y: 5}})

		snap.Refresh(next)

		require.Equal(t, []UnitID{1, 2, 3}, snap.IDs(Friendly))
		require.Equal(t, []UnitID{10, 11, 12}, snap.IDs(Hostile))
		hp, _ := snap.HP(Friendly, 3)
		require.Equal(t, 6, hp)
		pos, _ := snap.Position(Hostile, 12)
		require.Equal(t, Position{X: 5, Y: 5}, pos)
		_, assigned := snap.Target(3)
		require.False(t, assigned)
	})

	t.Run("ignoring newcomers that are already dead", func(t *testing.T) {
		snap := NewSnapshot(newTestFrame())
		next := newTestFrame()
		next.Hostile = append(next.Hostile, Unit{ID: 12, HP: 0})

		snap.Refresh(next)

		require.False(t, snap.Tracked(Hostile, 12))
	})
}

func TestFrame(t *testing.T) {
	t.Run("treating zero health as not live", func(t *testing.T) {
		f := newTestFrame()
		f.Hostile[0].HP = 0

		require.Equal(t, []UnitID{11}, f.LiveIDs(Hostile))
		_, ok := f.Unit(10)
		require.False(t, ok)
	})

	t.Run("looking up units of either side by id", func(t *testing.T) {
		f := newTestFrame()

		u, ok := f.Unit(2)
		require.True(t, ok)
		require.Equal(t, Position{X: 0, Y: 1}, u.Pos)
		u, ok = f.Unit(11)
		require.True(t, ok)
		require.Equal(t, 8, u.HP)
	})

	t.Run("capturing another observation", func(t *testing.T) {
		f := newTestFrame()

		got := Capture(f)

		require.Equal(t, f, got)
	})
}
