package engine

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"skirmish/controller"
	"skirmish/server"
	"skirmish/world"
)

func duel(friendly, hostile world.Position, hp, damage int) Scenario {
	return Scenario{
		Width:     10,
		Height:    10,
		Friendly:  []Deployment{{HP: hp, Pos: friendly}},
		Hostile:   []Deployment{{HP: hp, Pos: hostile}},
		MinDamage: damage,
		MaxDamage: damage,
		MaxTurns:  100,
	}
}

func newLocal(t *testing.T, s Scenario) (*Local, *world.Frame) {
	t.Helper()
	l := NewLocal(s, rand.New(rand.NewSource(7)))
	obs, err := l.Reset(0)
	require.NoError(t, err)
	return l, obs.(*world.Frame)
}

func TestLocal(t *testing.T) {
	t.Run("deploying the default scenario", func(t *testing.T) {
		_, f := newLocal(t, DefaultScenario())

		require.Equal(t, []world.UnitID{1, 2, 3, 4, 5}, f.LiveIDs(world.Friendly))
		require.Equal(t, []world.UnitID{100, 101, 102, 103, 104}, f.LiveIDs(world.Hostile))
		for _, u := range append(f.Friendly, f.Hostile...) {
			require.Equal(t, 60, u.HP)
			require.True(t, u.Pos.X >= 0 && u.Pos.X < 16 && u.Pos.Y >= 0 && u.Pos.Y < 16)
		}
	})

	t.Run("closing in on the target", func(t *testing.T) {
		l, _ := newLocal(t, duel(world.Position{X: 0, Y: 0}, world.Position{X: 6, Y: 3}, 10, 1))

		obs, terminal, err := l.Advance(world.Commands{1: 100})
		require.NoError(t, err)
		require.False(t, terminal)

		f := obs.(*world.Frame)
		require.Equal(t, world.Position{X: 1, Y: 1}, f.Friendly[0].Pos)
		require.Equal(t, world.Position{X: 5, Y: 2}, f.Hostile[0].Pos, "Hostile units approach the nearest friendly unit")
	})

	t.Run("exchanging blows when adjacent", func(t *testing.T) {
		l, _ := newLocal(t, duel(world.Position{X: 2, Y: 2}, world.Position{X: 3, Y: 3}, 10, 3))

		obs, _, err := l.Advance(world.Commands{1: 100})
		require.NoError(t, err)
		f := obs.(*world.Frame)
		require.Equal(t, 7, f.Friendly[0].HP)
		require.Equal(t, 7, f.Hostile[0].HP)

		obs, _, err = l.Advance(nil)
		require.NoError(t, err)
		f = obs.(*world.Frame)
		require.Equal(t, 4, f.Hostile[0].HP, "The last command stays in effect")
	})

	t.Run("idling without a command", func(t *testing.T) {
		l, _ := newLocal(t, duel(world.Position{X: 2, Y: 2}, world.Position{X: 3, Y: 3}, 10, 3))

		obs, _, err := l.Advance(nil)
		require.NoError(t, err)
		f := obs.(*world.Frame)
		require.Equal(t, 7, f.Friendly[0].HP)
		require.Equal(t, 10, f.Hostile[0].HP)
	})

	t.Run("ending when a side is eliminated", func(t *testing.T) {
		s := duel(world.Position{X: 2, Y: 2}, world.Position{X: 3, Y: 3}, 10, 3)
		s.Hostile[0].HP = 3
		l, _ := newLocal(t, s)

		obs, terminal, err := l.Advance(world.Commands{1: 100})
		require.NoError(t, err)
		require.True(t, terminal)
		require.Empty(t, obs.LiveIDs(world.Hostile))
		_, live := obs.Unit(100)
		require.False(t, live)
	})

	t.Run("ending after the turn limit", func(t *testing.T) {
		s := duel(world.Position{X: 0, Y: 0}, world.Position{X: 9, Y: 9}, 10, 1)
		s.MaxTurns = 2
		l, _ := newLocal(t, s)

		_, terminal, err := l.Advance(nil)
		require.NoError(t, err)
		require.False(t, terminal)
		_, terminal, err = l.Advance(nil)
		require.NoError(t, err)
		require.True(t, terminal)
		require.Equal(t, 2, l.Turn())
	})

	t.Run("rejecting invalid commands", func(t *testing.T) {
		l, _ := newLocal(t, duel(world.Position{X: 0, Y: 0}, world.Position{X: 9, Y: 9}, 10, 1))

		_, _, err := l.Advance(world.Commands{7: 100})
		require.ErrorIs(t, err, ErrUnknownUnit)
		_, _, err = l.Advance(world.Commands{100: 100})
		require.ErrorIs(t, err, ErrUnknownUnit)
		_, _, err = l.Advance(world.Commands{1: 1})
		require.ErrorIs(t, err, ErrInvalidTarget)
	})

	t.Run("advancing before reset", func(t *testing.T) {
		l := NewLocal(DefaultScenario(), rand.New(rand.NewSource(1)))
		_, _, err := l.Advance(nil)
		require.Error(t, err)
	})
}

func TestScenario(t *testing.T) {
	t.Run("loading a scenario file over the defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scenario.yaml")
		content := `
max_turns: 50
friendly:
  - hp: 20
    pos: {x: 1, y: 1}
hostile:
  - hp: 30
    pos: {x: 8, y: 8}
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		s, err := LoadScenario(path)
		require.NoError(t, err)
		require.Equal(t, 50, s.MaxTurns)
		require.Equal(t, 16, s.Width)
		require.Equal(t, []Deployment{{HP: 20, Pos: world.Position{X: 1, Y: 1}}}, s.Friendly)
	})

	t.Run("rejecting broken scenarios", func(t *testing.T) {
		s := DefaultScenario()
		s.Hostile = nil
		require.Error(t, s.Validate())

		s = DefaultScenario()
		s.MaxDamage = s.MinDamage - 1
		require.Error(t, s.Validate())

		s = DefaultScenario()
		s.Friendly[0].HP = 0
		require.Error(t, s.Validate())
	})
}

func newController(t *testing.T, episodes int) *controller.Controller {
	t.Helper()
	cfg := controller.DefaultConfig()
	cfg.Episodes = episodes
	c, err := controller.New(cfg, controller.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return c
}

func TestRun(t *testing.T) {
	t.Run("playing until the controller is done", func(t *testing.T) {
		c := newController(t, 3)
		sim := NewLocal(DefaultScenario(), rand.New(rand.NewSource(3)))

		require.NoError(t, Run(context.Background(), sim, c))
		require.True(t, c.Done())
		require.Equal(t, 3, c.Episode())
	})

	t.Run("stopping on a cancelled context", func(t *testing.T) {
		c := newController(t, 3)
		sim := NewLocal(DefaultScenario(), rand.New(rand.NewSource(3)))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.ErrorIs(t, Run(ctx, sim, c), context.Canceled)
		require.Zero(t, c.Episode())
	})

	t.Run("driving a remote controller", func(t *testing.T) {
		c := newController(t, 2)
		srv := httptest.NewServer(server.New(c))
		defer srv.Close()

		remote, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
		require.NoError(t, err)
		defer remote.Close()

		sim := NewLocal(DefaultScenario(), rand.New(rand.NewSource(5)))
		require.NoError(t, Run(context.Background(), sim, remote))
		require.True(t, remote.Done())
		require.Equal(t, 2, c.Episode())
	})
}
