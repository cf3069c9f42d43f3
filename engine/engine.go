package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"skirmish/controller"
	"skirmish/world"
)

// Simulator advances a skirmish one tick at a time.
type Simulator interface {
	// Reset starts a new episode and returns its first observation.
	Reset(episode int) (world.Observation, error)
	// Advance issues commands and returns the next observation, and whether
	// the episode is over.
	Advance(commands world.Commands) (world.Observation, bool, error)
}

// Agent decides commands from observations; *controller.Controller is one.
type Agent interface {
	Step(obs world.Observation) (world.Commands, error)
	Terminate(obs world.Observation) (controller.EpisodeResult, error)
	Done() bool
}

// Run plays episodes until the agent is done. The context is checked between
// episodes.
func Run(ctx context.Context, sim Simulator, agent Agent) error {
	for episode := 0; !agent.Done(); episode++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := Play(sim, agent, episode)
		if err != nil {
			return err
		}
		log.Debug().Msgf("episode %d (%s): reward %.2f", result.Episode, result.Phase, result.Reward)
	}
	return nil
}

// Play runs a single episode to its end.
func Play(sim Simulator, agent Agent, episode int) (controller.EpisodeResult, error) {
	obs, err := sim.Reset(episode)
	if err != nil {
		return controller.EpisodeResult{}, fmt.Errorf("reset episode %d: %w", episode, err)
	}
	for {
		commands, err := agent.Step(obs)
		if err != nil {
			return controller.EpisodeResult{}, fmt.Errorf("step episode %d: %w", episode, err)
		}
		next, terminal, err := sim.Advance(commands)
		if err != nil {
			return controller.EpisodeResult{}, fmt.Errorf("advance episode %d: %w", episode, err)
		}
		if terminal {
			result, err := agent.Terminate(next)
			if err != nil {
				return controller.EpisodeResult{}, fmt.Errorf("terminate episode %d: %w", episode, err)
			}
			return result, nil
		}
		obs = next
	}
}
