package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"skirmish/controller"
	"skirmish/server"
	"skirmish/world"
)

// Remote is an Agent backed by a controller served over a websocket.
type Remote struct {
	conn *websocket.Conn
	done bool
}

func Dial(ctx context.Context, url string) (*Remote, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Remote{conn: conn}, nil
}

func (r *Remote) Step(obs world.Observation) (world.Commands, error) {
	reply, err := r.call(server.Message{Kind: server.KindObserve, Frame: world.Capture(obs)}, server.KindCommands)
	if err != nil {
		return nil, err
	}
	return reply.Commands, nil
}

func (r *Remote) Terminate(obs world.Observation) (controller.EpisodeResult, error) {
	msg := server.Message{Kind: server.KindTerminal}
	if obs != nil {
		msg.Frame = world.Capture(obs)
	}
	reply, err := r.call(msg, server.KindResult)
	if err != nil {
		return controller.EpisodeResult{}, err
	}
	if reply.Result == nil {
		return controller.EpisodeResult{}, errors.New("result message without result")
	}
	r.done = reply.Done
	return *reply.Result, nil
}

// Done reports whether the remote controller finished its run, as of the
// last terminated episode.
func (r *Remote) Done() bool {
	return r.done
}

func (r *Remote) Close() error {
	_ = r.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return r.conn.Close()
}

func (r *Remote) call(msg server.Message, want string) (server.Message, error) {
	if err := r.conn.WriteJSON(msg); err != nil {
		return server.Message{}, fmt.Errorf("send %s: %w", msg.Kind, err)
	}
	var reply server.Message
	if err := r.conn.ReadJSON(&reply); err != nil {
		return server.Message{}, fmt.Errorf("receive %s: %w", want, err)
	}
	if reply.Kind == server.KindError {
		return server.Message{}, fmt.Errorf("controller: %s", reply.Error)
	}
	if reply.Kind != want {
		return server.Message{}, fmt.Errorf("expected %s, got %s", want, reply.Kind)
	}
	return reply, nil
}
