package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"skirmish/controller"
	"skirmish/world"
)

// Message kinds.
const (
	KindObserve  = "observe"  // simulator -> controller
	KindTerminal = "terminal" // simulator -> controller
	KindCommands = "commands" // controller -> simulator
	KindResult   = "result"   // controller -> simulator
	KindError    = "error"    // controller -> simulator, then close
)

// ErrFinished is returned for observations sent after the controller played
// its last episode.
var ErrFinished = errors.New("controller finished its run")

const shutdownTimeout = 5 * time.Second

// Message is the single envelope exchanged in both directions.
type Message struct {
	Kind     string                    `json:"kind"`
	Frame    *world.Frame              `json:"frame,omitempty"`
	Commands world.Commands            `json:"commands,omitempty"`
	Result   *controller.EpisodeResult `json:"result,omitempty"`
	Done     bool                      `json:"done,omitempty"`
	Error    string                    `json:"error,omitempty"`
}

// Controller is what the server drives; *controller.Controller is one.
type Controller interface {
	Step(obs world.Observation) (world.Commands, error)
	Terminate(obs world.Observation) (controller.EpisodeResult, error)
	Done() bool
}

// Server lets one remote simulator at a time drive a controller over a
// websocket.
type Server struct {
	mu       sync.Mutex
	ctrl     Controller
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

func New(ctrl Controller) *Server {
	s := &Server{
		ctrl: ctrl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("/ws", s.handleWS)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves ctrl on addr until ctx is cancelled, then shuts the
// listener down and returns nil.
func ListenAndServe(ctx context.Context, addr string, ctrl Controller) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return Serve(ctx, l, ctrl)
}

// Serve is ListenAndServe on an existing listener, which it closes.
func Serve(ctx context.Context, l net.Listener, ctrl Controller) error {
	srv := &http.Server{
		Handler:           New(ctrl),
		ReadHeaderTimeout: 5 * time.Second,
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(shutdownCtx)
	}()

	log.Info().Msgf("controller listening on %s", l.Addr())
	if err := srv.Serve(l); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-stopped
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	log.Info().Msgf("simulator connected from %s", r.RemoteAddr)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("read from simulator")
			}
			return
		}
		reply, err := s.handle(msg)
		if err != nil {
			log.Error().Err(err).Msgf("handling %q", msg.Kind)
			_ = conn.WriteJSON(Message{Kind: KindError, Error: err.Error()})
			return
		}
		if err := conn.WriteJSON(reply); err != nil {
			log.Warn().Err(err).Msg("write to simulator")
			return
		}
	}
}

func (s *Server) handle(msg Message) (Message, error) {
	switch msg.Kind {
	case KindObserve:
		if msg.Frame == nil {
			return Message{}, errors.New("observe without frame")
		}
		if s.ctrl.Done() {
			return Message{}, ErrFinished
		}
		commands, err := s.ctrl.Step(msg.Frame)
		if err != nil {
			return Message{}, err
		}
		return Message{Kind: KindCommands, Commands: commands}, nil

	case KindTerminal:
		var obs world.Observation
		if msg.Frame != nil {
			obs = msg.Frame
		}
		result, err := s.ctrl.Terminate(obs)
		if err != nil {
			return Message{}, err
		}
		return Message{Kind: KindResult, Result: &result, Done: s.ctrl.Done()}, nil
	}
	return Message{}, fmt.Errorf("unknown message kind %q", msg.Kind)
}
