// Package relay streams live training progress for one task to one
// interactive subscriber. Each connection owns a session; sessions share no
// mutable state with each other.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AzuraForge/api/pkg/broker"
	"github.com/AzuraForge/api/pkg/common/logger"
	"github.com/AzuraForge/api/pkg/status"
	"golang.org/x/sync/errgroup"
)

// StateError marks the single error frame a session may emit before closing.
const StateError = "ERROR"

// Frame is one message on the wire to the live client.
type Frame struct {
	State   string      `json:"state"`
	Details interface{} `json:"details,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Bus is the pub/sub fan-in side of the progress pipeline.
type Bus interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription is one exclusively-owned channel handle. Messages is closed
// when the underlying channel dies; Close releases the handle and must be
// safe to call more than once.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// Conn is the client transport. *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Resolver seeds the initial snapshot and decides when the task is done.
type Resolver interface {
	Resolve(ctx context.Context, taskID string) status.View
}

// Session lifecycle errors. Both mean a clean close, not a relay failure.
var (
	errClientDisconnect = errors.New("client disconnected")
	errTaskTerminal     = errors.New("task reached terminal state")
)

type Session struct {
	taskID   string
	channel  string
	conn     Conn
	bus      Bus
	resolver Resolver
	poll     time.Duration

	mu        sync.Mutex
	finalSent bool
	closeOnce sync.Once
}

func NewSession(taskID, channel string, conn Conn, bus Bus, resolver Resolver, poll time.Duration) *Session {
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	return &Session{
		taskID:   taskID,
		channel:  channel,
		conn:     conn,
		bus:      bus,
		resolver: resolver,
		poll:     poll,
	}
}

// Run drives the session to completion and releases every resource before
// returning. The initial snapshot is always the first frame; a final status
// push, when sent, is always the last. Whichever of client disconnect,
// terminal task state or channel failure happens first cancels the rest.
func (s *Session) Run(ctx context.Context) {
	defer s.teardown()

	view := s.resolver.Resolve(ctx, s.taskID)
	if err := s.sendView(view, view.Terminal()); err != nil {
		return
	}
	if view.Terminal() {
		// The run finished before this subscriber attached; the snapshot is
		// already definitive.
		return
	}

	sub, err := s.bus.Subscribe(ctx, s.channel)
	if err != nil {
		logger.Log.WithError(err).WithField("task_id", s.taskID).Error("Progress bus subscription failed")
		s.sendError(fmt.Sprintf("progress bus unavailable: %v", err))
		return
	}
	defer sub.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.forward(gctx, sub) })
	g.Go(func() error { return s.watch(gctx) })

	err = g.Wait()
	switch {
	case err == nil,
		errors.Is(err, errClientDisconnect),
		errors.Is(err, errTaskTerminal),
		errors.Is(err, context.Canceled):
		// Clean close.
	default:
		logger.Log.WithError(err).WithField("task_id", s.taskID).Error("Relay session failed")
		s.sendError(err.Error())
	}
}

// forward copies every bus message to the client as a PROGRESS frame.
// Malformed payloads are dropped, never forwarded raw and never fatal.
func (s *Session) forward(ctx context.Context, sub Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-sub.Messages():
			if !ok {
				return fmt.Errorf("progress channel closed unexpectedly")
			}
			var payload interface{}
			if err := json.Unmarshal(raw, &payload); err != nil {
				logger.Log.WithError(err).WithField("task_id", s.taskID).Warn("Dropping malformed progress message")
				continue
			}
			if err := s.send(Frame{State: broker.StateProgress, Details: payload}); err != nil {
				return errClientDisconnect
			}
		}
	}
}

// watch detects client disconnect through the transport's read side and,
// independently, the task reaching a terminal state even when no further bus
// messages arrive.
func (s *Session) watch(ctx context.Context) error {
	readFailed := make(chan struct{})
	go func() {
		for {
			if _, _, err := s.conn.ReadMessage(); err != nil {
				close(readFailed)
				return
			}
		}
	}()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-readFailed:
			return errClientDisconnect
		case <-ticker.C:
			view := s.resolver.Resolve(ctx, s.taskID)
			if view.Terminal() {
				if err := s.sendView(view, true); err != nil {
					return errClientDisconnect
				}
				return errTaskTerminal
			}
		}
	}
}

func (s *Session) send(frame Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(frame, false)
}

func (s *Session) sendView(view status.View, final bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(Frame{State: view.Status, Details: view.Details, Result: view.Result}, final)
}

func (s *Session) sendError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.writeLocked(Frame{State: StateError, Details: map[string]interface{}{"message": message}}, true)
}

// writeLocked holds the invariant that nothing follows a final frame, even
// when disconnect races with terminal-state detection.
func (s *Session) writeLocked(frame Frame, final bool) error {
	if s.finalSent {
		return nil
	}
	if final {
		s.finalSent = true
	}
	return s.conn.WriteJSON(frame)
}

// teardown is idempotent; closing the transport also unblocks the read pump.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
}

// ChannelFor derives the pub/sub channel key for a task.
func ChannelFor(prefix, taskID string) string {
	return fmt.Sprintf("%s:%s", prefix, taskID)
}
