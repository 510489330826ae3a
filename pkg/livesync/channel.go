// Package livesync keeps an open graph in step with the server over a
// websocket. The server pushes whole-graph replacements; the client never
// sends anything.
package livesync

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vanderheijden86/edumap/pkg/debug"
	"github.com/vanderheijden86/edumap/pkg/metrics"
	"github.com/vanderheijden86/edumap/pkg/model"
)

// State is the connection lifecycle of a Channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	}
	return "disconnected"
}

// MessageTypeUpdate is the only message type acted on.
const MessageTypeUpdate = "update"

// Message is the push envelope.
type Message struct {
	Type  string          `json:"type"`
	Graph *model.Snapshot `json:"graph,omitempty"`
}

var (
	// ErrClosed is returned when opening a channel that was closed.
	ErrClosed = errors.New("livesync: channel closed")
	// ErrAlreadyOpen is returned by a second Open.
	ErrAlreadyOpen = errors.New("livesync: channel already opened")
)

// UpdateHandler receives validated snapshots. It runs on the channel's read
// goroutine and must not close the channel.
type UpdateHandler func(graphID string, snap model.Snapshot)

// URLFor builds the push endpoint for a graph: <base>/ws/<escaped id>.
func URLFor(base, graphID string) string {
	return strings.TrimRight(base, "/") + "/ws/" + url.PathEscape(graphID)
}

// Options configures a Channel.
type Options struct {
	BaseURL   string
	Dialer    Dialer
	Reconnect ReconnectPolicy
	Logger    *zap.Logger
	OnUpdate  UpdateHandler
	// OnState observes state changes. It runs with the channel lock held
	// and must not call back into the channel.
	OnState func(State)
}

// Channel is one push connection for one graph. It is opened once and,
// once closed, stays closed.
type Channel struct {
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	state   State
	started bool
	graphID string
	conn    Conn
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewChannel returns a disconnected channel.
func NewChannel(opts Options) *Channel {
	if opts.Dialer == nil {
		opts.Dialer = NewWebsocketDialer()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Channel{opts: opts, logger: opts.Logger}
}

// State returns the current state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// GraphID returns the graph this channel was opened for.
func (c *Channel) GraphID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graphID
}

func (c *Channel) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if c.opts.OnState != nil {
		c.opts.OnState(s)
	}
}

// Open dials the push endpoint for graphID and starts reading. A failed
// dial leaves the channel Disconnected and returns the error; with a
// backoff policy the channel keeps retrying in the background.
func (c *Channel) Open(ctx context.Context, graphID string) error {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.started = true
	c.graphID = graphID
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.setStateLocked(Connecting)
	c.mu.Unlock()

	c.logger = c.opts.Logger.With(zap.String("graphID", graphID))

	dialCtx, stopDial := context.WithCancel(ctx)
	unhook := context.AfterFunc(runCtx, stopDial)
	conn, err := c.opts.Dialer.Dial(dialCtx, URLFor(c.opts.BaseURL, graphID))
	unhook()
	stopDial()

	if err != nil {
		metrics.SyncConnects.WithLabelValues("error").Inc()
		c.logger.Warn("live sync connect failed", zap.Error(err))
		if c.opts.Reconnect.Enabled() && runCtx.Err() == nil {
			c.mu.Lock()
			c.setStateLocked(Disconnected)
			c.mu.Unlock()
			go c.loop(runCtx, nil)
		} else {
			c.finish(Disconnected)
		}
		return fmt.Errorf("open live sync for %s: %w", graphID, err)
	}

	if !c.attach(conn) {
		close(c.done)
		return ErrClosed
	}
	metrics.SyncConnects.WithLabelValues("ok").Inc()
	go c.loop(runCtx, conn)
	return nil
}

// attach records conn as live unless the channel was closed meanwhile.
func (c *Channel) attach(conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed {
		_ = conn.Close()
		return false
	}
	c.conn = conn
	c.setStateLocked(Open)
	return true
}

// finish ends a channel whose loop never started.
func (c *Channel) finish(s State) {
	c.mu.Lock()
	if c.state != Closed {
		c.setStateLocked(s)
	}
	done := c.done
	c.mu.Unlock()
	if done != nil {
		close(done)
	}
}

func (c *Channel) loop(ctx context.Context, conn Conn) {
	defer close(c.done)
	var b backoff.BackOff
	for {
		if conn != nil {
			if c.read(ctx, conn) && b != nil {
				b.Reset()
			}
			_ = conn.Close()
			conn = nil
		}
		if ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		c.conn = nil
		if c.state == Closed {
			c.mu.Unlock()
			return
		}
		c.setStateLocked(Disconnected)
		c.mu.Unlock()

		if b == nil {
			b = c.opts.Reconnect.newBackOff()
			if b == nil {
				c.logger.Info("live sync disconnected; reconnect disabled")
				return
			}
		}
		conn = c.redial(ctx, b)
		if conn == nil {
			return
		}
	}
}

// redial waits out the backoff schedule between attempts and returns a live
// connection, or nil when the schedule is exhausted or ctx is done.
func (c *Channel) redial(ctx context.Context, b backoff.BackOff) Conn {
	target := URLFor(c.opts.BaseURL, c.GraphID())
	for attempt := 1; ; attempt++ {
		next := b.NextBackOff()
		if next == backoff.Stop || (c.opts.Reconnect.MaxAttempts > 0 && attempt > c.opts.Reconnect.MaxAttempts) {
			c.logger.Warn("live sync giving up", zap.Int("attempts", attempt-1))
			return nil
		}
		t := time.NewTimer(next)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}

		c.mu.Lock()
		if c.state == Closed {
			c.mu.Unlock()
			return nil
		}
		c.setStateLocked(Connecting)
		c.mu.Unlock()

		conn, err := c.opts.Dialer.Dial(ctx, target)
		if err != nil {
			metrics.SyncConnects.WithLabelValues("error").Inc()
			c.logger.Debug("live sync redial failed", zap.Int("attempt", attempt), zap.Error(err))
			c.mu.Lock()
			if c.state != Closed {
				c.setStateLocked(Disconnected)
			}
			c.mu.Unlock()
			continue
		}
		if !c.attach(conn) {
			return nil
		}
		metrics.SyncConnects.WithLabelValues("reconnect").Inc()
		c.logger.Info("live sync reconnected", zap.Int("attempt", attempt))
		return conn
	}
}

// read pumps messages until the connection fails. It reports whether any
// update was applied.
func (c *Channel) read(ctx context.Context, conn Conn) bool {
	applied := false
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("live sync read failed", zap.Error(err))
			}
			return applied
		}
		if typ != websocket.TextMessage {
			metrics.SyncMessages.WithLabelValues("ignored").Inc()
			continue
		}
		if c.handle(ctx, data) {
			applied = true
		}
	}
}

func (c *Channel) handle(ctx context.Context, data []byte) bool {
	stop := metrics.Timer(metrics.SyncDecode)
	snap, outcome, err := Decode(data)
	stop()
	if err != nil {
		metrics.SyncMessages.WithLabelValues(outcome).Inc()
		c.logger.Debug("live sync message dropped", zap.String("outcome", outcome), zap.Error(err))
		debug.Log("livesync: dropped %s message: %v", outcome, err)
		return false
	}
	if ctx.Err() != nil {
		metrics.SyncMessages.WithLabelValues("stale").Inc()
		return false
	}
	metrics.SyncMessages.WithLabelValues(outcome).Inc()
	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate(c.GraphID(), snap)
	}
	return true
}

// Decode parses a push message. The outcome label is "applied" on success
// and otherwise names why the message was dropped.
func Decode(data []byte) (model.Snapshot, string, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return model.Snapshot{}, "malformed", err
	}
	if msg.Type != MessageTypeUpdate {
		return model.Snapshot{}, "ignored", fmt.Errorf("message type %q", msg.Type)
	}
	if msg.Graph == nil {
		return model.Snapshot{}, "malformed", errors.New("update without graph")
	}
	if err := msg.Graph.Validate(); err != nil {
		return model.Snapshot{}, "invalid", err
	}
	return *msg.Graph, "applied", nil
}

// Close stops the read loop, closes the socket and waits for the loop to
// exit. No update is delivered after Close returns. Close is idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(Closed)
	cancel, conn, done := c.cancel, c.conn, c.done
	c.conn = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
	return nil
}
