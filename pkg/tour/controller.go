package tour

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/vanderheijden86/edumap/pkg/model"
)

// State of a Controller.
type State int

const (
	Idle State = iota
	Touring
)

func (s State) String() string {
	if s == Touring {
		return "touring"
	}
	return "idle"
}

// Controller runs one tour at a time. Nodes are narrated strictly in
// sequence; a narration error moves on to the next node.
type Controller struct {
	narrator Narrator
	logger   *zap.Logger

	mu          sync.Mutex
	state       State
	queue       []model.Node
	current     string
	gen         uint64
	cancel      context.CancelFunc
	done        chan struct{}
	onHighlight func(id string)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger for narration failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController returns an idle controller speaking through n.
func NewController(n Narrator, opts ...Option) *Controller {
	if n == nil {
		n = NopNarrator{}
	}
	c := &Controller{narrator: n, logger: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// OnHighlight registers fn to receive the id of the node being narrated,
// and "" when the tour ends or stops. fn runs with the controller lock held
// and must not call back into the controller.
func (c *Controller) OnHighlight(fn func(id string)) {
	c.mu.Lock()
	c.onHighlight = fn
	c.mu.Unlock()
}

// Start begins touring snap. It does nothing and returns false when a tour
// is already running or snap has no nodes.
func (c *Controller) Start(snap model.Snapshot) bool {
	order := Order(snap)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Touring || len(order) == 0 {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.state = Touring
	c.queue = order
	c.gen++
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, c.gen, c.done)
	return true
}

func (c *Controller) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	for {
		node, ok := c.advance(gen)
		if !ok {
			return
		}
		err := c.narrator.Speak(ctx, Narration(node))
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Warn("narration failed, skipping node",
				zap.String("node_id", node.ID), zap.Error(err))
		}
	}
}

// advance pops the next node and highlights it, or finishes the tour when
// the queue is empty. It returns false when this run is over.
func (c *Controller) advance(gen uint64) (model.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.state != Touring {
		return model.Node{}, false
	}
	if len(c.queue) == 0 {
		c.finishLocked()
		return model.Node{}, false
	}
	node := c.queue[0]
	c.queue = c.queue[1:]
	c.current = node.ID
	c.emitLocked(node.ID)
	return node, true
}

// Stop ends the tour immediately, cutting off any narration in progress.
// It is safe to call at any time.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Touring {
		return
	}
	c.gen++
	c.finishLocked()
}

func (c *Controller) finishLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = Idle
	c.queue = nil
	c.current = ""
	c.emitLocked("")
}

func (c *Controller) emitLocked(id string) {
	if c.onHighlight != nil {
		c.onHighlight(id)
	}
}

// Wait blocks until the running tour, if any, has finished or been stopped
// and its narration has returned.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// WaitContext is Wait bounded by ctx.
func (c *Controller) WaitContext(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns Idle or Touring.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active reports whether a tour is running.
func (c *Controller) Active() bool { return c.State() == Touring }

// Current returns the id of the node being narrated, or "".
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Remaining returns how many nodes are still queued after the current one.
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

var (
	// ErrNoNodes is returned by Run for an empty graph.
	ErrNoNodes = errors.New("tour: graph has no nodes")
	// ErrTouring is returned by Run while another tour is active.
	ErrTouring = errors.New("tour: already running")
)

// Run tours snap to completion or until ctx is done.
func (c *Controller) Run(ctx context.Context, snap model.Snapshot) error {
	if len(snap.Nodes) == 0 {
		return ErrNoNodes
	}
	if !c.Start(snap) {
		return ErrTouring
	}
	if err := c.WaitContext(ctx); err != nil {
		c.Stop()
		c.Wait()
		return err
	}
	return nil
}
