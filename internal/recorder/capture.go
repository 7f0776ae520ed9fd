package recorder

import (
	"context"
	"sync"

	"github.com/trackfit/autobone/pkg/core"
)

// Capture is the pending result of a recording. It completes exactly once.
type Capture struct {
	done   chan struct{}
	once   sync.Once
	frames *core.PoseFrames
	err    error
}

func newCapture() *Capture {
	return &Capture{done: make(chan struct{})}
}

func (c *Capture) complete(frames *core.PoseFrames, err error) {
	c.once.Do(func() {
		c.frames = frames
		c.err = err
		close(c.done)
	})
}

// Done is closed when the capture has finished.
func (c *Capture) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the capture finishes or ctx is done.
func (c *Capture) Wait(ctx context.Context) (*core.PoseFrames, error) {
	select {
	case <-c.done:
		return c.frames, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome without blocking. ok is false while running.
func (c *Capture) Result() (frames *core.PoseFrames, err error, ok bool) {
	select {
	case <-c.done:
		return c.frames, c.err, true
	default:
		return nil, nil, false
	}
}
