package client

import (
	"context"

	"github.com/danmuck/photon/internal/hittest"
	"github.com/danmuck/photon/internal/protocol"
)

// Controller feeds user input into the session. It is safe to use from any
// goroutine while the reader loop runs.
type Controller struct {
	dispatcher *hittest.Dispatcher
}

// MouseClick reports clicks at (x, y) in viewport coordinates.
func (c *Controller) MouseClick(ctx context.Context, x, y float64) (int, error) {
	return c.dispatcher.Click(ctx, protocol.Point{X: x, Y: y})
}

// MouseWheel reports a wheel reading at (x, y).
func (c *Controller) MouseWheel(ctx context.Context, x, y float64, delta hittest.WheelDelta) (int, error) {
	return c.dispatcher.Wheel(ctx, protocol.Point{X: x, Y: y}, delta)
}
