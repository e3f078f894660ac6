package backend

import (
	"log/slog"

	"github.com/gen2brain/malgo"
)

// deviceContext wraps malgo.AllocatedContext with lifecycle management.
type deviceContext struct {
	ctx *malgo.AllocatedContext
}

func newDeviceContext() (*deviceContext, error) {
	slog.Debug("initializing audio device context")

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("malgo internal", "message", message)
	})
	if err != nil {
		slog.Error("failed to initialize audio device context", "error", err)
		return nil, err
	}

	slog.Debug("audio device context initialized")
	return &deviceContext{ctx: ctx}, nil
}

func (c *deviceContext) close() error {
	if c.ctx == nil {
		return nil
	}

	// malgo requires both Uninit and Free.
	err := c.ctx.Uninit()
	if err != nil {
		slog.Error("failed to uninitialize audio device context", "error", err)
		return err
	}
	c.ctx.Free()
	c.ctx = nil

	slog.Debug("audio device context closed")
	return nil
}
