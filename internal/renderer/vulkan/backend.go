package vulkan

import (
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/renderer/internal/logging"
)

// Backend is the Vulkan implementation of the renderer backend. It owns at
// most one Context at a time.
type Backend struct {
	driver   Driver
	platform Platform
	config   Config
	log      *slog.Logger

	ctx *Context
}

func NewBackend(driver Driver, platform Platform, config Config) *Backend {
	return &Backend{
		driver:   driver,
		platform: platform,
		config:   config,
		log:      logging.OrNop(config.Logger),
	}
}

// Context returns the live context, or nil before Initialize and after
// Shutdown.
func (b *Backend) Context() *Context {
	return b.ctx
}

// Initialize creates every GPU object. On failure everything created so far
// is released and the backend stays uninitialized.
func (b *Backend) Initialize(applicationName string) error {
	if b.ctx != nil {
		return errors.New("vulkan: backend already initialized")
	}
	if applicationName == "" {
		applicationName = b.config.ApplicationName
	}

	ctx := newContext(b.driver, b.platform, b.config)
	if err := ctx.initialize(applicationName); err != nil {
		if destroyErr := ctx.destroy(); destroyErr != nil {
			b.log.Error("Cleanup after failed initialization", slog.Any("error", destroyErr))
		}
		return errors.Wrap(err, "vulkan: initialize")
	}

	b.ctx = ctx
	return nil
}

func (b *Backend) Shutdown() error {
	if b.ctx == nil {
		return nil
	}
	ctx := b.ctx
	b.ctx = nil

	err := ctx.destroy()
	ctx.log.Debug("Device memory at shutdown\n" + ctx.MemoryReport())
	return err
}

func (b *Backend) OnResized(width, height int) {
	if b.ctx == nil {
		return
	}
	b.ctx.OnResized(width, height)
}

func (b *Backend) BeginFrame(deltaTime float64) (bool, error) {
	if b.ctx == nil {
		return false, errors.New("vulkan: backend not initialized")
	}
	return b.ctx.BeginFrame(deltaTime)
}

func (b *Backend) EndFrame(deltaTime float64) error {
	if b.ctx == nil {
		return errors.New("vulkan: backend not initialized")
	}
	return b.ctx.EndFrame(deltaTime)
}

func (b *Backend) ImmediateSubmit(record func(cb *CommandBuffer) error) error {
	if b.ctx == nil {
		return errors.New("vulkan: backend not initialized")
	}
	return b.ctx.ImmediateSubmit(record)
}

// MemoryReport renders the device memory held by the live context.
func (b *Backend) MemoryReport() string {
	if b.ctx == nil {
		return ""
	}
	return b.ctx.MemoryReport()
}
