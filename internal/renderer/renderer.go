// Package renderer is the API-agnostic front of the renderer. It drives a
// Backend through initialization, the per-frame begin/end protocol and
// shutdown.
package renderer

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/renderer/internal/logging"
)

// Backend is implemented by each graphics API backend.
type Backend interface {
	Initialize(applicationName string) error
	Shutdown() error
	OnResized(width, height int)
	// BeginFrame reports false, with a nil error, when the frame should be
	// skipped.
	BeginFrame(deltaTime float64) (bool, error)
	EndFrame(deltaTime float64) error
}

// Packet carries the per-frame input to DrawFrame.
type Packet struct {
	DeltaTime float64
}

type Renderer struct {
	backend     Backend
	log         *slog.Logger
	initialized bool
	frameNumber uint64
}

func New(backend Backend, logger *slog.Logger) *Renderer {
	return &Renderer{
		backend: backend,
		log:     logging.OrNop(logger),
	}
}

func (r *Renderer) Initialize(applicationName string) error {
	if r.initialized {
		return errors.New("renderer: already initialized")
	}
	if err := r.backend.Initialize(applicationName); err != nil {
		return errors.Wrap(err, "renderer: backend failed to initialize")
	}
	r.initialized = true
	r.log.Info("Renderer initialized", slog.String("application", applicationName))
	return nil
}

func (r *Renderer) Shutdown() error {
	if !r.initialized {
		return nil
	}
	r.initialized = false
	if err := r.backend.Shutdown(); err != nil {
		return errors.Wrap(err, "renderer: backend shutdown")
	}
	r.log.Info("Renderer shut down", slog.Uint64("frames", r.frameNumber))
	return nil
}

func (r *Renderer) OnResized(width, height int) {
	if !r.initialized {
		r.log.Warn("Renderer backend does not exist to accept resize", slog.Int("width", width), slog.Int("height", height))
		return
	}
	r.backend.OnResized(width, height)
}

// DrawFrame runs one begin/end cycle. It reports false with a nil error when
// the backend skipped the frame. Any error is fatal.
func (r *Renderer) DrawFrame(packet Packet) (bool, error) {
	if !r.initialized {
		return false, errors.New("renderer: not initialized")
	}

	ok, err := r.backend.BeginFrame(packet.DeltaTime)
	if err != nil {
		return false, errors.Wrap(err, "renderer: begin frame")
	}
	if !ok {
		return false, nil
	}

	if err := r.backend.EndFrame(packet.DeltaTime); err != nil {
		return false, errors.Wrap(err, "renderer: end frame")
	}

	r.frameNumber++
	r.log.Log(context.Background(), logging.LevelTrace, "Frame drawn", slog.Uint64("frame", r.frameNumber))
	return true, nil
}

// FrameNumber counts the frames fully drawn since initialization.
func (r *Renderer) FrameNumber() uint64 {
	return r.frameNumber
}
