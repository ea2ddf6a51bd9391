// Command testbed opens a window and clears it every frame through the Vulkan
// renderer backend.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/loov/hrtime"
	"golang.org/x/sync/errgroup"

	"github.com/vkngwrapper/renderer/internal/logging"
	"github.com/vkngwrapper/renderer/internal/platform"
	"github.com/vkngwrapper/renderer/internal/renderer"
	"github.com/vkngwrapper/renderer/internal/renderer/vulkan"
)

var (
	_ renderer.Backend     = (*vulkan.Backend)(nil)
	_ vulkan.Platform      = (*platform.SDLWindow)(nil)
	_ vulkan.SurfaceSource = (*platform.SDLWindow)(nil)
)

type options struct {
	validation bool
	discrete   bool
	level      string
	width      int
	height     int
}

func parseFlags() options {
	var opts options
	flag.BoolVar(&opts.validation, "validation", true, "enable the Khronos validation layer")
	flag.BoolVar(&opts.discrete, "discrete", false, "only accept discrete GPUs")
	flag.StringVar(&opts.level, "log-level", "info", "log level: trace, debug, info, warn or error")
	flag.IntVar(&opts.width, "width", 1280, "initial window width")
	flag.IntVar(&opts.height, "height", 720, "initial window height")
	flag.Parse()
	return opts
}

func main() {
	runtime.LockOSThread()

	if err := run(parseFlags()); err != nil {
		log.Fatalf("%+v\n", err)
	}
}

func run(opts options) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logging.ParseLevel(opts.level)}))

	config := vulkan.DefaultConfig()
	config.Validation = opts.validation
	config.Requirements.DiscreteGPU = opts.discrete
	config.Logger = logger

	window, err := platform.NewSDLWindow(config.ApplicationName, opts.width, opts.height, logger)
	if err != nil {
		return err
	}
	defer window.Close()

	driver, err := vulkan.NewVkngDriver(window.ProcAddr())
	if err != nil {
		return err
	}

	backend := vulkan.NewBackend(driver, window, config)
	r := renderer.New(backend, logger)
	if err := r.Initialize(config.ApplicationName); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		select {
		case <-ctx.Done():
			logger.Info("Signal received, shutting down")
			window.RequestQuit()
		case <-done:
		}
		return nil
	})

	loopErr := mainLoop(window, r, logger)
	close(done)
	_ = group.Wait()

	logger.Info("Device memory\n" + backend.MemoryReport())
	if err := r.Shutdown(); err != nil && loopErr == nil {
		loopErr = err
	}
	return loopErr
}

func mainLoop(window *platform.SDLWindow, r *renderer.Renderer, logger *slog.Logger) error {
	rendering := !window.Minimized()
	last := hrtime.Now()

	for {
		for _, event := range window.PollEvents() {
			switch event.Kind {
			case platform.EventQuit:
				return nil
			case platform.EventKeyPressed:
				if event.Key == platform.KeyEscape {
					return nil
				}
			case platform.EventMinimized:
				rendering = false
			case platform.EventRestored:
				rendering = true
			case platform.EventResized:
				r.OnResized(event.Width, event.Height)
				rendering = event.Width > 0 && event.Height > 0
			case platform.EventButtonPressed:
				logger.Debug("Button pressed",
					slog.Int("button", int(event.Button)),
					slog.Int("x", event.X),
					slog.Int("y", event.Y))
			}
		}

		now := hrtime.Now()
		delta := (now - last).Seconds()
		last = now

		if !rendering {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if _, err := r.DrawFrame(renderer.Packet{DeltaTime: delta}); err != nil {
			return err
		}
	}
}
