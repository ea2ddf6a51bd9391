package platform

import (
	"log/slog"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"

	"github.com/vkngwrapper/renderer/internal/logging"
)

// SDLWindow is an SDL2 window created with Vulkan support. It must be used
// from the thread that created it.
type SDLWindow struct {
	window *sdl.Window
	log    *slog.Logger
}

var _ Platform = (*SDLWindow)(nil)

func NewSDLWindow(title string, width, height int, logger *slog.Logger) (*SDLWindow, error) {
	log := logging.OrNop(logger)

	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "platform: init SDL")
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(width), int32(height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "platform: create window")
	}

	log.Info("Window created", slog.String("title", title), slog.Int("width", width), slog.Int("height", height))
	return &SDLWindow{window: window, log: log}, nil
}

func (w *SDLWindow) RequiredExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

func (w *SDLWindow) FramebufferSize() (int, int) {
	width, height := w.window.VulkanGetDrawableSize()
	return int(width), int(height)
}

func (w *SDLWindow) ProcAddr() unsafe.Pointer {
	return sdl.VulkanGetVkGetInstanceProcAddr()
}

// CreateVulkanSurface creates the presentation surface for this window.
func (w *SDLWindow) CreateVulkanSurface(instance core1_0.Instance, surfaces khr_surface.ExtensionDriver) (khr_surface.Surface, error) {
	return vkng_sdl2.CreateSurface(instance, surfaces, w.window)
}

func (w *SDLWindow) Minimized() bool {
	return w.window.GetFlags()&sdl.WINDOW_MINIMIZED != 0
}

func (w *SDLWindow) PollEvents() []Event {
	var events []Event
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		if e, ok := translate(event, w.FramebufferSize); ok {
			events = append(events, e)
		}
	}
	return events
}

// RequestQuit queues a quit event. It may be called from any goroutine.
func (w *SDLWindow) RequestQuit() {
	if _, err := sdl.PushEvent(&sdl.QuitEvent{Type: sdl.QUIT, Timestamp: sdl.GetTicks()}); err != nil {
		w.log.Warn("Pushing quit event", slog.Any("error", err))
	}
}

func (w *SDLWindow) Close() error {
	if w.window != nil {
		if err := w.window.Destroy(); err != nil {
			w.log.Warn("Destroying window", slog.Any("error", err))
		}
		w.window = nil
	}
	sdl.Quit()
	return nil
}

// translate converts an SDL event. drawableSize supplies the pixel size
// reported with resize events, which may differ from the window size on
// high density displays.
func translate(event sdl.Event, drawableSize func() (int, int)) (Event, bool) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		return Event{Kind: EventQuit}, true

	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_MINIMIZED:
			return Event{Kind: EventMinimized}, true
		case sdl.WINDOWEVENT_RESTORED:
			return Event{Kind: EventRestored}, true
		case sdl.WINDOWEVENT_SIZE_CHANGED, sdl.WINDOWEVENT_RESIZED:
			width, height := drawableSize()
			return Event{Kind: EventResized, Width: width, Height: height}, true
		}

	case *sdl.MouseButtonEvent:
		kind := EventButtonReleased
		if e.Type == sdl.MOUSEBUTTONDOWN {
			kind = EventButtonPressed
		}
		return Event{Kind: kind, Button: translateButton(e.Button), X: int(e.X), Y: int(e.Y)}, true

	case *sdl.KeyboardEvent:
		kind := EventKeyReleased
		if e.Type == sdl.KEYDOWN {
			kind = EventKeyPressed
		}
		return Event{Kind: kind, Key: translateKey(e.Keysym.Sym)}, true
	}

	return Event{}, false
}

func translateButton(button uint8) Button {
	switch button {
	case sdl.BUTTON_LEFT:
		return ButtonLeft
	case sdl.BUTTON_MIDDLE:
		return ButtonMiddle
	case sdl.BUTTON_RIGHT:
		return ButtonRight
	default:
		return ButtonUnknown
	}
}

func translateKey(key sdl.Keycode) Key {
	switch key {
	case sdl.K_ESCAPE:
		return KeyEscape
	case sdl.K_SPACE:
		return KeySpace
	case sdl.K_RETURN:
		return KeyEnter
	default:
		return KeyUnknown
	}
}
