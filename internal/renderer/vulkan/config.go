package vulkan

import (
	"log/slog"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// MaxFramesInFlight bounds how many frames the CPU may record ahead of the
// GPU.
const MaxFramesInFlight = 2

const (
	defaultFramebufferWidth  = 800
	defaultFramebufferHeight = 600
)

// Requirements describes what a physical device must offer to be selected.
type Requirements struct {
	Graphics bool
	Present  bool
	Compute  bool
	Transfer bool

	DeviceExtensions []string

	SamplerAnisotropy bool
	DiscreteGPU       bool
}

func DefaultRequirements() Requirements {
	return Requirements{
		Graphics:          true,
		Present:           true,
		Transfer:          true,
		DeviceExtensions:  []string{khr_swapchain.ExtensionName},
		SamplerAnisotropy: true,
	}
}

type Config struct {
	ApplicationName string
	EngineName      string

	// Validation enables the validation layers and the debug messenger.
	Validation       bool
	ValidationLayers []string

	Requirements Requirements

	// FrameTimeout bounds the steady-state fence waits of the frame loop.
	FrameTimeout time.Duration

	ClearColor   mgl32.Vec4
	ClearDepth   float32
	ClearStencil uint32

	// DefaultWidth and DefaultHeight are used when the platform reports a
	// zero sized framebuffer at startup.
	DefaultWidth  int
	DefaultHeight int

	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		ApplicationName:  "Testbed",
		EngineName:       "Oki Engine",
		ValidationLayers: []string{"VK_LAYER_KHRONOS_validation"},
		Requirements:     DefaultRequirements(),
		FrameTimeout:     time.Duration(math.MaxUint32),
		ClearColor:       mgl32.Vec4{0, 0, 0.2, 1},
		ClearDepth:       1,
		ClearStencil:     0,
		DefaultWidth:     defaultFramebufferWidth,
		DefaultHeight:    defaultFramebufferHeight,
	}
}
