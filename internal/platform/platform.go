// Package platform owns the application window and turns its native events
// into the small set the renderer loop cares about.
package platform

import (
	"fmt"
	"unsafe"
)

type EventKind int

const (
	EventQuit EventKind = iota
	EventResized
	EventMinimized
	EventRestored
	EventButtonPressed
	EventButtonReleased
	EventKeyPressed
	EventKeyReleased
)

func (k EventKind) String() string {
	switch k {
	case EventQuit:
		return "Quit"
	case EventResized:
		return "Resized"
	case EventMinimized:
		return "Minimized"
	case EventRestored:
		return "Restored"
	case EventButtonPressed:
		return "ButtonPressed"
	case EventButtonReleased:
		return "ButtonReleased"
	case EventKeyPressed:
		return "KeyPressed"
	case EventKeyReleased:
		return "KeyReleased"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeySpace
	KeyEnter
)

type Button int

const (
	ButtonUnknown Button = iota
	ButtonLeft
	ButtonMiddle
	ButtonRight
)

// Event is a translated window event. Width and Height are set for
// EventResized and hold the drawable size in pixels.
type Event struct {
	Kind   EventKind
	Width  int
	Height int
	Key    Key
	Button Button
	X, Y   int
}

// Platform is a window that can host a Vulkan surface.
type Platform interface {
	// RequiredExtensions lists the instance extensions needed for
	// presentation on this window system.
	RequiredExtensions() []string
	// FramebufferSize is the drawable size in pixels.
	FramebufferSize() (width, height int)
	// ProcAddr returns vkGetInstanceProcAddr from the loader the platform
	// opened.
	ProcAddr() unsafe.Pointer
	// PollEvents drains pending window events.
	PollEvents() []Event
	Close() error
}
