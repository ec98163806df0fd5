// Package window opens the SDL2 window the renderer presents into and turns
// SDL events into renderer events.
package window

import (
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/framepipe/internal/gpu"
	"github.com/vkngwrapper/framepipe/internal/renderer"
)

var _ renderer.Window = (*Window)(nil)

type Window struct {
	window *sdl.Window
}

// Create initializes SDL video and opens a hidden, resizable Vulkan window.
// Call Show once the renderer is up.
func Create(title string, width, height int) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, gpu.ApplicationError(gpu.CodeWindow, "init SDL video: %v", err)
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(width), int32(height), sdl.WINDOW_HIDDEN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, gpu.ApplicationError(gpu.CodeWindow, "create window: %v", err)
	}

	return &Window{window: window}, nil
}

func (w *Window) Handle() *sdl.Window {
	return w.window
}

func (w *Window) Show() {
	w.window.Show()
}

// InstanceExtensions lists the instance extensions the window system needs.
func (w *Window) InstanceExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

func (w *Window) DrawableSize() (int, int) {
	width, height := w.window.VulkanGetDrawableSize()
	return int(width), int(height)
}

// Events drains the SDL queue.
func (w *Window) Events() []renderer.Event {
	var events []renderer.Event
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		translated, ok := w.translate(event)
		if ok {
			events = append(events, translated)
		}
	}
	return events
}

func (w *Window) translate(event sdl.Event) (renderer.Event, bool) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		return renderer.Event{Kind: renderer.EventClose}, true
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_CLOSE:
			return renderer.Event{Kind: renderer.EventClose}, true
		case sdl.WINDOWEVENT_MINIMIZED, sdl.WINDOWEVENT_HIDDEN:
			return renderer.Event{Kind: renderer.EventMinimize}, true
		case sdl.WINDOWEVENT_RESTORED, sdl.WINDOWEVENT_SHOWN:
			return renderer.Event{Kind: renderer.EventRestore}, true
		case sdl.WINDOWEVENT_RESIZED:
			width, height := w.DrawableSize()
			return renderer.Event{Kind: renderer.EventResize, Width: width, Height: height}, true
		}
	}
	return renderer.Event{}, false
}

// PostClose queues a quit event so the loop sees the close on its next
// iteration.
func (w *Window) PostClose() {
	sdl.PushEvent(&sdl.QuitEvent{Type: sdl.QUIT, Timestamp: sdl.GetTicks()})
}

func (w *Window) Destroy() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}
