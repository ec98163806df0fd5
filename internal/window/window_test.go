package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/framepipe/internal/renderer"
)

func TestTranslate(t *testing.T) {
	testCases := []struct {
		name  string
		event sdl.Event
		kind  renderer.EventKind
	}{
		{name: "quit", event: &sdl.QuitEvent{Type: sdl.QUIT}, kind: renderer.EventClose},
		{name: "close", event: &sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_CLOSE}, kind: renderer.EventClose},
		{name: "minimize", event: &sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_MINIMIZED}, kind: renderer.EventMinimize},
		{name: "restore", event: &sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_RESTORED}, kind: renderer.EventRestore},
		{name: "hidden", event: &sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_HIDDEN}, kind: renderer.EventMinimize},
		{name: "shown", event: &sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_SHOWN}, kind: renderer.EventRestore},
	}

	w := &Window{}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			event, ok := w.translate(tc.event)
			assert.True(t, ok)
			assert.Equal(t, tc.kind, event.Kind)
		})
	}
}

func TestTranslateIgnoresOtherEvents(t *testing.T) {
	w := &Window{}

	_, ok := w.translate(&sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_MOVED})
	assert.False(t, ok)

	_, ok = w.translate(&sdl.KeyboardEvent{Type: sdl.KEYDOWN})
	assert.False(t, ok)
}
