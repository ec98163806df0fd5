package renderer

type EventKind int

const (
	EventClose EventKind = iota
	EventResize
	EventMinimize
	EventRestore
)

func (k EventKind) String() string {
	switch k {
	case EventClose:
		return "close"
	case EventResize:
		return "resize"
	case EventMinimize:
		return "minimize"
	case EventRestore:
		return "restore"
	}
	return "unknown"
}

// Event is a window notification. Width and Height are the drawable size in
// pixels and are only set for EventResize.
type Event struct {
	Kind   EventKind
	Width  int
	Height int
}

// Window is what the loop needs from the windowing side.
type Window interface {
	// Events drains everything queued since the last call.
	Events() []Event
	DrawableSize() (int, int)
	// PostClose queues a close event for the next Events call.
	PostClose()
}
