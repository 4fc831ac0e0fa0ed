package core

import "sync"

type EventCode uint16

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT EventCode = 0x01
	// Keyboard key pressed. Data is *KeyEvent.
	EVENT_CODE_KEY_PRESSED EventCode = 0x02
	// Keyboard key released. Data is *KeyEvent.
	EVENT_CODE_KEY_RELEASED EventCode = 0x03
	// Mouse button pressed. Data is *MouseEvent.
	EVENT_CODE_BUTTON_PRESSED EventCode = 0x04
	// Mouse button released. Data is *MouseEvent.
	EVENT_CODE_BUTTON_RELEASED EventCode = 0x05
	// Mouse moved. Data is *MouseEvent with the new and previous position.
	EVENT_CODE_MOUSE_MOVED EventCode = 0x06
	// Mouse wheel. Data is *MouseEvent.
	EVENT_CODE_MOUSE_WHEEL EventCode = 0x07
	// Resized/resolution changed from the OS. Data is *SystemEvent.
	EVENT_CODE_RESIZED EventCode = 0x08
	// A watched asset changed on disk. Data is *AssetEvent.
	EVENT_CODE_ASSET_CHANGED EventCode = 0x09

	MAX_EVENT_CODE EventCode = 0xFF
)

type EventContext struct {
	Type EventCode
	Data interface{}
}

type KeyEvent struct {
	KeyCode KeyCode
}

type MouseEvent struct {
	Button    Button
	PosX      int32
	PosY      int32
	PrevPosX  int32
	PrevPosY  int32
	Scroll    int8
	IsPressed bool
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

type AssetEvent struct {
	Path string
}

// FnOnEvent handles a dispatched event.
type FnOnEvent func(context EventContext)

type eventSystemState struct {
	registered [MAX_EVENT_CODE + 1][]FnOnEvent
	mu         sync.Mutex
	pending    []EventContext
}

var eventState *eventSystemState = nil

// EventSystemInitialize resets the bus. Returns false if it was already running.
func EventSystemInitialize() bool {
	if eventState != nil {
		return false
	}
	eventState = &eventSystemState{}
	return true
}

func EventSystemShutdown() error {
	eventState = nil
	return nil
}

// EventRegister subscribes a callback to a code. Listeners run in
// registration order.
func EventRegister(code EventCode, onEvent FnOnEvent) bool {
	if eventState == nil || code > MAX_EVENT_CODE || onEvent == nil {
		return false
	}
	eventState.registered[code] = append(eventState.registered[code], onEvent)
	return true
}

// EventFire queues an event. It is safe to call from any goroutine; the
// callbacks only run inside EventProcessPending.
func EventFire(context EventContext) bool {
	if eventState == nil || context.Type > MAX_EVENT_CODE {
		return false
	}
	eventState.mu.Lock()
	eventState.pending = append(eventState.pending, context)
	eventState.mu.Unlock()
	return true
}

// EventProcessPending dispatches every queued event on the calling goroutine
// and returns how many were delivered.
func EventProcessPending() int {
	if eventState == nil {
		return 0
	}
	eventState.mu.Lock()
	batch := eventState.pending
	eventState.pending = nil
	eventState.mu.Unlock()

	for _, ev := range batch {
		for _, cb := range eventState.registered[ev.Type] {
			cb(ev)
		}
	}
	return len(batch)
}
