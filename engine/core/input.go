package core

type Button uint16

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
	BUTTON_MAX_BUTTONS
)

// KeyCode follows the virtual-key numbering: digits and letters use their
// ASCII values.
type KeyCode uint16

const (
	KEY_BACKSPACE KeyCode = 0x08
	KEY_TAB       KeyCode = 0x09
	KEY_ENTER     KeyCode = 0x0D
	KEY_SHIFT     KeyCode = 0x10
	KEY_PAUSE     KeyCode = 0x13
	KEY_ESCAPE    KeyCode = 0x1B
	KEY_SPACE     KeyCode = 0x20
	KEY_LEFT      KeyCode = 0x25
	KEY_UP        KeyCode = 0x26
	KEY_RIGHT     KeyCode = 0x27
	KEY_DOWN      KeyCode = 0x28
	KEY_0         KeyCode = 0x30
	KEY_1         KeyCode = 0x31
	KEY_2         KeyCode = 0x32
	KEY_3         KeyCode = 0x33
	KEY_4         KeyCode = 0x34
	KEY_5         KeyCode = 0x35
	KEY_6         KeyCode = 0x36
	KEY_7         KeyCode = 0x37
	KEY_8         KeyCode = 0x38
	KEY_9         KeyCode = 0x39
	KEY_A         KeyCode = 0x41
	KEY_D         KeyCode = 0x44
	KEY_P         KeyCode = 0x50
	KEY_R         KeyCode = 0x52
	KEY_S         KeyCode = 0x53
	KEY_W         KeyCode = 0x57
	KEY_F1        KeyCode = 0x70
	KEY_F2        KeyCode = 0x71
	KEY_F3        KeyCode = 0x72
	KEY_F4        KeyCode = 0x73
	KEY_F5        KeyCode = 0x74
	KEY_F6        KeyCode = 0x75
	KEY_F7        KeyCode = 0x76
	KEY_F8        KeyCode = 0x77
	KEY_F9        KeyCode = 0x78
	KEY_F10       KeyCode = 0x79
	KEY_F11       KeyCode = 0x7A
	KEY_F12       KeyCode = 0x7B
	KEYS_MAX_KEYS KeyCode = 0xFF
)

// Mouse state structure
type MouseState struct {
	X       int32
	Y       int32
	Buttons [BUTTON_MAX_BUTTONS]bool
}

// Keyboard state structure
type KeyboardState struct {
	Keys [KEYS_MAX_KEYS + 1]bool
}

// Input state structure that holds current and previous states for keyboard and mouse
type InputState struct {
	KeyboardCurrent  KeyboardState
	KeyboardPrevious KeyboardState
	MouseCurrent     MouseState
	MousePrevious    MouseState
}

var inputInitialized bool = false
var inputState *InputState = nil

func InputInitialize() error {
	inputState = &InputState{}
	inputInitialized = true
	LogInfo("Input subsystem initialized.")
	return nil
}

func InputShutdown() error {
	inputInitialized = false
	return nil
}

// InputUpdate copies current states to previous states. Called last in a frame.
func InputUpdate(deltaTime float64) error {
	if !inputInitialized {
		return nil
	}
	inputState.KeyboardPrevious = inputState.KeyboardCurrent
	inputState.MousePrevious = inputState.MouseCurrent
	return nil
}

// keyboard input
func InputIsKeyDown(key KeyCode) bool {
	if !inputInitialized || key > KEYS_MAX_KEYS {
		return false
	}
	return inputState.KeyboardCurrent.Keys[key]
}

func InputIsKeyUp(key KeyCode) bool {
	return !InputIsKeyDown(key)
}

func InputWasKeyDown(key KeyCode) bool {
	if !inputInitialized || key > KEYS_MAX_KEYS {
		return false
	}
	return inputState.KeyboardPrevious.Keys[key]
}

func InputWasKeyUp(key KeyCode) bool {
	return !InputWasKeyDown(key)
}

func InputProcessKey(key KeyCode, pressed bool) error {
	if !inputInitialized || key > KEYS_MAX_KEYS {
		return nil
	}
	// Only handle this if the state actually changed.
	if inputState.KeyboardCurrent.Keys[key] != pressed {
		inputState.KeyboardCurrent.Keys[key] = pressed

		code := EVENT_CODE_KEY_RELEASED
		if pressed {
			code = EVENT_CODE_KEY_PRESSED
		}
		EventFire(EventContext{
			Type: code,
			Data: &KeyEvent{
				KeyCode: key,
			},
		})
	}
	return nil
}

// mouse input
func InputIsButtonDown(button Button) bool {
	if !inputInitialized || button >= BUTTON_MAX_BUTTONS {
		return false
	}
	return inputState.MouseCurrent.Buttons[button]
}

func InputIsButtonUp(button Button) bool {
	return !InputIsButtonDown(button)
}

func InputWasButtonDown(button Button) bool {
	if !inputInitialized || button >= BUTTON_MAX_BUTTONS {
		return false
	}
	return inputState.MousePrevious.Buttons[button]
}

func InputGetMousePosition() (int32, int32) {
	if !inputInitialized {
		return 0, 0
	}
	return inputState.MouseCurrent.X, inputState.MouseCurrent.Y
}

func InputGetPreviousMousePosition() (int32, int32) {
	if !inputInitialized {
		return 0, 0
	}
	return inputState.MousePrevious.X, inputState.MousePrevious.Y
}

func InputProcessButton(button Button, pressed bool) error {
	if !inputInitialized || button >= BUTTON_MAX_BUTTONS {
		return nil
	}
	if inputState.MouseCurrent.Buttons[button] != pressed {
		inputState.MouseCurrent.Buttons[button] = pressed

		code := EVENT_CODE_BUTTON_RELEASED
		if pressed {
			code = EVENT_CODE_BUTTON_PRESSED
		}
		EventFire(EventContext{
			Type: code,
			Data: &MouseEvent{
				Button:    button,
				PosX:      inputState.MouseCurrent.X,
				PosY:      inputState.MouseCurrent.Y,
				IsPressed: pressed,
			},
		})
	}
	return nil
}

// InputProcessMouseMove records the new cursor position. The event carries the
// previous position so listeners can compute drag deltas.
func InputProcessMouseMove(x int32, y int32) error {
	if !inputInitialized {
		return nil
	}
	if inputState.MouseCurrent.X != x || inputState.MouseCurrent.Y != y {
		prevX, prevY := inputState.MouseCurrent.X, inputState.MouseCurrent.Y
		inputState.MouseCurrent.X = x
		inputState.MouseCurrent.Y = y

		EventFire(EventContext{
			Type: EVENT_CODE_MOUSE_MOVED,
			Data: &MouseEvent{
				PosX:     x,
				PosY:     y,
				PrevPosX: prevX,
				PrevPosY: prevY,
			},
		})
	}
	return nil
}

func InputProcessMouseWheel(zDelta int8) error {
	EventFire(EventContext{
		Type: EVENT_CODE_MOUSE_WHEEL,
		Data: &MouseEvent{
			Scroll: zDelta,
		},
	})
	return nil
}
