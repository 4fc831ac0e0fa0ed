package platform

import (
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/castle/engine/core"
)

var keyMap = map[glfw.Key]core.KeyCode{
	glfw.KeyBackspace: core.KEY_BACKSPACE,
	glfw.KeyTab:       core.KEY_TAB,
	glfw.KeyEnter:     core.KEY_ENTER,
	glfw.KeyPause:     core.KEY_PAUSE,
	glfw.KeyEscape:    core.KEY_ESCAPE,
	glfw.KeySpace:     core.KEY_SPACE,
	glfw.KeyLeft:      core.KEY_LEFT,
	glfw.KeyUp:        core.KEY_UP,
	glfw.KeyRight:     core.KEY_RIGHT,
	glfw.KeyDown:      core.KEY_DOWN,
	glfw.KeyLeftShift: core.KEY_SHIFT,
	// Both shift keys share one code.
	glfw.KeyRightShift: core.KEY_SHIFT,
}

// TranslateKey maps a GLFW key to the engine key code. Digits and letters
// share their ASCII values in both tables; function keys are contiguous.
func TranslateKey(key glfw.Key) (core.KeyCode, bool) {
	switch {
	case key >= glfw.Key0 && key <= glfw.Key9:
		return core.KeyCode(key), true
	case key >= glfw.KeyA && key <= glfw.KeyZ:
		return core.KeyCode(key), true
	case key >= glfw.KeyF1 && key <= glfw.KeyF12:
		return core.KEY_F1 + core.KeyCode(key-glfw.KeyF1), true
	}
	code, ok := keyMap[key]
	return code, ok
}

func TranslateButton(button glfw.MouseButton) (core.Button, bool) {
	switch button {
	case glfw.MouseButtonLeft:
		return core.BUTTON_LEFT, true
	case glfw.MouseButtonRight:
		return core.BUTTON_RIGHT, true
	case glfw.MouseButtonMiddle:
		return core.BUTTON_MIDDLE, true
	}
	return 0, false
}
