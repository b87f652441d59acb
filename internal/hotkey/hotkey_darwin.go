//go:build darwin

package hotkey

/*
#cgo LDFLAGS: -framework Carbon
#include <Carbon/Carbon.h>

// Forward declaration for Go callback
extern void goHotkeyCallback(int pressed);

static EventHotKeyRef hotKeyRef = NULL;
static int handlerInstalled = 0;

// Event handler for hotkeys
static OSStatus hotkeyHandler(EventHandlerCallRef nextHandler, EventRef theEvent, void* userData) {
    EventHotKeyID hkRef;
    GetEventParameter(theEvent, kEventParamDirectObject, typeEventHotKeyID, NULL, sizeof(hkRef), NULL, &hkRef);

    UInt32 eventKind = GetEventKind(theEvent);
    int pressed = (eventKind == kEventHotKeyPressed) ? 1 : 0;

    goHotkeyCallback(pressed);

    return noErr;
}

// Register hotkey with Carbon
static int registerHotkey(UInt32 keyCode, UInt32 modifiers) {
    if (!handlerInstalled) {
        EventTypeSpec eventTypes[2];
        eventTypes[0].eventClass = kEventClassKeyboard;
        eventTypes[0].eventKind = kEventHotKeyPressed;
        eventTypes[1].eventClass = kEventClassKeyboard;
        eventTypes[1].eventKind = kEventHotKeyReleased;

        EventHandlerUPP handlerUPP = NewEventHandlerUPP(hotkeyHandler);
        InstallApplicationEventHandler(handlerUPP, 2, eventTypes, NULL, NULL);
        handlerInstalled = 1;
    }

    EventHotKeyID hotKeyID;
    hotKeyID.signature = 'vflw';
    hotKeyID.id = 1;

    OSStatus status = RegisterEventHotKey(keyCode, modifiers, hotKeyID, GetApplicationEventTarget(), 0, &hotKeyRef);

    return (status == noErr) ? 1 : 0;
}

static void unregisterHotkey() {
    if (hotKeyRef != NULL) {
        UnregisterEventHotKey(hotKeyRef);
        hotKeyRef = NULL;
    }
}
*/
import "C"

import (
	"fmt"
	"sync"
)

// Carbon modifier masks
const (
	cmdKey     = 0x100
	shiftKey   = 0x200
	optionKey  = 0x800
	controlKey = 0x1000
)

// Virtual key codes (kVK_*) for the keys ParseAccel accepts
var darwinKeyCodes = map[string]uint32{
	"a": 0, "s": 1, "d": 2, "f": 3, "h": 4, "g": 5, "z": 6, "x": 7, "c": 8, "v": 9,
	"b": 11, "q": 12, "w": 13, "e": 14, "r": 15, "y": 16, "t": 17,
	"1": 18, "2": 19, "3": 20, "4": 21, "6": 22, "5": 23, "9": 25, "7": 26, "8": 28, "0": 29,
	"o": 31, "u": 32, "i": 34, "p": 35, "l": 37, "j": 38, "k": 40, "n": 45, "m": 46,
	"return": 36, "tab": 48, "space": 49, "escape": 53,
	"f1": 122, "f2": 120, "f3": 99, "f4": 118, "f5": 96, "f6": 97,
	"f7": 98, "f8": 100, "f9": 101, "f10": 109, "f11": 103, "f12": 111,
}

// Carbon delivers every hotkey through one C handler, so one accelerator
// is active at a time.
type darwinManager struct {
	mu       sync.Mutex
	accel    string
	callback func(bool)
}

var (
	globalMu      sync.Mutex
	globalManager *darwinManager
)

// New creates a new macOS hotkey manager using Carbon
func New() (Manager, error) {
	return &darwinManager{}, nil
}

//export goHotkeyCallback
func goHotkeyCallback(pressed C.int) {
	globalMu.Lock()
	m := globalManager
	globalMu.Unlock()
	if m == nil {
		return
	}

	m.mu.Lock()
	cb := m.callback
	m.mu.Unlock()
	if cb != nil {
		cb(pressed == 1)
	}
}

func (m *darwinManager) Register(accel string, callback func(pressed bool)) error {
	a, err := ParseAccel(accel)
	if err != nil {
		return err
	}
	keyCode, ok := darwinKeyCodes[a.Key]
	if !ok {
		return fmt.Errorf("hotkey %q: no key code for %q", accel, a.Key)
	}

	var mods uint32
	if a.Mods&ModCtrl != 0 {
		mods |= controlKey
	}
	if a.Mods&ModAlt != 0 {
		mods |= optionKey
	}
	if a.Mods&ModShift != 0 {
		mods |= shiftKey
	}
	if a.Mods&ModSuper != 0 {
		mods |= cmdKey
	}

	C.unregisterHotkey()
	if C.registerHotkey(C.UInt32(keyCode), C.UInt32(mods)) == 0 {
		return fmt.Errorf("failed to register hotkey %q", accel)
	}

	m.mu.Lock()
	m.accel = accel
	m.callback = callback
	m.mu.Unlock()

	globalMu.Lock()
	globalManager = m
	globalMu.Unlock()
	return nil
}

func (m *darwinManager) Unregister(accel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if accel != m.accel {
		return fmt.Errorf("hotkey %q is not registered", accel)
	}
	C.unregisterHotkey()
	m.accel = ""
	m.callback = nil
	return nil
}

func (m *darwinManager) Close() error {
	C.unregisterHotkey()
	globalMu.Lock()
	if globalManager == m {
		globalManager = nil
	}
	globalMu.Unlock()
	return nil
}
