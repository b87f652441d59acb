//go:build linux && x11

package hotkey

/*
#cgo pkg-config: x11
#include <X11/Xlib.h>
#include <X11/XKBlib.h>
#include <X11/keysym.h>
#include <stdlib.h>

static Display* displayPtr = NULL;

static int openDisplay() {
    if (displayPtr == NULL) {
        displayPtr = XOpenDisplay(NULL);
        if (displayPtr == NULL) return 0;
        // Held keys repeat as presses only, without synthetic releases
        XkbSetDetectableAutoRepeat(displayPtr, True, NULL);
    }
    return 1;
}

// Returns the keycode grabbed, or 0 on failure. The grab is repeated with
// NumLock (Mod2) and CapsLock (Lock) so those do not mask the hotkey.
static int grabKey(const char* keysymName, unsigned int modifiers) {
    if (!openDisplay()) return 0;

    KeySym sym = XStringToKeysym(keysymName);
    if (sym == NoSymbol) return 0;
    KeyCode keycode = XKeysymToKeycode(displayPtr, sym);
    if (keycode == 0) return 0;

    Window root = DefaultRootWindow(displayPtr);
    unsigned int extra[4] = {0, Mod2Mask, LockMask, Mod2Mask | LockMask};
    for (int i = 0; i < 4; i++) {
        XGrabKey(displayPtr, keycode, modifiers | extra[i], root, False, GrabModeAsync, GrabModeAsync);
    }
    XSelectInput(displayPtr, root, KeyPressMask | KeyReleaseMask);
    XSync(displayPtr, False);

    return keycode;
}

static void ungrabKey(int keycode, unsigned int modifiers) {
    if (displayPtr == NULL) return;
    Window root = DefaultRootWindow(displayPtr);
    unsigned int extra[4] = {0, Mod2Mask, LockMask, Mod2Mask | LockMask};
    for (int i = 0; i < 4; i++) {
        XUngrabKey(displayPtr, keycode, modifiers | extra[i], root);
    }
    XSync(displayPtr, False);
}

static int checkEvent(int* keycode, int* pressed) {
    if (displayPtr == NULL) return 0;

    XEvent event;
    if (XPending(displayPtr) > 0) {
        XNextEvent(displayPtr, &event);
        if (event.type == KeyPress || event.type == KeyRelease) {
            *keycode = event.xkey.keycode;
            *pressed = (event.type == KeyPress) ? 1 : 0;
            return 1;
        }
    }
    return 0;
}
*/
import "C"

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unsafe"
)

// X11 modifier masks
const (
	shiftMask   = 1
	controlMask = 4
	mod1Mask    = 8  // Alt
	mod4Mask    = 64 // Super
)

type grab struct {
	keycode  int
	mods     uint
	callback func(bool)
}

type linuxManager struct {
	mu    sync.Mutex
	grabs map[string]grab // by accelerator
	stop  chan struct{}
	once  sync.Once
}

// New creates a new Linux hotkey manager using X11
func New() (Manager, error) {
	if C.openDisplay() == 0 {
		return nil, fmt.Errorf("cannot open X display")
	}
	mgr := &linuxManager{
		grabs: make(map[string]grab),
		stop:  make(chan struct{}),
	}

	go mgr.eventLoop()

	return mgr, nil
}

func keysymName(key string) string {
	switch {
	case key == "return":
		return "Return"
	case key == "tab":
		return "Tab"
	case key == "escape":
		return "Escape"
	case len(key) > 1 && key[0] == 'f':
		return strings.ToUpper(key)
	default:
		return key // "space", letters, digits
	}
}

func (m *linuxManager) Register(accel string, callback func(pressed bool)) error {
	a, err := ParseAccel(accel)
	if err != nil {
		return err
	}

	var mods uint
	if a.Mods&ModCtrl != 0 {
		mods |= controlMask
	}
	if a.Mods&ModAlt != 0 {
		mods |= mod1Mask
	}
	if a.Mods&ModShift != 0 {
		mods |= shiftMask
	}
	if a.Mods&ModSuper != 0 {
		mods |= mod4Mask
	}

	name := C.CString(keysymName(a.Key))
	defer C.free(unsafe.Pointer(name))

	keycode := int(C.grabKey(name, C.uint(mods)))
	if keycode == 0 {
		return fmt.Errorf("failed to grab key %q", accel)
	}

	m.mu.Lock()
	m.grabs[accel] = grab{keycode: keycode, mods: mods, callback: callback}
	m.mu.Unlock()
	return nil
}

func (m *linuxManager) eventLoop() {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			var keycode, pressed C.int
			for C.checkEvent(&keycode, &pressed) != 0 {
				m.dispatch(int(keycode), pressed == 1)
			}
		}
	}
}

func (m *linuxManager) dispatch(keycode int, pressed bool) {
	m.mu.Lock()
	var callbacks []func(bool)
	for _, g := range m.grabs {
		if g.keycode == keycode {
			callbacks = append(callbacks, g.callback)
		}
	}
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb(pressed)
	}
}

func (m *linuxManager) Unregister(accel string) error {
	m.mu.Lock()
	g, ok := m.grabs[accel]
	delete(m.grabs, accel)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("hotkey %q is not registered", accel)
	}
	C.ungrabKey(C.int(g.keycode), C.uint(g.mods))
	return nil
}

func (m *linuxManager) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}
