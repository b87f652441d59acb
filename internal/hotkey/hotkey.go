package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// Manager defines the interface for global hotkey management
type Manager interface {
	Register(accel string, callback func(pressed bool)) error
	Unregister(accel string) error
	Close() error
}

// ErrUnsupported is returned by New when this build has no hotkey backend
var ErrUnsupported = errors.New("global hotkeys not supported in this build")

// Modifier is a set of modifier keys
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModAlt
	ModShift
	ModSuper
)

// Accel is a parsed accelerator such as "Ctrl+Shift+D"
type Accel struct {
	Mods Modifier
	Key  string // lower case: "space", "a", "7", "f5", ...
}

var modifierNames = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"option":  ModAlt,
	"shift":   ModShift,
	"cmd":     ModSuper,
	"command": ModSuper,
	"super":   ModSuper,
	"meta":    ModSuper,
	"win":     ModSuper,
}

var keyAliases = map[string]string{
	"enter": "return",
	"esc":   "escape",
}

// ParseAccel parses "Mod+Mod+Key". Modifier and key names are case
// insensitive; exactly one non-modifier key is required.
func ParseAccel(s string) (Accel, error) {
	var a Accel
	parts := strings.Split(s, "+")
	for i, p := range parts {
		name := strings.ToLower(strings.TrimSpace(p))
		if name == "" {
			return Accel{}, fmt.Errorf("invalid hotkey %q: empty key name", s)
		}
		if i < len(parts)-1 {
			mod, ok := modifierNames[name]
			if !ok {
				return Accel{}, fmt.Errorf("invalid hotkey %q: unknown modifier %q", s, p)
			}
			a.Mods |= mod
			continue
		}
		if _, ok := modifierNames[name]; ok {
			return Accel{}, fmt.Errorf("invalid hotkey %q: missing key after modifiers", s)
		}
		if alias, ok := keyAliases[name]; ok {
			name = alias
		}
		if !validKey(name) {
			return Accel{}, fmt.Errorf("invalid hotkey %q: unsupported key %q", s, p)
		}
		a.Key = name
	}
	return a, nil
}

func validKey(k string) bool {
	switch k {
	case "space", "return", "tab", "escape":
		return true
	}
	if len(k) == 1 {
		c := k[0]
		return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
	}
	if k[0] == 'f' {
		switch k[1:] {
		case "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12":
			return true
		}
	}
	return false
}
