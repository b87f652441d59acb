//go:build !darwin && !(linux && x11)

package hotkey

// New reports ErrUnsupported. Linux builds get X11 hotkeys with -tags x11.
func New() (Manager, error) {
	return nil, ErrUnsupported
}
