package permissions

import (
	"errors"
	"fmt"
)

var (
	// ErrMicrophone is returned when the OS has not granted microphone access
	ErrMicrophone = errors.New("microphone permission not granted")
	// ErrAccessibility is returned when synthetic keystrokes are not allowed
	ErrAccessibility = errors.New("accessibility permission not granted")
)

// Microphone authorization states (AVAuthorizationStatus on macOS)
const (
	PermissionNotDetermined = 0
	PermissionRestricted    = 1
	PermissionDenied        = 2
	PermissionAuthorized    = 3
)

// evaluate turns an authorization status into an error the user can act on
func evaluate(status int) error {
	switch status {
	case PermissionAuthorized:
		return nil
	case PermissionNotDetermined:
		return fmt.Errorf("%w: accept the system prompt and start again", ErrMicrophone)
	case PermissionRestricted:
		return fmt.Errorf("%w: access is restricted by system policy", ErrMicrophone)
	case PermissionDenied:
		return fmt.Errorf("%w: enable it in System Settings → Privacy & Security → Microphone", ErrMicrophone)
	default:
		return fmt.Errorf("%w: unknown status %d", ErrMicrophone, status)
	}
}

func evaluateAccessibility(trusted bool) error {
	if trusted {
		return nil
	}
	return fmt.Errorf("%w: enable it in System Settings → Privacy & Security → Accessibility", ErrAccessibility)
}
