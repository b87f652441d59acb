//go:build !darwin

package inject

import "context"

// TODO: Linux via XTest or the Wayland virtual keyboard, Windows via SendInput
func platformPaste(ctx context.Context, text string) error {
	return ErrUnsupported
}

func platformType(ctx context.Context, text string) error {
	return ErrUnsupported
}
