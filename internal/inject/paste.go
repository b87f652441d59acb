package inject

import (
	"context"
	"errors"
	"fmt"
	"runtime"
)

// ErrUnsupported is returned where the platform has no paste or typing
// implementation; callers fall back to the clipboard.
var ErrUnsupported = errors.New("text injection not supported on " + runtime.GOOS)

// Injector puts text into the focused application
type Injector interface {
	Paste(ctx context.Context, text string) error
	Type(ctx context.Context, text string) error
	PasteOrType(ctx context.Context, text string) error
}

type pasteInjector struct {
	preferPaste bool
}

// New creates the platform text injector
func New(preferPaste bool) Injector {
	return &pasteInjector{preferPaste: preferPaste}
}

// Paste injects text using clipboard + paste shortcut
// Implementation is platform-specific (see paste_darwin.go, paste_other.go)
func (p *pasteInjector) Paste(ctx context.Context, text string) error {
	return platformPaste(ctx, text)
}

// Type injects text using keyboard simulation
func (p *pasteInjector) Type(ctx context.Context, text string) error {
	return platformType(ctx, text)
}

// PasteOrType tries paste first when preferred, then falls back to typing
func (p *pasteInjector) PasteOrType(ctx context.Context, text string) error {
	var pasteErr error
	if p.preferPaste {
		if pasteErr = p.Paste(ctx, text); pasteErr == nil {
			return nil
		}
	}
	if err := p.Type(ctx, text); err != nil {
		if pasteErr != nil {
			return fmt.Errorf("paste: %v; type: %w", pasteErr, err)
		}
		return err
	}
	return nil
}
