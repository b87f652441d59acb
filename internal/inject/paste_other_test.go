//go:build !darwin

package inject

import (
	"context"
	"errors"
	"testing"
)

func TestPlatformInjectorUnsupported(t *testing.T) {
	for _, prefer := range []bool{true, false} {
		err := New(prefer).PasteOrType(context.Background(), "hello")
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("preferPaste=%v: expected ErrUnsupported, got %v", prefer, err)
		}
	}
}
