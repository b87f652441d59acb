//go:build darwin

package inject

/*
#cgo LDFLAGS: -framework ApplicationServices -framework Carbon
#include <ApplicationServices/ApplicationServices.h>
#include <Carbon/Carbon.h>

// Send Cmd+V paste shortcut
void sendPasteShortcut() {
    CGEventSourceRef source = CGEventSourceCreate(kCGEventSourceStateHIDSystemState);

    CGEventRef cmdDown = CGEventCreateKeyboardEvent(source, (CGKeyCode)55, true); // Cmd key
    CGEventSetFlags(cmdDown, kCGEventFlagMaskCommand);
    CGEventRef vDown = CGEventCreateKeyboardEvent(source, (CGKeyCode)9, true); // V key
    CGEventSetFlags(vDown, kCGEventFlagMaskCommand);

    CGEventRef vUp = CGEventCreateKeyboardEvent(source, (CGKeyCode)9, false);
    CGEventRef cmdUp = CGEventCreateKeyboardEvent(source, (CGKeyCode)55, false);

    CGEventPost(kCGHIDEventTap, cmdDown);
    CGEventPost(kCGHIDEventTap, vDown);
    CGEventPost(kCGHIDEventTap, vUp);
    CGEventPost(kCGHIDEventTap, cmdUp);

    CFRelease(cmdDown);
    CFRelease(vDown);
    CFRelease(vUp);
    CFRelease(cmdUp);
    CFRelease(source);
}

// Type a single UTF-16 code unit
int typeUnit(UniChar unit) {
    CGEventSourceRef source = CGEventSourceCreate(kCGEventSourceStateHIDSystemState);
    if (source == NULL) return 0;

    CGEventRef event = CGEventCreateKeyboardEvent(source, 0, true);
    if (event == NULL) {
        CFRelease(source);
        return 0;
    }
    CGEventKeyboardSetUnicodeString(event, 1, &unit);
    CGEventPost(kCGHIDEventTap, event);

    CGEventSetType(event, kCGEventKeyUp);
    CGEventPost(kCGHIDEventTap, event);

    CFRelease(event);
    CFRelease(source);
    return 1;
}
*/
import "C"

import (
	"context"
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/atotto/clipboard"
)

const (
	clipboardSettle = 50 * time.Millisecond
	pasteSettle     = 100 * time.Millisecond
	keystrokeDelay  = 10 * time.Millisecond
)

// platformPaste puts text on the clipboard, sends Cmd+V and restores what
// the clipboard held before.
func platformPaste(ctx context.Context, text string) error {
	// If the clipboard can't be read, proceed with an empty restore value
	oldClip, _ := clipboard.ReadAll()

	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}

	if err := sleep(ctx, clipboardSettle); err != nil {
		return err
	}
	C.sendPasteShortcut()
	if err := sleep(ctx, pasteSettle); err != nil {
		return err
	}

	// Restore only if the user hasn't changed it in the meantime
	if current, _ := clipboard.ReadAll(); current == text {
		clipboard.WriteAll(oldClip)
	}
	return nil
}

// platformType types text with CGEvent keystrokes
func platformType(ctx context.Context, text string) error {
	units := utf16.Encode([]rune(text))

	for i, unit := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		if C.typeUnit(C.UniChar(unit)) == 0 {
			return fmt.Errorf("failed to create keyboard event")
		}
		if i < len(units)-1 {
			time.Sleep(keystrokeDelay)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
