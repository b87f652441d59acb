//go:build darwin

package permissions

/*
#cgo LDFLAGS: -framework AVFoundation -framework Cocoa
#import <AVFoundation/AVFoundation.h>
#import <Cocoa/Cocoa.h>

int checkMicrophonePermission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

void requestMicrophonePermission() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}

// Shows the system prompt when the process is not trusted yet
int checkAccessibilityPermission() {
    NSDictionary *options = @{(__bridge id)kAXTrustedCheckOptionPrompt: @YES};
    return AXIsProcessTrustedWithOptions((__bridge CFDictionaryRef)options) ? 1 : 0;
}
*/
import "C"

// CheckMicrophone returns the current microphone permission status
func CheckMicrophone() int {
	return int(C.checkMicrophonePermission())
}

// EnsureMicrophone returns nil when capture is allowed. If the user has
// not been asked yet the system prompt is triggered first.
func EnsureMicrophone() error {
	status := CheckMicrophone()
	if status == PermissionNotDetermined {
		C.requestMicrophonePermission()
	}
	return evaluate(status)
}

// CheckAccessibility reports whether the app may post keyboard events,
// prompting the user if it may not.
func CheckAccessibility() bool {
	return C.checkAccessibilityPermission() == 1
}

// EnsureAccessibility is needed before pasting or typing into other apps
func EnsureAccessibility() error {
	return evaluateAccessibility(CheckAccessibility())
}
