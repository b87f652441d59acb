package permissions

import (
	"errors"
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		status  int
		wantErr bool
	}{
		{PermissionAuthorized, false},
		{PermissionNotDetermined, true},
		{PermissionRestricted, true},
		{PermissionDenied, true},
		{42, true},
	}

	for _, tt := range tests {
		err := evaluate(tt.status)
		if (err != nil) != tt.wantErr {
			t.Errorf("evaluate(%d) error = %v, wantErr %v", tt.status, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrMicrophone) {
			t.Errorf("evaluate(%d) should wrap ErrMicrophone, got %v", tt.status, err)
		}
	}
}

func TestEvaluateAccessibility(t *testing.T) {
	if err := evaluateAccessibility(true); err != nil {
		t.Errorf("trusted process should pass, got %v", err)
	}
	if err := evaluateAccessibility(false); !errors.Is(err, ErrAccessibility) {
		t.Errorf("expected ErrAccessibility, got %v", err)
	}
}
