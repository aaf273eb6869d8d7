package asynccli

import (
	"errors"
	"os/exec"
	"testing"
)

func TestStatusFor(t *testing.T) {
	if got := statusFor(nil); got != "completed" {
		t.Errorf("statusFor(nil) = %q, want completed", got)
	}
	if got := statusFor(errors.New("boom")); got != "failed" {
		t.Errorf("statusFor(err) = %q, want failed", got)
	}
}

func TestExitCodeOf_NilError(t *testing.T) {
	if got := exitCodeOf(nil, nil); got != 0 {
		t.Errorf("exitCodeOf(nil, nil) = %d, want 0", got)
	}
}

func TestExitCodeOf_NonExitError(t *testing.T) {
	if got := exitCodeOf(nil, errors.New("context deadline exceeded")); got != -1 {
		t.Errorf("exitCodeOf with a non-ExitError = %d, want -1", got)
	}
}

func TestExitCodeOf_RealExitError(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 7")
	err := cmd.Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected an *exec.ExitError from `sh -c exit 7`, got %v (%T)", err, err)
	}
	if got := exitCodeOf(cmd, err); got != 7 {
		t.Errorf("exitCodeOf() = %d, want 7", got)
	}
}
