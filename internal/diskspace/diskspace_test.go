package diskspace

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestCheckAvailableSpaceSmallFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "small.dat")
	if err := CheckAvailableSpace(target, 1024, 1.1); err != nil {
		t.Errorf("1KB should fit on any test filesystem: %v", err)
	}
}

func TestCheckAvailableSpaceAbsurdRequirement(t *testing.T) {
	target := filepath.Join(t.TempDir(), "huge.dat")
	// An exabyte will not fit anywhere we run tests.
	err := CheckAvailableSpace(target, 1<<60, 1.0)
	if err == nil {
		t.Skip("filesystem stat unavailable, check passes by design")
	}
	if !IsInsufficientSpaceError(err) {
		t.Errorf("expected InsufficientSpaceError, got %v", err)
	}
}

func TestInsufficientSpaceErrorMessage(t *testing.T) {
	e := &InsufficientSpaceError{Path: "/x", RequiredBytes: 2 << 20, AvailableBytes: 1 << 20}
	msg := e.Error()
	if msg == "" {
		t.Fatal("empty error message")
	}
}

func TestIsInsufficientSpaceError(t *testing.T) {
	if IsInsufficientSpaceError(errors.New("other")) {
		t.Error("unrelated error misclassified")
	}
	if !IsInsufficientSpaceError(&InsufficientSpaceError{}) {
		t.Error("direct error not recognized")
	}
}
