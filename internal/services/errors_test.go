package services_test

import (
	"errors"
	"testing"

	"retag/internal/services"
)

func TestWrapPreservesMarker(t *testing.T) {
	base := errors.New("disk full")
	err := services.Wrap(services.ErrBackup, "backup", "snapshot", "could not copy file", base)
	if !errors.Is(err, services.ErrBackup) {
		t.Fatalf("expected backup marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("nil marker should default to transient, got %v", err)
	}
	if err.Error() != "transient failure: service failure" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestIsFatal(t *testing.T) {
	fatal := services.Wrap(services.ErrConfiguration, "config", "load", "missing state dir", nil)
	if !services.IsFatal(fatal) {
		t.Fatal("configuration errors are fatal")
	}
	for _, marker := range []error{
		services.ErrSource,
		services.ErrBackup,
		services.ErrWrite,
		services.ErrNotFound,
		services.ErrCorruptState,
		services.ErrTransient,
	} {
		if services.IsFatal(services.Wrap(marker, "x", "y", "z", nil)) {
			t.Fatalf("%v should not be fatal", marker)
		}
	}
}
