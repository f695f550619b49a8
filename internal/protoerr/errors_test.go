package protoerr

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := New(InvalidFileName, 300, 0)
	want := "invalid file name (arg1=300, arg2=0)"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestErrorIs(t *testing.T) {
	err := New(NonExisting, 0, 0)
	if !errors.Is(err, New(NonExisting, 1, 2)) {
		t.Fatalf("expected errors.Is to match on Kind regardless of args")
	}
	if errors.Is(err, New(IsNotDir, 0, 0)) {
		t.Fatalf("did not expect errors.Is to match a different Kind")
	}
}

func TestMapOSError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"enoent", syscall.ENOENT, NonExisting},
		{"enotdir", syscall.ENOTDIR, IsNotDir},
		{"eisdir", syscall.EISDIR, IsNotFile},
		{"eacces", syscall.EACCES, AccessDenied},
		{"eperm", syscall.EPERM, AccessDenied},
		{"eloop", syscall.ELOOP, AccessDenied},
		{"other", syscall.EIO, CantOpen},
		{"wrapped", fmt.Errorf("open: %w", syscall.ENOENT), NonExisting},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MapOSError(tc.err); got != tc.want {
				t.Fatalf("MapOSError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	if Unrecognized.String() != "unrecognized error" {
		t.Fatalf("unexpected String() for Unrecognized: %q", Unrecognized.String())
	}
	if Kind(42).String() == "" {
		t.Fatalf("expected non-empty fallback string for unknown kind")
	}
}
