// Package protoerr implements the closed, wire-transmitted error taxonomy the
// server returns to a client when a request cannot be completed.
//
// Every code here is part of the protocol: it is encoded in an Error frame's
// Code field and must never be renumbered. See the wire format's tag registry
// for the frame layout.
package protoerr

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// Kind is a stable numeric protocol error code.
type Kind uint16

const (
	// UnexpectedMessage means the request tag is not valid in the session's
	// current state. Arg1 carries the received tag.
	UnexpectedMessage Kind = 1
	// CorruptMessageTag means the decoder produced a Corrupt value. Arg1
	// carries the offending tag.
	CorruptMessageTag Kind = 2
	// InvalidFileName means a path's declared length exceeds the server's
	// configured limit. Arg1 carries the requested length.
	InvalidFileName Kind = 3
	// UnexpectedEndOfConnection means a declared payload was shorter than
	// promised.
	UnexpectedEndOfConnection Kind = 4
	// NonExisting means the target path does not exist.
	NonExisting Kind = 5
	// IsNotFile means the target exists but is not a regular file.
	IsNotFile Kind = 6
	// IsNotDir means the target exists but is not a directory.
	IsNotDir Kind = 7
	// AccessDenied means the OS denied access to the target.
	AccessDenied Kind = 8
	// CantOpen is the catch-all for any other open/stat/create failure.
	CantOpen Kind = 9
	// Unrecognized is a decoder-local sentinel for an Error frame carrying a
	// code outside this registry. It is never sent by this server.
	Unrecognized Kind = 0xFFFF
)

func (k Kind) String() string {
	switch k {
	case UnexpectedMessage:
		return "unexpected message"
	case CorruptMessageTag:
		return "corrupt message tag"
	case InvalidFileName:
		return "invalid file name"
	case UnexpectedEndOfConnection:
		return "unexpected end of connection"
	case NonExisting:
		return "no such file or directory"
	case IsNotFile:
		return "not a file"
	case IsNotDir:
		return "not a directory"
	case AccessDenied:
		return "access denied"
	case CantOpen:
		return "can't open"
	case Unrecognized:
		return "unrecognized error"
	default:
		return fmt.Sprintf("kind(%d)", uint16(k))
	}
}

// Error is a protocol-level failure carrying the arguments the taxonomy
// attaches to its Kind (see the tag registry's Error fields).
type Error struct {
	Kind Kind
	Arg1 uint32
	Arg2 uint32
}

// New builds an Error for the given kind and arguments.
func New(kind Kind, arg1, arg2 uint32) *Error {
	return &Error{Kind: kind, Arg1: arg1, Arg2: arg2}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (arg1=%d, arg2=%d)", e.Kind, e.Arg1, e.Arg2)
}

// Is lets errors.Is(err, protoerr.New(protoerr.NonExisting, 0, 0)) match any
// *Error of the same Kind, regardless of Arg1/Arg2.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// MapOSError classifies a filesystem error returned by open/create/stat/unlink
// into the taxonomy's Kind values. Unrecognized errors map to CantOpen.
func MapOSError(err error) Kind {
	if err == nil {
		return 0
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return NonExisting
	case errors.Is(err, fs.ErrPermission):
		return AccessDenied
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENOENT:
			return NonExisting
		case syscall.ENOTDIR:
			return IsNotDir
		case syscall.EISDIR:
			return IsNotFile
		case syscall.EACCES, syscall.EPERM:
			return AccessDenied
		case syscall.ELOOP:
			// A symlink was encountered where none is allowed to be
			// followed; treat it the same as a denied access attempt.
			return AccessDenied
		}
	}
	return CantOpen
}
