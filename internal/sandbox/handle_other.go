//go:build !unix

package sandbox

import (
	"os"
	"path/filepath"
)

// dirHandle on non-unix builds is the directory's path, joined segment by
// segment from the root path; no file is held open. Every child access
// re-lstats the constructed path
// before use; this is weaker than the unix *at-syscall chain (a symlink
// swapped in between the lstat and the subsequent open is not caught), but
// it keeps the sandbox usable on platforms without openat/unlinkat.
type dirHandle struct {
	path string
}

func openRootHandle(path string) (dirHandle, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return dirHandle{}, err
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return dirHandle{}, &os.PathError{Op: "open", Path: path, Err: os.ErrPermission}
	}
	if !fi.IsDir() {
		return dirHandle{}, &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}
	return dirHandle{path: path}, nil
}

func selfCopyHandle(h dirHandle) (dirHandle, error) {
	return dirHandle{path: h.path}, nil
}

func lstatChild(h dirHandle, name string) (string, os.FileInfo, error) {
	joined := filepath.Join(h.path, name)
	fi, err := os.Lstat(joined)
	return joined, fi, err
}

func openChildDirHandle(h dirHandle, name string) (dirHandle, error) {
	joined, fi, err := lstatChild(h, name)
	if err != nil {
		return dirHandle{}, err
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return dirHandle{}, &os.PathError{Op: "open", Path: joined, Err: os.ErrPermission}
	}
	if !fi.IsDir() {
		return dirHandle{}, &os.PathError{Op: "open", Path: joined, Err: os.ErrInvalid}
	}
	return dirHandle{path: joined}, nil
}

func openChildFileHandle(h dirHandle, name string, flags int, perm os.FileMode) (*os.File, error) {
	joined, fi, err := lstatChild(h, name)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil && fi.Mode()&os.ModeSymlink != 0 {
		return nil, &os.PathError{Op: "open", Path: joined, Err: os.ErrPermission}
	}
	return os.OpenFile(joined, flags, perm)
}

func statChildHandle(h dirHandle, name string) (entryKind, int64, error) {
	_, fi, err := lstatChild(h, name)
	if err != nil {
		return kindOther, 0, err
	}
	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		return kindOther, 0, nil
	case fi.IsDir():
		return kindDir, fi.Size(), nil
	case fi.Mode().IsRegular():
		return kindFile, fi.Size(), nil
	default:
		return kindOther, fi.Size(), nil
	}
}

func unlinkChildHandle(h dirHandle, name string) error {
	joined, fi, err := lstatChild(h, name)
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return &os.PathError{Op: "remove", Path: joined, Err: os.ErrPermission}
	}
	return os.Remove(joined)
}

func listChildHandle(h dirHandle) ([]Entry, error) {
	des, err := os.ReadDir(h.path)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(des))
	for _, de := range des {
		if de.Type()&os.ModeSymlink != 0 {
			continue
		}
		entries = append(entries, Entry{Name: de.Name(), IsDir: de.IsDir()})
	}
	return entries, nil
}

func closeDirHandle(dirHandle) error {
	return nil
}
