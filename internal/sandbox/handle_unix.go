//go:build unix

package sandbox

import (
	"os"

	"golang.org/x/sys/unix"
)

// dirHandle is a directory file descriptor on unix builds. Every open
// beneath it is an *at syscall resolved relative to this fd with symlink
// following disabled, so a path can never be redirected by a symlink
// planted after validation.
type dirHandle = *os.File

func openRootHandle(path string) (dirHandle, error) {
	fd, err := unix.Open(path, unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return os.NewFile(uintptr(fd), path), nil
}

func selfCopyHandle(h dirHandle) (dirHandle, error) {
	fd, err := unix.Openat(int(h.Fd()), ".", unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "openat", Path: ".", Err: err}
	}
	return os.NewFile(uintptr(fd), "."), nil
}

func openChildDirHandle(h dirHandle, name string) (dirHandle, error) {
	fd, err := unix.Openat(int(h.Fd()), name, unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "openat", Path: name, Err: err}
	}
	return os.NewFile(uintptr(fd), name), nil
}

func openChildFileHandle(h dirHandle, name string, flags int, perm os.FileMode) (*os.File, error) {
	sysFlags := unix.O_NOFOLLOW | unix.O_CLOEXEC
	if flags&os.O_RDONLY != 0 || flags == 0 {
		sysFlags |= unix.O_RDONLY
	}
	if flags&os.O_WRONLY != 0 {
		sysFlags |= unix.O_WRONLY
	}
	if flags&os.O_CREATE != 0 {
		sysFlags |= unix.O_CREAT
	}
	if flags&os.O_TRUNC != 0 {
		sysFlags |= unix.O_TRUNC
	}

	fd, err := unix.Openat(int(h.Fd()), name, sysFlags, uint32(perm.Perm()))
	if err != nil {
		return nil, &os.PathError{Op: "openat", Path: name, Err: err}
	}
	return os.NewFile(uintptr(fd), name), nil
}

func statChildHandle(h dirHandle, name string) (entryKind, int64, error) {
	var st unix.Stat_t
	if err := unix.Fstatat(int(h.Fd()), name, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return kindOther, 0, &os.PathError{Op: "fstatat", Path: name, Err: err}
	}
	switch st.Mode & unix.S_IFMT {
	case unix.S_IFDIR:
		return kindDir, st.Size, nil
	case unix.S_IFREG:
		return kindFile, st.Size, nil
	default:
		return kindOther, st.Size, nil
	}
}

func unlinkChildHandle(h dirHandle, name string) error {
	if err := unix.Unlinkat(int(h.Fd()), name, 0); err != nil {
		return &os.PathError{Op: "unlinkat", Path: name, Err: err}
	}
	return nil
}

func listChildHandle(h dirHandle) ([]Entry, error) {
	dup, err := selfCopyHandle(h)
	if err != nil {
		return nil, err
	}
	f := dup
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		kind, _, err := statChildHandle(h, name)
		if err != nil {
			continue
		}
		if kind == kindOther {
			continue
		}
		entries = append(entries, Entry{Name: name, IsDir: kind == kindDir})
	}
	return entries, nil
}

func closeDirHandle(h dirHandle) error {
	if h == nil {
		return nil
	}
	return h.Close()
}
