// Package sandbox implements the server's virtual current-working-directory
// confinement: every path a client names is resolved one segment at a time
// against a real directory file descriptor, so a symlink planted mid-tree
// can never redirect resolution outside the configured root.
package sandbox

import (
	"os"
	"strings"

	"github.com/qooil/qooil/internal/protoerr"
)

// entryKind classifies a resolved filesystem entry without following it.
type entryKind int

const (
	kindOther entryKind = iota
	kindDir
	kindFile
)

// Sandbox owns the root directory a session is confined to.
type Sandbox struct {
	root dirHandle
}

// Open opens path as the sandbox root. path must name an existing directory.
func Open(path string) (*Sandbox, error) {
	h, err := openRootHandle(path)
	if err != nil {
		return nil, err
	}
	return &Sandbox{root: h}, nil
}

// Close releases the root handle. Cursors derived from it must already be
// closed; it does not reach into them.
func (s *Sandbox) Close() error {
	return closeDirHandle(s.root)
}

// Root returns a fresh cursor positioned at the sandbox root.
func (s *Sandbox) Root() (*Cursor, error) {
	h, err := selfCopyHandle(s.root)
	if err != nil {
		return nil, err
	}
	return &Cursor{dir: h}, nil
}

// Cursor is a validated virtual path inside a Sandbox: an open directory
// handle plus the stack of segment names that were opened to reach it.
type Cursor struct {
	dir      dirHandle
	segments []string
}

// Depth is the number of segments below root; also the cursor's nesting
// level for "/"-anchored vs relative resolution.
func (c *Cursor) Depth() int { return len(c.segments) }

// VirtualPath renders the cursor's position as an absolute client-visible
// path, the suffix of the real path after root.
func (c *Cursor) VirtualPath() string {
	if len(c.segments) == 0 {
		return "/"
	}
	return "/" + strings.Join(c.segments, "/")
}

// Close releases the cursor's directory handle.
func (c *Cursor) Close() error {
	return closeDirHandle(c.dir)
}

// Clone returns an independent cursor at the same position; the caller owns
// the returned cursor's lifetime.
func (c *Cursor) Clone() (*Cursor, error) {
	h, err := selfCopyHandle(c.dir)
	if err != nil {
		return nil, err
	}
	return &Cursor{dir: h, segments: append([]string(nil), c.segments...)}, nil
}

// tokenize splits a client path into an absolute flag and its non-empty
// segments, collapsing repeated "/" per the resolution algorithm.
func tokenize(path string) (absolute bool, segs []string) {
	absolute = strings.HasPrefix(path, "/")
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return absolute, segs
}

// Descend resolves path against start (root if path is absolute, start
// itself otherwise) and returns a new cursor at the result. start is never
// modified or closed.
func (s *Sandbox) Descend(start *Cursor, path string) (*Cursor, *protoerr.Error) {
	absolute, segs := tokenize(path)
	return s.walk(start, absolute, segs)
}

// ResolveFile resolves path to a parent directory cursor and a base name
// suitable for an openat/unlinkat-style operation on that directory. A path
// whose final segment is ".." names the directory itself rather than a
// child, which can never be a regular file; that case is reported as
// IsNotFile once the path up to and including it is confirmed reachable.
func (s *Sandbox) ResolveFile(start *Cursor, path string) (*Cursor, string, *protoerr.Error) {
	absolute, segs := tokenize(path)
	if len(segs) == 0 {
		return nil, "", protoerr.New(protoerr.InvalidFileName, 0, 0)
	}

	last := segs[len(segs)-1]
	if last == ".." {
		target, perr := s.walk(start, absolute, segs)
		if perr != nil {
			return nil, "", perr
		}
		target.Close()
		return nil, "", protoerr.New(protoerr.IsNotFile, 0, 0)
	}

	parent, perr := s.walk(start, absolute, segs[:len(segs)-1])
	if perr != nil {
		return nil, "", perr
	}
	return parent, last, nil
}

// walk is the shared resolution loop behind Descend and ResolveFile: it
// implements the sandbox invariant that ".." is floored at depth 0 rather
// than escaping root, and that every other segment is opened relative to
// the handle reached so far with symlink-following disabled.
func (s *Sandbox) walk(start *Cursor, absolute bool, segs []string) (*Cursor, *protoerr.Error) {
	cur, err := s.baseCursor(start, absolute)
	if err != nil {
		return nil, protoerr.New(protoerr.MapOSError(err), 0, 0)
	}

	for _, seg := range segs {
		if seg == ".." {
			if cur.Depth() == 0 {
				continue
			}
			if err := s.ascend(cur); err != nil {
				cur.Close()
				return nil, protoerr.New(protoerr.MapOSError(err), 0, 0)
			}
			continue
		}

		next, err := openChildDirHandle(cur.dir, seg)
		if err != nil {
			cur.Close()
			return nil, protoerr.New(protoerr.MapOSError(err), 0, 0)
		}
		closeDirHandle(cur.dir)
		cur.dir = next
		cur.segments = append(cur.segments, seg)
	}
	return cur, nil
}

func (s *Sandbox) baseCursor(start *Cursor, absolute bool) (*Cursor, error) {
	if absolute {
		return s.Root()
	}
	return start.Clone()
}

// ascend moves cur one segment toward root by reopening root and replaying
// the remaining segment chain; it never relies on a stored parent handle,
// so a long-lived cursor cannot accumulate descriptors.
func (s *Sandbox) ascend(cur *Cursor) error {
	target := cur.segments[:len(cur.segments)-1]

	fresh, err := s.Root()
	if err != nil {
		return err
	}
	for _, seg := range target {
		next, err := openChildDirHandle(fresh.dir, seg)
		if err != nil {
			fresh.Close()
			return err
		}
		closeDirHandle(fresh.dir)
		fresh.dir = next
	}

	closeDirHandle(cur.dir)
	cur.dir = fresh.dir
	cur.segments = target
	return nil
}

// OpenFile opens name inside dir's cursor for Read/Write, confirming it
// names a regular file.
func (s *Sandbox) OpenFile(dir *Cursor, name string, flags int, perm os.FileMode) (*os.File, int64, *protoerr.Error) {
	kind, size, err := statChildHandle(dir.dir, name)
	if err != nil {
		if os.IsNotExist(err) {
			if flags&os.O_CREATE != 0 {
				f, err := openChildFileHandle(dir.dir, name, flags, perm)
				if err != nil {
					return nil, 0, protoerr.New(protoerr.MapOSError(err), 0, 0)
				}
				return f, 0, nil
			}
			return nil, 0, protoerr.New(protoerr.NonExisting, 0, 0)
		}
		return nil, 0, protoerr.New(protoerr.MapOSError(err), 0, 0)
	}
	if kind != kindFile {
		return nil, 0, protoerr.New(protoerr.IsNotFile, 0, 0)
	}

	f, err := openChildFileHandle(dir.dir, name, flags, perm)
	if err != nil {
		return nil, 0, protoerr.New(protoerr.MapOSError(err), 0, 0)
	}
	return f, size, nil
}

// DeleteFile unlinks name inside dir's cursor, refusing to remove a
// directory.
func (s *Sandbox) DeleteFile(dir *Cursor, name string) *protoerr.Error {
	kind, _, err := statChildHandle(dir.dir, name)
	if err != nil {
		return protoerr.New(protoerr.MapOSError(err), 0, 0)
	}
	if kind != kindFile {
		return protoerr.New(protoerr.IsNotFile, 0, 0)
	}
	if err := unlinkChildHandle(dir.dir, name); err != nil {
		return protoerr.New(protoerr.MapOSError(err), 0, 0)
	}
	return nil
}

// ListEntries returns the names and directory flags of dir's immediate
// children.
func (s *Sandbox) ListEntries(dir *Cursor) ([]Entry, *protoerr.Error) {
	entries, err := listChildHandle(dir.dir)
	if err != nil {
		return nil, protoerr.New(protoerr.MapOSError(err), 0, 0)
	}
	return entries, nil
}

// Entry is one directory entry as surfaced to a client.
type Entry struct {
	Name  string
	IsDir bool
}
