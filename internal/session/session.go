// Package session implements the server side of one qooil connection: a
// loop that decodes one request, dispatches it against the sandboxed
// virtual working directory, and writes back a response or a single Error
// frame before reading the next request.
package session

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/qooil/qooil/internal/protoerr"
	"github.com/qooil/qooil/internal/sandbox"
	"github.com/qooil/qooil/internal/wire"
)

// nextSessionID hands out the per-process-unique session_id logging field;
// sessions are per-connection and short-lived, so a simple counter is enough.
var nextSessionID int64

// Config is the immutable, copied-by-value snapshot a listener hands each
// session: the limits advertised via GetInfo and the server's version
// string, which the session carries but neither sends nor logs.
type Config struct {
	MaxName uint64
	MaxPath uint64
	Version string
}

// Session is the per-connection state machine: virtual cwd, exit flag, and
// the scratch fields holding the arguments of the Error frame being sent,
// cleared once that frame is written.
type Session struct {
	conn io.ReadWriter
	sb   *sandbox.Sandbox
	root *sandbox.Cursor
	cwd  *sandbox.Cursor

	cfg       Config
	isExiting bool

	errArg1 uint32
	errArg2 uint32

	log *logrus.Entry
}

// New captures root as the sandbox boundary and initializes cwd = root,
// depth = 0, per the session lifecycle.
func New(conn io.ReadWriter, rootPath string, cfg Config, log *logrus.Entry) (*Session, error) {
	sb, err := sandbox.Open(rootPath)
	if err != nil {
		return nil, err
	}
	root, err := sb.Root()
	if err != nil {
		sb.Close()
		return nil, err
	}
	cwd, err := sb.Root()
	if err != nil {
		root.Close()
		sb.Close()
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	id := atomic.AddInt64(&nextSessionID, 1)
	log = log.WithField("session_id", id)
	return &Session{conn: conn, sb: sb, root: root, cwd: cwd, cfg: cfg, log: log}, nil
}

// Close releases the cursors and sandbox handle. It does not close conn;
// the caller owns the transport.
func (s *Session) Close() error {
	s.cwd.Close()
	s.root.Close()
	return s.sb.Close()
}

// Serve loops decoding and dispatching requests until Quit is received or
// the transport fails. Every iteration is atomic: either a well-formed
// response is written or exactly one Error frame is, never both and never
// neither.
func (s *Session) Serve() error {
	for !s.isExiting {
		hdr, err := wire.Decode(s.conn)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			s.log.WithError(err).Warn("qooil: session transport failed")
			return err
		}
		if err := s.dispatch(hdr); err != nil {
			s.log.WithError(err).Warn("qooil: session transport failed")
			return err
		}
	}
	return nil
}

func (s *Session) dispatch(hdr wire.Header) error {
	tag := hdr.Tag()
	err := s.route(hdr)
	entry := s.log.WithField("tag", tag)
	if err != nil {
		entry.WithError(err).Debug("qooil: dispatch failed")
	} else {
		entry.Debug("qooil: dispatch ok")
	}
	return err
}

func (s *Session) route(hdr wire.Header) error {
	switch h := hdr.(type) {
	case wire.PingHeader:
		return s.handlePing()
	case wire.QuitHeader:
		return s.handleQuit()
	case wire.CdHeader:
		return s.handleCd(h)
	case wire.PwdHeader:
		return s.handlePwd()
	case wire.ListHeader:
		return s.handleList(h)
	case wire.ReadHeader:
		return s.handleRead(h)
	case wire.WriteHeader:
		return s.handleWrite(h)
	case wire.DeleteHeader:
		return s.handleDelete(h)
	case wire.GetInfoHeader:
		return s.handleGetInfo()
	case wire.CorruptHeader:
		return s.sendError(protoerr.CorruptMessageTag, uint32(h.TagValue), 0)
	default:
		return s.sendError(protoerr.UnexpectedMessage, uint32(hdr.Tag()), 0)
	}
}

func (s *Session) sendError(kind protoerr.Kind, arg1, arg2 uint32) error {
	s.errArg1, s.errArg2 = arg1, arg2
	err := wire.Encode(s.conn, wire.ErrorHeader{Code: uint16(kind), Arg1: s.errArg1, Arg2: s.errArg2})
	s.errArg1, s.errArg2 = 0, 0
	return err
}

func (s *Session) sendProtoErr(perr *protoerr.Error) error {
	return s.sendError(perr.Kind, perr.Arg1, perr.Arg2)
}

// readPath reads a path payload of the given length, enforcing the
// advertised max_name bound: an over-length path is drained from the
// stream (to keep framing aligned) before the error is reported, never
// opened.
func (s *Session) readPath(length uint16) (string, *protoerr.Error) {
	if uint64(length) > s.cfg.MaxName {
		if err := wire.DiscardPayload(s.conn, int(length)); err != nil {
			return "", protoerr.New(protoerr.UnexpectedEndOfConnection, 0, 0)
		}
		return "", protoerr.New(protoerr.InvalidFileName, uint32(length), 0)
	}
	buf, err := wire.ReadPayload(s.conn, int(length))
	if err != nil {
		return "", protoerr.New(protoerr.UnexpectedEndOfConnection, 0, 0)
	}
	return string(buf), nil
}

func (s *Session) handlePing() error {
	return wire.Encode(s.conn, wire.PingReplyHeader{})
}

func (s *Session) handleQuit() error {
	s.isExiting = true
	return wire.Encode(s.conn, wire.QuitReplyHeader{})
}

func (s *Session) handleGetInfo() error {
	return wire.Encode(s.conn, wire.InfoHeader{MaxName: s.cfg.MaxName, MaxPath: s.cfg.MaxPath})
}

func (s *Session) handleCd(h wire.CdHeader) error {
	path, perr := s.readPath(h.Length)
	if perr != nil {
		return s.sendProtoErr(perr)
	}
	next, perr := s.sb.Descend(s.cwd, path)
	if perr != nil {
		return s.sendProtoErr(perr)
	}
	s.cwd.Close()
	s.cwd = next
	return wire.Encode(s.conn, wire.OkHeader{})
}

func (s *Session) handlePwd() error {
	vp := s.cwd.VirtualPath()
	if err := wire.Encode(s.conn, wire.PathHeader{Length: uint16(len(vp))}); err != nil {
		return err
	}
	return wire.WritePayload(s.conn, []byte(vp))
}

func (s *Session) handleList(h wire.ListHeader) error {
	path, perr := s.readPath(h.Length)
	if perr != nil {
		return s.sendProtoErr(perr)
	}
	dir, perr := s.sb.Descend(s.cwd, path)
	if perr != nil {
		return s.sendProtoErr(perr)
	}
	defer dir.Close()

	entries, perr := s.sb.ListEntries(dir)
	if perr != nil {
		return s.sendProtoErr(perr)
	}

	if err := wire.Encode(s.conn, wire.OkHeader{}); err != nil {
		return err
	}
	for _, e := range entries {
		// EntryHeader.Length is a single byte; a directory entry whose name
		// exceeds 255 bytes cannot be framed and is skipped rather than
		// corrupting the Entry stream or aborting the whole listing.
		if len(e.Name) > 0xff {
			continue
		}
		if err := wire.Encode(s.conn, wire.EntryHeader{Length: uint8(len(e.Name)), IsDir: e.IsDir}); err != nil {
			return err
		}
		if err := wire.WritePayload(s.conn, []byte(e.Name)); err != nil {
			return err
		}
	}
	return wire.Encode(s.conn, wire.EndHeader{})
}

func (s *Session) handleDelete(h wire.DeleteHeader) error {
	path, perr := s.readPath(h.Length)
	if perr != nil {
		return s.sendProtoErr(perr)
	}
	parent, base, perr := s.sb.ResolveFile(s.cwd, path)
	if perr != nil {
		return s.sendProtoErr(perr)
	}
	defer parent.Close()

	if perr := s.sb.DeleteFile(parent, base); perr != nil {
		return s.sendProtoErr(perr)
	}
	return wire.Encode(s.conn, wire.OkHeader{})
}

func (s *Session) handleRead(h wire.ReadHeader) error {
	path, perr := s.readPath(h.Length)
	if perr != nil {
		return s.sendProtoErr(perr)
	}
	parent, base, perr := s.sb.ResolveFile(s.cwd, path)
	if perr != nil {
		return s.sendProtoErr(perr)
	}
	defer parent.Close()

	f, size, perr := s.sb.OpenFile(parent, base, os.O_RDONLY, 0)
	if perr != nil {
		return s.sendProtoErr(perr)
	}
	defer f.Close()

	if err := wire.Encode(s.conn, wire.FileHeader{Size: uint64(size)}); err != nil {
		return err
	}
	return streamFile(s.conn, f, size)
}
