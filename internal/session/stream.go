package session

import (
	"io"
	"os"

	"github.com/qooil/qooil/internal/protoerr"
	"github.com/qooil/qooil/internal/streamio"
	"github.com/qooil/qooil/internal/wire"
)

// streamFile copies exactly size bytes from f to w. A short read off f (the
// file was truncated mid-transfer) is transport-fatal: the safe choice is
// to abort the connection rather than pad the response.
func streamFile(w io.Writer, f *os.File, size int64) error {
	_, err := streamio.CopyN(w, f, size)
	return err
}

func (s *Session) handleWrite(h wire.WriteHeader) error {
	path, perr := s.readPath(h.Length)
	if perr != nil {
		return s.sendProtoErr(perr)
	}
	parent, base, perr := s.sb.ResolveFile(s.cwd, path)
	if perr != nil {
		return s.sendProtoErr(perr)
	}
	defer parent.Close()

	f, _, perr := s.sb.OpenFile(parent, base, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if perr != nil {
		return s.sendProtoErr(perr)
	}
	defer f.Close()

	if err := wire.Encode(s.conn, wire.OkHeader{}); err != nil {
		return err
	}

	next, err := wire.Decode(s.conn)
	if err != nil {
		return err
	}
	fh, ok := next.(wire.FileHeader)
	if !ok {
		// File left created-but-empty; no rollback per the upload contract.
		return s.sendError(protoerr.UnexpectedMessage, uint32(next.Tag()), 0)
	}

	if _, err := streamio.CopyN(f, s.conn, int64(fh.Size)); err != nil {
		return err
	}
	return wire.Encode(s.conn, wire.OkHeader{})
}
