package client

import "github.com/qooil/qooil/internal/wire"

// EntryIter streams the Entry frames of a ListEntries response. It must be
// fully drained (Next returning ok=false) or Close'd before the Client can
// be used for another request.
type EntryIter struct {
	c    *Client
	done bool
}

// Next returns the next entry. ok is false once End has been reached or an
// error occurred; err is nil on a clean End.
func (it *EntryIter) Next() (Entry, bool, error) {
	it.c.mu.Lock()
	defer it.c.mu.Unlock()

	if it.done {
		return Entry{}, false, nil
	}

	hdr, err := wire.Decode(it.c.conn)
	if err != nil {
		it.done = true
		it.c.readingEntries = false
		return Entry{}, false, err
	}

	switch h := hdr.(type) {
	case wire.EndHeader:
		it.done = true
		it.c.readingEntries = false
		return Entry{}, false, nil
	case wire.EntryHeader:
		name, err := wire.ReadPayload(it.c.conn, int(h.Length))
		if err != nil {
			it.done = true
			it.c.readingEntries = false
			return Entry{}, false, err
		}
		return Entry{Name: string(name), IsDir: h.IsDir}, true, nil
	default:
		it.done = true
		it.c.readingEntries = false
		it.c.fault()
		return Entry{}, false, &ProtocolFault{Code: uint16(hdr.Tag())}
	}
}

// Close drains any remaining entries so the connection is left framed at a
// request boundary, even if the caller stopped iterating early.
func (it *EntryIter) Close() error {
	for !it.done {
		_, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}
	return nil
}
