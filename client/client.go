// Package client implements the symmetric codec user for qooil: it drives
// the wire protocol in the request direction and parses the zero or more
// framed responses each request produces.
package client

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qooil/qooil/internal/protoerr"
	"github.com/qooil/qooil/internal/streamio"
	"github.com/qooil/qooil/internal/wire"
)

// ProtocolFault is returned when the server sends an Error code outside the
// closed taxonomy (1-9, 0xFFFF) or a message that cannot be interpreted as
// a valid reply. Per the protocol's failure-recovery rule, a fault means
// the connection is no longer trusted; the client closes it immediately.
type ProtocolFault struct {
	Code uint16
}

func (f *ProtocolFault) Error() string {
	return fmt.Sprintf("client: protocol fault, unrecognized error code or unexpected reply tag %d; connection closed", f.Code)
}

// Entry is one directory entry as returned by ListEntries.
type Entry struct {
	Name  string
	IsDir bool
}

// Client is a single connection to a qooil server. Methods are safe to call
// from multiple goroutines; at most one request is ever in flight at a
// time, and at most one outstanding multi-frame response (a List stream)
// may be open, governed by readingEntries.
type Client struct {
	mu   sync.Mutex
	conn net.Conn

	dialTimeout time.Duration
	log         *logrus.Entry

	readingEntries bool
	faulted        bool

	info     *wire.InfoHeader
	errArg1  uint32
	errArg2  uint32
}

// Dial connects to addr and returns a ready Client.
func Dial(addr string, opts ...Option) (*Client, error) {
	c := &Client{dialTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logrus.NewEntry(logrus.StandardLogger())
	}

	conn, err := net.DialTimeout("tcp", addr, c.dialTimeout)
	if err != nil {
		c.log.WithError(err).Warn("qooil: dial failed")
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	c.conn = conn
	c.log.WithField("addr", addr).Debug("qooil: connected")
	return c, nil
}

// New wraps an already-established connection (such as a net.Pipe() end in
// tests) as a Client.
func New(conn net.Conn, opts ...Option) *Client {
	c := &Client{conn: conn, dialTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logrus.NewEntry(logrus.StandardLogger())
	}
	return c
}

// LastErrorArgs returns the Arg1/Arg2 of the most recent Error response.
func (c *Client) LastErrorArgs() (uint32, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errArg1, c.errArg2
}

var errReadingEntries = fmt.Errorf("client: a List response is still being read; drain or close the EntryIter first")

func (c *Client) checkReady() error {
	if c.faulted {
		return fmt.Errorf("client: connection closed after a protocol fault")
	}
	if c.readingEntries {
		return errReadingEntries
	}
	return nil
}

// readResponse reads one header and translates an Error frame into a Go
// error, or flags the client faulted on an Error code outside the closed
// taxonomy (or any other message that cannot be a valid reply).
func (c *Client) readResponse() (wire.Header, error) {
	hdr, err := wire.Decode(c.conn)
	if err != nil {
		return nil, err
	}
	eh, ok := hdr.(wire.ErrorHeader)
	if !ok {
		return hdr, nil
	}

	c.errArg1, c.errArg2 = eh.Arg1, eh.Arg2
	kind := protoerr.Kind(eh.Code)
	if !isKnownKind(kind) {
		c.fault()
		return nil, &ProtocolFault{Code: eh.Code}
	}
	c.log.WithFields(logrus.Fields{"code": kind, "arg1": eh.Arg1, "arg2": eh.Arg2}).Debug("qooil: server returned an error frame")
	return nil, protoerr.New(kind, eh.Arg1, eh.Arg2)
}

func isKnownKind(k protoerr.Kind) bool {
	switch k {
	case protoerr.UnexpectedMessage, protoerr.CorruptMessageTag, protoerr.InvalidFileName,
		protoerr.UnexpectedEndOfConnection, protoerr.NonExisting, protoerr.IsNotFile,
		protoerr.IsNotDir, protoerr.AccessDenied, protoerr.CantOpen, protoerr.Unrecognized:
		return true
	default:
		return false
	}
}

func (c *Client) fault() {
	c.faulted = true
	c.log.Warn("qooil: protocol fault, closing connection")
	c.conn.Close()
}

// Ping sends Ping and waits for PingReply.
func (c *Client) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkReady(); err != nil {
		return err
	}
	if err := wire.Encode(c.conn, wire.PingHeader{}); err != nil {
		return err
	}
	hdr, err := c.readResponse()
	if err != nil {
		return err
	}
	if _, ok := hdr.(wire.PingReplyHeader); !ok {
		c.fault()
		return &ProtocolFault{Code: uint16(hdr.Tag())}
	}
	return nil
}

// Info sends GetInfo and caches the server's advertised path-length limits.
func (c *Client) Info() (maxName, maxPath uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.info != nil {
		return c.info.MaxName, c.info.MaxPath, nil
	}
	if err := c.checkReady(); err != nil {
		return 0, 0, err
	}
	if err := wire.Encode(c.conn, wire.GetInfoHeader{}); err != nil {
		return 0, 0, err
	}
	hdr, err := c.readResponse()
	if err != nil {
		return 0, 0, err
	}
	ih, ok := hdr.(wire.InfoHeader)
	if !ok {
		c.fault()
		return 0, 0, &ProtocolFault{Code: uint16(hdr.Tag())}
	}
	c.info = &ih
	return ih.MaxName, ih.MaxPath, nil
}

// SetCwd sends Cd and waits for Ok.
func (c *Client) SetCwd(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkReady(); err != nil {
		return err
	}
	if err := c.sendPath(wire.CdHeader{Length: uint16(len(path))}, path); err != nil {
		return err
	}
	return c.expectOk()
}

// GetCwd sends Pwd and returns the virtual current directory.
func (c *Client) GetCwd() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkReady(); err != nil {
		return "", err
	}
	if err := wire.Encode(c.conn, wire.PwdHeader{}); err != nil {
		return "", err
	}
	hdr, err := c.readResponse()
	if err != nil {
		return "", err
	}
	ph, ok := hdr.(wire.PathHeader)
	if !ok {
		c.fault()
		return "", &ProtocolFault{Code: uint16(hdr.Tag())}
	}
	buf, err := wire.ReadPayload(c.conn, int(ph.Length))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// GetFile sends Read and streams the file content to w.
func (c *Client) GetFile(path string, w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkReady(); err != nil {
		return err
	}
	if err := c.sendPath(wire.ReadHeader{Length: uint16(len(path))}, path); err != nil {
		return err
	}
	hdr, err := c.readResponse()
	if err != nil {
		return err
	}
	fh, ok := hdr.(wire.FileHeader)
	if !ok {
		c.fault()
		return &ProtocolFault{Code: uint16(hdr.Tag())}
	}
	_, err = streamio.CopyN(w, c.conn, int64(fh.Size))
	return err
}

// PutFile sends Write, then uploads exactly size bytes read from r.
func (c *Client) PutFile(path string, r io.Reader, size int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkReady(); err != nil {
		return err
	}
	if err := c.sendPath(wire.WriteHeader{Length: uint16(len(path))}, path); err != nil {
		return err
	}
	if err := c.expectOk(); err != nil {
		return err
	}
	if err := wire.Encode(c.conn, wire.FileHeader{Size: uint64(size)}); err != nil {
		return err
	}
	if _, err := streamio.CopyN(c.conn, r, size); err != nil {
		return err
	}
	return c.expectOk()
}

// DeleteFile sends Delete and waits for Ok.
func (c *Client) DeleteFile(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkReady(); err != nil {
		return err
	}
	if err := c.sendPath(wire.DeleteHeader{Length: uint16(len(path))}, path); err != nil {
		return err
	}
	return c.expectOk()
}

// ListEntries sends List and returns an iterator over the Entry stream
// terminated by End. While the iterator is open, no other method may be
// called; Close drains any remaining entries.
func (c *Client) ListEntries(path string) (*EntryIter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	if err := c.sendPath(wire.ListHeader{Length: uint16(len(path))}, path); err != nil {
		return nil, err
	}
	if err := c.expectOk(); err != nil {
		return nil, err
	}
	c.readingEntries = true
	return &EntryIter{c: c}, nil
}

// Close sends Quit, waits for QuitReply, and closes the underlying
// connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.faulted {
		return c.conn.Close()
	}
	if err := c.checkReady(); err != nil {
		return err
	}
	if err := wire.Encode(c.conn, wire.QuitHeader{}); err != nil {
		c.conn.Close()
		return err
	}
	hdr, err := c.readResponse()
	if err != nil {
		c.conn.Close()
		return err
	}
	if _, ok := hdr.(wire.QuitReplyHeader); !ok {
		c.conn.Close()
		return &ProtocolFault{Code: uint16(hdr.Tag())}
	}
	return c.conn.Close()
}

func (c *Client) sendPath(h wire.Header, path string) error {
	if err := wire.Encode(c.conn, h); err != nil {
		return err
	}
	return wire.WritePayload(c.conn, []byte(path))
}

func (c *Client) expectOk() error {
	hdr, err := c.readResponse()
	if err != nil {
		return err
	}
	if _, ok := hdr.(wire.OkHeader); !ok {
		c.fault()
		return &ProtocolFault{Code: uint16(hdr.Tag())}
	}
	return nil
}
