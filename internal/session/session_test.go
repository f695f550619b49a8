package session

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/qooil/qooil/internal/wire"
)

const testMaxName = 255

func startSession(t *testing.T, root string) net.Conn {
	t.Helper()
	client, serverConn := net.Pipe()

	sess, err := New(serverConn, root, Config{MaxName: testMaxName, MaxPath: 4096, Version: "test"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan struct{})
	go func() {
		sess.Serve()
		sess.Close()
		serverConn.Close()
		close(done)
	}()
	t.Cleanup(func() {
		client.Close()
		<-done
	})
	return client
}

func mustEncode(t *testing.T, conn net.Conn, h wire.Header) {
	t.Helper()
	if err := wire.Encode(conn, h); err != nil {
		t.Fatalf("Encode(%v): %v", h, err)
	}
}

func mustDecode(t *testing.T, conn net.Conn) wire.Header {
	t.Helper()
	h, err := wire.Decode(conn)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return h
}

func TestPing(t *testing.T) {
	conn := startSession(t, t.TempDir())
	mustEncode(t, conn, wire.PingHeader{})
	if _, ok := mustDecode(t, conn).(wire.PingReplyHeader); !ok {
		t.Fatalf("expected PingReply")
	}
}

func TestCdPwdAndSandboxFloor(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "testdir", "sub"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	conn := startSession(t, root)

	mustEncode(t, conn, wire.CdHeader{Length: uint16(len("testdir/sub"))})
	if err := wire.WritePayload(conn, []byte("testdir/sub")); err != nil {
		t.Fatalf("WritePayload: %v", err)
	}
	if _, ok := mustDecode(t, conn).(wire.OkHeader); !ok {
		t.Fatalf("expected Ok after Cd")
	}

	mustEncode(t, conn, wire.PwdHeader{})
	ph, ok := mustDecode(t, conn).(wire.PathHeader)
	if !ok {
		t.Fatalf("expected Path")
	}
	buf, err := wire.ReadPayload(conn, int(ph.Length))
	if err != nil {
		t.Fatalf("ReadPayload: %v", err)
	}
	if string(buf) != "/testdir/sub" {
		t.Fatalf("pwd = %q, want /testdir/sub", buf)
	}

	mustEncode(t, conn, wire.CdHeader{Length: uint16(len("../../.."))})
	if err := wire.WritePayload(conn, []byte("../../..")); err != nil {
		t.Fatalf("WritePayload: %v", err)
	}
	if _, ok := mustDecode(t, conn).(wire.OkHeader); !ok {
		t.Fatalf("expected Ok after floored Cd")
	}

	mustEncode(t, conn, wire.PwdHeader{})
	ph = mustDecode(t, conn).(wire.PathHeader)
	if ph.Length != 1 {
		t.Fatalf("Length = %d, want 1", ph.Length)
	}
	buf, _ = wire.ReadPayload(conn, int(ph.Length))
	if string(buf) != "/" {
		t.Fatalf("pwd = %q, want /", buf)
	}

	mustEncode(t, conn, wire.CdHeader{Length: uint16(len("testdir/non-existing"))})
	if err := wire.WritePayload(conn, []byte("testdir/non-existing")); err != nil {
		t.Fatalf("WritePayload: %v", err)
	}
	eh, ok := mustDecode(t, conn).(wire.ErrorHeader)
	if !ok {
		t.Fatalf("expected Error for a missing directory")
	}
	if eh.Code != 5 {
		t.Fatalf("Code = %d, want 5 (NonExisting)", eh.Code)
	}

	mustEncode(t, conn, wire.PwdHeader{})
	ph = mustDecode(t, conn).(wire.PathHeader)
	buf, _ = wire.ReadPayload(conn, int(ph.Length))
	if string(buf) != "/" {
		t.Fatalf("pwd after failed cd = %q, want / (cwd unchanged)", buf)
	}
}

func TestReadFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "test-file"), []byte("some data"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	conn := startSession(t, root)

	mustEncode(t, conn, wire.ReadHeader{Length: uint16(len("test-file"))})
	if err := wire.WritePayload(conn, []byte("test-file")); err != nil {
		t.Fatalf("WritePayload: %v", err)
	}
	fh, ok := mustDecode(t, conn).(wire.FileHeader)
	if !ok {
		t.Fatalf("expected File")
	}
	if fh.Size != 9 {
		t.Fatalf("Size = %d, want 9", fh.Size)
	}
	buf, err := wire.ReadPayload(conn, int(fh.Size))
	if err != nil {
		t.Fatalf("ReadPayload: %v", err)
	}
	if string(buf) != "some data" {
		t.Fatalf("content = %q, want %q", buf, "some data")
	}
}

func TestWriteFile(t *testing.T) {
	root := t.TempDir()
	conn := startSession(t, root)

	mustEncode(t, conn, wire.WriteHeader{Length: uint16(len("new-file"))})
	if err := wire.WritePayload(conn, []byte("new-file")); err != nil {
		t.Fatalf("WritePayload: %v", err)
	}
	if _, ok := mustDecode(t, conn).(wire.OkHeader); !ok {
		t.Fatalf("expected Ok before upload")
	}

	mustEncode(t, conn, wire.FileHeader{Size: 9})
	if err := wire.WritePayload(conn, []byte("some data")); err != nil {
		t.Fatalf("WritePayload: %v", err)
	}
	if _, ok := mustDecode(t, conn).(wire.OkHeader); !ok {
		t.Fatalf("expected Ok after upload")
	}

	got, err := os.ReadFile(filepath.Join(root, "new-file"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "some data" {
		t.Fatalf("on-disk content = %q, want %q", got, "some data")
	}
}

func TestListDirectory(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"file1", "file2", "file3"} {
		if err := os.WriteFile(filepath.Join(root, name), nil, 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	conn := startSession(t, root)

	mustEncode(t, conn, wire.ListHeader{Length: 0})
	if err := wire.WritePayload(conn, nil); err != nil {
		t.Fatalf("WritePayload: %v", err)
	}
	if _, ok := mustDecode(t, conn).(wire.OkHeader); !ok {
		t.Fatalf("expected Ok before entries")
	}

	seen := map[string]bool{}
	for {
		h := mustDecode(t, conn)
		if _, ok := h.(wire.EndHeader); ok {
			break
		}
		eh, ok := h.(wire.EntryHeader)
		if !ok {
			t.Fatalf("expected Entry or End, got %T", h)
		}
		if eh.IsDir {
			t.Fatalf("expected a regular file entry")
		}
		if eh.Length != 5 {
			t.Fatalf("Length = %d, want 5", eh.Length)
		}
		name, err := wire.ReadPayload(conn, int(eh.Length))
		if err != nil {
			t.Fatalf("ReadPayload: %v", err)
		}
		seen[string(name)] = true
	}
	for _, name := range []string{"file1", "file2", "file3"} {
		if !seen[name] {
			t.Fatalf("missing entry %q", name)
		}
	}
}

func TestDeleteFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "gone"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	conn := startSession(t, root)

	mustEncode(t, conn, wire.DeleteHeader{Length: uint16(len("gone"))})
	if err := wire.WritePayload(conn, []byte("gone")); err != nil {
		t.Fatalf("WritePayload: %v", err)
	}
	if _, ok := mustDecode(t, conn).(wire.OkHeader); !ok {
		t.Fatalf("expected Ok after delete")
	}
	if _, err := os.Stat(filepath.Join(root, "gone")); !os.IsNotExist(err) {
		t.Fatalf("expected gone to be removed, stat err = %v", err)
	}
}

func TestGetInfo(t *testing.T) {
	conn := startSession(t, t.TempDir())
	mustEncode(t, conn, wire.GetInfoHeader{})
	ih, ok := mustDecode(t, conn).(wire.InfoHeader)
	if !ok {
		t.Fatalf("expected Info")
	}
	if ih.MaxName != testMaxName || ih.MaxPath != 4096 {
		t.Fatalf("Info = %+v, want MaxName=%d MaxPath=4096", ih, testMaxName)
	}
}

func TestUnexpectedMessage(t *testing.T) {
	conn := startSession(t, t.TempDir())
	mustEncode(t, conn, wire.OkHeader{})
	eh, ok := mustDecode(t, conn).(wire.ErrorHeader)
	if !ok {
		t.Fatalf("expected Error")
	}
	if eh.Code != 1 || eh.Arg1 != 9 {
		t.Fatalf("Error = %+v, want Code=1 (UnexpectedMessage) Arg1=9 (tag of Ok)", eh)
	}

	mustEncode(t, conn, wire.PingHeader{})
	if _, ok := mustDecode(t, conn).(wire.PingReplyHeader); !ok {
		t.Fatalf("expected session to remain responsive after the error")
	}
}

func TestCorruptTag(t *testing.T) {
	conn := startSession(t, t.TempDir())
	if _, err := conn.Write([]byte{0xEE, 0xEE}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	eh, ok := mustDecode(t, conn).(wire.ErrorHeader)
	if !ok {
		t.Fatalf("expected Error")
	}
	if eh.Code != 2 || eh.Arg1 != 0xEEEE {
		t.Fatalf("Error = %+v, want Code=2 (CorruptMessageTag) Arg1=0xEEEE", eh)
	}
}

func TestOverLengthPath(t *testing.T) {
	conn := startSession(t, t.TempDir())

	length := testMaxName + 1
	mustEncode(t, conn, wire.CdHeader{Length: uint16(length)})
	payload := make([]byte, length)
	for i := range payload {
		payload[i] = 'a'
	}
	if err := wire.WritePayload(conn, payload); err != nil {
		t.Fatalf("WritePayload: %v", err)
	}

	eh, ok := mustDecode(t, conn).(wire.ErrorHeader)
	if !ok {
		t.Fatalf("expected Error")
	}
	if eh.Code != 3 || eh.Arg1 != uint32(length) {
		t.Fatalf("Error = %+v, want Code=3 (InvalidFileName) Arg1=%d", eh, length)
	}

	mustEncode(t, conn, wire.PingHeader{})
	if _, ok := mustDecode(t, conn).(wire.PingReplyHeader); !ok {
		t.Fatalf("expected session to remain responsive after over-length path")
	}
}

func TestQuit(t *testing.T) {
	conn := startSession(t, t.TempDir())
	mustEncode(t, conn, wire.QuitHeader{})
	if _, ok := mustDecode(t, conn).(wire.QuitReplyHeader); !ok {
		t.Fatalf("expected QuitReply")
	}
	if _, err := wire.Decode(conn); err != io.EOF && err != io.ErrClosedPipe {
		t.Fatalf("expected the session to end after QuitReply, got %v", err)
	}
}
