package wire

// Header is any tag-determined fixed-width header value. Each variant knows
// its own Tag; Encode/Decode never use reflection to dispatch on it.
type Header interface {
	Tag() Tag
}

// ReadHeader requests the file content of a path.
type ReadHeader struct{ Length uint16 }

func (ReadHeader) Tag() Tag { return TagRead }

// FileHeader announces size bytes of file content follow on the stream.
type FileHeader struct{ Size uint64 }

func (FileHeader) Tag() Tag { return TagFile }

// ListHeader requests the directory entries of a path.
type ListHeader struct{ Length uint16 }

func (ListHeader) Tag() Tag { return TagList }

// EntryHeader announces one directory entry name of Length bytes follows.
type EntryHeader struct {
	Length uint8
	IsDir  bool
}

func (EntryHeader) Tag() Tag { return TagEntry }

// EndHeader terminates a List response stream.
type EndHeader struct{}

func (EndHeader) Tag() Tag { return TagEnd }

// CdHeader requests the virtual current directory be replaced.
type CdHeader struct{ Length uint16 }

func (CdHeader) Tag() Tag { return TagCd }

// PwdHeader requests the virtual current directory's path.
type PwdHeader struct{}

func (PwdHeader) Tag() Tag { return TagPwd }

// PathHeader announces a path of Length bytes follows (Pwd's reply).
type PathHeader struct{ Length uint16 }

func (PathHeader) Tag() Tag { return TagPath }

// OkHeader is an empty success acknowledgement.
type OkHeader struct{}

func (OkHeader) Tag() Tag { return TagOk }

// GetInfoHeader requests server limits.
type GetInfoHeader struct{}

func (GetInfoHeader) Tag() Tag { return TagGetInfo }

// InfoHeader carries the server's advertised path-length limits. Both
// fields are fixed at 64 bits on the wire so Info is portable across
// architectures regardless of the server's native integer width.
type InfoHeader struct {
	MaxName uint64
	MaxPath uint64
}

func (InfoHeader) Tag() Tag { return TagInfo }

// PingHeader is a liveness probe.
type PingHeader struct{}

func (PingHeader) Tag() Tag { return TagPing }

// PingReplyHeader answers PingHeader.
type PingReplyHeader struct{}

func (PingReplyHeader) Tag() Tag { return TagPingReply }

// QuitHeader requests the session end.
type QuitHeader struct{}

func (QuitHeader) Tag() Tag { return TagQuit }

// QuitReplyHeader answers QuitHeader; the session closes after sending it.
type QuitReplyHeader struct{}

func (QuitReplyHeader) Tag() Tag { return TagQuitReply }

// WriteHeader requests a path be created/truncated for upload.
type WriteHeader struct{ Length uint16 }

func (WriteHeader) Tag() Tag { return TagWrite }

// DeleteHeader requests a regular file be unlinked.
type DeleteHeader struct{ Length uint16 }

func (DeleteHeader) Tag() Tag { return TagDelete }

// CorruptHeader is produced only locally by Decode when it reads a tag
// outside the registry. It is never written to the wire.
type CorruptHeader struct{ TagValue Tag }

func (CorruptHeader) Tag() Tag { return TagCorrupt }

// ErrorHeader carries a protocol error taxonomy code and its arguments.
// Code is the raw wire value; callers decide whether it maps to a known
// protoerr.Kind or to protoerr.Unrecognized.
type ErrorHeader struct {
	Code uint16
	Arg1 uint32
	Arg2 uint32
}

func (ErrorHeader) Tag() Tag { return TagError }
