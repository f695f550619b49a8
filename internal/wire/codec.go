package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Encode writes tag + header to w, field-by-field, little-endian. It never
// relies on host struct layout: every field is sliced into an explicit byte
// offset before being written.
func Encode(w io.Writer, h Header) error {
	tag := h.Tag()
	var tagBuf [2]byte
	binary.LittleEndian.PutUint16(tagBuf[:], uint16(tag))
	if _, err := w.Write(tagBuf[:]); err != nil {
		return err
	}

	buf := make([]byte, headerWidth[tag])
	switch v := h.(type) {
	case ReadHeader:
		binary.LittleEndian.PutUint16(buf, v.Length)
	case FileHeader:
		binary.LittleEndian.PutUint64(buf, v.Size)
	case ListHeader:
		binary.LittleEndian.PutUint16(buf, v.Length)
	case EntryHeader:
		buf[0] = v.Length
		buf[1] = boolByte(v.IsDir)
	case EndHeader:
	case CdHeader:
		binary.LittleEndian.PutUint16(buf, v.Length)
	case PwdHeader:
	case PathHeader:
		binary.LittleEndian.PutUint16(buf, v.Length)
	case OkHeader:
	case GetInfoHeader:
	case InfoHeader:
		binary.LittleEndian.PutUint64(buf[0:8], v.MaxName)
		binary.LittleEndian.PutUint64(buf[8:16], v.MaxPath)
	case PingHeader:
	case PingReplyHeader:
	case QuitHeader:
	case QuitReplyHeader:
	case WriteHeader:
		binary.LittleEndian.PutUint16(buf, v.Length)
	case DeleteHeader:
		binary.LittleEndian.PutUint16(buf, v.Length)
	case ErrorHeader:
		binary.LittleEndian.PutUint16(buf[0:2], v.Code)
		binary.LittleEndian.PutUint32(buf[2:6], v.Arg1)
		binary.LittleEndian.PutUint32(buf[6:10], v.Arg2)
	case CorruptHeader:
		return fmt.Errorf("wire: Corrupt is a decode-only value and must never be encoded")
	default:
		return fmt.Errorf("wire: unknown header type %T", h)
	}

	if len(buf) == 0 {
		return nil
	}
	_, err := w.Write(buf)
	return err
}

// Decode reads one tag plus its header from r. An unrecognized tag produces
// a CorruptHeader value without consuming any bytes beyond the 2-byte tag.
// A short read before a full tag+header is read propagates io.EOF (nothing
// at all was read) or io.ErrUnexpectedEOF (a partial frame was read); no
// partial header is ever returned.
func Decode(r io.Reader) (Header, error) {
	var tagBuf [2]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		return nil, err
	}
	tag := Tag(binary.LittleEndian.Uint16(tagBuf[:]))

	width, known := headerWidth[tag]
	if !known {
		return CorruptHeader{TagValue: tag}, nil
	}

	buf := make([]byte, width)
	if width > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}

	switch tag {
	case TagRead:
		return ReadHeader{Length: binary.LittleEndian.Uint16(buf)}, nil
	case TagFile:
		return FileHeader{Size: binary.LittleEndian.Uint64(buf)}, nil
	case TagList:
		return ListHeader{Length: binary.LittleEndian.Uint16(buf)}, nil
	case TagEntry:
		return EntryHeader{Length: buf[0], IsDir: buf[1] != 0}, nil
	case TagEnd:
		return EndHeader{}, nil
	case TagCd:
		return CdHeader{Length: binary.LittleEndian.Uint16(buf)}, nil
	case TagPwd:
		return PwdHeader{}, nil
	case TagPath:
		return PathHeader{Length: binary.LittleEndian.Uint16(buf)}, nil
	case TagOk:
		return OkHeader{}, nil
	case TagGetInfo:
		return GetInfoHeader{}, nil
	case TagInfo:
		return InfoHeader{
			MaxName: binary.LittleEndian.Uint64(buf[0:8]),
			MaxPath: binary.LittleEndian.Uint64(buf[8:16]),
		}, nil
	case TagPing:
		return PingHeader{}, nil
	case TagPingReply:
		return PingReplyHeader{}, nil
	case TagQuit:
		return QuitHeader{}, nil
	case TagQuitReply:
		return QuitReplyHeader{}, nil
	case TagWrite:
		return WriteHeader{Length: binary.LittleEndian.Uint16(buf)}, nil
	case TagDelete:
		return DeleteHeader{Length: binary.LittleEndian.Uint16(buf)}, nil
	case TagError:
		return ErrorHeader{
			Code: binary.LittleEndian.Uint16(buf[0:2]),
			Arg1: binary.LittleEndian.Uint32(buf[2:6]),
			Arg2: binary.LittleEndian.Uint32(buf[6:10]),
		}, nil
	default:
		// headerWidth and this switch are kept in lockstep by codec_test.go.
		return nil, fmt.Errorf("wire: tag %d registered but has no decoder", tag)
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// ReadPayload reads exactly length bytes of a variable-length payload
// (a path, a name, ...). A short read maps to io.ErrUnexpectedEOF.
func ReadPayload(r io.Reader, length int) ([]byte, error) {
	buf := make([]byte, length)
	if length == 0 {
		return buf, nil
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

// WritePayload writes a variable-length payload verbatim.
func WritePayload(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// DiscardPayload consumes and discards length bytes, used to keep framing
// aligned after rejecting an over-length path.
func DiscardPayload(r io.Reader, length int) error {
	if length == 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, r, int64(length))
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}
