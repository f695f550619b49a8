// Package wire implements qooil's tagged-union wire protocol: a 16-bit
// little-endian tag followed by a tag-determined fixed-width header, and
// zero or more payload bytes whose length a header field dictates.
//
// All multi-byte header fields are little-endian on the wire regardless of
// host byte order; normalization happens only at the Encode/Decode boundary.
package wire

// Tag identifies a header layout and a protocol role. Tag values are part of
// the wire format and must never be renumbered.
type Tag uint16

const (
	TagRead      Tag = 1
	TagFile      Tag = 2
	TagList      Tag = 3
	TagEntry     Tag = 4
	TagEnd       Tag = 5
	TagCd        Tag = 6
	TagPwd       Tag = 7
	TagPath      Tag = 8
	TagOk        Tag = 9
	TagGetInfo   Tag = 10
	TagInfo      Tag = 11
	TagPing      Tag = 12
	TagPingReply Tag = 13
	TagQuit      Tag = 14
	TagQuitReply Tag = 15
	TagWrite     Tag = 16
	TagDelete    Tag = 17
	// TagCorrupt is never transmitted. Decode produces it locally when it
	// reads a tag outside this registry.
	TagCorrupt Tag = 18
	TagError   Tag = 19
)

func (t Tag) String() string {
	switch t {
	case TagRead:
		return "Read"
	case TagFile:
		return "File"
	case TagList:
		return "List"
	case TagEntry:
		return "Entry"
	case TagEnd:
		return "End"
	case TagCd:
		return "Cd"
	case TagPwd:
		return "Pwd"
	case TagPath:
		return "Path"
	case TagOk:
		return "Ok"
	case TagGetInfo:
		return "GetInfo"
	case TagInfo:
		return "Info"
	case TagPing:
		return "Ping"
	case TagPingReply:
		return "PingReply"
	case TagQuit:
		return "Quit"
	case TagQuitReply:
		return "QuitReply"
	case TagWrite:
		return "Write"
	case TagDelete:
		return "Delete"
	case TagCorrupt:
		return "Corrupt"
	case TagError:
		return "Error"
	default:
		return "Unknown"
	}
}

// headerWidth is the fixed on-wire byte width of each known tag's header,
// not counting the 2-byte tag itself.
var headerWidth = map[Tag]int{
	TagRead:      2,
	TagFile:      8,
	TagList:      2,
	TagEntry:     2,
	TagEnd:       0,
	TagCd:        2,
	TagPwd:       0,
	TagPath:      2,
	TagOk:        0,
	TagGetInfo:   0,
	TagInfo:      16,
	TagPing:      0,
	TagPingReply: 0,
	TagQuit:      0,
	TagQuitReply: 0,
	TagWrite:     2,
	TagDelete:    2,
	TagError:     10,
}
