// Package streamio provides pooled, bounded chunked copying for the
// fixed-size Read/Write payload streams the wire protocol carries.
package streamio

import "sync"

// ChunkSize is the fixed buffer size used to stream File payloads.
const ChunkSize = 32 * 1024

var chunkPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, ChunkSize)
		return &buf
	},
}

// getChunk returns a pooled ChunkSize buffer. Callers must putChunk it back.
func getChunk() *[]byte {
	return chunkPool.Get().(*[]byte)
}

func putChunk(bufPtr *[]byte) {
	chunkPool.Put(bufPtr)
}
