package badger

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Key prefixes for different data types
const (
	chunkPrefix       = "chunk"
	messagePrefix     = "msg"
	messageDatePrefix = "msgd"
	runPrefix         = "run"
)

// makeChunkPrefix generates the key prefix shared by every chunk of a collection.
// Format: prefix:collection:
func makeChunkPrefix(collection string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", chunkPrefix, collection))
}

// makeChunkKey generates a key for a chunk by collection and content hash.
// Format: prefix:collection:hash
func makeChunkKey(collection, hash string) []byte {
	return append(makeChunkPrefix(collection), hash...)
}

// makeMessageKey generates a key for a conversation message by ID.
func makeMessageKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", messagePrefix, id))
}

// makeMessageDateKey generates a composite key for the message date index.
// Format: prefix:timestamp:id
func makeMessageDateKey(timestamp time.Time, id string) []byte {
	buf := makePartialMessageDateKey(timestamp)
	return append(buf, id...)
}

// makePartialMessageDateKey generates a partial key for date range queries.
// Format: prefix:timestamp
func makePartialMessageDateKey(timestamp time.Time) []byte {
	prefix := []byte(messageDatePrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	return buf
}

// makeRunKey generates a key for the latest ingestion run of a collection.
func makeRunKey(collection string) []byte {
	return []byte(fmt.Sprintf("%s:%s", runPrefix, collection))
}
