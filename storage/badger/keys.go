package badger

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/poiesic/portfolioqa/core"
)

// Key prefixes for different data types. Every prefix ends in ':' so no
// prefix is a prefix of another.
const (
	entityPrefix       = "ent:"
	entityNamePrefix   = "entn:"
	entityAliasPrefix  = "enta:"
	entityDegreePrefix = "entd:"
	relOutPrefix       = "relo:"
	relInPrefix        = "reli:"
	chunkPrefix        = "chk:"
	chunkEntityPrefix  = "chke:"
	jobPrefix          = "job:"
	jobDatePrefix      = "jobd:"
	rebuildSeq         = "seq:rebuild"
)

// sep separates variable-length components inside composite keys.
const sep = "\x00"

// makeEntityKey generates a key for an entity by ID.
func makeEntityKey(id core.EntityID) []byte {
	return []byte(entityPrefix + string(id))
}

// makeNameKey generates a case-folded key for the name index.
func makeNameKey(name string) []byte {
	return []byte(entityNamePrefix + foldName(name))
}

// makeAliasKey generates a case-folded key for the alias index.
func makeAliasKey(alias string) []byte {
	return []byte(entityAliasPrefix + foldName(alias))
}

// makeDegreeKey generates a key for the degree index.
func makeDegreeKey(id core.EntityID) []byte {
	return []byte(entityDegreePrefix + string(id))
}

// makeRelOutKey generates a composite key for the outgoing edge index.
// Format: prefix from \0 kind \0 to
func makeRelOutKey(from core.EntityID, kind core.RelationKind, to core.EntityID) []byte {
	return []byte(relOutPrefix + string(from) + sep + string(kind) + sep + string(to))
}

// makeRelInKey generates a composite key for the incoming edge index.
// Format: prefix to \0 kind \0 from
func makeRelInKey(to core.EntityID, kind core.RelationKind, from core.EntityID) []byte {
	return []byte(relInPrefix + string(to) + sep + string(kind) + sep + string(from))
}

// makePartialRelKey generates a partial key for edge scans of one entity,
// optionally narrowed to a kind.
func makePartialRelKey(prefix string, id core.EntityID, kind core.RelationKind) []byte {
	if kind == "" {
		return []byte(prefix + string(id) + sep)
	}
	return []byte(prefix + string(id) + sep + string(kind) + sep)
}

// makeChunkKey generates a key for a chunk by ID.
func makeChunkKey(id core.ChunkID) []byte {
	return []byte(chunkPrefix + string(id))
}

// makeChunkEntityKey generates a composite key for the chunk-by-entity index.
// Format: prefix entity \0 chunk
func makeChunkEntityKey(entity core.EntityID, chunk core.ChunkID) []byte {
	return []byte(chunkEntityPrefix + string(entity) + sep + string(chunk))
}

// makePartialChunkEntityKey generates a partial key for an entity's chunks.
func makePartialChunkEntityKey(entity core.EntityID) []byte {
	return []byte(chunkEntityPrefix + string(entity) + sep)
}

// makeJobKey generates a key for a job by ID.
func makeJobKey(id string) []byte {
	return []byte(jobPrefix + id)
}

// makeJobDateKey generates a composite key for the job creation-time index.
// Format: prefix:timestamp:id
func makeJobDateKey(createdAt time.Time, id string) []byte {
	buf := make([]byte, len(jobDatePrefix)+8+len(id))
	offset := copy(buf, jobDatePrefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

func foldName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeUint64(buf []byte) uint64 {
	if len(buf) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(buf)
}
